package doctor

import (
	"errors"
	"strings"
	"time"
)

// UnknownName is shown for orders whose referring doctor cannot be resolved.
const UnknownName = "None"

var ErrNotFound = errors.New("doctor not found")

// Doctor is reference data for resolving an order's referredBy to a name.
type Doctor struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Specialization *string   `json:"specialization,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (d *Doctor) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Names maps doctor IDs to display names.
type Names map[string]string

// NewNames indexes docs by ID.
func NewNames(docs []*Doctor) Names {
	n := make(Names, len(docs))
	for _, d := range docs {
		n[d.ID] = d.Name
	}
	return n
}

// NameFor resolves id, falling back to UnknownName. A nil Names is valid and
// resolves everything to UnknownName.
func (n Names) NameFor(id string) string {
	if name, ok := n[id]; ok && id != "" {
		return name
	}
	return UnknownName
}

// Matching returns the IDs whose name contains term, case-insensitively.
func (n Names) Matching(term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var ids []string
	for id, name := range n {
		if strings.Contains(strings.ToLower(name), term) {
			ids = append(ids, id)
		}
	}
	return ids
}

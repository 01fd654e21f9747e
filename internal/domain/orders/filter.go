package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/labdesk/labdesk/internal/domain/doctor"
)

const dateLayout = "2006-01-02"

// Filter narrows the order list. Search is a case-insensitive substring
// matched against the patient name, the resolved doctor name and the serial
// number. The date range bounds createdAt inclusively and applies only when
// at least one bound is set.
type Filter struct {
	Search string
	From   *time.Time
	To     *time.Time
}

// ParseFilter builds a Filter from request parameters. Dates are accepted as
// YYYY-MM-DD or RFC 3339; a bare date for to means the end of that day.
func ParseFilter(search, from, to string) (Filter, error) {
	f := Filter{Search: strings.TrimSpace(search)}
	if from != "" {
		t, _, err := parseDate(from)
		if err != nil {
			return f, fmt.Errorf("%w: from: %v", ErrInvalid, err)
		}
		f.From = &t
	}
	if to != "" {
		t, dateOnly, err := parseDate(to)
		if err != nil {
			return f, fmt.Errorf("%w: to: %v", ErrInvalid, err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, fmt.Errorf("%w: to is before from", ErrInvalid)
	}
	return f, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t, false, nil
}

// DateActive reports whether the date range takes part in matching.
func (f Filter) DateActive() bool {
	return f.From != nil || f.To != nil
}

// ResetDates returns the filter with only its search term.
func (f Filter) ResetDates() Filter {
	return Filter{Search: f.Search}
}

func (f Filter) term() string {
	return strings.ToLower(f.Search)
}

// Match reports whether o passes the filter, given the name of its doctor.
func (f Filter) Match(o *Order, doctorName string) bool {
	if !f.matchText(o) && !f.matchDoctor(doctorName) {
		return false
	}
	return f.matchDate(o.CreatedAt)
}

// Apply returns the orders that match, in input order.
func (f Filter) Apply(list []*Order, names doctor.Names) []*Order {
	out := make([]*Order, 0, len(list))
	for _, o := range list {
		name := ""
		if id := o.ReferredBy; id != "" {
			if n, ok := names[id]; ok {
				name = n
			}
		}
		if f.Match(o, name) {
			out = append(out, o)
		}
	}
	return out
}

func (f Filter) matchText(o *Order) bool {
	term := f.term()
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(o.Name), term) ||
		strings.Contains(strings.ToLower(o.SerialNo), term)
}

func (f Filter) matchDoctor(name string) bool {
	term := f.term()
	return term != "" && name != "" && strings.Contains(strings.ToLower(name), term)
}

func (f Filter) matchDate(t time.Time) bool {
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && t.After(*f.To) {
		return false
	}
	return true
}

// Query is what repositories evaluate. DoctorIDs holds the doctors whose name
// matches the search term, resolved by the caller so that every backend can
// match doctor names without a join.
type Query struct {
	Filter    Filter
	DoctorIDs []string
	Limit     int
	Offset    int
}

// NewQuery resolves the doctor-name part of f against names.
func NewQuery(f Filter, names doctor.Names, limit, offset int) Query {
	return Query{
		Filter:    f,
		DoctorIDs: names.Matching(f.Search),
		Limit:     limit,
		Offset:    offset,
	}
}

// Match is Filter.Match with the doctor name resolved through DoctorIDs.
func (q Query) Match(o *Order) bool {
	if !q.Filter.matchText(o) && !q.referredByMatch(o.ReferredBy) {
		return false
	}
	return q.Filter.matchDate(o.CreatedAt)
}

func (q Query) referredByMatch(id string) bool {
	if id == "" {
		return false
	}
	for _, d := range q.DoctorIDs {
		if d == id {
			return true
		}
	}
	return false
}

// likePattern escapes s for use inside an ILIKE '%...%' pattern.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

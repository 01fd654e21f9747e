package orders

import (
	"errors"
	"time"
)

// Migration journal statuses.
const (
	StatusPending     = "pending"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusCompensated = "compensated"
	StatusStranded    = "stranded"
	StatusRetrying    = "retrying"
)

var validMigrationStatuses = map[string]bool{
	StatusPending: true, StatusCompleted: true, StatusFailed: true,
	StatusCompensated: true, StatusStranded: true, StatusRetrying: true,
}

var (
	ErrMigrationNotFound = errors.New("migration not found")
	// ErrMigrationConflict means another retry took the entry first.
	ErrMigrationConflict = errors.New("migration is no longer stranded")
)

// Migration records one attempt to move an unbilled order to the billed
// collection. Snapshot is the unbilled order as it was before the move and
// Payload the record submitted for creation.
type Migration struct {
	ID               string    `json:"id"`
	UnbilledID       string    `json:"unbilledId"`
	UnbilledSerialNo string    `json:"unbilledSerialNo"`
	BilledID         string    `json:"billedId,omitempty"`
	BilledSerialNo   string    `json:"billedSerialNo,omitempty"`
	Status           string    `json:"status"`
	Snapshot         *Order    `json:"snapshot"`
	Payload          *Order    `json:"payload"`
	Error            string    `json:"error,omitempty"`
	Attempts         int       `json:"attempts"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (m *Migration) fail(status string, err error) {
	m.Status = status
	if err != nil {
		m.Error = err.Error()
	}
}

func (m *Migration) complete(billed *Order) {
	m.Status = StatusCompleted
	m.BilledID = billed.ID
	m.BilledSerialNo = billed.SerialNo
	m.Error = ""
}

package orders

import (
	"context"
	"fmt"
)

// Repository is one order collection. The unbilled and billed collections
// each get their own instance.
type Repository interface {
	// List returns one page of matching orders, newest first, and the total
	// number of matches.
	List(ctx context.Context, q Query) ([]*Order, int, error)
	Get(ctx context.Context, id string) (*Order, error)
	// Create assigns ID, SerialNo and timestamps.
	Create(ctx context.Context, o *Order) error
	// Update replaces the mutable fields of the order with o.ID. SerialNo and
	// CreatedAt are kept.
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
	// Restore re-inserts a previously deleted order with its original
	// identity.
	Restore(ctx context.Context, o *Order) error
}

// JournalRepository stores migration journal entries.
type JournalRepository interface {
	Create(ctx context.Context, m *Migration) error
	Update(ctx context.Context, m *Migration) error
	Get(ctx context.Context, id string) (*Migration, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Migration, int, error)
	// Transition sets the status of entry id to to, only while it is from.
	// It reports whether the entry changed.
	Transition(ctx context.Context, id, from, to string) (bool, error)
}

// TxRunner runs fn in a transaction spanning both order collections.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Collection names the serial counter and prefix of a collection.
type Collection struct {
	Name   string
	Prefix string
}

// FormatSerial renders a counter value as a serial number.
func (c Collection) FormatSerial(n int64) string {
	return fmt.Sprintf("%s%06d", c.Prefix, n)
}

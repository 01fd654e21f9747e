package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-process order collection used by the memory store
// driver and by tests.
type MemoryRepo struct {
	coll  Collection
	mu    sync.RWMutex
	store map[string]*Order
	seq   int64
	now   func() time.Time
}

func NewMemoryRepo(coll Collection) *MemoryRepo {
	return &MemoryRepo{
		coll:  coll,
		store: make(map[string]*Order),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) List(_ context.Context, q Query) ([]*Order, int, error) {
	r.mu.RLock()
	matched := make([]*Order, 0, len(r.store))
	for _, o := range r.store {
		if q.Match(o) {
			matched = append(matched, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].SerialNo > matched[j].SerialNo
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if q.Offset >= total {
		return []*Order{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < total {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], total, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryRepo) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	now := r.now()
	o.ID = uuid.NewString()
	o.SerialNo = r.coll.FormatSerial(r.seq)
	o.CreatedAt = now
	o.UpdatedAt = now
	r.store[o.ID] = o.Clone()
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.store[o.ID]
	if !ok {
		return ErrNotFound
	}
	o.SerialNo = cur.SerialNo
	o.CreatedAt = cur.CreatedAt
	o.UpdatedAt = r.now()
	r.store[o.ID] = o.Clone()
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[id]; !ok {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}

func (r *MemoryRepo) Restore(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[o.ID]; ok {
		return nil
	}
	r.store[o.ID] = o.Clone()
	return nil
}

// MemoryJournal is an in-process JournalRepository.
type MemoryJournal struct {
	mu    sync.RWMutex
	store map[string]*Migration
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{store: make(map[string]*Migration)}
}

func (j *MemoryJournal) Create(_ context.Context, m *Migration) error {
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	j.mu.Lock()
	j.store[m.ID] = cloneMigration(m)
	j.mu.Unlock()
	return nil
}

func (j *MemoryJournal) Update(_ context.Context, m *Migration) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.store[m.ID]; !ok {
		return ErrMigrationNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	j.store[m.ID] = cloneMigration(m)
	return nil
}

func (j *MemoryJournal) Transition(_ context.Context, id, from, to string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	m, ok := j.store[id]
	if !ok {
		return false, ErrMigrationNotFound
	}
	if m.Status != from {
		return false, nil
	}
	m.Status = to
	m.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (j *MemoryJournal) Get(_ context.Context, id string) (*Migration, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	m, ok := j.store[id]
	if !ok {
		return nil, ErrMigrationNotFound
	}
	return cloneMigration(m), nil
}

func (j *MemoryJournal) List(_ context.Context, status string, limit, offset int) ([]*Migration, int, error) {
	j.mu.RLock()
	var out []*Migration
	for _, m := range j.store {
		if status == "" || m.Status == status {
			out = append(out, cloneMigration(m))
		}
	}
	j.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	total := len(out)
	if offset >= total {
		return []*Migration{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return out[offset:end], total, nil
}

func cloneMigration(m *Migration) *Migration {
	cp := *m
	if m.Snapshot != nil {
		cp.Snapshot = m.Snapshot.Clone()
	}
	if m.Payload != nil {
		cp.Payload = m.Payload.Clone()
	}
	return &cp
}

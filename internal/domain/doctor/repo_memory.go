package doctor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps doctors in process. Used by the memory store driver and
// by tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*Doctor
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*Doctor)}
}

func (r *MemoryRepo) List(_ context.Context) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Doctor, 0, len(r.store))
	for _, d := range r.store {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepo) Create(_ context.Context, d *Doctor) error {
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()
	cp := *d
	r.mu.Lock()
	r.store[d.ID] = &cp
	r.mu.Unlock()
	return nil
}

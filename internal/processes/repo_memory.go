package processes

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Process
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Process)}
}

func (r *MemoryRepo) Create(ctx context.Context, p Process) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[p.Numero]; ok {
		return ErrAlreadyExists
	}
	r.data[p.Numero] = p
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, numero string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return Process{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data[numero]
	if !ok {
		return Process{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Process, 0, len(r.data))
	for _, p := range r.data {
		if filter.Kind != "" && p.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Numero > out[j].Numero
	})
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, numero string, from, to Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[numero]
	if !ok {
		return ErrNotFound
	}
	if p.Status != from {
		return ErrConflict
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	r.data[numero] = p
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

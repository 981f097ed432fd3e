package users

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps users in a map for dev runs without a database.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]User
	now  func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]User), now: func() time.Time { return time.Now().UTC() }}
}

// Upsert mirrors the PG statement: creation time is kept and a missing login time does not erase the stored one.
func (r *MemoryRepo) Upsert(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now
	if prev, ok := r.byID[user.ID]; ok {
		user.CreatedAt = prev.CreatedAt
		if user.LastLoginAt == nil {
			user.LastLoginAt = prev.LastLoginAt
		}
	}
	r.byID[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if user, ok := r.byID[userID]; ok {
		return user, nil
	}
	return User{}, ErrNotFound
}

package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

// MemoryUserRepo is the in-process counterpart of UserRepo.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	nextID uint64
	users  map[uint64]model.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[uint64]model.User)}
}

// Create hashes the password and stores the user.
func (r *MemoryUserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return 0, ErrEmailExists
		}
	}
	r.nextID++
	now := time.Now().UTC()
	r.users[r.nextID] = model.User{
		ID: r.nextID, Email: email, PasswordHash: hash, Role: role,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	return r.nextID, nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (r *MemoryUserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// MemoryTokenRepo is the in-process counterpart of TokenRepo.
type MemoryTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
}

func NewMemoryTokenRepo() *MemoryTokenRepo {
	return &MemoryTokenRepo{tokens: make(map[string]model.RefreshToken)}
}

func (r *MemoryTokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenHash] = model.RefreshToken{
		UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

// ConsumeRefresh revokes a live token and returns its owner, or
// ErrNotFound when the token is unknown, spent or expired.
func (r *MemoryTokenRepo) ConsumeRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenHash]
	now := time.Now().UTC()
	if !ok || t.RevokedAt != nil || !now.Before(t.ExpiresAt) {
		return 0, ErrNotFound
	}
	t.RevokedAt = &now
	r.tokens[tokenHash] = t
	return t.UserID, nil
}

func (r *MemoryTokenRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, t := range r.tokens {
		if t.ExpiresAt.Before(cutoff) {
			delete(r.tokens, h)
			n++
		}
	}
	return n, nil
}

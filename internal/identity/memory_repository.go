package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User // keyed by lowercased email
}

// NewMemoryRepository builds an empty in-memory user store.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

// NewSeededRepository builds an in-memory store preloaded with the two
// demo accounts used throughout development and tests.
func NewSeededRepository() Repository {
	repo := &memoryRepository{users: make(map[string]User)}
	seed := []User{
		{
			ID:        uuid.NewString(),
			Email:     "demo@example.com",
			Name:      "Demo User",
			Role:      RoleUser,
			Phone:     "+1234567890",
			CreatedAt: time.Now().UTC(),
		},
		{
			ID:          uuid.NewString(),
			Email:       "admin@example.com",
			Name:        "Admin User",
			Role:        RoleAdmin,
			Phone:       "+9876543210",
			TOTPEnabled: true,
			CreatedAt:   time.Now().UTC(),
		},
	}
	for _, user := range seed {
		repo.users[strings.ToLower(user.Email)] = user
	}
	return repo
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, exists := r.users[key]; exists {
		return ErrDuplicate
	}
	r.users[key] = user
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Phone != "" && user.Phone == phone {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

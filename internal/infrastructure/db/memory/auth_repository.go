package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/documentai/docai/internal/core/domain"
)

// AuthRepository keeps identity stub accounts in memory, keyed by email.
type AuthRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
}

func NewAuthRepository() *AuthRepository {
	return &AuthRepository{
		byEmail: make(map[string]*domain.User),
		byID:    make(map[string]*domain.User),
	}
}

func (r *AuthRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return nil, domain.ErrUserExists
	}
	stored := *user
	stored.ID = uuid.NewString()
	r.byEmail[stored.Email] = &stored
	r.byID[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (r *AuthRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byEmail[email])
}

func (r *AuthRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byID[id])
}

func clone(u *domain.User) (*domain.User, error) {
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

package ports

import (
	"context"

	"github.com/documentai/docai/internal/core/domain"
)

// AuthRepository persists identity stub accounts.
type AuthRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}

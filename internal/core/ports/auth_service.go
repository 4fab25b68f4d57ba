package ports

import (
	"context"

	"github.com/documentai/docai/internal/core/domain"
)

// AuthService issues credentials for the identity stub.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
}

package ports

import (
	"context"

	"github.com/documentai/docai/internal/core/domain"
)

// AuthResult is the decoded body of a successful login or signup.
type AuthResult struct {
	User  domain.Identity
	Token string
}

// AuthClient talks to the remote identity endpoints.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Signup(ctx context.Context, email, password, name string) (*AuthResult, error)
}

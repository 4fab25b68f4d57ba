package ports

import (
	"context"

	"github.com/documentai/docai/internal/core/domain"
)

// SessionState is a point-in-time copy of the session store's exposed state.
type SessionState struct {
	User        *domain.Identity
	Loading     bool
	Initialized bool
}

// Authenticated reports whether an identity is present.
func (s SessionState) Authenticated() bool {
	return s.User != nil
}

// Session is the read side of the session store plus the operations that
// mutate it. Consumers receive it by explicit reference.
type Session interface {
	Initialize(ctx context.Context)
	Login(ctx context.Context, email, password string) error
	Signup(ctx context.Context, email, password, name string) error
	Logout(ctx context.Context)
	SetCredential(ctx context.Context, token string) error

	CurrentUser() (domain.Identity, bool)
	IsLoading() bool
	Credential() (string, bool)
	Snapshot() SessionState
	Subscribe(fn func(SessionState)) (cancel func())
}

// SessionObserver receives timing and outcome of authentication calls.
type SessionObserver interface {
	AuthStarted(operation string)
	AuthFinished(operation, result string, seconds float64)
}

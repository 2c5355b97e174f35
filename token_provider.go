package identity

import "context"

// TokenProvider issues and checks purpose-bound tokens. Implementations
// must bind a token to the exact (user, purpose) pair it was generated for
// and treat a security-stamp change as invalidating outstanding tokens.
// Whether replay inside the validity window is accepted is up to the
// provider and must be documented on it.
type TokenProvider[U any] interface {
	Generate(ctx context.Context, purpose string, m *Manager[U], user *U) (string, error)
	Validate(ctx context.Context, purpose, token string, m *Manager[U], user *U) (bool, error)
}

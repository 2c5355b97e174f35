package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// RegisterTokenProvider adds or replaces a provider under a registry name.
// Register providers before handing the Manager to concurrent callers, the
// registry is not guarded by a lock.
func (m *Manager[U]) RegisterTokenProvider(name string, provider TokenProvider[U]) *Manager[U] {
	if name != "" && provider != nil {
		m.tokenProviders[name] = provider
	}
	return m
}

// GenerateToken issues a purpose-bound token for the user through the
// provider configured for that purpose.
func (m *Manager[U]) GenerateToken(ctx context.Context, purpose string, user *U) (string, error) {
	if user == nil {
		return "", badInput("user must not be nil")
	}
	if purpose == "" {
		return "", badInput("purpose must not be empty")
	}

	provider, err := m.providerFor(purpose)
	if err != nil {
		return "", err
	}
	return provider.Generate(ctx, purpose, m, user)
}

// VerifyToken checks a token against the exact (user, purpose) pair it was
// issued for. Safe for concurrent use, providers keep no mutable state
// beyond the store.
func (m *Manager[U]) VerifyToken(ctx context.Context, purpose, token string, user *U) (bool, error) {
	if user == nil {
		return false, badInput("user must not be nil")
	}
	if purpose == "" {
		return false, badInput("purpose must not be empty")
	}
	if token == "" {
		return false, nil
	}

	provider, err := m.providerFor(purpose)
	if err != nil {
		return false, err
	}
	return provider.Validate(ctx, purpose, token, m, user)
}

// GenerateEmailConfirmationToken issues a token for ConfirmEmail.
func (m *Manager[U]) GenerateEmailConfirmationToken(ctx context.Context, user *U) (string, error) {
	return m.GenerateToken(ctx, PurposeEmailConfirmation, user)
}

// GeneratePhoneConfirmationToken issues a token for ConfirmPhoneNumber.
func (m *Manager[U]) GeneratePhoneConfirmationToken(ctx context.Context, user *U) (string, error) {
	return m.GenerateToken(ctx, PurposePhoneConfirmation, user)
}

// GeneratePasswordResetToken issues a token for ResetPassword.
func (m *Manager[U]) GeneratePasswordResetToken(ctx context.Context, user *U) (string, error) {
	return m.GenerateToken(ctx, PurposePasswordReset, user)
}

// GenerateTwoFactorToken issues a short-lived second-factor code.
func (m *Manager[U]) GenerateTwoFactorToken(ctx context.Context, user *U) (string, error) {
	return m.GenerateToken(ctx, PurposeTwoFactor, user)
}

// VerifyTwoFactorToken checks a second-factor code.
func (m *Manager[U]) VerifyTwoFactorToken(ctx context.Context, user *U, token string) (bool, error) {
	return m.VerifyToken(ctx, PurposeTwoFactor, token, user)
}

func (m *Manager[U]) providerFor(purpose string) (TokenProvider[U], error) {
	name := m.opts.Tokens.ProviderFor(purpose)
	provider, ok := m.tokenProviders[name]
	if !ok {
		return nil, goerrors.Wrap(ErrUnknownTokenProvider, goerrors.CategoryOperation, "no provider registered as "+name)
	}
	return provider, nil
}

package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// HasPassword reports whether the user has a password hash set.
func (m *Manager[U]) HasPassword(ctx context.Context, user *U) (bool, error) {
	if user == nil {
		return false, badInput("user must not be nil")
	}
	ps, ok := m.passwordStore()
	if !ok {
		return false, ErrStoreNotSupported
	}
	hash, err := ps.GetPasswordHash(ctx, user)
	if err != nil {
		return false, wrapStoreErr(err, "password: hash lookup failed")
	}
	return hash != "", nil
}

// CheckPassword verifies a presented password against the stored hash. It
// does not touch lockout counters, credential flows that need counting
// (ChangePassword, SignInManager) layer that on top.
func (m *Manager[U]) CheckPassword(ctx context.Context, user *U, password string) (bool, error) {
	if user == nil {
		return false, badInput("user must not be nil")
	}
	ps, ok := m.passwordStore()
	if !ok {
		return false, ErrStoreNotSupported
	}

	hash, err := ps.GetPasswordHash(ctx, user)
	if err != nil {
		return false, wrapStoreErr(err, "password: hash lookup failed")
	}
	if hash == "" {
		return false, nil
	}

	if err := m.hasher.VerifyPassword(hash, password); err != nil {
		if goerrors.Is(err, ErrPasswordMismatch) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "password: hasher failed")
	}
	return true, nil
}

// AddPassword sets a password on a user that has none.
func (m *Manager[U]) AddPassword(ctx context.Context, user *U, password string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ps, ok := m.passwordStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	hash, err := ps.GetPasswordHash(ctx, user)
	if err != nil {
		return Result{}, wrapStoreErr(err, "password: hash lookup failed")
	}
	if hash != "" {
		return Fail(ResultError{
			Code:        CodeUserAlreadyHasPassword,
			Description: "User already has a password set.",
		}), nil
	}

	return m.updatePassword(ctx, ps, user, password)
}

// ChangePassword verifies the old password and replaces it with a validated
// new one, rotating the security stamp so artifacts issued against the old
// credential go stale. A mismatch counts as a failed access when the store
// tracks lockout.
func (m *Manager[U]) ChangePassword(ctx context.Context, user *U, oldPassword, newPassword string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ps, ok := m.passwordStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	match, err := m.CheckPassword(ctx, user, oldPassword)
	if err != nil {
		return Result{}, err
	}
	if !match {
		if m.SupportsUserLockout() {
			if _, err := m.AccessFailed(ctx, user); err != nil {
				return Result{}, err
			}
		}
		return Fail(ResultError{
			Code:        CodePasswordMismatch,
			Description: "Incorrect password.",
		}), nil
	}

	if ls, ok := m.lockoutStore(); ok {
		if err := ls.ResetAccessFailedCount(ctx, user); err != nil {
			return Result{}, wrapStoreErr(err, "password: failed to reset access count")
		}
	}

	return m.updatePassword(ctx, ps, user, newPassword)
}

// ResetPassword replaces the password after verifying a password-reset
// purpose token, without requiring the old password.
func (m *Manager[U]) ResetPassword(ctx context.Context, user *U, token, newPassword string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ps, ok := m.passwordStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	valid, err := m.VerifyToken(ctx, PurposePasswordReset, token, user)
	if err != nil {
		return Result{}, err
	}
	if !valid {
		return Fail(ResultError{
			Code:        CodeInvalidToken,
			Description: "Invalid or expired password reset token.",
		}), nil
	}

	return m.updatePassword(ctx, ps, user, newPassword)
}

// GetSecurityStamp reads the user's current security stamp.
func (m *Manager[U]) GetSecurityStamp(ctx context.Context, user *U) (string, error) {
	if user == nil {
		return "", badInput("user must not be nil")
	}
	ss, ok := m.stampStore()
	if !ok {
		return "", ErrStoreNotSupported
	}
	stamp, err := ss.GetSecurityStamp(ctx, user)
	if err != nil {
		return "", wrapStoreErr(err, "security stamp lookup failed")
	}
	return stamp, nil
}

// UpdateSecurityStamp rotates the stamp and persists, explicitly
// invalidating every identity and purpose token issued before the call.
func (m *Manager[U]) UpdateSecurityStamp(ctx context.Context, user *U) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ss, ok := m.stampStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}
	if err := ss.SetSecurityStamp(ctx, user, newStamp()); err != nil {
		return Result{}, wrapStoreErr(err, "security stamp rotation failed")
	}
	return m.persistUpdate(ctx, user)
}

// updatePassword validates, hashes, and stores a new password, rotating the
// security stamp in the same persisted mutation.
func (m *Manager[U]) updatePassword(ctx context.Context, ps PasswordStore[U], user *U, password string) (Result, error) {
	result, err := m.passwordValidator.ValidatePassword(ctx, m.opts.Password, password)
	if err != nil {
		return Result{}, err
	}
	if !result.Succeeded {
		return result, nil
	}

	hash, err := m.hasher.HashPassword(password)
	if err != nil {
		return Result{}, goerrors.Wrap(err, goerrors.CategoryInternal, "password: failed to hash")
	}
	if err := ps.SetPasswordHash(ctx, user, hash); err != nil {
		return Result{}, wrapStoreErr(err, "password: failed to set hash")
	}
	if err := m.regenerateSecurityStamp(ctx, user); err != nil {
		return Result{}, wrapStoreErr(err, "password: failed to rotate security stamp")
	}

	result, err = m.persistUpdate(ctx, user)
	if err == nil && result.Succeeded {
		m.recordAudit(ctx, AuditEventPasswordChanged, m.store.GetUserID(user), nil)
	}
	return result, err
}

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/nyaruka/phonenumbers"
)

// IsLockedOut reports whether the user's lockout end is set and still in
// the future, evaluated against the Manager's clock.
func (m *Manager[U]) IsLockedOut(ctx context.Context, user *U) (bool, error) {
	if user == nil {
		return false, badInput("user must not be nil")
	}
	ls, ok := m.lockoutStore()
	if !ok {
		return false, ErrStoreNotSupported
	}
	end, err := ls.GetLockoutEnd(ctx, user)
	if err != nil {
		return false, wrapStoreErr(err, "lockout: end lookup failed")
	}
	return end != nil && end.After(m.now()), nil
}

// AccessFailed records a failed credential check. Once the count reaches
// the configured maximum the lockout end is pushed now-plus-duration and
// the counter resets. A no-op when the user has lockout disabled.
func (m *Manager[U]) AccessFailed(ctx context.Context, user *U) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ls, ok := m.lockoutStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	enabled, err := ls.GetLockoutEnabled(ctx, user)
	if err != nil {
		return Result{}, wrapStoreErr(err, "lockout: enabled lookup failed")
	}
	if !enabled {
		return Ok(), nil
	}

	count, err := ls.IncrementAccessFailedCount(ctx, user)
	if err != nil {
		return Result{}, wrapStoreErr(err, "lockout: increment failed")
	}

	if count >= m.opts.Lockout.MaxFailedAttempts {
		end := m.now().Add(m.opts.Lockout.Duration)
		if err := ls.SetLockoutEnd(ctx, user, &end); err != nil {
			return Result{}, wrapStoreErr(err, "lockout: failed to set end")
		}
		if err := ls.ResetAccessFailedCount(ctx, user); err != nil {
			return Result{}, wrapStoreErr(err, "lockout: failed to reset count")
		}
		m.logger.Info("user %q locked out until %s", m.store.GetUserID(user), end.Format(time.RFC3339))
		m.recordAudit(ctx, AuditEventLockoutTriggered, m.store.GetUserID(user), map[string]any{
			"lockout_end": end,
		})
	}

	return m.persistUpdate(ctx, user)
}

// ResetAccessFailedCount zeroes the failed-access counter after a
// successful credential check.
func (m *Manager[U]) ResetAccessFailedCount(ctx context.Context, user *U) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ls, ok := m.lockoutStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	count, err := ls.GetAccessFailedCount(ctx, user)
	if err != nil {
		return Result{}, wrapStoreErr(err, "lockout: count lookup failed")
	}
	if count == 0 {
		return Ok(), nil
	}
	if err := ls.ResetAccessFailedCount(ctx, user); err != nil {
		return Result{}, wrapStoreErr(err, "lockout: failed to reset count")
	}
	return m.persistUpdate(ctx, user)
}

// GetAccessFailedCount reads the current failed-access counter.
func (m *Manager[U]) GetAccessFailedCount(ctx context.Context, user *U) (int, error) {
	if user == nil {
		return 0, badInput("user must not be nil")
	}
	ls, ok := m.lockoutStore()
	if !ok {
		return 0, ErrStoreNotSupported
	}
	count, err := ls.GetAccessFailedCount(ctx, user)
	if err != nil {
		return 0, wrapStoreErr(err, "lockout: count lookup failed")
	}
	return count, nil
}

// GetLockoutEnd reads the lockout end, nil when the user is not locked.
func (m *Manager[U]) GetLockoutEnd(ctx context.Context, user *U) (*time.Time, error) {
	if user == nil {
		return nil, badInput("user must not be nil")
	}
	ls, ok := m.lockoutStore()
	if !ok {
		return nil, ErrStoreNotSupported
	}
	end, err := ls.GetLockoutEnd(ctx, user)
	if err != nil {
		return nil, wrapStoreErr(err, "lockout: end lookup failed")
	}
	return end, nil
}

// SetLockoutEnd explicitly locks or unlocks the user. Fails when the user
// has lockout disabled.
func (m *Manager[U]) SetLockoutEnd(ctx context.Context, user *U, end *time.Time) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ls, ok := m.lockoutStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	enabled, err := ls.GetLockoutEnabled(ctx, user)
	if err != nil {
		return Result{}, wrapStoreErr(err, "lockout: enabled lookup failed")
	}
	if !enabled {
		return Fail(ResultError{
			Code:        CodeLockoutNotEnabled,
			Description: "Lockout is not enabled for this user.",
		}), nil
	}

	if err := ls.SetLockoutEnd(ctx, user, end); err != nil {
		return Result{}, wrapStoreErr(err, "lockout: failed to set end")
	}
	return m.persistUpdate(ctx, user)
}

// SetLockoutEnabled flips the per-user lockout flag.
func (m *Manager[U]) SetLockoutEnabled(ctx context.Context, user *U, enabled bool) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ls, ok := m.lockoutStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}
	if err := ls.SetLockoutEnabled(ctx, user, enabled); err != nil {
		return Result{}, wrapStoreErr(err, "lockout: failed to set enabled flag")
	}
	return m.persistUpdate(ctx, user)
}

// GetLockoutEnabled reads the per-user lockout flag.
func (m *Manager[U]) GetLockoutEnabled(ctx context.Context, user *U) (bool, error) {
	if user == nil {
		return false, badInput("user must not be nil")
	}
	ls, ok := m.lockoutStore()
	if !ok {
		return false, ErrStoreNotSupported
	}
	enabled, err := ls.GetLockoutEnabled(ctx, user)
	if err != nil {
		return false, wrapStoreErr(err, "lockout: enabled lookup failed")
	}
	return enabled, nil
}

// GetTwoFactorEnabled reads the two-factor flag.
func (m *Manager[U]) GetTwoFactorEnabled(ctx context.Context, user *U) (bool, error) {
	if user == nil {
		return false, badInput("user must not be nil")
	}
	ts, ok := m.twoFactorStore()
	if !ok {
		return false, ErrStoreNotSupported
	}
	enabled, err := ts.GetTwoFactorEnabled(ctx, user)
	if err != nil {
		return false, wrapStoreErr(err, "two-factor lookup failed")
	}
	return enabled, nil
}

// SetTwoFactorEnabled flips the two-factor flag and rotates the security
// stamp.
func (m *Manager[U]) SetTwoFactorEnabled(ctx context.Context, user *U, enabled bool) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ts, ok := m.twoFactorStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}
	if err := ts.SetTwoFactorEnabled(ctx, user, enabled); err != nil {
		return Result{}, wrapStoreErr(err, "two-factor: failed to set flag")
	}
	if err := m.regenerateSecurityStamp(ctx, user); err != nil {
		return Result{}, wrapStoreErr(err, "two-factor: failed to rotate security stamp")
	}
	return m.persistUpdate(ctx, user)
}

// GetEmail reads the user's email address.
func (m *Manager[U]) GetEmail(ctx context.Context, user *U) (string, error) {
	if user == nil {
		return "", badInput("user must not be nil")
	}
	es, ok := m.emailStore()
	if !ok {
		return "", ErrStoreNotSupported
	}
	email, err := es.GetEmail(ctx, user)
	if err != nil {
		return "", wrapStoreErr(err, "email lookup failed")
	}
	return email, nil
}

// SetEmail updates the address, clears the confirmed flag, and rotates the
// security stamp. Format and uniqueness run through the user validator as
// part of the persisted update.
func (m *Manager[U]) SetEmail(ctx context.Context, user *U, email string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	es, ok := m.emailStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	if err := es.SetEmail(ctx, user, email); err != nil {
		return Result{}, wrapStoreErr(err, "email: failed to set address")
	}
	if err := es.SetEmailConfirmed(ctx, user, false); err != nil {
		return Result{}, wrapStoreErr(err, "email: failed to clear confirmation")
	}
	if err := m.regenerateSecurityStamp(ctx, user); err != nil {
		return Result{}, wrapStoreErr(err, "email: failed to rotate security stamp")
	}
	return m.Update(ctx, user)
}

// IsEmailConfirmed reports whether the user's email has been confirmed.
func (m *Manager[U]) IsEmailConfirmed(ctx context.Context, user *U) (bool, error) {
	if user == nil {
		return false, badInput("user must not be nil")
	}
	es, ok := m.emailStore()
	if !ok {
		return false, ErrStoreNotSupported
	}
	confirmed, err := es.GetEmailConfirmed(ctx, user)
	if err != nil {
		return false, wrapStoreErr(err, "email: confirmation lookup failed")
	}
	return confirmed, nil
}

// ConfirmEmail marks the email confirmed after verifying a confirmation
// purpose token.
func (m *Manager[U]) ConfirmEmail(ctx context.Context, user *U, token string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	es, ok := m.emailStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	valid, err := m.VerifyToken(ctx, PurposeEmailConfirmation, token, user)
	if err != nil {
		return Result{}, err
	}
	if !valid {
		return Fail(ResultError{
			Code:        CodeInvalidToken,
			Description: "Invalid or expired email confirmation token.",
		}), nil
	}

	if err := es.SetEmailConfirmed(ctx, user, true); err != nil {
		return Result{}, wrapStoreErr(err, "email: failed to confirm")
	}
	return m.persistUpdate(ctx, user)
}

// FindByEmail resolves a user by address. The email is normalized before
// the lookup.
func (m *Manager[U]) FindByEmail(ctx context.Context, email string) (*U, error) {
	if email == "" {
		return nil, badInput("email must not be empty")
	}
	es, ok := m.emailStore()
	if !ok {
		return nil, ErrStoreNotSupported
	}
	return es.FindByEmail(ctx, m.normalizer.Normalize(email))
}

// GetPhoneNumber reads the user's phone number.
func (m *Manager[U]) GetPhoneNumber(ctx context.Context, user *U) (string, error) {
	if user == nil {
		return "", badInput("user must not be nil")
	}
	ps, ok := m.phoneStore()
	if !ok {
		return "", ErrStoreNotSupported
	}
	phone, err := ps.GetPhoneNumber(ctx, user)
	if err != nil {
		return "", wrapStoreErr(err, "phone lookup failed")
	}
	return phone, nil
}

// SetPhoneNumber stores the number in E.164 form, clears the confirmed
// flag, and rotates the security stamp. Unparseable numbers fail with
// InvalidPhoneNumber.
func (m *Manager[U]) SetPhoneNumber(ctx context.Context, user *U, phone string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ps, ok := m.phoneStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	parsed, err := phonenumbers.Parse(phone, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return Fail(ResultError{
			Code:        CodeInvalidPhoneNumber,
			Description: fmt.Sprintf("Phone number '%s' is invalid.", phone),
		}), nil
	}

	if err := ps.SetPhoneNumber(ctx, user, phonenumbers.Format(parsed, phonenumbers.E164)); err != nil {
		return Result{}, wrapStoreErr(err, "phone: failed to set number")
	}
	if err := ps.SetPhoneNumberConfirmed(ctx, user, false); err != nil {
		return Result{}, wrapStoreErr(err, "phone: failed to clear confirmation")
	}
	if err := m.regenerateSecurityStamp(ctx, user); err != nil {
		return Result{}, wrapStoreErr(err, "phone: failed to rotate security stamp")
	}
	return m.persistUpdate(ctx, user)
}

// IsPhoneNumberConfirmed reports whether the phone number was confirmed.
func (m *Manager[U]) IsPhoneNumberConfirmed(ctx context.Context, user *U) (bool, error) {
	if user == nil {
		return false, badInput("user must not be nil")
	}
	ps, ok := m.phoneStore()
	if !ok {
		return false, ErrStoreNotSupported
	}
	confirmed, err := ps.GetPhoneNumberConfirmed(ctx, user)
	if err != nil {
		return false, wrapStoreErr(err, "phone: confirmation lookup failed")
	}
	return confirmed, nil
}

// ConfirmPhoneNumber marks the phone confirmed after verifying a
// confirmation purpose token.
func (m *Manager[U]) ConfirmPhoneNumber(ctx context.Context, user *U, token string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	ps, ok := m.phoneStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	valid, err := m.VerifyToken(ctx, PurposePhoneConfirmation, token, user)
	if err != nil {
		return Result{}, err
	}
	if !valid {
		return Fail(ResultError{
			Code:        CodeInvalidToken,
			Description: "Invalid or expired phone confirmation token.",
		}), nil
	}

	if err := ps.SetPhoneNumberConfirmed(ctx, user, true); err != nil {
		return Result{}, wrapStoreErr(err, "phone: failed to confirm")
	}
	return m.persistUpdate(ctx, user)
}

package identity

import (
	"context"
	"fmt"
)

// GetClaims returns the claims attached directly to the user, in store
// order.
func (m *Manager[U]) GetClaims(ctx context.Context, user *U) ([]Claim, error) {
	if user == nil {
		return nil, badInput("user must not be nil")
	}
	cs, ok := m.claimStore()
	if !ok {
		return nil, ErrStoreNotSupported
	}
	claims, err := cs.GetClaims(ctx, user)
	if err != nil {
		return nil, wrapStoreErr(err, "claims lookup failed")
	}
	return claims, nil
}

// AddClaims attaches claims to the user. Identical (type, value) pairs are
// not duplicated.
func (m *Manager[U]) AddClaims(ctx context.Context, user *U, claims ...Claim) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	if len(claims) == 0 {
		return Result{}, badInput("claims must not be empty")
	}
	cs, ok := m.claimStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}
	if err := cs.AddClaims(ctx, user, claims...); err != nil {
		return Result{}, wrapStoreErr(err, "claims: add failed")
	}
	return m.persistUpdate(ctx, user)
}

// RemoveClaims detaches exact (type, value) pairs from the user.
func (m *Manager[U]) RemoveClaims(ctx context.Context, user *U, claims ...Claim) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	if len(claims) == 0 {
		return Result{}, badInput("claims must not be empty")
	}
	cs, ok := m.claimStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}
	if err := cs.RemoveClaims(ctx, user, claims...); err != nil {
		return Result{}, wrapStoreErr(err, "claims: remove failed")
	}
	return m.persistUpdate(ctx, user)
}

// ReplaceClaim swaps one claim for another in place.
func (m *Manager[U]) ReplaceClaim(ctx context.Context, user *U, oldClaim, newClaim Claim) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	cs, ok := m.claimStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}
	if err := cs.ReplaceClaim(ctx, user, oldClaim, newClaim); err != nil {
		return Result{}, wrapStoreErr(err, "claims: replace failed")
	}
	return m.persistUpdate(ctx, user)
}

// AddToRole puts the user into a role by name.
func (m *Manager[U]) AddToRole(ctx context.Context, user *U, role string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	if role == "" {
		return Result{}, badInput("role must not be empty")
	}
	rs, ok := m.roleStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	normalized := m.normalizer.Normalize(role)
	member, err := rs.IsInRole(ctx, user, normalized)
	if err != nil {
		return Result{}, wrapStoreErr(err, "roles: membership lookup failed")
	}
	if member {
		return Fail(ResultError{
			Code:        CodeUserAlreadyInRole,
			Description: fmt.Sprintf("User is already in role '%s'.", role),
		}), nil
	}

	if err := rs.AddToRole(ctx, user, normalized); err != nil {
		return Result{}, wrapStoreErr(err, "roles: add failed")
	}
	return m.persistUpdate(ctx, user)
}

// RemoveFromRole takes the user out of a role by name.
func (m *Manager[U]) RemoveFromRole(ctx context.Context, user *U, role string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	if role == "" {
		return Result{}, badInput("role must not be empty")
	}
	rs, ok := m.roleStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	normalized := m.normalizer.Normalize(role)
	member, err := rs.IsInRole(ctx, user, normalized)
	if err != nil {
		return Result{}, wrapStoreErr(err, "roles: membership lookup failed")
	}
	if !member {
		return Fail(ResultError{
			Code:        CodeUserNotInRole,
			Description: fmt.Sprintf("User is not in role '%s'.", role),
		}), nil
	}

	if err := rs.RemoveFromRole(ctx, user, normalized); err != nil {
		return Result{}, wrapStoreErr(err, "roles: remove failed")
	}
	return m.persistUpdate(ctx, user)
}

// GetRoles lists the user's role names in store order.
func (m *Manager[U]) GetRoles(ctx context.Context, user *U) ([]string, error) {
	if user == nil {
		return nil, badInput("user must not be nil")
	}
	rs, ok := m.roleStore()
	if !ok {
		return nil, ErrStoreNotSupported
	}
	roles, err := rs.GetRoles(ctx, user)
	if err != nil {
		return nil, wrapStoreErr(err, "roles lookup failed")
	}
	return roles, nil
}

// IsInRole reports membership in a role by name.
func (m *Manager[U]) IsInRole(ctx context.Context, user *U, role string) (bool, error) {
	if user == nil {
		return false, badInput("user must not be nil")
	}
	rs, ok := m.roleStore()
	if !ok {
		return false, ErrStoreNotSupported
	}
	member, err := rs.IsInRole(ctx, user, m.normalizer.Normalize(role))
	if err != nil {
		return false, wrapStoreErr(err, "roles: membership lookup failed")
	}
	return member, nil
}

// GetUsersInRole lists every user assigned to a role.
func (m *Manager[U]) GetUsersInRole(ctx context.Context, role string) ([]*U, error) {
	if role == "" {
		return nil, badInput("role must not be empty")
	}
	rs, ok := m.roleStore()
	if !ok {
		return nil, ErrStoreNotSupported
	}
	users, err := rs.GetUsersInRole(ctx, m.normalizer.Normalize(role))
	if err != nil {
		return nil, wrapStoreErr(err, "roles: member listing failed")
	}
	return users, nil
}

// AddLogin links an external (provider, key) identity to the user and
// rotates the security stamp, the credential surface changed.
func (m *Manager[U]) AddLogin(ctx context.Context, user *U, login UserLogin) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	if login.Provider == "" || login.ProviderKey == "" {
		return Result{}, badInput("login provider and key must not be empty")
	}
	ls, ok := m.loginStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	if err := ls.AddLogin(ctx, user, login); err != nil {
		if result, ok := resultFromStoreErr(err); ok {
			return result, nil
		}
		return Result{}, wrapStoreErr(err, "logins: add failed")
	}
	if err := m.regenerateSecurityStamp(ctx, user); err != nil {
		return Result{}, wrapStoreErr(err, "logins: failed to rotate security stamp")
	}
	return m.persistUpdate(ctx, user)
}

// RemoveLogin unlinks an external identity and rotates the security stamp.
func (m *Manager[U]) RemoveLogin(ctx context.Context, user *U, provider, providerKey string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	if provider == "" || providerKey == "" {
		return Result{}, badInput("login provider and key must not be empty")
	}
	ls, ok := m.loginStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	if err := ls.RemoveLogin(ctx, user, provider, providerKey); err != nil {
		return Result{}, wrapStoreErr(err, "logins: remove failed")
	}
	if err := m.regenerateSecurityStamp(ctx, user); err != nil {
		return Result{}, wrapStoreErr(err, "logins: failed to rotate security stamp")
	}
	return m.persistUpdate(ctx, user)
}

// GetLogins lists the external identities linked to the user.
func (m *Manager[U]) GetLogins(ctx context.Context, user *U) ([]UserLogin, error) {
	if user == nil {
		return nil, badInput("user must not be nil")
	}
	ls, ok := m.loginStore()
	if !ok {
		return nil, ErrStoreNotSupported
	}
	logins, err := ls.GetLogins(ctx, user)
	if err != nil {
		return nil, wrapStoreErr(err, "logins lookup failed")
	}
	return logins, nil
}

// FindByLogin resolves the user linked to an external (provider, key) pair.
func (m *Manager[U]) FindByLogin(ctx context.Context, provider, providerKey string) (*U, error) {
	if provider == "" || providerKey == "" {
		return nil, badInput("login provider and key must not be empty")
	}
	ls, ok := m.loginStore()
	if !ok {
		return nil, ErrStoreNotSupported
	}
	return ls.FindByLogin(ctx, provider, providerKey)
}

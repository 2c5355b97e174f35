package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// ClaimsIdentity is an ordered claim list synthesized from a user record.
// Two calls against an unchanged user produce identical lists, downstream
// consumers may compare or cache them.
type ClaimsIdentity struct {
	AuthenticationType string  `json:"authentication_type,omitempty"`
	Claims             []Claim `json:"claims"`
}

// FindFirst returns the first claim of the given type in list order.
func (ci *ClaimsIdentity) FindFirst(claimType string) (Claim, bool) {
	for _, c := range ci.Claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// HasClaim reports whether the identity carries an exact (type, value) pair.
func (ci *ClaimsIdentity) HasClaim(claimType, value string) bool {
	for _, c := range ci.Claims {
		if c.Type == claimType && c.Value == value {
			return true
		}
	}
	return false
}

// ClaimsFactory builds a ClaimsIdentity from a user through the Manager's
// capability surface.
type ClaimsFactory[U any] interface {
	CreateIdentity(ctx context.Context, m *Manager[U], user *U, authenticationType string) (*ClaimsIdentity, error)
}

type claimsFactory[U any] struct{}

// NewClaimsFactory returns the default ClaimsFactory. Claim order is fixed:
// user id, username, then capability-gated security stamp, role claims in
// store order, and user claims in store order.
func NewClaimsFactory[U any]() ClaimsFactory[U] {
	return claimsFactory[U]{}
}

func (claimsFactory[U]) CreateIdentity(ctx context.Context, m *Manager[U], user *U, authenticationType string) (*ClaimsIdentity, error) {
	if m == nil {
		return nil, badInput("manager must not be nil")
	}
	if user == nil {
		return nil, badInput("user must not be nil")
	}

	types := m.opts.ClaimTypes
	identity := &ClaimsIdentity{
		AuthenticationType: authenticationType,
		Claims: []Claim{
			{Type: types.UserID, Value: m.store.GetUserID(user)},
			{Type: types.UserName, Value: m.store.GetUserName(user)},
		},
	}

	if m.SupportsUserSecurityStamp() {
		stamp, err := m.GetSecurityStamp(ctx, user)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "claims identity: security stamp lookup failed")
		}
		identity.Claims = append(identity.Claims, Claim{Type: types.SecurityStamp, Value: stamp})
	}

	if m.SupportsUserRole() {
		roles, err := m.GetRoles(ctx, user)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "claims identity: role lookup failed")
		}
		for _, role := range roles {
			identity.Claims = append(identity.Claims, Claim{Type: types.Role, Value: role})
		}
	}

	if m.SupportsUserClaim() {
		claims, err := m.GetClaims(ctx, user)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "claims identity: user claim lookup failed")
		}
		identity.Claims = append(identity.Claims, claims...)
	}

	return identity, nil
}

package identity

import (
	"context"
	"time"
)

// Claim is a (type, value) pair attached to a user or synthesized into a
// ClaimsIdentity.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// UserLogin links an external identity (provider name, provider key) to a
// user. The pair is unique across all users.
type UserLogin struct {
	Provider    string `json:"provider"`
	ProviderKey string `json:"provider_key"`
	DisplayName string `json:"display_name,omitempty"`
}

// UserStore is the minimal contract every backend must implement. The user
// record type U is owned by the store; the core only holds transient copies
// and reads fields through the accessor methods below.
//
// Update must compare the record's concurrency stamp against the persisted
// one and fail with ErrConcurrencyFailure on mismatch, assigning a fresh
// stamp on success. Create and Update must enforce normalized-username
// uniqueness (ErrDuplicateUserName); the validator's check is advisory only.
type UserStore[U any] interface {
	CreateUser(ctx context.Context, user *U) error
	UpdateUser(ctx context.Context, user *U) error
	DeleteUser(ctx context.Context, user *U) error
	FindByID(ctx context.Context, id string) (*U, error)
	FindByName(ctx context.Context, normalizedName string) (*U, error)

	GetUserID(user *U) string
	GetUserName(user *U) string
	SetUserName(user *U, name, normalizedName string)
}

// PasswordStore is the optional password-hash capability.
type PasswordStore[U any] interface {
	GetPasswordHash(ctx context.Context, user *U) (string, error)
	SetPasswordHash(ctx context.Context, user *U, hash string) error
}

// SecurityStampStore is the optional security-stamp capability.
type SecurityStampStore[U any] interface {
	GetSecurityStamp(ctx context.Context, user *U) (string, error)
	SetSecurityStamp(ctx context.Context, user *U, stamp string) error
}

// ClaimStore is the optional per-user claims capability. AddClaims must not
// duplicate an existing identical (type, value) pair.
type ClaimStore[U any] interface {
	GetClaims(ctx context.Context, user *U) ([]Claim, error)
	AddClaims(ctx context.Context, user *U, claims ...Claim) error
	RemoveClaims(ctx context.Context, user *U, claims ...Claim) error
	ReplaceClaim(ctx context.Context, user *U, oldClaim, newClaim Claim) error
}

// UserRoleStore is the optional user-to-role membership capability.
type UserRoleStore[U any] interface {
	AddToRole(ctx context.Context, user *U, normalizedRole string) error
	RemoveFromRole(ctx context.Context, user *U, normalizedRole string) error
	GetRoles(ctx context.Context, user *U) ([]string, error)
	IsInRole(ctx context.Context, user *U, normalizedRole string) (bool, error)
	GetUsersInRole(ctx context.Context, normalizedRole string) ([]*U, error)
}

// LoginStore is the optional external-login capability.
type LoginStore[U any] interface {
	AddLogin(ctx context.Context, user *U, login UserLogin) error
	RemoveLogin(ctx context.Context, user *U, provider, providerKey string) error
	GetLogins(ctx context.Context, user *U) ([]UserLogin, error)
	FindByLogin(ctx context.Context, provider, providerKey string) (*U, error)
}

// LockoutStore is the optional failed-access tracking capability.
type LockoutStore[U any] interface {
	GetAccessFailedCount(ctx context.Context, user *U) (int, error)
	IncrementAccessFailedCount(ctx context.Context, user *U) (int, error)
	ResetAccessFailedCount(ctx context.Context, user *U) error
	GetLockoutEnd(ctx context.Context, user *U) (*time.Time, error)
	SetLockoutEnd(ctx context.Context, user *U, end *time.Time) error
	GetLockoutEnabled(ctx context.Context, user *U) (bool, error)
	SetLockoutEnabled(ctx context.Context, user *U, enabled bool) error
}

// TwoFactorStore is the optional two-factor flag capability.
type TwoFactorStore[U any] interface {
	GetTwoFactorEnabled(ctx context.Context, user *U) (bool, error)
	SetTwoFactorEnabled(ctx context.Context, user *U, enabled bool) error
}

// EmailStore is the optional email capability.
type EmailStore[U any] interface {
	GetEmail(ctx context.Context, user *U) (string, error)
	SetEmail(ctx context.Context, user *U, email string) error
	GetEmailConfirmed(ctx context.Context, user *U) (bool, error)
	SetEmailConfirmed(ctx context.Context, user *U, confirmed bool) error
	FindByEmail(ctx context.Context, normalizedEmail string) (*U, error)
}

// PhoneStore is the optional phone-number capability.
type PhoneStore[U any] interface {
	GetPhoneNumber(ctx context.Context, user *U) (string, error)
	SetPhoneNumber(ctx context.Context, user *U, phone string) error
	GetPhoneNumberConfirmed(ctx context.Context, user *U) (bool, error)
	SetPhoneNumberConfirmed(ctx context.Context, user *U, confirmed bool) error
}

// RoleStore is the contract RoleManager needs for standalone role records.
type RoleStore[R any] interface {
	CreateRole(ctx context.Context, role *R) error
	UpdateRole(ctx context.Context, role *R) error
	DeleteRole(ctx context.Context, role *R) error
	FindRoleByID(ctx context.Context, id string) (*R, error)
	FindRoleByName(ctx context.Context, normalizedName string) (*R, error)

	GetRoleID(role *R) string
	GetRoleName(role *R) string
	SetRoleName(role *R, name, normalizedName string)
}

package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeStoreNotSupported  = "STORE_NOT_SUPPORTED"
	textCodeConcurrencyFailure = "CONCURRENCY_FAILURE"
	textCodeDuplicateUserName  = "DUPLICATE_USER_NAME"
	textCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	textCodeDuplicateLogin     = "DUPLICATE_LOGIN"
	textCodeDuplicateRoleName  = "DUPLICATE_ROLE_NAME"
	textCodePasswordMismatch   = "PASSWORD_MISMATCH"
	textCodeStaleSecurityStamp = "STALE_SECURITY_STAMP"
	textCodeUserNotFound       = "USER_NOT_FOUND"
	textCodeRoleNotFound       = "ROLE_NOT_FOUND"
	textCodeUnknownProvider    = "UNKNOWN_TOKEN_PROVIDER"
)

// ErrStoreNotSupported is returned when an operation needs a storage
// capability the active store does not implement.
var ErrStoreNotSupported = goerrors.New("store does not support this operation", goerrors.CategoryOperation).
	WithTextCode(textCodeStoreNotSupported)

// ErrConcurrencyFailure is returned by stores when a write carries a stale
// concurrency stamp. Callers must re-read the record and retry.
var ErrConcurrencyFailure = goerrors.New("optimistic concurrency failure, record was modified", goerrors.CategoryConflict).
	WithTextCode(textCodeConcurrencyFailure).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateUserName is returned by stores enforcing the authoritative
// normalized-username uniqueness constraint.
var ErrDuplicateUserName = goerrors.New("username is already taken", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateUserName).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateLogin is returned when an external login (provider, key) pair
// is already linked to a user.
var ErrDuplicateLogin = goerrors.New("external login is already associated", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateLogin).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateRoleName is returned when a role with the same normalized name
// already exists.
var ErrDuplicateRoleName = goerrors.New("role name is already taken", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateRoleName).
	WithCode(goerrors.CodeConflict)

// ErrPasswordMismatch is returned when a presented password does not match
// the stored hash.
var ErrPasswordMismatch = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(textCodePasswordMismatch)

// ErrStaleSecurityStamp is returned when a previously issued identity holds
// a security stamp the store no longer reports. Callers must treat it as an
// immediate sign-out condition.
var ErrStaleSecurityStamp = goerrors.New("security stamp is stale", goerrors.CategoryAuth).
	WithTextCode(textCodeStaleSecurityStamp)

// ErrUserNotFound is returned by lookups that require an existing user.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeUserNotFound)

// ErrRoleNotFound is returned by role lookups that require an existing role.
var ErrRoleNotFound = goerrors.New("role not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeRoleNotFound)

// ErrUnknownTokenProvider is returned when a purpose resolves to a provider
// name that was never registered.
var ErrUnknownTokenProvider = goerrors.New("token provider is not registered", goerrors.CategoryOperation).
	WithTextCode(textCodeUnknownProvider)

func badInput(msg string) error {
	return goerrors.New(msg, goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest)
}

func wrapStoreErr(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

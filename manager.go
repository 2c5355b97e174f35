package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Manager orchestrates account lifecycle, credentials, roles, claims,
// logins, lockout state, and purpose tokens over a capability-based store.
// It holds no mutable state beyond configuration, every durable fact lives
// in the store, so a single Manager serves concurrent callers.
type Manager[U any] struct {
	store      UserStore[U]
	opts       Options
	hasher     Hasher
	normalizer KeyNormalizer
	logger     Logger

	passwordValidator PasswordValidator
	userValidator     UserValidator[U]
	claimsFactory     ClaimsFactory[U]
	tokenProviders    map[string]TokenProvider[U]
	auditSink         AuditSink

	now func() time.Time
}

// NewManager returns a Manager over the given store with default
// collaborators: bcrypt hashing, folding key normalization, the stock
// validators and claims factory, and an empty token provider registry.
func NewManager[U any](store UserStore[U], opts Options) *Manager[U] {
	return &Manager[U]{
		store:             store,
		opts:              opts,
		hasher:            NewBcryptHasher(0),
		normalizer:        NewKeyNormalizer(),
		logger:            defLogger{},
		passwordValidator: NewPasswordValidator(),
		userValidator:     NewUserValidator[U](),
		claimsFactory:     NewClaimsFactory[U](),
		tokenProviders:    map[string]TokenProvider[U]{},
		now:               time.Now,
	}
}

func (m *Manager[U]) WithLogger(logger Logger) *Manager[U] {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithHasher swaps the password hasher. The core trusts the hasher's
// verdict, it never compares hashes itself.
func (m *Manager[U]) WithHasher(hasher Hasher) *Manager[U] {
	if hasher != nil {
		m.hasher = hasher
	}
	return m
}

func (m *Manager[U]) WithKeyNormalizer(normalizer KeyNormalizer) *Manager[U] {
	if normalizer != nil {
		m.normalizer = normalizer
	}
	return m
}

func (m *Manager[U]) WithPasswordValidator(v PasswordValidator) *Manager[U] {
	if v != nil {
		m.passwordValidator = v
	}
	return m
}

func (m *Manager[U]) WithUserValidator(v UserValidator[U]) *Manager[U] {
	if v != nil {
		m.userValidator = v
	}
	return m
}

func (m *Manager[U]) WithClaimsFactory(f ClaimsFactory[U]) *Manager[U] {
	if f != nil {
		m.claimsFactory = f
	}
	return m
}

// WithClock overrides the clock used for lockout evaluation. Tests use this
// to step time without sleeping.
func (m *Manager[U]) WithClock(now func() time.Time) *Manager[U] {
	if now != nil {
		m.now = now
	}
	return m
}

// Options returns the configuration the Manager was constructed with.
func (m *Manager[U]) Options() Options {
	return m.opts
}

// Normalize folds a key with the Manager's normalizer.
func (m *Manager[U]) Normalize(key string) string {
	return m.normalizer.Normalize(key)
}

// Capability detection. Each helper reports whether the active store
// implements the optional interface, the Supports* surface is what callers
// gate on before invoking a capability-specific operation.

func (m *Manager[U]) passwordStore() (PasswordStore[U], bool) {
	ps, ok := m.store.(PasswordStore[U])
	return ps, ok
}

func (m *Manager[U]) stampStore() (SecurityStampStore[U], bool) {
	ss, ok := m.store.(SecurityStampStore[U])
	return ss, ok
}

func (m *Manager[U]) claimStore() (ClaimStore[U], bool) {
	cs, ok := m.store.(ClaimStore[U])
	return cs, ok
}

func (m *Manager[U]) roleStore() (UserRoleStore[U], bool) {
	rs, ok := m.store.(UserRoleStore[U])
	return rs, ok
}

func (m *Manager[U]) loginStore() (LoginStore[U], bool) {
	ls, ok := m.store.(LoginStore[U])
	return ls, ok
}

func (m *Manager[U]) lockoutStore() (LockoutStore[U], bool) {
	ls, ok := m.store.(LockoutStore[U])
	return ls, ok
}

func (m *Manager[U]) twoFactorStore() (TwoFactorStore[U], bool) {
	ts, ok := m.store.(TwoFactorStore[U])
	return ts, ok
}

func (m *Manager[U]) emailStore() (EmailStore[U], bool) {
	es, ok := m.store.(EmailStore[U])
	return es, ok
}

func (m *Manager[U]) phoneStore() (PhoneStore[U], bool) {
	ps, ok := m.store.(PhoneStore[U])
	return ps, ok
}

func (m *Manager[U]) SupportsUserPassword() bool      { _, ok := m.passwordStore(); return ok }
func (m *Manager[U]) SupportsUserSecurityStamp() bool { _, ok := m.stampStore(); return ok }
func (m *Manager[U]) SupportsUserClaim() bool         { _, ok := m.claimStore(); return ok }
func (m *Manager[U]) SupportsUserRole() bool          { _, ok := m.roleStore(); return ok }
func (m *Manager[U]) SupportsUserLogin() bool         { _, ok := m.loginStore(); return ok }
func (m *Manager[U]) SupportsUserLockout() bool       { _, ok := m.lockoutStore(); return ok }
func (m *Manager[U]) SupportsUserTwoFactor() bool     { _, ok := m.twoFactorStore(); return ok }
func (m *Manager[U]) SupportsUserEmail() bool         { _, ok := m.emailStore(); return ok }
func (m *Manager[U]) SupportsUserPhone() bool         { _, ok := m.phoneStore(); return ok }

// Create validates and persists a new user without a password. The security
// stamp is initialized when the store supports stamps, and the lockout flag
// follows LockoutOptions.Enabled when the store supports lockout.
func (m *Manager[U]) Create(ctx context.Context, user *U) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}

	result, err := m.userValidator.ValidateUser(ctx, m, user)
	if err != nil {
		return Result{}, err
	}
	if !result.Succeeded {
		return result, nil
	}

	if ss, ok := m.stampStore(); ok {
		if err := ss.SetSecurityStamp(ctx, user, newStamp()); err != nil {
			return Result{}, wrapStoreErr(err, "create: failed to initialize security stamp")
		}
	}

	if ls, ok := m.lockoutStore(); ok {
		if err := ls.SetLockoutEnabled(ctx, user, m.opts.Lockout.Enabled); err != nil {
			return Result{}, wrapStoreErr(err, "create: failed to initialize lockout flag")
		}
	}

	if err := m.store.CreateUser(ctx, user); err != nil {
		if result, ok := resultFromStoreErr(err); ok {
			return result, nil
		}
		return Result{}, wrapStoreErr(err, "create: store rejected user")
	}

	m.logger.Debug("created user %q", m.store.GetUserID(user))
	m.recordAudit(ctx, AuditEventUserCreated, m.store.GetUserID(user), nil)
	return Ok(), nil
}

// CreateWithPassword validates both the user and the candidate password,
// merging all failures before anything is persisted.
func (m *Manager[U]) CreateWithPassword(ctx context.Context, user *U, password string) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}

	ps, ok := m.passwordStore()
	if !ok {
		return resultStoreNotSupported(), nil
	}

	userResult, err := m.userValidator.ValidateUser(ctx, m, user)
	if err != nil {
		return Result{}, err
	}
	passwordResult, err := m.passwordValidator.ValidatePassword(ctx, m.opts.Password, password)
	if err != nil {
		return Result{}, err
	}

	if merged := Merge(userResult, passwordResult); !merged.Succeeded {
		return merged, nil
	}

	hash, err := m.hasher.HashPassword(password)
	if err != nil {
		return Result{}, goerrors.Wrap(err, goerrors.CategoryInternal, "create: failed to hash password")
	}
	if err := ps.SetPasswordHash(ctx, user, hash); err != nil {
		return Result{}, wrapStoreErr(err, "create: failed to set password hash")
	}

	if ss, ok := m.stampStore(); ok {
		if err := ss.SetSecurityStamp(ctx, user, newStamp()); err != nil {
			return Result{}, wrapStoreErr(err, "create: failed to initialize security stamp")
		}
	}

	if ls, ok := m.lockoutStore(); ok {
		if err := ls.SetLockoutEnabled(ctx, user, m.opts.Lockout.Enabled); err != nil {
			return Result{}, wrapStoreErr(err, "create: failed to initialize lockout flag")
		}
	}

	if err := m.store.CreateUser(ctx, user); err != nil {
		if result, ok := resultFromStoreErr(err); ok {
			return result, nil
		}
		return Result{}, wrapStoreErr(err, "create: store rejected user")
	}

	m.logger.Debug("created user %q with password", m.store.GetUserID(user))
	m.recordAudit(ctx, AuditEventUserCreated, m.store.GetUserID(user), nil)
	return Ok(), nil
}

// Update re-validates the user and persists it. The store performs the
// optimistic concurrency check, a stale stamp surfaces as a
// ConcurrencyFailure result and nothing is overwritten.
func (m *Manager[U]) Update(ctx context.Context, user *U) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}

	result, err := m.userValidator.ValidateUser(ctx, m, user)
	if err != nil {
		return Result{}, err
	}
	if !result.Succeeded {
		return result, nil
	}

	return m.persistUpdate(ctx, user)
}

// Delete removes the user. Cascading role/claim/login cleanup is the
// store's responsibility.
func (m *Manager[U]) Delete(ctx context.Context, user *U) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}
	if err := m.store.DeleteUser(ctx, user); err != nil {
		if result, ok := resultFromStoreErr(err); ok {
			return result, nil
		}
		return Result{}, wrapStoreErr(err, "delete: store rejected removal")
	}
	m.recordAudit(ctx, AuditEventUserDeleted, m.store.GetUserID(user), nil)
	return Ok(), nil
}

// FindByID resolves a user by backend identifier.
func (m *Manager[U]) FindByID(ctx context.Context, id string) (*U, error) {
	if id == "" {
		return nil, badInput("id must not be empty")
	}
	return m.store.FindByID(ctx, id)
}

// FindByName resolves a user by username. The name is normalized before the
// lookup.
func (m *Manager[U]) FindByName(ctx context.Context, name string) (*U, error) {
	if name == "" {
		return nil, badInput("name must not be empty")
	}
	return m.store.FindByName(ctx, m.normalizer.Normalize(name))
}

// GetUserID returns the backend identifier of a user snapshot.
func (m *Manager[U]) GetUserID(user *U) string {
	return m.store.GetUserID(user)
}

// GetUserName returns the username of a user snapshot.
func (m *Manager[U]) GetUserName(user *U) string {
	return m.store.GetUserName(user)
}

// SetUserName updates the username and its normalized form on the snapshot.
// Persist with Update, which re-runs validation.
func (m *Manager[U]) SetUserName(user *U, name string) {
	m.store.SetUserName(user, name, m.normalizer.Normalize(name))
}

// CreateIdentity synthesizes the ordered claim list for a user. This is the
// surface external session infrastructure consumes.
func (m *Manager[U]) CreateIdentity(ctx context.Context, user *U, authenticationType string) (*ClaimsIdentity, error) {
	return m.claimsFactory.CreateIdentity(ctx, m, user, authenticationType)
}

// persistUpdate writes the user through the store and translates
// store-level constraint violations into Result failures.
func (m *Manager[U]) persistUpdate(ctx context.Context, user *U) (Result, error) {
	if err := m.store.UpdateUser(ctx, user); err != nil {
		if result, ok := resultFromStoreErr(err); ok {
			return result, nil
		}
		return Result{}, wrapStoreErr(err, "update: store rejected user")
	}
	return Ok(), nil
}

// regenerateSecurityStamp rotates the stamp on the snapshot without
// persisting. Callers persist as part of their own mutation.
func (m *Manager[U]) regenerateSecurityStamp(ctx context.Context, user *U) error {
	ss, ok := m.stampStore()
	if !ok {
		return nil
	}
	return ss.SetSecurityStamp(ctx, user, newStamp())
}

func resultStoreNotSupported() Result {
	return Fail(ResultError{
		Code:        CodeStoreNotSupported,
		Description: "The store does not support this operation.",
	})
}

func resultFromStoreErr(err error) (Result, bool) {
	switch {
	case goerrors.Is(err, ErrConcurrencyFailure):
		return Fail(ResultError{
			Code:        CodeConcurrencyFailure,
			Description: "The record was modified by another caller, re-read and retry.",
		}), true
	case goerrors.Is(err, ErrDuplicateUserName):
		return Fail(ResultError{
			Code:        CodeDuplicateUserName,
			Description: "User name is already taken.",
		}), true
	case goerrors.Is(err, ErrDuplicateLogin):
		return Fail(ResultError{
			Code:        CodeDuplicateLogin,
			Description: "External login is already associated with another user.",
		}), true
	}
	return Result{}, false
}

func newStamp() string {
	return uuid.NewString()
}

package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SignInStatus is the outcome of a sign-in decision.
type SignInStatus int

const (
	// SignInFailed covers unknown identifiers and wrong passwords alike,
	// callers cannot distinguish the two and enumerate accounts.
	SignInFailed SignInStatus = iota
	SignInSuccess
	SignInLockedOut
	SignInRequiresTwoFactor
)

func (s SignInStatus) String() string {
	switch s {
	case SignInSuccess:
		return "success"
	case SignInLockedOut:
		return "locked_out"
	case SignInRequiresTwoFactor:
		return "requires_two_factor"
	default:
		return "failed"
	}
}

// SignInResult carries the decision and, on success, the synthesized
// identity. It is a decision, not a session; the caller owns whatever
// session or cookie it mints from the identity.
type SignInResult struct {
	Status   SignInStatus
	Identity *ClaimsIdentity
}

// SignInManager decides sign-in attempts over a Manager. It is stateless,
// one instance serves concurrent callers.
type SignInManager[U any] struct {
	users              *Manager[U]
	logger             Logger
	authenticationType string
}

// NewSignInManager returns a SignInManager over the given account manager.
func NewSignInManager[U any](users *Manager[U]) *SignInManager[U] {
	return &SignInManager[U]{
		users:              users,
		logger:             defLogger{},
		authenticationType: "password",
	}
}

func (s *SignInManager[U]) WithLogger(logger Logger) *SignInManager[U] {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithAuthenticationType overrides the authentication type stamped on
// successful identities.
func (s *SignInManager[U]) WithAuthenticationType(authenticationType string) *SignInManager[U] {
	if authenticationType != "" {
		s.authenticationType = authenticationType
	}
	return s
}

// PasswordSignIn resolves the identifier, checks lockout, verifies the
// password, and checks the two-factor requirement, in that order. Failed
// attempts feed the lockout counter; attempts against a locked account do
// not.
func (s *SignInManager[U]) PasswordSignIn(ctx context.Context, identifier, password string, twoFactorCompleted bool) (SignInResult, error) {
	if identifier == "" {
		return SignInResult{}, badInput("identifier must not be empty")
	}

	user, err := s.users.FindByName(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// same outcome as a bad password
			return SignInResult{Status: SignInFailed}, nil
		}
		return SignInResult{}, err
	}

	if s.users.SupportsUserLockout() {
		locked, err := s.users.IsLockedOut(ctx, user)
		if err != nil {
			return SignInResult{}, err
		}
		if locked {
			s.logger.Info("sign-in rejected, user %q is locked out", s.users.GetUserID(user))
			s.users.recordAudit(ctx, AuditEventSignInLockedOut, s.users.GetUserID(user), nil)
			return SignInResult{Status: SignInLockedOut}, nil
		}
	}

	match, err := s.users.CheckPassword(ctx, user, password)
	if err != nil {
		return SignInResult{}, err
	}
	if !match {
		if s.users.SupportsUserLockout() {
			res, err := s.users.AccessFailed(ctx, user)
			if err != nil {
				return SignInResult{}, err
			}
			if !res.Succeeded {
				s.logger.Warn("failed-access counter not persisted for user %q: %s", s.users.GetUserID(user), res.String())
			}
		}
		s.users.recordAudit(ctx, AuditEventSignInFailure, s.users.GetUserID(user), nil)
		return SignInResult{Status: SignInFailed}, nil
	}

	if s.users.SupportsUserLockout() {
		res, err := s.users.ResetAccessFailedCount(ctx, user)
		if err != nil {
			return SignInResult{}, err
		}
		if !res.Succeeded {
			s.logger.Warn("failed-access counter reset not persisted for user %q: %s", s.users.GetUserID(user), res.String())
		}
	}

	if s.users.SupportsUserTwoFactor() && !twoFactorCompleted {
		enabled, err := s.users.GetTwoFactorEnabled(ctx, user)
		if err != nil {
			return SignInResult{}, err
		}
		if enabled {
			return SignInResult{Status: SignInRequiresTwoFactor}, nil
		}
	}

	identity, err := s.users.CreateIdentity(ctx, user, s.authenticationType)
	if err != nil {
		return SignInResult{}, err
	}
	s.users.recordAudit(ctx, AuditEventSignInSuccess, s.users.GetUserID(user), nil)
	return SignInResult{Status: SignInSuccess, Identity: identity}, nil
}

// TwoFactorSignIn completes a pending two-factor challenge by verifying the
// code and re-running the decision with the factor satisfied.
func (s *SignInManager[U]) TwoFactorSignIn(ctx context.Context, identifier, password, code string) (SignInResult, error) {
	user, err := s.users.FindByName(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return SignInResult{Status: SignInFailed}, nil
		}
		return SignInResult{}, err
	}

	valid, err := s.users.VerifyTwoFactorToken(ctx, user, code)
	if err != nil {
		return SignInResult{}, err
	}
	if !valid {
		return SignInResult{Status: SignInFailed}, nil
	}

	return s.PasswordSignIn(ctx, identifier, password, true)
}

// SecurityStampValidator re-checks long-lived identities against the store
// at a configurable interval. A stamp mismatch means credentials changed
// after the identity was issued; callers must treat it as an immediate
// sign-out condition.
type SecurityStampValidator[U any] struct {
	users    *Manager[U]
	interval time.Duration
	now      func() time.Time
}

// NewSecurityStampValidator returns a validator with the given refresh
// interval.
func NewSecurityStampValidator[U any](users *Manager[U], interval time.Duration) *SecurityStampValidator[U] {
	return &SecurityStampValidator[U]{
		users:    users,
		interval: interval,
		now:      time.Now,
	}
}

// WithClock overrides the clock used by ShouldValidate.
func (v *SecurityStampValidator[U]) WithClock(now func() time.Time) *SecurityStampValidator[U] {
	if now != nil {
		v.now = now
	}
	return v
}

// ShouldValidate reports whether enough time has passed since the last
// check to warrant hitting the store again.
func (v *SecurityStampValidator[U]) ShouldValidate(lastValidatedAt time.Time) bool {
	return v.now().Sub(lastValidatedAt) >= v.interval
}

// Validate resolves the identity's subject and compares its security-stamp
// claim against the store. It returns the fresh user record when the stamp
// matches and ErrStaleSecurityStamp when it does not.
func (v *SecurityStampValidator[U]) Validate(ctx context.Context, identity *ClaimsIdentity) (*U, error) {
	if identity == nil {
		return nil, badInput("identity must not be nil")
	}

	types := v.users.Options().ClaimTypes
	subject, ok := identity.FindFirst(types.UserID)
	if !ok {
		return nil, badInput("identity carries no subject claim")
	}

	user, err := v.users.FindByID(ctx, subject.Value)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrStaleSecurityStamp
		}
		return nil, err
	}

	claim, _ := identity.FindFirst(types.SecurityStamp)
	stamp, err := v.users.GetSecurityStamp(ctx, user)
	if err != nil {
		return nil, err
	}
	if claim.Value != stamp {
		return nil, ErrStaleSecurityStamp
	}

	return user, nil
}

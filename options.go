package identity

import "time"

// Well-known token purposes. A purpose scopes a token to exactly one flow.
const (
	PurposeEmailConfirmation = "email_confirmation"
	PurposePhoneConfirmation = "phone_confirmation"
	PurposePasswordReset     = "password_reset"
	PurposeTwoFactor         = "two_factor"
)

// Well-known token provider registry names.
const (
	TokenProviderDefault = "default"
	TokenProviderEmail   = "email"
	TokenProviderPhone   = "phone"
)

// PasswordOptions is the password-strength policy enforced by the
// password validator.
type PasswordOptions struct {
	RequiredLength         int
	RequireUppercase       bool
	RequireLowercase       bool
	RequireDigit           bool
	RequireNonAlphanumeric bool
}

// LockoutOptions controls failed-access tracking.
type LockoutOptions struct {
	// Enabled sets the lockout flag on newly created users. Existing users
	// keep whatever flag the store holds for them.
	Enabled           bool
	MaxFailedAttempts int
	Duration          time.Duration
}

// ClaimTypeOptions names the claim types the claims factory emits.
type ClaimTypeOptions struct {
	UserID        string
	UserName      string
	Role          string
	SecurityStamp string
}

// TokenOptions wires purposes to provider registry names and lifetimes.
type TokenOptions struct {
	DefaultProvider string
	EmailProvider   string
	PhoneProvider   string

	// ProviderByPurpose overrides the provider name for specific purposes.
	ProviderByPurpose map[string]string

	DefaultLifetime   time.Duration
	LifetimeByPurpose map[string]time.Duration
}

// ProviderFor resolves the registry name responsible for a purpose.
func (t TokenOptions) ProviderFor(purpose string) string {
	if name, ok := t.ProviderByPurpose[purpose]; ok && name != "" {
		return name
	}
	switch purpose {
	case PurposeEmailConfirmation:
		if t.EmailProvider != "" {
			return t.EmailProvider
		}
	case PurposePhoneConfirmation:
		if t.PhoneProvider != "" {
			return t.PhoneProvider
		}
	}
	return t.DefaultProvider
}

// defaultTokenLifetime backs LifetimeFor when no positive window is
// configured, so a zero-valued TokenOptions never issues dead tokens.
const defaultTokenLifetime = 24 * time.Hour

// LifetimeFor resolves the validity window for a purpose. A purpose with no
// configured window falls back to DefaultLifetime, and an unset or
// non-positive DefaultLifetime falls back to defaultTokenLifetime.
func (t TokenOptions) LifetimeFor(purpose string) time.Duration {
	if d, ok := t.LifetimeByPurpose[purpose]; ok && d > 0 {
		return d
	}
	if t.DefaultLifetime > 0 {
		return t.DefaultLifetime
	}
	return defaultTokenLifetime
}

// Options is the full Manager configuration. Construct it once, adjust what
// you need, and hand it to NewManager; the Manager never mutates it.
type Options struct {
	Password PasswordOptions
	Lockout  LockoutOptions

	ClaimTypes ClaimTypeOptions
	Tokens     TokenOptions

	// AllowedUserNameCharacters is the username allow-list. Empty disables
	// the character check.
	AllowedUserNameCharacters string

	// RequireUniqueEmail enables the duplicate-email rule when the store
	// has the email capability.
	RequireUniqueEmail bool
}

// DefaultOptions returns the baseline configuration.
func DefaultOptions() Options {
	return Options{
		Password: PasswordOptions{
			RequiredLength:         6,
			RequireUppercase:       true,
			RequireLowercase:       true,
			RequireDigit:           true,
			RequireNonAlphanumeric: true,
		},
		Lockout: LockoutOptions{
			Enabled:           true,
			MaxFailedAttempts: 5,
			Duration:          5 * time.Minute,
		},
		ClaimTypes: ClaimTypeOptions{
			UserID:        "sub",
			UserName:      "name",
			Role:          "role",
			SecurityStamp: "security_stamp",
		},
		Tokens: TokenOptions{
			DefaultProvider: TokenProviderDefault,
			EmailProvider:   TokenProviderEmail,
			PhoneProvider:   TokenProviderPhone,
			DefaultLifetime: defaultTokenLifetime,
			LifetimeByPurpose: map[string]time.Duration{
				PurposeTwoFactor: 5 * time.Minute,
			},
		},
		AllowedUserNameCharacters: "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._@+",
		RequireUniqueEmail:        true,
	}
}

package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	identity "github.com/goliatone/go-identity"
)

func TestTokenOptionsProviderFor(t *testing.T) {
	tokens := identity.TokenOptions{
		DefaultProvider: identity.TokenProviderDefault,
		EmailProvider:   identity.TokenProviderEmail,
		PhoneProvider:   identity.TokenProviderPhone,
		ProviderByPurpose: map[string]string{
			identity.PurposeTwoFactor: "authenticator",
		},
	}

	assert.Equal(t, "authenticator", tokens.ProviderFor(identity.PurposeTwoFactor))
	assert.Equal(t, identity.TokenProviderEmail, tokens.ProviderFor(identity.PurposeEmailConfirmation))
	assert.Equal(t, identity.TokenProviderPhone, tokens.ProviderFor(identity.PurposePhoneConfirmation))
	assert.Equal(t, identity.TokenProviderDefault, tokens.ProviderFor(identity.PurposePasswordReset))
}

func TestTokenOptionsProviderForFallsBack(t *testing.T) {
	tokens := identity.TokenOptions{DefaultProvider: identity.TokenProviderDefault}

	// purpose-specific names are unset, everything lands on the default
	assert.Equal(t, identity.TokenProviderDefault, tokens.ProviderFor(identity.PurposeEmailConfirmation))
	assert.Equal(t, identity.TokenProviderDefault, tokens.ProviderFor(identity.PurposePhoneConfirmation))
}

func TestTokenOptionsLifetimeFor(t *testing.T) {
	tokens := identity.TokenOptions{
		DefaultLifetime: 24 * time.Hour,
		LifetimeByPurpose: map[string]time.Duration{
			identity.PurposeTwoFactor: 5 * time.Minute,
		},
	}

	assert.Equal(t, 5*time.Minute, tokens.LifetimeFor(identity.PurposeTwoFactor))
	assert.Equal(t, 24*time.Hour, tokens.LifetimeFor(identity.PurposePasswordReset))
}

func TestTokenOptionsLifetimeForZeroValue(t *testing.T) {
	var tokens identity.TokenOptions

	// a hand-built options value with no lifetimes still yields a
	// positive window, never instantly-expired tokens
	assert.Equal(t, 24*time.Hour, tokens.LifetimeFor(identity.PurposePasswordReset))

	tokens.LifetimeByPurpose = map[string]time.Duration{
		identity.PurposeTwoFactor: -time.Minute,
	}
	assert.Equal(t, 24*time.Hour, tokens.LifetimeFor(identity.PurposeTwoFactor))
}

func TestDefaultOptions(t *testing.T) {
	opts := identity.DefaultOptions()

	assert.Equal(t, 6, opts.Password.RequiredLength)
	assert.True(t, opts.Password.RequireUppercase)
	assert.True(t, opts.Password.RequireLowercase)
	assert.True(t, opts.Password.RequireDigit)
	assert.True(t, opts.Password.RequireNonAlphanumeric)

	assert.True(t, opts.Lockout.Enabled)
	assert.Equal(t, 5, opts.Lockout.MaxFailedAttempts)
	assert.Equal(t, 5*time.Minute, opts.Lockout.Duration)

	assert.Equal(t, "sub", opts.ClaimTypes.UserID)
	assert.Equal(t, "name", opts.ClaimTypes.UserName)
	assert.Equal(t, "role", opts.ClaimTypes.Role)
	assert.Equal(t, "security_stamp", opts.ClaimTypes.SecurityStamp)

	assert.NotEmpty(t, opts.AllowedUserNameCharacters)
	assert.True(t, opts.RequireUniqueEmail)
}

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/goliatone/go-identity"
)

func TestTotpGenerateAndValidate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	registerTotp(m, func() time.Time { return base })

	user := seedUser(t, m, "alice")

	code, err := m.GenerateTwoFactorToken(ctx, user)
	require.NoError(t, err)
	require.Len(t, code, 6)

	valid, err := m.VerifyTwoFactorToken(ctx, user, code)
	require.NoError(t, err)
	assert.True(t, valid)

	// codes are stateless, a replay inside the window still validates
	valid, err = m.VerifyTwoFactorToken(ctx, user, code)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestTotpPurposeBinding(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	registerTotp(m, func() time.Time { return base })

	user := seedUser(t, m, "alice")

	code, err := m.GeneratePasswordResetToken(ctx, user)
	require.NoError(t, err)

	valid, err := m.VerifyToken(ctx, identity.PurposePasswordReset, code, user)
	require.NoError(t, err)
	assert.True(t, valid)

	// same code presented for another purpose fails
	valid, err = m.VerifyToken(ctx, identity.PurposeEmailConfirmation, code, user)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTotpUserBinding(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	registerTotp(m, func() time.Time { return base })

	alice := seedUser(t, m, "alice")
	bob := seedUser(t, m, "bob")

	code, err := m.GenerateTwoFactorToken(ctx, alice)
	require.NoError(t, err)

	valid, err := m.VerifyTwoFactorToken(ctx, bob, code)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTotpDriftWindow(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	registerTotp(m, func() time.Time { return now })

	user := seedUser(t, m, "alice")

	code, err := m.GenerateTwoFactorToken(ctx, user)
	require.NoError(t, err)

	// one step of drift is accepted
	now = now.Add(90 * time.Second)
	valid, err := m.VerifyTwoFactorToken(ctx, user, code)
	require.NoError(t, err)
	assert.True(t, valid)

	// two steps out is rejected
	now = now.Add(90 * time.Second)
	valid, err = m.VerifyTwoFactorToken(ctx, user, code)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTotpStampRotationInvalidates(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	registerTotp(m, func() time.Time { return base })

	user := seedUser(t, m, "alice")

	code, err := m.GenerateTwoFactorToken(ctx, user)
	require.NoError(t, err)

	res, err := m.UpdateSecurityStamp(ctx, user)
	require.NoError(t, err)
	require.True(t, res.Succeeded)

	valid, err := m.VerifyTwoFactorToken(ctx, user, code)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestVerifyTokenEmptyToken(t *testing.T) {
	m := newTestManager(t)
	registerTotp(m, time.Now)

	user := seedUser(t, m, "alice")

	valid, err := m.VerifyTwoFactorToken(context.Background(), user, "")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestGenerateTokenUnknownProvider(t *testing.T) {
	m := newTestManager(t)
	user := seedUser(t, m, "alice")

	_, err := m.GenerateToken(context.Background(), identity.PurposePasswordReset, user)
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrUnknownTokenProvider)
}

func TestJWTGenerateAndValidate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	provider := identity.NewJWTTokenProvider[identity.MemoryUser]([]byte("signing-key")).
		WithIssuer("go-identity-test").
		WithClock(func() time.Time { return base })
	m.RegisterTokenProvider(identity.TokenProviderDefault, provider)
	m.RegisterTokenProvider(identity.TokenProviderEmail, provider)

	user := seedUser(t, m, "alice")

	token, err := m.GeneratePasswordResetToken(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	valid, err := m.VerifyToken(ctx, identity.PurposePasswordReset, token, user)
	require.NoError(t, err)
	assert.True(t, valid)

	// wrong purpose
	valid, err = m.VerifyToken(ctx, identity.PurposeEmailConfirmation, token, user)
	require.NoError(t, err)
	assert.False(t, valid)

	// wrong user
	bob := seedUser(t, m, "bob")
	valid, err = m.VerifyToken(ctx, identity.PurposePasswordReset, token, bob)
	require.NoError(t, err)
	assert.False(t, valid)

	// garbage input is a verdict, not an error
	valid, err = m.VerifyToken(ctx, identity.PurposePasswordReset, "not.a.jwt", user)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestJWTExpiry(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	provider := identity.NewJWTTokenProvider[identity.MemoryUser]([]byte("signing-key")).
		WithClock(func() time.Time { return now })
	m.RegisterTokenProvider(identity.TokenProviderDefault, provider)

	user := seedUser(t, m, "alice")

	// two_factor tokens live five minutes under the default options
	token, err := m.GenerateTwoFactorToken(ctx, user)
	require.NoError(t, err)

	valid, err := m.VerifyTwoFactorToken(ctx, user, token)
	require.NoError(t, err)
	assert.True(t, valid)

	now = now.Add(6 * time.Minute)
	valid, err = m.VerifyTwoFactorToken(ctx, user, token)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestJWTZeroLifetimeOptions(t *testing.T) {
	opts := testOptions()
	opts.Tokens = identity.TokenOptions{DefaultProvider: identity.TokenProviderDefault}
	m := identity.NewManager[identity.MemoryUser](identity.NewMemoryStore(), opts)
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	provider := identity.NewJWTTokenProvider[identity.MemoryUser]([]byte("signing-key")).
		WithClock(func() time.Time { return now })
	m.RegisterTokenProvider(identity.TokenProviderDefault, provider)

	user := seedUser(t, m, "alice")

	// no configured lifetime still yields a live token
	token, err := m.GeneratePasswordResetToken(ctx, user)
	require.NoError(t, err)

	valid, err := m.VerifyToken(ctx, identity.PurposePasswordReset, token, user)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestJWTStampRotationInvalidates(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	provider := identity.NewJWTTokenProvider[identity.MemoryUser]([]byte("signing-key"))
	m.RegisterTokenProvider(identity.TokenProviderDefault, provider)

	user := seedUser(t, m, "alice")

	token, err := m.GeneratePasswordResetToken(ctx, user)
	require.NoError(t, err)

	res, err := m.UpdateSecurityStamp(ctx, user)
	require.NoError(t, err)
	require.True(t, res.Succeeded)

	valid, err := m.VerifyToken(ctx, identity.PurposePasswordReset, token, user)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestJWTWrongSigningKey(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	issuing := identity.NewJWTTokenProvider[identity.MemoryUser]([]byte("key-one"))
	m.RegisterTokenProvider(identity.TokenProviderDefault, issuing)

	user := seedUser(t, m, "alice")

	token, err := m.GeneratePasswordResetToken(ctx, user)
	require.NoError(t, err)

	verifying := identity.NewManager[identity.MemoryUser](identity.NewMemoryStore(), testOptions())
	verifying.RegisterTokenProvider(identity.TokenProviderDefault,
		identity.NewJWTTokenProvider[identity.MemoryUser]([]byte("key-two")))

	valid, err := verifying.VerifyToken(ctx, identity.PurposePasswordReset, token, user)
	require.NoError(t, err)
	assert.False(t, valid)
}

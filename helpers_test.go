package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	identity "github.com/goliatone/go-identity"
)

const testPassword = "Passw0rd!"

func testOptions() identity.Options {
	opts := identity.DefaultOptions()
	opts.RequireUniqueEmail = false
	return opts
}

func newTestManager(t *testing.T) *identity.Manager[identity.MemoryUser] {
	t.Helper()
	return identity.NewManager[identity.MemoryUser](identity.NewMemoryStore(), testOptions())
}

// registerTotp wires a fixed-clock TOTP provider under every registry name
// the default options reference.
func registerTotp(m *identity.Manager[identity.MemoryUser], now func() time.Time) {
	provider := identity.NewTotpTokenProvider[identity.MemoryUser]().WithClock(now)
	m.RegisterTokenProvider(identity.TokenProviderDefault, provider)
	m.RegisterTokenProvider(identity.TokenProviderEmail, provider)
	m.RegisterTokenProvider(identity.TokenProviderPhone, provider)
}

func seedUser(t *testing.T, m *identity.Manager[identity.MemoryUser], name string) *identity.MemoryUser {
	t.Helper()
	user := identity.NewMemoryUser(name)
	res, err := m.CreateWithPassword(context.Background(), user, testPassword)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())
	return user
}

package bunstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	identity "github.com/goliatone/go-identity"
)

const (
	sqliteCreateUsers = `CREATE TABLE identity_users (
    id TEXT NOT NULL PRIMARY KEY,
    username TEXT NOT NULL,
    normalized_username TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    security_stamp TEXT,
    concurrency_stamp TEXT NOT NULL,
    email TEXT,
    normalized_email TEXT,
    email_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    phone_number TEXT,
    phone_number_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    lockout_end TIMESTAMP NULL,
    lockout_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    access_failed_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`
	sqliteCreateRoles = `CREATE TABLE identity_roles (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    normalized_name TEXT NOT NULL UNIQUE,
    concurrency_stamp TEXT NOT NULL
);`
	sqliteCreateUserClaims = `CREATE TABLE identity_user_claims (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    claim_type TEXT NOT NULL,
    claim_value TEXT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES identity_users (id) ON DELETE CASCADE
);`
	sqliteCreateUserLogins = `CREATE TABLE identity_user_logins (
    provider TEXT NOT NULL,
    provider_key TEXT NOT NULL,
    user_id TEXT NOT NULL,
    display_name TEXT,
    PRIMARY KEY (provider, provider_key),
    FOREIGN KEY (user_id) REFERENCES identity_users (id) ON DELETE CASCADE
);`
	sqliteCreateUserRoles = `CREATE TABLE identity_user_roles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    role_id TEXT NOT NULL,
    UNIQUE (user_id, role_id),
    FOREIGN KEY (user_id) REFERENCES identity_users (id) ON DELETE CASCADE,
    FOREIGN KEY (role_id) REFERENCES identity_roles (id) ON DELETE CASCADE
);`
)

func setupStore(t *testing.T) (*Store, func()) {
	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	for _, ddl := range []string{
		sqliteCreateUsers,
		sqliteCreateRoles,
		sqliteCreateUserClaims,
		sqliteCreateUserLogins,
		sqliteCreateUserRoles,
	} {
		_, err = bunDB.Exec(ddl)
		require.NoError(t, err)
	}

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return New(bunDB), cleanup
}

func newStoreUser(name string) *User {
	return &User{
		UserName:           name,
		NormalizedUserName: identity.NewKeyNormalizer().Normalize(name),
	}
}

func TestStoreCreateAndFind(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	user := newStoreUser("alice")

	err := store.CreateUser(ctx, user)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	require.NotEmpty(t, user.ConcurrencyStamp)

	byID, err := store.FindByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.UserName)

	byName, err := store.FindByName(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = store.FindByName(ctx, "NOBODY")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	_, err = store.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestStoreCreateDuplicateUserName(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, newStoreUser("alice")))

	err := store.CreateUser(ctx, newStoreUser("ALICE"))
	assert.ErrorIs(t, err, identity.ErrDuplicateUserName)
}

func TestStoreUpdateConcurrency(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	user := newStoreUser("alice")
	require.NoError(t, store.CreateUser(ctx, user))

	fresh, err := store.FindByID(ctx, user.ID.String())
	require.NoError(t, err)

	stale, err := store.FindByID(ctx, user.ID.String())
	require.NoError(t, err)

	fresh.Email = "alice@example.com"
	require.NoError(t, store.UpdateUser(ctx, fresh))
	assert.NotEqual(t, stale.ConcurrencyStamp, fresh.ConcurrencyStamp)

	stale.Email = "stale@example.com"
	err = store.UpdateUser(ctx, stale)
	assert.ErrorIs(t, err, identity.ErrConcurrencyFailure)

	current, err := store.FindByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", current.Email)
}

func TestStoreUpdateMissingUser(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	ghost := newStoreUser("ghost")
	ghost.ID = uuid.New()
	ghost.ConcurrencyStamp = uuid.NewString()

	err := store.UpdateUser(ctx, ghost)
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestStoreDeleteCascades(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	user := newStoreUser("alice")
	require.NoError(t, store.CreateUser(ctx, user))

	require.NoError(t, store.AddClaims(ctx, user, identity.Claim{Type: "plan", Value: "pro"}))
	require.NoError(t, store.AddLogin(ctx, user, identity.UserLogin{Provider: "github", ProviderKey: "123"}))

	role := &Role{Name: "admin", NormalizedName: "ADMIN"}
	require.NoError(t, store.CreateRole(ctx, role))
	require.NoError(t, store.AddToRole(ctx, user, "ADMIN"))

	require.NoError(t, store.DeleteUser(ctx, user))

	_, err := store.FindByID(ctx, user.ID.String())
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	_, err = store.FindByLogin(ctx, "github", "123")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	members, err := store.GetUsersInRole(ctx, "ADMIN")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestStoreClaims(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	user := newStoreUser("alice")
	require.NoError(t, store.CreateUser(ctx, user))

	plan := identity.Claim{Type: "plan", Value: "pro"}
	team := identity.Claim{Type: "team", Value: "core"}

	require.NoError(t, store.AddClaims(ctx, user, plan, team))
	// identical pair is not duplicated
	require.NoError(t, store.AddClaims(ctx, user, plan))

	claims, err := store.GetClaims(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []identity.Claim{plan, team}, claims)

	enterprise := identity.Claim{Type: "plan", Value: "enterprise"}
	require.NoError(t, store.ReplaceClaim(ctx, user, plan, enterprise))

	claims, err = store.GetClaims(ctx, user)
	require.NoError(t, err)
	assert.Contains(t, claims, enterprise)
	assert.NotContains(t, claims, plan)

	require.NoError(t, store.RemoveClaims(ctx, user, enterprise, team))

	claims, err = store.GetClaims(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestStoreRoleMembership(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	alice := newStoreUser("alice")
	bob := newStoreUser("bob")
	require.NoError(t, store.CreateUser(ctx, alice))
	require.NoError(t, store.CreateUser(ctx, bob))

	require.NoError(t, store.CreateRole(ctx, &Role{Name: "admin", NormalizedName: "ADMIN"}))
	require.NoError(t, store.CreateRole(ctx, &Role{Name: "editor", NormalizedName: "EDITOR"}))

	require.NoError(t, store.AddToRole(ctx, alice, "ADMIN"))
	require.NoError(t, store.AddToRole(ctx, alice, "EDITOR"))
	require.NoError(t, store.AddToRole(ctx, bob, "EDITOR"))

	// repeat join is a no-op
	require.NoError(t, store.AddToRole(ctx, alice, "ADMIN"))

	roles, err := store.GetRoles(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN", "EDITOR"}, roles)

	member, err := store.IsInRole(ctx, bob, "ADMIN")
	require.NoError(t, err)
	assert.False(t, member)

	editors, err := store.GetUsersInRole(ctx, "EDITOR")
	require.NoError(t, err)
	require.Len(t, editors, 2)

	require.NoError(t, store.RemoveFromRole(ctx, alice, "EDITOR"))
	roles, err = store.GetRoles(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADMIN"}, roles)

	err = store.AddToRole(ctx, alice, "MISSING")
	assert.ErrorIs(t, err, identity.ErrRoleNotFound)
}

func TestStoreRoleEnumerationKeepsGrantOrder(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	carol := newStoreUser("carol")
	require.NoError(t, store.CreateUser(ctx, carol))

	require.NoError(t, store.CreateRole(ctx, &Role{Name: "zebra", NormalizedName: "ZEBRA"}))
	require.NoError(t, store.CreateRole(ctx, &Role{Name: "admin", NormalizedName: "ADMIN"}))

	require.NoError(t, store.AddToRole(ctx, carol, "ZEBRA"))
	roles, err := store.GetRoles(ctx, carol)
	require.NoError(t, err)
	require.Equal(t, []string{"ZEBRA"}, roles)

	// a later grant appends, it never reorders what was already there
	require.NoError(t, store.AddToRole(ctx, carol, "ADMIN"))
	roles, err = store.GetRoles(ctx, carol)
	require.NoError(t, err)
	assert.Equal(t, []string{"ZEBRA", "ADMIN"}, roles)
}

func TestStoreLogins(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	alice := newStoreUser("alice")
	bob := newStoreUser("bob")
	require.NoError(t, store.CreateUser(ctx, alice))
	require.NoError(t, store.CreateUser(ctx, bob))

	login := identity.UserLogin{Provider: "github", ProviderKey: "123", DisplayName: "GitHub"}
	require.NoError(t, store.AddLogin(ctx, alice, login))

	err := store.AddLogin(ctx, bob, identity.UserLogin{Provider: "github", ProviderKey: "123"})
	assert.ErrorIs(t, err, identity.ErrDuplicateLogin)

	found, err := store.FindByLogin(ctx, "github", "123")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)

	logins, err := store.GetLogins(ctx, alice)
	require.NoError(t, err)
	require.Len(t, logins, 1)
	assert.Equal(t, login, logins[0])

	require.NoError(t, store.RemoveLogin(ctx, alice, "github", "123"))

	_, err = store.FindByLogin(ctx, "github", "123")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestStoreSnapshotFields(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	user := newStoreUser("alice")
	require.NoError(t, store.CreateUser(ctx, user))

	require.NoError(t, store.SetPasswordHash(ctx, user, "hashed"))
	require.NoError(t, store.SetSecurityStamp(ctx, user, "stamp-1"))
	require.NoError(t, store.SetEmail(ctx, user, "Alice@Example.com"))
	require.NoError(t, store.SetEmailConfirmed(ctx, user, true))
	require.NoError(t, store.SetPhoneNumber(ctx, user, "+14155550100"))
	require.NoError(t, store.SetTwoFactorEnabled(ctx, user, true))
	require.NoError(t, store.SetLockoutEnabled(ctx, user, true))

	end := time.Now().Add(10 * time.Minute).UTC()
	require.NoError(t, store.SetLockoutEnd(ctx, user, &end))

	count, err := store.IncrementAccessFailedCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.UpdateUser(ctx, user))

	fresh, err := store.FindByID(ctx, user.ID.String())
	require.NoError(t, err)

	hash, _ := store.GetPasswordHash(ctx, fresh)
	assert.Equal(t, "hashed", hash)

	stamp, _ := store.GetSecurityStamp(ctx, fresh)
	assert.Equal(t, "stamp-1", stamp)

	email, _ := store.GetEmail(ctx, fresh)
	assert.Equal(t, "Alice@Example.com", email)
	assert.Equal(t, "ALICE@EXAMPLE.COM", fresh.NormalizedEmail)

	confirmed, _ := store.GetEmailConfirmed(ctx, fresh)
	assert.True(t, confirmed)

	phone, _ := store.GetPhoneNumber(ctx, fresh)
	assert.Equal(t, "+14155550100", phone)

	twoFactor, _ := store.GetTwoFactorEnabled(ctx, fresh)
	assert.True(t, twoFactor)

	enabled, _ := store.GetLockoutEnabled(ctx, fresh)
	assert.True(t, enabled)

	lockoutEnd, _ := store.GetLockoutEnd(ctx, fresh)
	require.NotNil(t, lockoutEnd)
	assert.WithinDuration(t, end, *lockoutEnd, time.Second)

	count, _ = store.GetAccessFailedCount(ctx, fresh)
	assert.Equal(t, 1, count)

	byEmail, err := store.FindByEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestStoreRoleCRUD(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	role := &Role{Name: "admin", NormalizedName: "ADMIN"}
	require.NoError(t, store.CreateRole(ctx, role))
	require.NotEqual(t, uuid.Nil, role.ID)

	err := store.CreateRole(ctx, &Role{Name: "Admin", NormalizedName: "ADMIN"})
	assert.ErrorIs(t, err, identity.ErrDuplicateRoleName)

	found, err := store.FindRoleByName(ctx, "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, role.ID, found.ID)

	store.SetRoleName(found, "administrator", "ADMINISTRATOR")
	require.NoError(t, store.UpdateRole(ctx, found))

	stale := &Role{ID: role.ID, Name: "x", NormalizedName: "X", ConcurrencyStamp: role.ConcurrencyStamp}
	err = store.UpdateRole(ctx, stale)
	assert.ErrorIs(t, err, identity.ErrConcurrencyFailure)

	byID, err := store.FindRoleByID(ctx, role.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "administrator", byID.Name)

	require.NoError(t, store.DeleteRole(ctx, byID))

	_, err = store.FindRoleByName(ctx, "ADMINISTRATOR")
	assert.ErrorIs(t, err, identity.ErrRoleNotFound)
}

func TestStoreWithManager(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	opts := identity.DefaultOptions()
	opts.RequireUniqueEmail = false
	m := identity.NewManager[User](store, opts)

	user := newStoreUser("alice")
	res, err := m.CreateWithPassword(ctx, user, "Str0ng!Pass")
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.String())

	ok, err := m.CheckPassword(ctx, user, "Str0ng!Pass")
	require.NoError(t, err)
	assert.True(t, ok)

	stamp, err := m.GetSecurityStamp(ctx, user)
	require.NoError(t, err)
	assert.NotEmpty(t, stamp)
}

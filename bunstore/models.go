// Package bunstore is a reference storage adapter for the identity core on
// uptrace/bun. It implements the full capability set: user CRUD, passwords,
// security stamps, claims, roles, logins, lockout, two-factor, email, and
// phone. Uniqueness of the normalized username and of (provider, key) login
// pairs is enforced by database constraints, and updates carry a
// compare-and-swap on the concurrency stamp.
package bunstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persisted user model.
type User struct {
	bun.BaseModel        `bun:"table:identity_users,alias:iu"`
	ID                   uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UserName             string     `bun:"username,notnull" json:"username"`
	NormalizedUserName   string     `bun:"normalized_username,notnull,unique" json:"normalized_username"`
	PasswordHash         string     `bun:"password_hash" json:"-"`
	SecurityStamp        string     `bun:"security_stamp" json:"-"`
	ConcurrencyStamp     string     `bun:"concurrency_stamp,notnull" json:"-"`
	Email                string     `bun:"email" json:"email,omitempty"`
	NormalizedEmail      string     `bun:"normalized_email" json:"-"`
	EmailConfirmed       bool       `bun:"email_confirmed" json:"email_confirmed"`
	PhoneNumber          string     `bun:"phone_number" json:"phone_number,omitempty"`
	PhoneNumberConfirmed bool       `bun:"phone_number_confirmed" json:"phone_number_confirmed"`
	TwoFactorEnabled     bool       `bun:"two_factor_enabled" json:"two_factor_enabled"`
	LockoutEnd           *time.Time `bun:"lockout_end,nullzero" json:"lockout_end,omitempty"`
	LockoutEnabled       bool       `bun:"lockout_enabled" json:"lockout_enabled"`
	AccessFailedCount    int        `bun:"access_failed_count" json:"access_failed_count"`
	CreatedAt            *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt            *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Role is the persisted role model.
type Role struct {
	bun.BaseModel    `bun:"table:identity_roles,alias:ir"`
	ID               uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name             string    `bun:"name,notnull" json:"name"`
	NormalizedName   string    `bun:"normalized_name,notnull,unique" json:"normalized_name"`
	ConcurrencyStamp string    `bun:"concurrency_stamp,notnull" json:"-"`
}

// UserClaim is one (type, value) pair attached to a user.
type UserClaim struct {
	bun.BaseModel `bun:"table:identity_user_claims,alias:iuc"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	ClaimType     string    `bun:"claim_type,notnull" json:"claim_type"`
	ClaimValue    string    `bun:"claim_value,notnull" json:"claim_value"`
}

// UserLogin links an external (provider, key) identity to a user. The pair
// is unique across the table.
type UserLogin struct {
	bun.BaseModel `bun:"table:identity_user_logins,alias:iul"`
	Provider      string    `bun:"provider,pk" json:"provider"`
	ProviderKey   string    `bun:"provider_key,pk" json:"provider_key"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	DisplayName   string    `bun:"display_name" json:"display_name,omitempty"`
}

// UserRole is the user-to-role join row. The autoincrement id preserves
// grant order so role enumeration is stable under later additions.
type UserRole struct {
	bun.BaseModel `bun:"table:identity_user_roles,alias:iur"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	RoleID        uuid.UUID `bun:"role_id,notnull,type:uuid" json:"role_id"`
}

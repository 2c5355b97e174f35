package bunstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	identity "github.com/goliatone/go-identity"
)

// Store adapts a bun.DB to the identity storage capability contract.
type Store struct {
	db         *bun.DB
	normalizer identity.KeyNormalizer
}

// New returns a Store over the given database handle.
func New(db *bun.DB) *Store {
	return &Store{
		db:         db,
		normalizer: identity.NewKeyNormalizer(),
	}
}

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if user == nil {
		return goerrors.New("user must not be nil", goerrors.CategoryBadInput)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.ConcurrencyStamp = uuid.NewString()

	if _, err := s.db.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return identity.ErrDuplicateUserName
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: insert user failed")
	}
	return nil
}

// UpdateUser persists the snapshot with a compare-and-swap on the
// concurrency stamp. A stale stamp leaves the row untouched and surfaces
// ErrConcurrencyFailure.
func (s *Store) UpdateUser(ctx context.Context, user *User) error {
	if user == nil {
		return goerrors.New("user must not be nil", goerrors.CategoryBadInput)
	}

	previous := user.ConcurrencyStamp
	user.ConcurrencyStamp = uuid.NewString()
	now := time.Now()
	user.UpdatedAt = &now

	res, err := s.db.NewUpdate().
		Model(user).
		WherePK().
		Where("iu.concurrency_stamp = ?", previous).
		Exec(ctx)
	if err != nil {
		user.ConcurrencyStamp = previous
		if isUniqueViolation(err) {
			return identity.ErrDuplicateUserName
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: update user failed")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		user.ConcurrencyStamp = previous
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: update user failed")
	}
	if rows == 0 {
		user.ConcurrencyStamp = previous
		exists, err := s.db.NewSelect().Model((*User)(nil)).Where("iu.id = ?", user.ID).Exists(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: update user failed")
		}
		if !exists {
			return identity.ErrUserNotFound
		}
		return identity.ErrConcurrencyFailure
	}
	return nil
}

// DeleteUser removes the user and cascades claims, logins, and role
// memberships inside one transaction.
func (s *Store) DeleteUser(ctx context.Context, user *User) error {
	if user == nil {
		return goerrors.New("user must not be nil", goerrors.CategoryBadInput)
	}

	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*UserClaim)(nil)).Where("user_id = ?", user.ID).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: delete user claims failed")
		}
		if _, err := tx.NewDelete().Model((*UserLogin)(nil)).Where("user_id = ?", user.ID).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: delete user logins failed")
		}
		if _, err := tx.NewDelete().Model((*UserRole)(nil)).Where("user_id = ?", user.ID).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: delete user roles failed")
		}
		res, err := tx.NewDelete().Model(user).WherePK().Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: delete user failed")
		}
		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			return identity.ErrUserNotFound
		}
		return nil
	})
}

func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, identity.ErrUserNotFound
	}

	user := new(User)
	if err := s.db.NewSelect().Model(user).Where("iu.id = ?", uid).Scan(ctx); err != nil {
		return nil, mapUserNotFound(err)
	}
	return user, nil
}

func (s *Store) FindByName(ctx context.Context, normalizedName string) (*User, error) {
	user := new(User)
	if err := s.db.NewSelect().Model(user).Where("iu.normalized_username = ?", normalizedName).Scan(ctx); err != nil {
		return nil, mapUserNotFound(err)
	}
	return user, nil
}

func (s *Store) GetUserID(user *User) string {
	if user == nil || user.ID == uuid.Nil {
		return ""
	}
	return user.ID.String()
}

func (s *Store) GetUserName(user *User) string {
	if user == nil {
		return ""
	}
	return user.UserName
}

func (s *Store) SetUserName(user *User, name, normalizedName string) {
	user.UserName = name
	user.NormalizedUserName = normalizedName
}

// Field capabilities operate on the snapshot, UpdateUser persists them.

func (s *Store) GetPasswordHash(_ context.Context, user *User) (string, error) {
	return user.PasswordHash, nil
}

func (s *Store) SetPasswordHash(_ context.Context, user *User, hash string) error {
	user.PasswordHash = hash
	return nil
}

func (s *Store) GetSecurityStamp(_ context.Context, user *User) (string, error) {
	return user.SecurityStamp, nil
}

func (s *Store) SetSecurityStamp(_ context.Context, user *User, stamp string) error {
	user.SecurityStamp = stamp
	return nil
}

func (s *Store) GetAccessFailedCount(_ context.Context, user *User) (int, error) {
	return user.AccessFailedCount, nil
}

func (s *Store) IncrementAccessFailedCount(_ context.Context, user *User) (int, error) {
	user.AccessFailedCount++
	return user.AccessFailedCount, nil
}

func (s *Store) ResetAccessFailedCount(_ context.Context, user *User) error {
	user.AccessFailedCount = 0
	return nil
}

func (s *Store) GetLockoutEnd(_ context.Context, user *User) (*time.Time, error) {
	return user.LockoutEnd, nil
}

func (s *Store) SetLockoutEnd(_ context.Context, user *User, end *time.Time) error {
	user.LockoutEnd = end
	return nil
}

func (s *Store) GetLockoutEnabled(_ context.Context, user *User) (bool, error) {
	return user.LockoutEnabled, nil
}

func (s *Store) SetLockoutEnabled(_ context.Context, user *User, enabled bool) error {
	user.LockoutEnabled = enabled
	return nil
}

func (s *Store) GetTwoFactorEnabled(_ context.Context, user *User) (bool, error) {
	return user.TwoFactorEnabled, nil
}

func (s *Store) SetTwoFactorEnabled(_ context.Context, user *User, enabled bool) error {
	user.TwoFactorEnabled = enabled
	return nil
}

func (s *Store) GetEmail(_ context.Context, user *User) (string, error) {
	return user.Email, nil
}

func (s *Store) SetEmail(_ context.Context, user *User, email string) error {
	user.Email = email
	user.NormalizedEmail = s.normalizer.Normalize(email)
	return nil
}

func (s *Store) GetEmailConfirmed(_ context.Context, user *User) (bool, error) {
	return user.EmailConfirmed, nil
}

func (s *Store) SetEmailConfirmed(_ context.Context, user *User, confirmed bool) error {
	user.EmailConfirmed = confirmed
	return nil
}

func (s *Store) FindByEmail(ctx context.Context, normalizedEmail string) (*User, error) {
	user := new(User)
	if err := s.db.NewSelect().Model(user).Where("iu.normalized_email = ?", normalizedEmail).Scan(ctx); err != nil {
		return nil, mapUserNotFound(err)
	}
	return user, nil
}

func (s *Store) GetPhoneNumber(_ context.Context, user *User) (string, error) {
	return user.PhoneNumber, nil
}

func (s *Store) SetPhoneNumber(_ context.Context, user *User, phone string) error {
	user.PhoneNumber = phone
	return nil
}

func (s *Store) GetPhoneNumberConfirmed(_ context.Context, user *User) (bool, error) {
	return user.PhoneNumberConfirmed, nil
}

func (s *Store) SetPhoneNumberConfirmed(_ context.Context, user *User, confirmed bool) error {
	user.PhoneNumberConfirmed = confirmed
	return nil
}

// Claims are rows in identity_user_claims, written immediately.

func (s *Store) GetClaims(ctx context.Context, user *User) ([]identity.Claim, error) {
	var rows []UserClaim
	if err := s.db.NewSelect().Model(&rows).Where("iuc.user_id = ?", user.ID).Order("iuc.id ASC").Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: select claims failed")
	}
	claims := make([]identity.Claim, 0, len(rows))
	for _, row := range rows {
		claims = append(claims, identity.Claim{Type: row.ClaimType, Value: row.ClaimValue})
	}
	return claims, nil
}

func (s *Store) AddClaims(ctx context.Context, user *User, claims ...identity.Claim) error {
	existing, err := s.GetClaims(ctx, user)
	if err != nil {
		return err
	}

	var rows []UserClaim
	for _, claim := range claims {
		dup := false
		for _, have := range existing {
			if have == claim {
				dup = true
				break
			}
		}
		if !dup {
			rows = append(rows, UserClaim{UserID: user.ID, ClaimType: claim.Type, ClaimValue: claim.Value})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: insert claims failed")
	}
	return nil
}

func (s *Store) RemoveClaims(ctx context.Context, user *User, claims ...identity.Claim) error {
	for _, claim := range claims {
		_, err := s.db.NewDelete().
			Model((*UserClaim)(nil)).
			Where("user_id = ?", user.ID).
			Where("claim_type = ?", claim.Type).
			Where("claim_value = ?", claim.Value).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: delete claim failed")
		}
	}
	return nil
}

func (s *Store) ReplaceClaim(ctx context.Context, user *User, oldClaim, newClaim identity.Claim) error {
	_, err := s.db.NewUpdate().
		Model((*UserClaim)(nil)).
		Set("claim_type = ?", newClaim.Type).
		Set("claim_value = ?", newClaim.Value).
		Where("user_id = ?", user.ID).
		Where("claim_type = ?", oldClaim.Type).
		Where("claim_value = ?", oldClaim.Value).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: replace claim failed")
	}
	return nil
}

// Role membership joins identity_user_roles against identity_roles.

func (s *Store) AddToRole(ctx context.Context, user *User, normalizedRole string) error {
	role, err := s.FindRoleByName(ctx, normalizedRole)
	if err != nil {
		return err
	}

	member, err := s.IsInRole(ctx, user, normalizedRole)
	if err != nil {
		return err
	}
	if member {
		return nil
	}

	link := &UserRole{UserID: user.ID, RoleID: role.ID}
	if _, err := s.db.NewInsert().Model(link).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: insert role membership failed")
	}
	return nil
}

func (s *Store) RemoveFromRole(ctx context.Context, user *User, normalizedRole string) error {
	role, err := s.FindRoleByName(ctx, normalizedRole)
	if err != nil {
		return err
	}
	_, err = s.db.NewDelete().
		Model((*UserRole)(nil)).
		Where("user_id = ?", user.ID).
		Where("role_id = ?", role.ID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: delete role membership failed")
	}
	return nil
}

func (s *Store) GetRoles(ctx context.Context, user *User) ([]string, error) {
	var names []string
	err := s.db.NewSelect().
		Model((*Role)(nil)).
		Column("ir.normalized_name").
		Join("JOIN identity_user_roles AS iur ON iur.role_id = ir.id").
		Where("iur.user_id = ?", user.ID).
		Order("iur.id ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: select roles failed")
	}
	return names, nil
}

func (s *Store) IsInRole(ctx context.Context, user *User, normalizedRole string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*UserRole)(nil)).
		Join("JOIN identity_roles AS ir ON ir.id = iur.role_id").
		Where("iur.user_id = ?", user.ID).
		Where("ir.normalized_name = ?", normalizedRole).
		Exists(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: membership lookup failed")
	}
	return exists, nil
}

func (s *Store) GetUsersInRole(ctx context.Context, normalizedRole string) ([]*User, error) {
	var users []*User
	err := s.db.NewSelect().
		Model(&users).
		Join("JOIN identity_user_roles AS iur ON iur.user_id = iu.id").
		Join("JOIN identity_roles AS ir ON ir.id = iur.role_id").
		Where("ir.normalized_name = ?", normalizedRole).
		Order("iu.normalized_username ASC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: select role members failed")
	}
	return users, nil
}

// Logins are rows in identity_user_logins, written immediately.

func (s *Store) AddLogin(ctx context.Context, user *User, login identity.UserLogin) error {
	row := &UserLogin{
		Provider:    login.Provider,
		ProviderKey: login.ProviderKey,
		UserID:      user.ID,
		DisplayName: login.DisplayName,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return identity.ErrDuplicateLogin
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: insert login failed")
	}
	return nil
}

func (s *Store) RemoveLogin(ctx context.Context, user *User, provider, providerKey string) error {
	_, err := s.db.NewDelete().
		Model((*UserLogin)(nil)).
		Where("user_id = ?", user.ID).
		Where("provider = ?", provider).
		Where("provider_key = ?", providerKey).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: delete login failed")
	}
	return nil
}

func (s *Store) GetLogins(ctx context.Context, user *User) ([]identity.UserLogin, error) {
	var rows []UserLogin
	err := s.db.NewSelect().
		Model(&rows).
		Where("iul.user_id = ?", user.ID).
		Order("iul.provider ASC", "iul.provider_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: select logins failed")
	}
	logins := make([]identity.UserLogin, 0, len(rows))
	for _, row := range rows {
		logins = append(logins, identity.UserLogin{
			Provider:    row.Provider,
			ProviderKey: row.ProviderKey,
			DisplayName: row.DisplayName,
		})
	}
	return logins, nil
}

func (s *Store) FindByLogin(ctx context.Context, provider, providerKey string) (*User, error) {
	row := new(UserLogin)
	if err := s.db.NewSelect().Model(row).
		Where("iul.provider = ?", provider).
		Where("iul.provider_key = ?", providerKey).
		Scan(ctx); err != nil {
		return nil, mapUserNotFound(err)
	}
	return s.FindByID(ctx, row.UserID.String())
}

// Standalone role records for RoleManager.

func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if role == nil {
		return goerrors.New("role must not be nil", goerrors.CategoryBadInput)
	}
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	role.ConcurrencyStamp = uuid.NewString()

	if _, err := s.db.NewInsert().Model(role).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return identity.ErrDuplicateRoleName
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: insert role failed")
	}
	return nil
}

func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	previous := role.ConcurrencyStamp
	role.ConcurrencyStamp = uuid.NewString()

	res, err := s.db.NewUpdate().
		Model(role).
		WherePK().
		Where("ir.concurrency_stamp = ?", previous).
		Exec(ctx)
	if err != nil {
		role.ConcurrencyStamp = previous
		if isUniqueViolation(err) {
			return identity.ErrDuplicateRoleName
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: update role failed")
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		role.ConcurrencyStamp = previous
		return identity.ErrConcurrencyFailure
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, role *Role) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*UserRole)(nil)).Where("role_id = ?", role.ID).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: delete role memberships failed")
		}
		if _, err := tx.NewDelete().Model(role).WherePK().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: delete role failed")
		}
		return nil
	})
}

func (s *Store) FindRoleByID(ctx context.Context, id string) (*Role, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, identity.ErrRoleNotFound
	}

	role := new(Role)
	if err := s.db.NewSelect().Model(role).Where("ir.id = ?", rid).Scan(ctx); err != nil {
		return nil, mapRoleNotFound(err)
	}
	return role, nil
}

func (s *Store) FindRoleByName(ctx context.Context, normalizedName string) (*Role, error) {
	role := new(Role)
	if err := s.db.NewSelect().Model(role).Where("ir.normalized_name = ?", normalizedName).Scan(ctx); err != nil {
		return nil, mapRoleNotFound(err)
	}
	return role, nil
}

func (s *Store) GetRoleID(role *Role) string {
	if role == nil || role.ID == uuid.Nil {
		return ""
	}
	return role.ID.String()
}

func (s *Store) GetRoleName(role *Role) string {
	if role == nil {
		return ""
	}
	return role.Name
}

func (s *Store) SetRoleName(role *Role, name, normalizedName string) {
	role.Name = name
	role.NormalizedName = normalizedName
}

func mapUserNotFound(err error) error {
	if goerrors.Is(err, sql.ErrNoRows) {
		return identity.ErrUserNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: select failed")
}

func mapRoleNotFound(err error) error {
	if goerrors.Is(err, sql.ErrNoRows) {
		return identity.ErrRoleNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "bunstore: select failed")
}

// isUniqueViolation matches constraint errors across the drivers bun
// fronts, sqlite and postgres phrase them differently.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "constraint failed")
}

// Compile-time capability checks, Store implements the full set.
var (
	_ identity.UserStore[User]          = (*Store)(nil)
	_ identity.PasswordStore[User]      = (*Store)(nil)
	_ identity.SecurityStampStore[User] = (*Store)(nil)
	_ identity.ClaimStore[User]         = (*Store)(nil)
	_ identity.UserRoleStore[User]      = (*Store)(nil)
	_ identity.LoginStore[User]         = (*Store)(nil)
	_ identity.LockoutStore[User]       = (*Store)(nil)
	_ identity.TwoFactorStore[User]     = (*Store)(nil)
	_ identity.EmailStore[User]         = (*Store)(nil)
	_ identity.PhoneStore[User]         = (*Store)(nil)
	_ identity.RoleStore[Role]          = (*Store)(nil)
)

package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUser is the record type of the in-memory reference store.
type MemoryUser struct {
	ID                   uuid.UUID  `json:"id"`
	UserName             string     `json:"username"`
	NormalizedUserName   string     `json:"normalized_username"`
	PasswordHash         string     `json:"-"`
	SecurityStamp        string     `json:"-"`
	ConcurrencyStamp     string     `json:"-"`
	Email                string     `json:"email,omitempty"`
	NormalizedEmail      string     `json:"-"`
	EmailConfirmed       bool       `json:"email_confirmed"`
	PhoneNumber          string     `json:"phone_number,omitempty"`
	PhoneNumberConfirmed bool       `json:"phone_number_confirmed"`
	TwoFactorEnabled     bool       `json:"two_factor_enabled"`
	LockoutEnd           *time.Time `json:"lockout_end,omitempty"`
	LockoutEnabled       bool       `json:"lockout_enabled"`
	AccessFailedCount    int        `json:"access_failed_count"`

	Claims []Claim     `json:"claims,omitempty"`
	Roles  []string    `json:"roles,omitempty"`
	Logins []UserLogin `json:"logins,omitempty"`
}

// NewMemoryUser returns a record with a fresh id and the username already
// normalized.
func NewMemoryUser(name string) *MemoryUser {
	normalizer := NewKeyNormalizer()
	return &MemoryUser{
		ID:                 uuid.New(),
		UserName:           name,
		NormalizedUserName: normalizer.Normalize(name),
	}
}

func (u *MemoryUser) clone() *MemoryUser {
	if u == nil {
		return nil
	}
	dup := *u
	if u.LockoutEnd != nil {
		end := *u.LockoutEnd
		dup.LockoutEnd = &end
	}
	dup.Claims = append([]Claim(nil), u.Claims...)
	dup.Roles = append([]string(nil), u.Roles...)
	dup.Logins = append([]UserLogin(nil), u.Logins...)
	return &dup
}

// MemoryStore is a full-capability store backed by process memory. It backs
// the test suite and documents the contract a real adapter must satisfy:
// callers receive transient copies, each mutation call is atomic, the
// normalized username is unique, and updates carry a compare-and-swap on
// the concurrency stamp.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*MemoryUser
	normalizer KeyNormalizer
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      map[string]*MemoryUser{},
		normalizer: NewKeyNormalizer(),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user *MemoryUser) error {
	if user == nil {
		return badInput("user must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, exists := s.users[user.ID.String()]; exists {
		return ErrDuplicateUserName
	}
	for _, other := range s.users {
		if other.NormalizedUserName == user.NormalizedUserName {
			return ErrDuplicateUserName
		}
	}

	user.ConcurrencyStamp = newStamp()
	s.users[user.ID.String()] = user.clone()
	return nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, user *MemoryUser) error {
	if user == nil {
		return badInput("user must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID.String()]
	if !ok {
		return ErrUserNotFound
	}
	if current.ConcurrencyStamp != user.ConcurrencyStamp {
		return ErrConcurrencyFailure
	}
	for id, other := range s.users {
		if id != user.ID.String() && other.NormalizedUserName == user.NormalizedUserName {
			return ErrDuplicateUserName
		}
	}

	user.ConcurrencyStamp = newStamp()
	s.users[user.ID.String()] = user.clone()
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, user *MemoryUser) error {
	if user == nil {
		return badInput("user must not be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID.String()]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, user.ID.String())
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*MemoryUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user.clone(), nil
}

func (s *MemoryStore) FindByName(_ context.Context, normalizedName string) (*MemoryUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.NormalizedUserName == normalizedName {
			return user.clone(), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) GetUserID(user *MemoryUser) string {
	if user == nil || user.ID == uuid.Nil {
		return ""
	}
	return user.ID.String()
}

func (s *MemoryStore) GetUserName(user *MemoryUser) string {
	if user == nil {
		return ""
	}
	return user.UserName
}

func (s *MemoryStore) SetUserName(user *MemoryUser, name, normalizedName string) {
	user.UserName = name
	user.NormalizedUserName = normalizedName
}

func (s *MemoryStore) GetPasswordHash(_ context.Context, user *MemoryUser) (string, error) {
	return user.PasswordHash, nil
}

func (s *MemoryStore) SetPasswordHash(_ context.Context, user *MemoryUser, hash string) error {
	user.PasswordHash = hash
	return nil
}

func (s *MemoryStore) GetSecurityStamp(_ context.Context, user *MemoryUser) (string, error) {
	return user.SecurityStamp, nil
}

func (s *MemoryStore) SetSecurityStamp(_ context.Context, user *MemoryUser, stamp string) error {
	user.SecurityStamp = stamp
	return nil
}

func (s *MemoryStore) GetClaims(_ context.Context, user *MemoryUser) ([]Claim, error) {
	return append([]Claim(nil), user.Claims...), nil
}

func (s *MemoryStore) AddClaims(_ context.Context, user *MemoryUser, claims ...Claim) error {
	for _, claim := range claims {
		if !hasClaim(user.Claims, claim) {
			user.Claims = append(user.Claims, claim)
		}
	}
	return nil
}

func (s *MemoryStore) RemoveClaims(_ context.Context, user *MemoryUser, claims ...Claim) error {
	kept := user.Claims[:0]
	for _, existing := range user.Claims {
		if !hasClaim(claims, existing) {
			kept = append(kept, existing)
		}
	}
	user.Claims = kept
	return nil
}

func (s *MemoryStore) ReplaceClaim(_ context.Context, user *MemoryUser, oldClaim, newClaim Claim) error {
	for i, existing := range user.Claims {
		if existing == oldClaim {
			user.Claims[i] = newClaim
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) AddToRole(_ context.Context, user *MemoryUser, normalizedRole string) error {
	for _, role := range user.Roles {
		if role == normalizedRole {
			return nil
		}
	}
	user.Roles = append(user.Roles, normalizedRole)
	return nil
}

func (s *MemoryStore) RemoveFromRole(_ context.Context, user *MemoryUser, normalizedRole string) error {
	kept := user.Roles[:0]
	for _, role := range user.Roles {
		if role != normalizedRole {
			kept = append(kept, role)
		}
	}
	user.Roles = kept
	return nil
}

func (s *MemoryStore) GetRoles(_ context.Context, user *MemoryUser) ([]string, error) {
	return append([]string(nil), user.Roles...), nil
}

func (s *MemoryStore) IsInRole(_ context.Context, user *MemoryUser, normalizedRole string) (bool, error) {
	for _, role := range user.Roles {
		if role == normalizedRole {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetUsersInRole(_ context.Context, normalizedRole string) ([]*MemoryUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []*MemoryUser
	for _, user := range s.users {
		for _, role := range user.Roles {
			if role == normalizedRole {
				members = append(members, user.clone())
				break
			}
		}
	}
	return members, nil
}

func (s *MemoryStore) AddLogin(_ context.Context, user *MemoryUser, login UserLogin) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, persisted := range s.users {
		for _, existing := range persisted.Logins {
			if existing.Provider == login.Provider && existing.ProviderKey == login.ProviderKey {
				return ErrDuplicateLogin
			}
		}
	}
	for _, existing := range user.Logins {
		if existing.Provider == login.Provider && existing.ProviderKey == login.ProviderKey {
			return ErrDuplicateLogin
		}
	}
	user.Logins = append(user.Logins, login)
	return nil
}

func (s *MemoryStore) RemoveLogin(_ context.Context, user *MemoryUser, provider, providerKey string) error {
	kept := user.Logins[:0]
	for _, login := range user.Logins {
		if login.Provider != provider || login.ProviderKey != providerKey {
			kept = append(kept, login)
		}
	}
	user.Logins = kept
	return nil
}

func (s *MemoryStore) GetLogins(_ context.Context, user *MemoryUser) ([]UserLogin, error) {
	return append([]UserLogin(nil), user.Logins...), nil
}

func (s *MemoryStore) FindByLogin(_ context.Context, provider, providerKey string) (*MemoryUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		for _, login := range user.Logins {
			if login.Provider == provider && login.ProviderKey == providerKey {
				return user.clone(), nil
			}
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) GetAccessFailedCount(_ context.Context, user *MemoryUser) (int, error) {
	return user.AccessFailedCount, nil
}

func (s *MemoryStore) IncrementAccessFailedCount(_ context.Context, user *MemoryUser) (int, error) {
	user.AccessFailedCount++
	return user.AccessFailedCount, nil
}

func (s *MemoryStore) ResetAccessFailedCount(_ context.Context, user *MemoryUser) error {
	user.AccessFailedCount = 0
	return nil
}

func (s *MemoryStore) GetLockoutEnd(_ context.Context, user *MemoryUser) (*time.Time, error) {
	if user.LockoutEnd == nil {
		return nil, nil
	}
	end := *user.LockoutEnd
	return &end, nil
}

func (s *MemoryStore) SetLockoutEnd(_ context.Context, user *MemoryUser, end *time.Time) error {
	user.LockoutEnd = end
	return nil
}

func (s *MemoryStore) GetLockoutEnabled(_ context.Context, user *MemoryUser) (bool, error) {
	return user.LockoutEnabled, nil
}

func (s *MemoryStore) SetLockoutEnabled(_ context.Context, user *MemoryUser, enabled bool) error {
	user.LockoutEnabled = enabled
	return nil
}

func (s *MemoryStore) GetTwoFactorEnabled(_ context.Context, user *MemoryUser) (bool, error) {
	return user.TwoFactorEnabled, nil
}

func (s *MemoryStore) SetTwoFactorEnabled(_ context.Context, user *MemoryUser, enabled bool) error {
	user.TwoFactorEnabled = enabled
	return nil
}

func (s *MemoryStore) GetEmail(_ context.Context, user *MemoryUser) (string, error) {
	return user.Email, nil
}

func (s *MemoryStore) SetEmail(_ context.Context, user *MemoryUser, email string) error {
	user.Email = email
	user.NormalizedEmail = s.normalizer.Normalize(email)
	return nil
}

func (s *MemoryStore) GetEmailConfirmed(_ context.Context, user *MemoryUser) (bool, error) {
	return user.EmailConfirmed, nil
}

func (s *MemoryStore) SetEmailConfirmed(_ context.Context, user *MemoryUser, confirmed bool) error {
	user.EmailConfirmed = confirmed
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, normalizedEmail string) (*MemoryUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.NormalizedEmail != "" && user.NormalizedEmail == normalizedEmail {
			return user.clone(), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) GetPhoneNumber(_ context.Context, user *MemoryUser) (string, error) {
	return user.PhoneNumber, nil
}

func (s *MemoryStore) SetPhoneNumber(_ context.Context, user *MemoryUser, phone string) error {
	user.PhoneNumber = phone
	return nil
}

func (s *MemoryStore) GetPhoneNumberConfirmed(_ context.Context, user *MemoryUser) (bool, error) {
	return user.PhoneNumberConfirmed, nil
}

func (s *MemoryStore) SetPhoneNumberConfirmed(_ context.Context, user *MemoryUser, confirmed bool) error {
	user.PhoneNumberConfirmed = confirmed
	return nil
}

func hasClaim(claims []Claim, claim Claim) bool {
	for _, c := range claims {
		if c == claim {
			return true
		}
	}
	return false
}

// Compile-time capability checks, MemoryStore implements the full set.
var (
	_ UserStore[MemoryUser]          = (*MemoryStore)(nil)
	_ PasswordStore[MemoryUser]      = (*MemoryStore)(nil)
	_ SecurityStampStore[MemoryUser] = (*MemoryStore)(nil)
	_ ClaimStore[MemoryUser]         = (*MemoryStore)(nil)
	_ UserRoleStore[MemoryUser]      = (*MemoryStore)(nil)
	_ LoginStore[MemoryUser]         = (*MemoryStore)(nil)
	_ LockoutStore[MemoryUser]       = (*MemoryStore)(nil)
	_ TwoFactorStore[MemoryUser]     = (*MemoryStore)(nil)
	_ EmailStore[MemoryUser]         = (*MemoryStore)(nil)
	_ PhoneStore[MemoryUser]         = (*MemoryStore)(nil)
)

// MemoryRole is the record type of the in-memory role store.
type MemoryRole struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	NormalizedName   string    `json:"normalized_name"`
	ConcurrencyStamp string    `json:"-"`
}

// NewMemoryRole returns a role record with a fresh id and the name already
// normalized.
func NewMemoryRole(name string) *MemoryRole {
	return &MemoryRole{
		ID:             uuid.New(),
		Name:           name,
		NormalizedName: strings.ToUpper(name),
	}
}

// MemoryRoleStore is the in-memory RoleStore used by tests.
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[string]*MemoryRole
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: map[string]*MemoryRole{}}
}

func (s *MemoryRoleStore) CreateRole(_ context.Context, role *MemoryRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	for _, other := range s.roles {
		if other.NormalizedName == role.NormalizedName {
			return ErrDuplicateRoleName
		}
	}
	role.ConcurrencyStamp = newStamp()
	dup := *role
	s.roles[role.ID.String()] = &dup
	return nil
}

func (s *MemoryRoleStore) UpdateRole(_ context.Context, role *MemoryRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.roles[role.ID.String()]
	if !ok {
		return ErrRoleNotFound
	}
	if current.ConcurrencyStamp != role.ConcurrencyStamp {
		return ErrConcurrencyFailure
	}
	role.ConcurrencyStamp = newStamp()
	dup := *role
	s.roles[role.ID.String()] = &dup
	return nil
}

func (s *MemoryRoleStore) DeleteRole(_ context.Context, role *MemoryRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role.ID.String()]; !ok {
		return ErrRoleNotFound
	}
	delete(s.roles, role.ID.String())
	return nil
}

func (s *MemoryRoleStore) FindRoleByID(_ context.Context, id string) (*MemoryRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	dup := *role
	return &dup, nil
}

func (s *MemoryRoleStore) FindRoleByName(_ context.Context, normalizedName string) (*MemoryRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, role := range s.roles {
		if role.NormalizedName == normalizedName {
			dup := *role
			return &dup, nil
		}
	}
	return nil, ErrRoleNotFound
}

func (s *MemoryRoleStore) GetRoleID(role *MemoryRole) string {
	if role == nil || role.ID == uuid.Nil {
		return ""
	}
	return role.ID.String()
}

func (s *MemoryRoleStore) GetRoleName(role *MemoryRole) string {
	if role == nil {
		return ""
	}
	return role.Name
}

func (s *MemoryRoleStore) SetRoleName(role *MemoryRole, name, normalizedName string) {
	role.Name = name
	role.NormalizedName = normalizedName
}

var _ RoleStore[MemoryRole] = (*MemoryRoleStore)(nil)

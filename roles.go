package identity

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// RoleManager maintains standalone role records. Membership lives on the
// user side of the join, see Manager.AddToRole and friends.
type RoleManager[R any] struct {
	store      RoleStore[R]
	normalizer KeyNormalizer
	logger     Logger
}

// NewRoleManager returns a RoleManager over the given role store.
func NewRoleManager[R any](store RoleStore[R]) *RoleManager[R] {
	return &RoleManager[R]{
		store:      store,
		normalizer: NewKeyNormalizer(),
		logger:     defLogger{},
	}
}

func (r *RoleManager[R]) WithLogger(logger Logger) *RoleManager[R] {
	if logger != nil {
		r.logger = logger
	}
	return r
}

func (r *RoleManager[R]) WithKeyNormalizer(normalizer KeyNormalizer) *RoleManager[R] {
	if normalizer != nil {
		r.normalizer = normalizer
	}
	return r
}

// Create validates the role name for presence and uniqueness, then
// persists.
func (r *RoleManager[R]) Create(ctx context.Context, role *R) (Result, error) {
	if role == nil {
		return Result{}, badInput("role must not be nil")
	}

	result, err := r.validate(ctx, role)
	if err != nil {
		return Result{}, err
	}
	if !result.Succeeded {
		return result, nil
	}

	if err := r.store.CreateRole(ctx, role); err != nil {
		if goerrors.Is(err, ErrDuplicateRoleName) {
			return Fail(ResultError{
				Code:        CodeDuplicateRoleName,
				Description: "Role name is already taken.",
			}), nil
		}
		return Result{}, wrapStoreErr(err, "roles: store rejected role")
	}
	return Ok(), nil
}

// Update re-validates and persists a role, subject to the store's
// concurrency check.
func (r *RoleManager[R]) Update(ctx context.Context, role *R) (Result, error) {
	if role == nil {
		return Result{}, badInput("role must not be nil")
	}

	result, err := r.validate(ctx, role)
	if err != nil {
		return Result{}, err
	}
	if !result.Succeeded {
		return result, nil
	}

	if err := r.store.UpdateRole(ctx, role); err != nil {
		if result, ok := resultFromStoreErr(err); ok {
			return result, nil
		}
		return Result{}, wrapStoreErr(err, "roles: store rejected update")
	}
	return Ok(), nil
}

// Delete removes a role. Detaching members is the store's responsibility.
func (r *RoleManager[R]) Delete(ctx context.Context, role *R) (Result, error) {
	if role == nil {
		return Result{}, badInput("role must not be nil")
	}
	if err := r.store.DeleteRole(ctx, role); err != nil {
		return Result{}, wrapStoreErr(err, "roles: store rejected removal")
	}
	return Ok(), nil
}

// FindByName resolves a role by name, normalized before the lookup.
func (r *RoleManager[R]) FindByName(ctx context.Context, name string) (*R, error) {
	if name == "" {
		return nil, badInput("name must not be empty")
	}
	return r.store.FindRoleByName(ctx, r.normalizer.Normalize(name))
}

// RoleExists reports whether a role with the given name exists.
func (r *RoleManager[R]) RoleExists(ctx context.Context, name string) (bool, error) {
	_, err := r.FindByName(ctx, name)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetRoleName updates the name and its normalized form on the snapshot.
func (r *RoleManager[R]) SetRoleName(role *R, name string) {
	r.store.SetRoleName(role, name, r.normalizer.Normalize(name))
}

func (r *RoleManager[R]) validate(ctx context.Context, role *R) (Result, error) {
	name := r.store.GetRoleName(role)
	if strings.TrimSpace(name) == "" {
		return Fail(ResultError{
			Code:        CodeInvalidRoleName,
			Description: "Role name cannot be empty.",
		}), nil
	}

	owner, err := r.store.FindRoleByName(ctx, r.normalizer.Normalize(name))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return Ok(), nil
		}
		return Result{}, wrapStoreErr(err, "roles: name lookup failed")
	}
	if owner != nil && r.store.GetRoleID(owner) != r.store.GetRoleID(role) {
		return Fail(ResultError{
			Code:        CodeDuplicateRoleName,
			Description: fmt.Sprintf("Role name '%s' is already taken.", name),
		}), nil
	}
	return Ok(), nil
}

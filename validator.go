package identity

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// PasswordValidator checks a candidate password against a policy. Every
// enabled rule is evaluated, a password that breaks three rules yields
// three entries.
type PasswordValidator interface {
	ValidatePassword(ctx context.Context, policy PasswordOptions, password string) (Result, error)
}

// UserValidator checks a user record before it reaches persistence. Rules
// run to completion and their failures are merged.
type UserValidator[U any] interface {
	ValidateUser(ctx context.Context, m *Manager[U], user *U) (Result, error)
}

type passwordValidator struct{}

// NewPasswordValidator returns the default PasswordValidator.
func NewPasswordValidator() PasswordValidator {
	return passwordValidator{}
}

func (passwordValidator) ValidatePassword(_ context.Context, policy PasswordOptions, password string) (Result, error) {
	if password == "" {
		return Result{}, badInput("password must not be empty")
	}

	var failures []ResultError

	// length is measured in characters, not bytes
	if utf8.RuneCountInString(password) < policy.RequiredLength {
		failures = append(failures, ResultError{
			Code:        CodePasswordTooShort,
			Description: fmt.Sprintf("Passwords must be at least %d characters.", policy.RequiredLength),
		})
	}
	if policy.RequireNonAlphanumeric && !strings.ContainsFunc(password, isNonAlphanumeric) {
		failures = append(failures, ResultError{
			Code:        CodePasswordRequiresNonAlphanumeric,
			Description: "Passwords must have at least one non letter or digit character.",
		})
	}
	if policy.RequireDigit && !strings.ContainsFunc(password, isDigit) {
		failures = append(failures, ResultError{
			Code:        CodePasswordRequiresDigit,
			Description: "Passwords must have at least one digit ('0'-'9').",
		})
	}
	if policy.RequireLowercase && !strings.ContainsFunc(password, isLower) {
		failures = append(failures, ResultError{
			Code:        CodePasswordRequiresLower,
			Description: "Passwords must have at least one lowercase ('a'-'z').",
		})
	}
	if policy.RequireUppercase && !strings.ContainsFunc(password, isUpper) {
		failures = append(failures, ResultError{
			Code:        CodePasswordRequiresUpper,
			Description: "Passwords must have at least one uppercase ('A'-'Z').",
		})
	}

	if len(failures) > 0 {
		return Fail(failures...), nil
	}
	return Ok(), nil
}

// Classic Latin classification only. Anything outside letters and digits
// counts as non alphanumeric.
func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func isNonAlphanumeric(r rune) bool {
	return !isDigit(r) && !isLower(r) && !isUpper(r)
}

type userValidator[U any] struct{}

// NewUserValidator returns the default UserValidator.
func NewUserValidator[U any]() UserValidator[U] {
	return userValidator[U]{}
}

func (userValidator[U]) ValidateUser(ctx context.Context, m *Manager[U], user *U) (Result, error) {
	if user == nil {
		return Result{}, badInput("user must not be nil")
	}

	var failures []ResultError

	nameFailures, err := validateUserName(ctx, m, user)
	if err != nil {
		return Result{}, err
	}
	failures = append(failures, nameFailures...)

	if es, ok := m.emailStore(); ok {
		emailFailures, err := validateUserEmail(ctx, m, es, user)
		if err != nil {
			return Result{}, err
		}
		failures = append(failures, emailFailures...)
	}

	if len(failures) > 0 {
		return Fail(failures...), nil
	}
	return Ok(), nil
}

func validateUserName[U any](ctx context.Context, m *Manager[U], user *U) ([]ResultError, error) {
	var failures []ResultError

	name := m.store.GetUserName(user)
	if strings.TrimSpace(name) == "" {
		failures = append(failures, ResultError{
			Code:        CodeInvalidUserName,
			Description: "User name cannot be empty.",
		})
		return failures, nil
	}

	if allowed := m.opts.AllowedUserNameCharacters; allowed != "" {
		if strings.ContainsFunc(name, func(r rune) bool { return !strings.ContainsRune(allowed, r) }) {
			failures = append(failures, ResultError{
				Code:        CodeInvalidUserName,
				Description: fmt.Sprintf("User name '%s' contains invalid characters.", name),
			})
		}
	}

	// advisory uniqueness check, the store constraint is authoritative
	owner, err := m.store.FindByName(ctx, m.normalizer.Normalize(name))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return failures, nil
		}
		return nil, wrapStoreErr(err, "user validation: username lookup failed")
	}
	if owner != nil && m.store.GetUserID(owner) != m.store.GetUserID(user) {
		failures = append(failures, ResultError{
			Code:        CodeDuplicateUserName,
			Description: fmt.Sprintf("User name '%s' is already taken.", name),
		})
	}

	return failures, nil
}

func validateUserEmail[U any](ctx context.Context, m *Manager[U], es EmailStore[U], user *U) ([]ResultError, error) {
	email, err := es.GetEmail(ctx, user)
	if err != nil {
		return nil, wrapStoreErr(err, "user validation: email lookup failed")
	}

	if email == "" {
		if !m.opts.RequireUniqueEmail {
			return nil, nil
		}
		return []ResultError{{
			Code:        CodeInvalidEmail,
			Description: "Email cannot be empty.",
		}}, nil
	}

	if err := validation.Validate(email, is.Email); err != nil {
		return []ResultError{{
			Code:        CodeInvalidEmail,
			Description: fmt.Sprintf("Email '%s' is invalid.", email),
		}}, nil
	}

	if !m.opts.RequireUniqueEmail {
		return nil, nil
	}

	owner, err := es.FindByEmail(ctx, m.normalizer.Normalize(email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, wrapStoreErr(err, "user validation: email uniqueness lookup failed")
	}
	if owner != nil && m.store.GetUserID(owner) != m.store.GetUserID(user) {
		return []ResultError{{
			Code:        CodeDuplicateEmail,
			Description: fmt.Sprintf("Email '%s' is already taken.", email),
		}}, nil
	}

	return nil, nil
}

package identity

import "strings"

// Error codes attached to Result entries. External callers switch on these,
// descriptions are for humans.
const (
	CodeDefault                         = "DefaultError"
	CodeConcurrencyFailure              = "ConcurrencyFailure"
	CodeStoreNotSupported               = "StoreNotSupported"
	CodePasswordMismatch                = "PasswordMismatch"
	CodeInvalidToken                    = "InvalidToken"
	CodeUserLockedOut                   = "UserLockedOut"
	CodeLockoutNotEnabled               = "LockoutNotEnabled"
	CodeInvalidUserName                 = "InvalidUserName"
	CodeDuplicateUserName               = "DuplicateUserName"
	CodeInvalidEmail                    = "InvalidEmail"
	CodeDuplicateEmail                  = "DuplicateEmail"
	CodeInvalidPhoneNumber              = "InvalidPhoneNumber"
	CodeDuplicateLogin                  = "DuplicateLogin"
	CodeUserAlreadyHasPassword          = "UserAlreadyHasPassword"
	CodeUserAlreadyInRole               = "UserAlreadyInRole"
	CodeUserNotInRole                   = "UserNotInRole"
	CodeDuplicateRoleName               = "DuplicateRoleName"
	CodeInvalidRoleName                 = "InvalidRoleName"
	CodePasswordTooShort                = "PasswordTooShort"
	CodePasswordRequiresDigit           = "PasswordRequiresDigit"
	CodePasswordRequiresLower           = "PasswordRequiresLower"
	CodePasswordRequiresUpper           = "PasswordRequiresUpper"
	CodePasswordRequiresNonAlphanumeric = "PasswordRequiresNonAlphanumeric"
)

// ResultError is one recoverable failure inside a Result.
type ResultError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Result is the outcome of a Manager operation: success, or an ordered set
// of failures. Callers must inspect every entry, not just the first.
type Result struct {
	Succeeded bool          `json:"succeeded"`
	Errors    []ResultError `json:"errors,omitempty"`
}

// Ok returns a successful Result.
func Ok() Result {
	return Result{Succeeded: true}
}

// Fail returns a failed Result carrying the given errors in order.
func Fail(errs ...ResultError) Result {
	if len(errs) == 0 {
		errs = []ResultError{{Code: CodeDefault, Description: "operation failed"}}
	}
	return Result{Errors: errs}
}

// Merge combines results, preserving error order. The merged result
// succeeds only if every input succeeded.
func Merge(results ...Result) Result {
	merged := Result{Succeeded: true}
	for _, r := range results {
		if !r.Succeeded {
			merged.Succeeded = false
			merged.Errors = append(merged.Errors, r.Errors...)
		}
	}
	return merged
}

// HasError reports whether the result carries an entry with the given code.
func (r Result) HasError(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// String renders the result for logs. Descriptions only, codes are for
// machines.
func (r Result) String() string {
	if r.Succeeded {
		return "succeeded"
	}
	descriptions := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		descriptions = append(descriptions, e.Description)
	}
	return "failed: " + strings.Join(descriptions, " ")
}

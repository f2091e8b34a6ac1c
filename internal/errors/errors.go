// Package errors provides categorized errors for the scraper coordinator.
// The category decides how a failure is handled: external failures feed the
// account penalty policy, store failures abort the run.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryDatabase represents store failures. Never retried; fatal
	// for the current job attempt.
	CategoryDatabase ErrorCategory = "database"
	// CategoryAuth represents login failures against the remote
	// service. Recovered by penalty application and account rotation.
	CategoryAuth ErrorCategory = "auth"
	// CategoryScrape represents failures during post-login work.
	// Penalized, but not rotated within the same invocation.
	CategoryScrape ErrorCategory = "scrape"
	// CategoryTimeout represents a target exceeding its wall-clock
	// budget. The target is deferred to the end-of-run retry pass.
	CategoryTimeout ErrorCategory = "timeout"
	// CategoryConflict represents losing an ownership race to another
	// worker. Recovered by rotating to a different account.
	CategoryConflict ErrorCategory = "conflict"
	// CategoryExhausted represents a spent retry budget.
	CategoryExhausted ErrorCategory = "exhausted"
	// CategoryValidation represents bad input.
	CategoryValidation ErrorCategory = "validation"
)

// CategorizedError carries a category and code alongside the cause
type CategorizedError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// NewDatabaseError creates a store error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryDatabase,
		Code:     "DATABASE_ERROR",
		Message:  fmt.Sprintf("database error during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewAuthError creates a login failure error
func NewAuthError(accountID string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryAuth,
		Code:     "AUTH_FAILED",
		Message:  "login failed",
		Cause:    cause,
		Details: map[string]interface{}{
			"accountId": accountID,
		},
	}
}

// NewScrapeError creates a post-login work failure error
func NewScrapeError(stage string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryScrape,
		Code:     "SCRAPE_FAILED",
		Message:  fmt.Sprintf("scrape failed during %s", stage),
		Cause:    cause,
		Details: map[string]interface{}{
			"stage": stage,
		},
	}
}

// NewTimeoutError creates a target timeout error
func NewTimeoutError(target string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryTimeout,
		Code:     "TARGET_TIMEOUT",
		Message:  fmt.Sprintf("target %s exceeded its time budget", target),
		Cause:    cause,
		Details: map[string]interface{}{
			"target": target,
		},
	}
}

// NewConflictError creates an ownership-race error
func NewConflictError(accountID string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryConflict,
		Code:     "OWNERSHIP_CONFLICT",
		Message:  "account already owned by another scraper",
		Cause:    cause,
		Details: map[string]interface{}{
			"accountId": accountID,
		},
	}
}

// NewExhaustedError creates a spent-retry-budget error
func NewExhaustedError(attempts int, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryExhausted,
		Code:     "ATTEMPTS_EXHAUSTED",
		Message:  fmt.Sprintf("gave up after %d account attempts", attempts),
		Cause:    cause,
		Details: map[string]interface{}{
			"attempts": attempts,
		},
	}
}

// NewValidationError creates a bad-input error
func NewValidationError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryValidation,
		Code:     "INVALID_PARAMETER",
		Message:  fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// Categorize returns the CategorizedError in err's chain, or wraps err
// as a scrape failure when it carries no category.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	return &CategorizedError{
		Category: CategoryScrape,
		Code:     "SCRAPE_FAILED",
		Message:  "unexpected error",
		Cause:    err,
	}
}

// CategoryOf returns the category of err
func CategoryOf(err error) ErrorCategory {
	if catErr := Categorize(err); catErr != nil {
		return catErr.Category
	}
	return CategoryScrape
}

// IsDatabase reports whether err is a store failure
func IsDatabase(err error) bool {
	return err != nil && CategoryOf(err) == CategoryDatabase
}

// IsAuth reports whether err is a login failure
func IsAuth(err error) bool {
	return err != nil && CategoryOf(err) == CategoryAuth
}

// IsTimeout reports whether err is a target timeout
func IsTimeout(err error) bool {
	return err != nil && CategoryOf(err) == CategoryTimeout
}

// IsRetryable reports whether err may be recovered by rotating to a
// different account. Store failures are never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CategoryOf(err) {
	case CategoryAuth, CategoryScrape, CategoryTimeout, CategoryConflict:
		return true
	default:
		return false
	}
}

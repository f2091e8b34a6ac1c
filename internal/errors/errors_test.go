package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorizedErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewDatabaseError("claim eligible account", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "DATABASE_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCategorizeFindsWrappedError(t *testing.T) {
	cause := NewAuthError("acct-1", stderrors.New("bad credentials"))
	wrapped := fmt.Errorf("attempt 3: %w", cause)

	catErr := Categorize(wrapped)
	assert.Equal(t, CategoryAuth, catErr.Category)
	assert.Equal(t, "acct-1", catErr.Details["accountId"])
}

func TestCategorizeUncategorized(t *testing.T) {
	catErr := Categorize(stderrors.New("boom"))
	assert.Equal(t, CategoryScrape, catErr.Category)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"auth failure", NewAuthError("a", stderrors.New("x")), true},
		{"scrape failure", NewScrapeError("timeline", stderrors.New("x")), true},
		{"timeout", NewTimeoutError("handle", stderrors.New("x")), true},
		{"database", NewDatabaseError("update", stderrors.New("x")), false},
		{"exhausted", NewExhaustedError(20, nil), false},
		{"validation", NewValidationError("target", "empty"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCategoryHelpers(t *testing.T) {
	assert.True(t, IsDatabase(NewDatabaseError("op", nil)))
	assert.False(t, IsDatabase(NewAuthError("a", nil)))
	assert.True(t, IsAuth(fmt.Errorf("wrap: %w", NewAuthError("a", nil))))
	assert.True(t, IsTimeout(NewTimeoutError("t", nil)))
	assert.False(t, IsTimeout(nil))
}

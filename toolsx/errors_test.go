package toolsx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	e := &Error{Code: CodeNotFound, Message: "no such row"}
	assert.Equal(t, "NOT_FOUND: no such row", e.Error())

	wrapped := &Error{Code: CodeStoreUnavailable, Message: "timeout", Cause: errors.New("dial tcp: timeout")}
	assert.Contains(t, wrapped.Error(), "STORE_UNAVAILABLE")
	assert.Contains(t, wrapped.Error(), "dial tcp: timeout")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := &Error{Code: CodeStoreUnavailable, Cause: cause}
	assert.ErrorIs(t, e, cause)
}

func TestErrorRetryable(t *testing.T) {
	assert.True(t, (&Error{Code: CodeStoreUnavailable}).Retryable())
	assert.False(t, (&Error{Code: CodeValidationError}).Retryable())
	var nilErr *Error
	assert.False(t, nilErr.Retryable())
}

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndCode(t *testing.T) {
	err := New(Transient, "database unavailable")
	assert.Equal(t, Transient, Code(err))
	assert.Contains(t, err.Error(), "database unavailable")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := Wrap(cause, Transient, "append failed")

	assert.Equal(t, cause, wrapped.Unwrap())
	assert.Contains(t, wrapped.Error(), "caused by")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, Transient, "unused"))
}

func TestWithDetailChains(t *testing.T) {
	err := New(IntegrityError, "checksum mismatch").
		WithDetail("event_id", "abc-123").
		WithDetail("expected", "deadbeef")

	assert.Equal(t, "abc-123", err.Details["event_id"])
	assert.Equal(t, "deadbeef", err.Details["expected"])
}

func TestIsMatchesWrappedCode(t *testing.T) {
	err := New(ConcurrencyConflict, "version already exists")
	assert.True(t, Is(err, ConcurrencyConflict))
	assert.False(t, Is(err, Transient))
}

func TestAsUnwrapsThroughStandardWrapping(t *testing.T) {
	inner := New(NotFound, "aggregate not found")
	outer := fmt.Errorf("read aggregate: %w", inner)

	var storeErr *StoreError
	assert.True(t, errors.As(outer, &storeErr))
	assert.Equal(t, NotFound, storeErr.Code)
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		code      ErrorCode
		retryable bool
	}{
		{Transient, true},
		{ConcurrencyConflict, true},
		{Permanent, false},
		{IntegrityError, false},
		{MigrationUnavailable, false},
		{MigrationRefused, false},
		{CircuitOpen, false},
		{NotFound, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.retryable, IsRetryable(New(c.code, "x")), "code %s", c.code)
	}
}

func TestCodeOfNonStoreErrorIsEmpty(t *testing.T) {
	assert.Equal(t, ErrorCode(""), Code(fmt.Errorf("plain error")))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
}

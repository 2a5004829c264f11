package data

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableStoreError(t *testing.T) {
	retryable := []string{
		pgerrcode.DeadlockDetected,
		pgerrcode.SerializationFailure,
		pgerrcode.LockNotAvailable,
		pgerrcode.TooManyConnections,
		pgerrcode.ConnectionFailure,
	}
	for _, code := range retryable {
		err := &pgconn.PgError{Code: code}
		assert.True(t, IsRetryableStoreError(err), "code %s", code)
	}

	permanent := []string{
		pgerrcode.UniqueViolation,
		pgerrcode.NotNullViolation,
		pgerrcode.SyntaxError,
	}
	for _, code := range permanent {
		err := &pgconn.PgError{Code: code}
		assert.False(t, IsRetryableStoreError(err), "code %s", code)
	}

	assert.False(t, IsRetryableStoreError(nil))
	assert.False(t, IsRetryableStoreError(errors.New("plain error")))

	// Wrapped pg errors are still recognized.
	wrapped := fmt.Errorf("upsert: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected})
	assert.True(t, IsRetryableStoreError(wrapped))
}

func TestNewJobID(t *testing.T) {
	now := RealTimeProvider{}.Now()
	id := newJobID(now)
	other := newJobID(now)

	assert.Contains(t, id, "-")
	assert.NotEqual(t, id, other, "suffix must make ids unique within a second")
}

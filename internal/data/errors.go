package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrJobNotFound is returned when no ledger row exists for a job id.
	ErrJobNotFound = errors.New("collection job not found")
	// ErrJobAlreadyRunning is returned when a lane already has a running job.
	ErrJobAlreadyRunning = errors.New("a job is already running for this lane")
	// ErrJobFinished is returned when a status patch targets a job that has
	// already reached a terminal status.
	ErrJobFinished = errors.New("collection job already finished")
)

// IsRetryableStoreError reports whether a store write failed in a way worth
// retrying: lock contention, serialization conflicts, or a dropped
// connection. Constraint violations and malformed statements are not.
func IsRetryableStoreError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.DeadlockDetected,
		pgerrcode.SerializationFailure,
		pgerrcode.LockNotAvailable,
		pgerrcode.TooManyConnections:
		return true
	}
	return pgerrcode.IsConnectionException(pgErr.Code)
}

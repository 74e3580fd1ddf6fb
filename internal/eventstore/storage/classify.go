package storage

import (
	"context"
	"database/sql"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

// classify maps a raw gorm/pgx error to the store's classified taxonomy.
// This is the documented classification table for the Open Question on
// retryable storage error codes: unique-violation (pgcode 23505) on the
// (aggregate_id, aggregate_version) index classifies as ConcurrencyConflict;
// connection/timeout/deadlock errors classify as Transient;
// gorm.ErrRecordNotFound classifies as NotFound; anything else is Permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return storeerrors.Wrap(err, storeerrors.ConcurrencyConflict, "aggregate version already exists").
				WithDetail("constraint", pgErr.ConstraintName)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return storeerrors.Wrap(err, storeerrors.Transient, "database deadlock or serialization failure")
		case "57014": // query_canceled
			return storeerrors.Wrap(err, storeerrors.Transient, "query canceled")
		}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		return storeerrors.Wrap(err, storeerrors.NotFound, "record not found")
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return storeerrors.Wrap(err, storeerrors.Transient, "operation timed out")
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, gorm.ErrInvalidDB) {
		return storeerrors.Wrap(err, storeerrors.Transient, "database connection unavailable")
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return storeerrors.Wrap(err, storeerrors.Transient, "network timeout")
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return storeerrors.Wrap(err, storeerrors.Transient, "database connection failed")
	}

	return storeerrors.Wrap(err, storeerrors.Permanent, "storage operation failed")
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

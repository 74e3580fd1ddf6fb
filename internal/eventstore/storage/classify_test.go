package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

func TestClassifyNilIsNil(t *testing.T) {
	assert.Nil(t, classify(nil))
}

func TestClassifyUniqueViolationIsConcurrencyConflict(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_events_aggregate"}
	err := classify(pgErr)
	assert.Equal(t, storeerrors.ConcurrencyConflict, storeerrors.Code(err))
}

func TestClassifyDeadlockIsTransient(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40P01"}
	err := classify(pgErr)
	assert.Equal(t, storeerrors.Transient, storeerrors.Code(err))
}

func TestClassifyRecordNotFoundIsNotFound(t *testing.T) {
	err := classify(gorm.ErrRecordNotFound)
	assert.Equal(t, storeerrors.NotFound, storeerrors.Code(err))

	err = classify(sql.ErrNoRows)
	assert.Equal(t, storeerrors.NotFound, storeerrors.Code(err))
}

func TestClassifyContextCancellationIsTransient(t *testing.T) {
	assert.Equal(t, storeerrors.Transient, storeerrors.Code(classify(context.DeadlineExceeded)))
	assert.Equal(t, storeerrors.Transient, storeerrors.Code(classify(context.Canceled)))
}

func TestClassifyUnrecognizedErrorIsPermanent(t *testing.T) {
	err := classify(assertErr("totally unrelated failure"))
	assert.Equal(t, storeerrors.Permanent, storeerrors.Code(err))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsUniqueViolation(assertErr("not a pg error")))
}

package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "library-lending/pkg/errors"
)

// PostgreSQL SQLSTATE
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

// storeError 把驱动错误归类到领域哨兵错误，同时保留原始错误链
type storeError struct {
	sentinel error
	err      error
}

func (e *storeError) Error() string { return e.sentinel.Error() + ": " + e.err.Error() }

func (e *storeError) Is(target error) bool { return target == e.sentinel }

func (e *storeError) Unwrap() error { return e.err }

// translateError 识别锁等待超时/死锁/唯一约束等数据库错误
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var se *storeError
	if errors.As(err, &se) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
		return &storeError{sentinel: pkgerrors.ErrContention, err: err}
	case pgUniqueViolation:
		return &storeError{sentinel: pkgerrors.ErrDuplicate, err: err}
	case pgForeignKeyViolation:
		return &storeError{sentinel: pkgerrors.ErrNotFound, err: err}
	}
	return err
}

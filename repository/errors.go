package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/apperrors"
)

// MySQL server error numbers.
const (
	mysqlBadField       = 1054
	mysqlNoSuchTable    = 1146
	mysqlLockWaitExpire = 1205
	mysqlDeadlock       = 1213
)

// Postgres SQLSTATE codes.
const (
	pgUndefinedColumn      = "42703"
	pgUndefinedTable       = "42P01"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

var schemaMissingPatterns = []string{
	"no such column",
	"no such table",
	"unknown column",
	"doesn't exist",
	"does not exist",
	"has no column named",
}

// IsSchemaMissing reports whether err was caused by a column or table the
// store does not have.
func IsSchemaMissing(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlBadField || myErr.Number == mysqlNoSuchTable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedColumn || pgErr.Code == pgUndefinedTable
	}
	msg := strings.ToLower(err.Error())
	for _, p := range schemaMissingPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransient reports whether retrying the whole transaction may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitExpire
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// wrap converts a store error into an apperrors.Persistence error, keeping
// errors that are already typed.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	perr := apperrors.Persistence(op, err)
	if IsTransient(err) {
		return apperrors.MarkRetryable(perr)
	}
	return perr
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

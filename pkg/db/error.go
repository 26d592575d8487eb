package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	sqlStateUniqueViolation = "23505"
	mysqlDuplicateEntry     = "Error 1062"
	sqliteUniqueFailed      = "UNIQUE constraint failed"
)

// IsDuplicateKeyErr reports a unique-key violation from any supported
// dialect. gorm only translates it when TranslateError is enabled.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if code, ok := sqlState(err); ok {
		return code == sqlStateUniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, mysqlDuplicateEntry) || strings.Contains(msg, sqliteUniqueFailed)
}

// IsStoreErr reports whether err came from the record store rather than
// from the POS or storefront. A missing row is not a store failure.
func IsStoreErr(err error) bool {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) {
		return true
	}
	if IsDuplicateKeyErr(err) {
		return true
	}
	_, ok := sqlState(err)
	return ok
}

func sqlState(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	return "", false
}

package store

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Common errors returned by the store package.
var (
	// ErrNotFound is returned when a write targets a missing row. Reads that
	// find no row return nil without error.
	ErrNotFound = errors.New("row not found")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("duplicate row")
	// ErrReservedCategory is returned when a mutation targets category 0.
	ErrReservedCategory = errors.New("category 0 is reserved")
)

// isUniqueViolation reports whether the driver error is a unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

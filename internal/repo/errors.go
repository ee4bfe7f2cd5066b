// Package repo implements the data persistence layer for versioned domain
// entities, backed by GORM. This file centralizes the store-level error
// values and the unique-violation mapping used for optimistic concurrency.
package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates that no revision exists for the requested
	// model id / partition key pair.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates that another writer already inserted the
	// revision id this writer computed. Callers may retry from a fresh
	// read; Update and Upsert do so internally up to a small bound.
	ErrConflict = errors.New("revision conflict")
)

// isUniqueViolation reports whether err is a duplicate-key insert failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations, so
// the check falls back to string matching after gorm's typed error.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// Package utils holds small helpers shared across layers, currently the
// query-parameter parsing used by the revision-history endpoints.
package utils

import "strconv"

// AtoiDefault converts a string to an int, falling back to def when the
// string is empty or not a valid integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage normalizes a raw (offset, limit) pair for paging over a
// revision chain: negative offsets become 0, limits below 1 fall back to
// defaultLimit, and limits above maxLimit are capped.
func ClampPage(offset, limit, defaultLimit, maxLimit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}

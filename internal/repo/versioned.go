// Package repo implements the data persistence layer for versioned domain
// entities, backed by GORM. This file provides the generic versioned store:
// copy-on-write optimistic concurrency over an append-only revision chain.
//
// Every entity revision is an immutable row whose id is derived from the
// entity's model id and a monotonically increasing version
// (domain.RevisionID). Updates never modify a stored row; they insert a new
// one with version+1. The primary-key uniqueness of the revision id is the
// only concurrency control: when two writers race on the same next version,
// exactly one insert succeeds and the other observes ErrConflict and retries
// from a fresh read.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/civicnotify/go-notify-backend/internal/domain"
)

// defaultConflictRetries bounds the read-modify-write loop in Update and
// Upsert. Conflicts only happen while concurrent writers touch the same
// model id, so a small bound suffices.
const defaultConflictRetries = 3

// VersionedStore provides create/update/upsert/find-latest operations for a
// single entity type T. P is the pointer type implementing domain.Versioned.
type VersionedStore[T any, P interface {
	*T
	domain.Versioned
}] struct {
	db              *gorm.DB
	conflictRetries int
}

// NewVersionedStore returns a store bound to db for the entity type T.
func NewVersionedStore[T any, P interface {
	*T
	domain.Versioned
}](db *gorm.DB) *VersionedStore[T, P] {
	return &VersionedStore[T, P]{db: db, conflictRetries: defaultConflictRetries}
}

// Create inserts version 0 for the entity. A duplicate creation for the
// same model id fails with ErrConflict and leaves the existing chain
// untouched; Create never retries (the caller must decide whether a
// duplicate is an error or an upsert).
func (s *VersionedStore[T, P]) Create(ctx context.Context, e P) (P, error) {
	return s.insert(ctx, e, 0)
}

// Update reads the latest revision for (modelID, partitionKey), applies
// mutate to it and appends the result as version+1. It returns ErrNotFound
// (and performs no insert) when no revision exists. On ErrConflict the
// read-mutate-insert cycle is retried from a fresh read up to the configured
// bound.
func (s *VersionedStore[T, P]) Update(ctx context.Context, modelID, partitionKey string, mutate func(P)) (P, error) {
	var zero P
	var lastErr error
	for attempt := 0; attempt <= s.conflictRetries; attempt++ {
		cur, err := s.FindLastVersion(ctx, modelID, partitionKey)
		if err != nil {
			return zero, err
		}
		mutate(cur)
		out, err := s.insert(ctx, cur, cur.Rev().Version+1)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrConflict) {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}

// Upsert appends a new revision for the entity's model id: version 0 when
// the chain does not exist yet, latest+1 otherwise. Like Update it retries
// on ErrConflict from a fresh read. This is the idiom used by all status
// call sites, where the latest revision simply records the newest state.
func (s *VersionedStore[T, P]) Upsert(ctx context.Context, e P) (P, error) {
	var zero P
	modelID, partitionKey := e.ModelKeys()
	var lastErr error
	for attempt := 0; attempt <= s.conflictRetries; attempt++ {
		next := int64(0)
		last, err := s.FindLastVersion(ctx, modelID, partitionKey)
		switch {
		case err == nil:
			next = last.Rev().Version + 1
		case errors.Is(err, ErrNotFound):
			// first revision
		default:
			return zero, err
		}
		out, err := s.insert(ctx, e, next)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrConflict) {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}

// FindLastVersion returns the highest-version revision for the pair, or
// ErrNotFound when the chain does not exist.
func (s *VersionedStore[T, P]) FindLastVersion(ctx context.Context, modelID, partitionKey string) (P, error) {
	var out T
	err := s.db.WithContext(ctx).
		Where("model_id = ? AND partition_key = ?", modelID, partitionKey).
		Order("version DESC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var zero P
		return zero, ErrNotFound
	}
	if err != nil {
		var zero P
		return zero, err
	}
	return P(&out), nil
}

// ListVersions returns a page of the revision chain in ascending version
// order. Used by the API layer to expose entity history.
func (s *VersionedStore[T, P]) ListVersions(ctx context.Context, modelID, partitionKey string, offset, limit int) ([]T, error) {
	var out []T
	q := s.db.WithContext(ctx).
		Where("model_id = ? AND partition_key = ?", modelID, partitionKey).
		Order("version ASC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// insert stamps the revision columns and appends the row. A duplicate id is
// reported as ErrConflict; everything else surfaces unchanged.
func (s *VersionedStore[T, P]) insert(ctx context.Context, e P, version int64) (P, error) {
	modelID, partitionKey := e.ModelKeys()
	rev := e.Rev()
	rev.ID = domain.RevisionID(modelID, version)
	rev.ModelID = modelID
	rev.PartitionKey = partitionKey
	rev.Version = version
	rev.CreatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		var zero P
		if isUniqueViolation(err) {
			return zero, ErrConflict
		}
		return zero, err
	}
	return e, nil
}

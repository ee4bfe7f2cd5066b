package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/civicnotify/go-notify-backend/internal/domain"
)

// test DB helper
func newStoreDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("versioned_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newProfileStore(t *testing.T) *VersionedStore[domain.Profile, *domain.Profile] {
	t.Helper()
	db := newStoreDB(t, &domain.Profile{})
	return NewVersionedStore[domain.Profile](db)
}

func TestCreate_StampsVersionZero(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, &domain.Profile{RecipientID: "r1", Email: "a@b.it", EmailEnabled: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Version != 0 {
		t.Fatalf("want version 0, got %d", p.Version)
	}
	if want := domain.RevisionID("r1", 0); p.ID != want {
		t.Fatalf("want id %q, got %q", want, p.ID)
	}
	if p.ModelID != "r1" || p.PartitionKey != "r1" {
		t.Fatalf("revision keys not stamped: %+v", p.Revision)
	}
	if p.CreatedAt.IsZero() || time.Since(p.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", p.CreatedAt)
	}
}

func TestCreate_DuplicateIsConflict(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, &domain.Profile{RecipientID: "r1"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := s.Create(ctx, &domain.Profile{RecipientID: "r1"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestUpdate_AppendsNewRevision(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, &domain.Profile{RecipientID: "r1", Email: "old@b.it"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	upd, err := s.Update(ctx, "r1", "r1", func(p *domain.Profile) {
		p.Email = "new@b.it"
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Version != 1 || upd.Email != "new@b.it" {
		t.Fatalf("unexpected revision: %+v", upd)
	}

	// The original row must still exist untouched.
	revs, err := s.ListVersions(ctx, "r1", "r1", 0, 0)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("want 2 revisions, got %d", len(revs))
	}
	if revs[0].Email != "old@b.it" || revs[1].Email != "new@b.it" {
		t.Fatalf("chain corrupted: %+v", revs)
	}
}

func TestUpdate_MissingChainIsNotFoundAndNoInsert(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "ghost", "ghost", func(p *domain.Profile) { p.Email = "x@y.it" })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	revs, err := s.ListVersions(ctx, "ghost", "ghost", 0, 0)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(revs) != 0 {
		t.Fatalf("update-miss must not insert, got %d rows", len(revs))
	}
}

func TestUpsert_GrowsChainMonotonically(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p, err := s.Upsert(ctx, &domain.Profile{RecipientID: "r1", Email: fmt.Sprintf("v%d@b.it", i)})
		if err != nil {
			t.Fatalf("Upsert #%d: %v", i, err)
		}
		if p.Version != int64(i) {
			t.Fatalf("want version %d, got %d", i, p.Version)
		}
	}

	last, err := s.FindLastVersion(ctx, "r1", "r1")
	if err != nil {
		t.Fatalf("FindLastVersion: %v", err)
	}
	if last.Version != 4 || last.Email != "v4@b.it" {
		t.Fatalf("unexpected latest: %+v", last)
	}
}

func TestFindLastVersion_MissingChain(t *testing.T) {
	s := newProfileStore(t)

	_, err := s.FindLastVersion(context.Background(), "ghost", "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRevisionID_ZeroPadKeepsOrdering(t *testing.T) {
	// Lexicographic order must match numeric version order.
	a := domain.RevisionID("m", 9)
	b := domain.RevisionID("m", 10)
	if !(a < b) {
		t.Fatalf("ordering broken: %q !< %q", a, b)
	}
	if want := "m-0000000000000009"; a != want {
		t.Fatalf("want %q, got %q", want, a)
	}
}

func TestListVersions_Pagination(t *testing.T) {
	s := newProfileStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := s.Upsert(ctx, &domain.Profile{RecipientID: "r1"}); err != nil {
			t.Fatalf("Upsert #%d: %v", i, err)
		}
	}

	page, err := s.ListVersions(ctx, "r1", "r1", 2, 3)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("want 3 rows, got %d", len(page))
	}
	for i, rev := range page {
		if rev.Version != int64(2+i) {
			t.Fatalf("row %d: want version %d, got %d", i, 2+i, rev.Version)
		}
	}
}

func TestPartitionKey_SeparatesChains(t *testing.T) {
	db := newStoreDB(t, &domain.Message{})
	s := NewVersionedStore[domain.Message](db)
	ctx := context.Background()

	if _, err := s.Create(ctx, &domain.Message{
		MessageID: "m1", RecipientID: "rA", Kind: domain.MessageKindFull, Subject: "s", TTLSeconds: 60,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The same model id under a different partition key is a different chain.
	if _, err := s.FindLastVersion(ctx, "m1", "rB"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-partition read must miss, got %v", err)
	}
	if _, err := s.FindLastVersion(ctx, "m1", "rA"); err != nil {
		t.Fatalf("same-partition read: %v", err)
	}
}

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/buzzline-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertUser(ctx, "ava@x.com", "Ava")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.ID == 0 || first.Email != "ava@x.com" || first.Name != "Ava" || first.LoginCount != 1 {
		t.Fatalf("unexpected user after insert: %+v", first)
	}
	if first.CreatedAt.IsZero() || first.LastLoginAt.IsZero() {
		t.Fatalf("expected timestamps to be set: %+v", first)
	}

	second, err := s.UpsertUser(ctx, "ava@x.com", "Ava Lovelace")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row, got ids %d and %d", first.ID, second.ID)
	}
	if second.Name != "Ava Lovelace" || second.LoginCount != 2 {
		t.Fatalf("unexpected user after update: %+v", second)
	}

	if _, err := s.UpsertUser(ctx, "bo@x.com", "Bo"); err != nil {
		t.Fatalf("upsert bo: %v", err)
	}
	n, err := s.CountUsers(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 users, got %d", n)
	}
}

func TestGetUserByEmailNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUserByEmail(context.Background(), "ghost@x.com")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewAppliesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buzzline.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.UpsertUser(ctx, "ava@x.com", "Ava"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	u, err := reopened.GetUserByEmail(ctx, "ava@x.com")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if u.Name != "Ava" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

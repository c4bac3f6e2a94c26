package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "bb_token"); err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "bb_token", "first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, "bb_token", "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, ok, err := kv.Get(ctx, "bb_token"); err != nil || !ok || v != "second" {
		t.Fatalf("expected second, got %q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Delete(ctx, "bb_token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "bb_token"); ok {
		t.Fatal("expected key to be gone after delete")
	}
	if err := kv.Delete(ctx, "bb_token"); err != nil {
		t.Fatalf("deleting a missing key should not fail: %v", err)
	}
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestSQLiteRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if repo.SchemaVersion() != 1 {
		t.Fatalf("schema version = %d, want 1", repo.SchemaVersion())
	}
	exerciseKV(t, repo)

	if err := repo.Set(context.Background(), "bb_token", "persisted"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening runs migrations again and must keep the data.
	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	if v, ok, err := repo.Get(context.Background(), "bb_token"); err != nil || !ok || v != "persisted" {
		t.Fatalf("expected persisted value, got %q ok=%v err=%v", v, ok, err)
	}
	if repo.SchemaVersion() != 1 {
		t.Fatalf("schema version after reopen = %d, want 1", repo.SchemaVersion())
	}
}

func TestSQLiteRepositoryDirtySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := repo.db.Exec(`UPDATE ` + kvMigrationsTable + ` SET dirty = 1`); err != nil {
		t.Fatalf("mark dirty: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := NewSQLiteRepository(path); !errors.Is(err, ErrDirtySchema) {
		t.Fatalf("expected ErrDirtySchema, got %v", err)
	}
}

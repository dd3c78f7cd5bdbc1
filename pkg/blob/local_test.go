package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	ctx := context.Background()

	key := ArtifactKey("abc123", "input.csv")
	location, err := store.Save(ctx, key, strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if location == "" {
		t.Error("Save should return a location")
	}

	data, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("Load returned %q", data)
	}

	exists, err := store.Exists(ctx, key)
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v; want true, nil", exists, err)
	}

	size, err := store.Size(ctx, key)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != int64(len("a,b\n1,2\n")) {
		t.Errorf("Size = %d", size)
	}
}

func TestLocalStoreLoadMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	_, err = store.Load(context.Background(), "artifacts/missing/file.bin")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = store.Size(context.Background(), "artifacts/missing/file.bin")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from Size, got %v", err)
	}
}

func TestLocalStoreDeleteIdempotent(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	ctx := context.Background()

	key := "results/r1/out.json"
	if _, err := store.Save(ctx, key, strings.NewReader("{}")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Second delete of the same key must not error.
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("Delete of missing key should be a no-op, got %v", err)
	}

	exists, _ := store.Exists(ctx, key)
	if exists {
		t.Error("key should be gone after delete")
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	if _, err := store.Save(context.Background(), "../outside", strings.NewReader("x")); err == nil {
		t.Error("expected error for key escaping the base directory")
	}
}

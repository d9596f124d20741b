package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/resolver"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache", "dirctl.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := openTemp(t)
	store.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first := []entity.Business{{ID: "p1", Name: "Acme"}}
	if err := store.Save(ctx, "list:visa", first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := []entity.Business{{ID: "p2", Name: "Beta"}, {ID: "p3", Name: "Gamma"}}
	if err := store.Save(ctx, "list:visa", second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	var loaded []entity.Business
	savedAt, err := store.Load(ctx, "list:visa", &loaded)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "p2" {
		t.Fatalf("expected overwritten snapshot, got %+v", loaded)
	}
	if !savedAt.Equal(store.now()) {
		t.Fatalf("unexpected save time %v", savedAt)
	}

	if _, err := store.Load(ctx, "list:missing", &loaded); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	keys, err := store.Keys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("expected one key, got %v (%v)", keys, err)
	}
}

func TestSource(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()
	if err := store.Save(ctx, "k", []entity.Business{{ID: "p1"}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	res := resolver.Resolve(ctx, Source[entity.Business](store, "snapshot", "k"))
	if res.Source != "snapshot" || len(res.Data) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res = resolver.Resolve(ctx, Source[entity.Business](nil, "snapshot", "k"))
	if res.Source != "" || !errors.Is(res.Err, ErrNotFound) {
		t.Fatalf("expected nil store to fail, got %+v", res)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

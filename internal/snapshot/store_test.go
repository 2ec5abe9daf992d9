package snapshot

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return &FileStore{BaseDir: t.TempDir()}
}

func TestStoreList_Empty(t *testing.T) {
	store := newTestStore(t)

	list, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list != nil {
		t.Fatalf("expected nil, got %v", list)
	}

	if err := os.MkdirAll(store.dir(), 0o755); err != nil {
		t.Fatal(err)
	}

	list, err = store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list != nil {
		t.Fatalf("expected nil for empty dir, got %v", list)
	}
}

func TestStoreSaveRead(t *testing.T) {
	store := newTestStore(t)
	snap := Serialize(buildEngine(t))

	if err := store.Save("work", snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Read("work")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("snapshot changed on disk:\n got %+v\nwant %+v", got, snap)
	}

	info, err := os.Stat(store.path("work"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		t.Fatalf("snapshot file is readable by others: %v", info.Mode())
	}
}

func TestStoreList_SortedByModified(t *testing.T) {
	store := newTestStore(t)
	snap := Serialize(buildEngine(t))

	if err := store.Save("old", snap); err != nil {
		t.Fatal(err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(store.path("old"), oldTime, oldTime); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("new", snap); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.path("broken"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 readable snapshots, got %d", len(list))
	}
	if list[0].Name != "new" || list[1].Name != "old" {
		t.Fatalf("expected newest first, got %s, %s", list[0].Name, list[1].Name)
	}

	entry := list[0]
	if entry.Version != "gpt-4o-mini" || entry.RequestCount != 1 || entry.Archived != 2 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.FileSize == 0 || entry.TotalPrice <= 0 {
		t.Fatalf("expected size and price, got %+v", entry)
	}
}

func TestStoreRead_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Read("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("gone", Serialize(buildEngine(t))); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("gone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(store.path("gone")); !os.IsNotExist(err) {
		t.Fatal("expected snapshot file to be removed")
	}
}

func TestStore_RejectsPathNames(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"", "..", "a/b", `a\b`} {
		if err := store.Save(name, Snapshot{}); err == nil {
			t.Fatalf("expected error for name %q", name)
		}
	}
}

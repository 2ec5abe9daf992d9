package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when a named snapshot has no file on disk.
var ErrNotFound = errors.New("snapshot not found")

// FileStore keeps named snapshots as JSON files under BaseDir/sessions.
type FileStore struct {
	BaseDir string
}

// Entry describes one stored snapshot without decoding its transcript twice.
type Entry struct {
	Name         string
	Version      string
	RequestCount int
	Archived     int
	TotalPrice   float64
	FileSize     int64
	ModifiedAt   time.Time
}

func (store *FileStore) dir() string {
	return filepath.Join(store.BaseDir, "sessions")
}

func (store *FileStore) path(name string) string {
	return filepath.Join(store.dir(), name+".json")
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}

// Save writes the snapshot atomically, replacing any previous file.
func (store *FileStore) Save(name string, snap Snapshot) error {
	if err := validName(name); err != nil {
		return err
	}

	data, err := snap.Encode()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(store.dir(), 0o700); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	tmp, err := os.CreateTemp(store.dir(), name+".*.tmp")
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), store.path(name)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Read returns the stored snapshot. A missing file yields ErrNotFound.
func (store *FileStore) Read(name string) (Snapshot, error) {
	if err := validName(name); err != nil {
		return Snapshot{}, err
	}

	data, err := os.ReadFile(store.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	return Decode(data)
}

// List returns every readable snapshot, most recently modified first.
func (store *FileStore) List() ([]Entry, error) {
	entries, err := os.ReadDir(store.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	var result []Entry
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(dirEntry.Name(), ".json")
		entry, err := store.Stat(name)
		if err != nil {
			continue
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ModifiedAt.After(result[j].ModifiedAt)
	})

	return result, nil
}

func (store *FileStore) Stat(name string) (Entry, error) {
	stat, err := os.Stat(store.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Entry{}, fmt.Errorf("stat snapshot: %w", err)
	}

	snap, err := store.Read(name)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Name:         name,
		Version:      snap.Version,
		RequestCount: snap.RequestCount,
		Archived:     len(snap.SessionsInfo),
		TotalPrice:   snap.TotalPrice,
		FileSize:     stat.Size(),
		ModifiedAt:   stat.ModTime(),
	}, nil
}

func (store *FileStore) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	if err := os.Remove(store.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

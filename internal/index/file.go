package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// indexFileName is the on-disk index artifact inside a session directory.
const indexFileName = "index.json"

// FileStore persists indexes as JSON files under <dir>/<sessionID>/.
// A load from a fresh process reproduces identical search behavior.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) indexPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID, indexFileName)
}

// Persist writes the index atomically (temp file plus rename), replacing
// any previous index for the session.
func (s *FileStore) Persist(ctx context.Context, sessionID string, idx *Index) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	path := s.indexPath(sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// Load reads the persisted index. A missing index is ErrIndexNotFound; an
// unreadable or inconsistent one is ErrIndexCorrupt.
func (s *FileStore) Load(ctx context.Context, sessionID string) (*Index, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.indexPath(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: session %s", ErrIndexNotFound, sessionID)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: session %s: %v", ErrIndexCorrupt, sessionID, err)
	}
	if idx.Dimension <= 0 {
		return nil, fmt.Errorf("%w: session %s: nonpositive dimension %d", ErrIndexCorrupt, sessionID, idx.Dimension)
	}
	for i, entry := range idx.Entries {
		if len(entry.Vector) != idx.Dimension {
			return nil, fmt.Errorf("%w: session %s: entry %d has %d dimensions, expected %d",
				ErrIndexCorrupt, sessionID, i, len(entry.Vector), idx.Dimension)
		}
	}
	return &idx, nil
}

// Search loads the session's index and runs a nearest-neighbor query.
func (s *FileStore) Search(ctx context.Context, sessionID string, vector []float32, k int) ([]Result, error) {
	idx, err := s.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return idx.Search(vector, k)
}

// Delete removes the session's index location. Deleting a nonexistent or
// already-deleted session succeeds silently.
func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.dir, sessionID))
}

// Exists reports whether a persisted index exists for the session.
func (s *FileStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	if err := validateSessionID(sessionID); err != nil {
		return false, err
	}
	if _, err := os.Stat(s.indexPath(sessionID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

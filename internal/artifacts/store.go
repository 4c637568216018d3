// Package artifacts persists the auxiliary per-collection JSON bundle
// (tables, images, insights) alongside the vector index.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/mlewan/docquery/internal/document"
)

const (
	tablesFileName   = "tables.json"
	imagesFileName   = "images.json"
	insightsFileName = "insights.json"
)

// ErrInsightsNotFound reports a collection whose insights artifact is
// missing. Insights always exist after a successful ingestion, so absence
// signals a corrupted or partially-ingested collection.
var ErrInsightsNotFound = errors.New("insights not found")

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store reads and writes artifact bundles under <dir>/<sessionID>/.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) sessionDir(sessionID string) (string, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return "", fmt.Errorf("%w: invalid session id %q", document.ErrInvalidInput, sessionID)
	}
	return filepath.Join(s.dir, sessionID), nil
}

// Save writes the whole bundle for a session. Empty table and image lists
// are stored as empty JSON arrays, never omitted.
func (s *Store) Save(sessionID string, tables []document.Table, images []document.ImageRef, insights *document.Insights) error {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	if tables == nil {
		tables = []document.Table{}
	}
	if images == nil {
		images = []document.ImageRef{}
	}

	if err := writeJSON(filepath.Join(dir, tablesFileName), tables); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, imagesFileName), images); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, insightsFileName), insights)
}

// LoadTables reads the tables artifact. A missing file means the
// collection simply has no tables: empty list, no error.
func (s *Store) LoadTables(sessionID string) ([]document.Table, error) {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	var tables []document.Table
	found, err := readJSON(filepath.Join(dir, tablesFileName), &tables)
	if err != nil {
		return nil, err
	}
	if !found {
		return []document.Table{}, nil
	}
	return tables, nil
}

// LoadImages reads the images artifact with the same absent-as-empty
// semantics as LoadTables.
func (s *Store) LoadImages(sessionID string) ([]document.ImageRef, error) {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	var images []document.ImageRef
	found, err := readJSON(filepath.Join(dir, imagesFileName), &images)
	if err != nil {
		return nil, err
	}
	if !found {
		return []document.ImageRef{}, nil
	}
	return images, nil
}

// LoadInsights reads the insights artifact; absence is ErrInsightsNotFound.
func (s *Store) LoadInsights(sessionID string) (*document.Insights, error) {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	var insights document.Insights
	found, err := readJSON(filepath.Join(dir, insightsFileName), &insights)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: session %s", ErrInsightsNotFound, sessionID)
	}
	return &insights, nil
}

// Delete removes the session's whole bundle. Deleting a nonexistent or
// already-deleted session succeeds silently.
func (s *Store) Delete(sessionID string) error {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readJSON reports whether the file existed.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

package index

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mlewan/docquery/internal/document"
)

var (
	// ErrIndexNotFound reports a query against a session id with no
	// persisted index. It is never signalled as a silent empty index.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexCorrupt reports a persisted index that fails to load. The
	// collection should be flagged for re-ingestion.
	ErrIndexCorrupt = errors.New("index corrupt")
)

// Session ids name directories and remote collections, so they are
// restricted to a filesystem- and collection-safe alphabet.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return fmt.Errorf("%w: invalid session id %q", document.ErrInvalidInput, sessionID)
	}
	return nil
}

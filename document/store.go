// Package document owns the artifact files a run produces: a session
// directory the actuator downloads into, validity checks, and the composer
// that builds the merged delivery document.
package document

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// minValidSize is the smallest byte count a downloaded artifact may have.
// The browser occasionally leaves zero-length or truncated files behind;
// anything at or below this threshold is treated as absent.
const minValidSize = 10

// Store is the file-backed artifact store for one session directory.
type Store struct {
	dir    string
	Logger *slog.Logger
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{dir: dir, Logger: slog.Default()}, nil
}

// Dir returns the session directory.
func (s *Store) Dir() string {
	return s.dir
}

// PathFor returns the expected file path for a named artifact.
func (s *Store) PathFor(name string) string {
	return filepath.Join(s.dir, name+".pdf")
}

// Valid reports whether path exists and is large enough to be a real
// artifact.
func (s *Store) Valid(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > minValidSize
}

// CleanStale removes leftover PDF files from previous sessions. Individual
// removal failures are logged and skipped.
func (s *Store) CleanStale() int {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.pdf"))
	if err != nil {
		s.Logger.Error("failed to scan session directory", "error", err)
		return 0
	}
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			s.Logger.Error("failed to remove stale artifact", "file", filepath.Base(path), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.Logger.Info("removed stale artifacts", "count", removed)
	}
	return removed
}

// Remove deletes an artifact file. Absence is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// Package journal writes a per-run record of pipeline activity to disk. Each
// run gets one JSONL file; old files are removed by a retention policy so a
// long-lived agent does not accumulate journals without bound.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultRetentionDuration = 7 * 24 * time.Hour
	defaultMaxJournalFiles   = 10
)

// Record is one journal line. Status is one of "ok", "skipped", "aborted",
// "fatal", "cancelled", "report".
type Record struct {
	Time    time.Time `json:"time"`
	RunID   string    `json:"run_id"`
	OrderID int64     `json:"order_id,omitempty"`
	Step    string    `json:"step"`
	Status  string    `json:"status"`
	Attempt int       `json:"attempt,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Config controls journal placement and retention.
type Config struct {
	Directory         string
	RetentionDuration time.Duration
	MaxJournalFiles   int
}

// Journal appends records for a single run. The file is created lazily on
// first append; if creation fails the journal degrades to a no-op so a disk
// problem never stops a run.
type Journal struct {
	mu                sync.Mutex
	runID             string
	directory         string
	path              string
	file              *os.File
	broken            bool
	retentionDuration time.Duration
	maxJournalFiles   int
}

// New creates a journal for runID and prunes old journal files.
func New(runID string, config ...Config) *Journal {
	cfg := Config{
		Directory:         filepath.Join(os.TempDir(), "wbpilot-journal"),
		RetentionDuration: defaultRetentionDuration,
		MaxJournalFiles:   defaultMaxJournalFiles,
	}
	if len(config) > 0 {
		if config[0].Directory != "" {
			cfg.Directory = config[0].Directory
		}
		if config[0].RetentionDuration > 0 {
			cfg.RetentionDuration = config[0].RetentionDuration
		}
		if config[0].MaxJournalFiles > 0 {
			cfg.MaxJournalFiles = config[0].MaxJournalFiles
		}
	}

	if _, err := os.Stat(cfg.Directory); os.IsNotExist(err) {
		if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
			slog.Error("failed to create journal directory", "directory", cfg.Directory, "error", err)
		}
	}

	j := &Journal{
		runID:             runID,
		directory:         cfg.Directory,
		path:              filepath.Join(cfg.Directory, fmt.Sprintf("run-%s.jsonl", runID)),
		retentionDuration: cfg.RetentionDuration,
		maxJournalFiles:   cfg.MaxJournalFiles,
	}
	j.cleanup()
	return j
}

// Filepath returns the journal file location.
func (j *Journal) Filepath() string {
	return j.path
}

// Append writes one record. Errors are logged, never returned: journaling is
// best effort and must not affect the run.
func (j *Journal) Append(rec Record) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.broken {
		return
	}
	if j.file == nil {
		f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			slog.Error("failed to open journal file, journaling disabled", "file", j.path, "error", err)
			j.broken = true
			return
		}
		j.file = f
	}

	rec.RunID = j.runID
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("failed to marshal journal record", "error", err)
		return
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		slog.Error("failed to write journal record", "error", err)
	}
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// cleanup removes journal files past retention and, when there are still too
// many, the oldest of the rest.
func (j *Journal) cleanup() {
	entries, err := os.ReadDir(j.directory)
	if err != nil {
		slog.Error("failed to read journal directory", "error", err)
		return
	}

	var files []struct {
		path    string
		modTime time.Time
	}
	cutoff := time.Now().Add(-j.retentionDuration)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "run-") || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, struct {
			path    string
			modTime time.Time
		}{
			path:    filepath.Join(j.directory, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, k int) bool {
		return files[i].modTime.Before(files[k].modTime)
	})

	remaining := files[:0]
	for _, f := range files {
		if j.retentionDuration > 0 && f.modTime.Before(cutoff) {
			if err := os.Remove(f.path); err != nil {
				slog.Error("failed to remove old journal file", "file", f.path, "error", err)
			}
			continue
		}
		remaining = append(remaining, f)
	}

	if j.maxJournalFiles > 0 && len(remaining) > j.maxJournalFiles {
		for _, f := range remaining[:len(remaining)-j.maxJournalFiles] {
			if err := os.Remove(f.path); err != nil {
				slog.Error("failed to remove excess journal file", "file", f.path, "error", err)
			}
		}
	}
}

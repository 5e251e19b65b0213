// Package printing sends documents to a local print spooler.
package printing

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Service is the print capability. Print blocks until the document is handed
// to the spooler; it does not wait for paper.
type Service interface {
	Print(ctx context.Context, path, printerName string) error
}

// Spooler prints by shelling out to the platform print command (lp on
// Unix-likes). Windows installations typically configure Command explicitly.
type Spooler struct {
	// Command overrides the platform default. It receives printer and path
	// as its final two arguments.
	Command string
	Logger  *slog.Logger
}

var _ Service = &Spooler{}

func (s *Spooler) Print(ctx context.Context, path, printerName string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	command := s.Command
	if command == "" {
		if runtime.GOOS == "windows" {
			return fmt.Errorf("no print command configured for windows")
		}
		command = "lp"
	}

	cmd := exec.CommandContext(ctx, command, "-d", printerName, path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("print command failed: %w: %s", err, out)
	}
	logger.Info("document sent to printer", "file", path, "printer", printerName)
	return nil
}

// Noop discards print requests. Used when auto-print is disabled.
type Noop struct{}

var _ Service = Noop{}

func (Noop) Print(ctx context.Context, path, printerName string) error {
	return nil
}

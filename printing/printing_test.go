package printing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpoolerRunsConfiguredCommand(t *testing.T) {
	s := &Spooler{Command: "echo"}
	err := s.Print(context.Background(), "/tmp/doc.pdf", "test-printer")
	require.NoError(t, err)
}

func TestSpoolerReportsCommandFailure(t *testing.T) {
	s := &Spooler{Command: "false"}
	err := s.Print(context.Background(), "/tmp/doc.pdf", "test-printer")
	assert.Error(t, err)
}

func TestNoopDiscards(t *testing.T) {
	assert.NoError(t, Noop{}.Print(context.Background(), "/tmp/doc.pdf", "any"))
}

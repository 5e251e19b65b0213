package wbpilot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateUnattendedConfirmsAfterStabilization(t *testing.T) {
	slept := time.Duration(0)
	g := &ConfirmationGate{
		Messenger: &chatRecorder{},
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = d
			return nil
		},
	}

	outcome := g.Await(context.Background(), ModeUnattended, "create box")

	assert.Equal(t, GateConfirmed, outcome)
	assert.Equal(t, 1500*time.Millisecond, slept)
	assert.Equal(t, 0, g.Pending())
}

func TestGateSupervisedResolvesTicket(t *testing.T) {
	chat := &chatRecorder{}
	g := &ConfirmationGate{Messenger: chat, Deadline: 5 * time.Second}

	done := make(chan GateOutcome, 1)
	go func() {
		done <- g.Await(context.Background(), ModeSupervised, "create box")
	}()

	// Wait for the prompt, then pull the step ID out of its callback data.
	var stepID string
	require.Eventually(t, func() bool {
		chat.mu.Lock()
		defer chat.mu.Unlock()
		if g.Pending() == 0 {
			return false
		}
		return len(chat.prompts) == 1
	}, time.Second, 5*time.Millisecond)

	g.mu.Lock()
	for id := range g.tickets {
		stepID = id
	}
	g.mu.Unlock()
	require.NotEmpty(t, stepID)

	g.Resolve(stepID)
	assert.Equal(t, GateConfirmed, <-done)
	assert.Equal(t, 0, g.Pending())
}

func TestGateSupervisedTimesOut(t *testing.T) {
	g := &ConfirmationGate{Messenger: &chatRecorder{}, Deadline: 20 * time.Millisecond}

	outcome := g.Await(context.Background(), ModeSupervised, "deliver shipment")

	assert.Equal(t, GateTimedOut, outcome)
	assert.Equal(t, 0, g.Pending(), "ticket must not outlive the wait")
}

func TestGateSupervisedCancelled(t *testing.T) {
	g := &ConfirmationGate{Messenger: &chatRecorder{}, Deadline: 5 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan GateOutcome, 1)
	go func() {
		done <- g.Await(ctx, ModeSupervised, "deliver shipment")
	}()
	require.Eventually(t, func() bool { return g.Pending() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Equal(t, GateCancelled, <-done)
	assert.Equal(t, 0, g.Pending())
}

func TestGateResolveUnknownTicketIsNoop(t *testing.T) {
	g := &ConfirmationGate{Messenger: &chatRecorder{}}
	g.Resolve("no-such-ticket")
	assert.Equal(t, 0, g.Pending())
}

func TestGatePromptCarriesConfirmButton(t *testing.T) {
	chat := &chatRecorder{}
	g := &ConfirmationGate{Messenger: chat, Deadline: 20 * time.Millisecond}

	g.Await(context.Background(), ModeSupervised, "create box")

	chat.mu.Lock()
	defer chat.mu.Unlock()
	require.Len(t, chat.prompts, 1)
	assert.True(t, strings.Contains(chat.prompts[0], "create box"))
}

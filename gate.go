package wbpilot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GateOutcome is the result of one confirmation wait. The three outcomes are
// distinguishable so the pipeline can tell an operator timeout from a run
// cancellation.
type GateOutcome int

const (
	GateConfirmed GateOutcome = iota
	GateTimedOut
	GateCancelled
)

func (o GateOutcome) String() string {
	switch o {
	case GateConfirmed:
		return "confirmed"
	case GateTimedOut:
		return "timed out"
	case GateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

const (
	defaultGateDeadline  = 300 * time.Second
	defaultStabilization = 1500 * time.Millisecond
)

// ConfirmationGate suspends the pipeline until an operator acknowledges a
// step. In unattended mode it is a stabilization pause. Tickets are read and
// written by both the pipeline task and the command-intake task; this map is
// the one structure in the core that two tasks touch concurrently.
type ConfirmationGate struct {
	Messenger Messenger
	Deadline  time.Duration
	// Stabilization is the unattended-mode pause before a gated step
	// proceeds, so the gate does not race the actuator.
	Stabilization time.Duration
	Logger        *slog.Logger

	// Sleep overrides the stabilization pause for tests.
	Sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	tickets map[string]chan struct{}
}

func (g *ConfirmationGate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Await blocks the calling pipeline task until the step is acknowledged, the
// deadline passes, or ctx is cancelled. In unattended mode it returns
// GateConfirmed after the stabilization pause without requiring any resolve.
func (g *ConfirmationGate) Await(ctx context.Context, mode Mode, description string) GateOutcome {
	if mode != ModeSupervised {
		sleep := g.Sleep
		if sleep == nil {
			sleep = sleepCtx
		}
		stabilization := g.Stabilization
		if stabilization == 0 {
			stabilization = defaultStabilization
		}
		if err := sleep(ctx, stabilization); err != nil {
			return GateCancelled
		}
		return GateConfirmed
	}

	stepID := uuid.New().String()
	ch := make(chan struct{}, 1)

	g.mu.Lock()
	if g.tickets == nil {
		g.tickets = make(map[string]chan struct{})
	}
	g.tickets[stepID] = ch
	g.mu.Unlock()

	// Whatever the outcome, the ticket must not outlive the wait.
	defer func() {
		g.mu.Lock()
		delete(g.tickets, stepID)
		g.mu.Unlock()
	}()

	err := g.Messenger.Prompt(ctx,
		"🔍 <b>Confirmation required</b>\n<b>Step:</b> "+description+"\nDid it complete correctly?",
		[]Button{{Text: "Confirm ✅", Data: "confirm_" + stepID}},
		[]Button{{Text: "Cancel ❌", Data: "cancel_run"}},
	)
	if err != nil {
		g.logger().Error("failed to send confirmation prompt", "step", description, "error", err)
	}

	deadline := g.Deadline
	if deadline == 0 {
		deadline = defaultGateDeadline
	}

	g.logger().Info("awaiting confirmation", "step", description, "step_id", stepID)
	select {
	case <-ch:
		g.logger().Info("step confirmed", "step", description)
		return GateConfirmed
	case <-ctx.Done():
		return GateCancelled
	case <-time.After(deadline):
		g.logger().Warn("confirmation timed out", "step", description, "deadline", deadline)
		return GateTimedOut
	}
}

// Resolve acknowledges an outstanding ticket. Resolving an unknown or
// already-consumed ticket is a no-op.
func (g *ConfirmationGate) Resolve(stepID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.tickets[stepID]
	if !ok {
		g.logger().Warn("resolve for unknown confirmation ticket", "step_id", stepID)
		return
	}
	delete(g.tickets, stepID)
	ch <- struct{}{}
}

// Pending returns the number of outstanding tickets.
func (g *ConfirmationGate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tickets)
}

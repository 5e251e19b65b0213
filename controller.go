package wbpilot

import (
	"context"
	"sync"
	"time"
)

// RunState is the controller's view of the pipeline slot.
type RunState int

const (
	// StateIdle means no run is live and the slot is free.
	StateIdle RunState = iota
	// StatePending means the slot is reserved while the operator picks a
	// mode; no pipeline task exists yet.
	StatePending
	// StateBusy means a pipeline task is live.
	StateBusy
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// RunStatus is a point-in-time snapshot for the status command.
type RunStatus struct {
	State         RunState
	Mode          Mode
	Elapsed       time.Duration
	OrdersDone    int
	ArtifactsSent int
}

// RunController is the single point of mutual exclusion for pipeline runs:
// at most one run is live at any instant, and nothing outside the controller
// touches the busy state. Cancellation is cooperative, delivered through the
// run context and observed at step boundaries.
type RunController struct {
	mu            sync.Mutex
	state         RunState
	mode          Mode
	started       time.Time
	cancel        context.CancelFunc
	ordersDone    int
	artifactsSent int
}

func NewRunController() *RunController {
	return &RunController{}
}

// TryStart reserves the slot for a mode handshake. If any run or reservation
// is live it returns ErrBusy without side effects.
func (c *RunController) TryStart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrBusy
	}
	c.state = StatePending
	return nil
}

// Begin moves the slot to busy and returns the run context. It accepts from
// both pending (the normal handshake) and idle (auto-start). The caller owns
// launching the pipeline task and must call Finish on every exit path.
func (c *RunController) Begin(parent context.Context, mode Mode) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateBusy {
		return nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(parent)
	c.state = StateBusy
	c.mode = mode
	c.started = time.Now()
	c.cancel = cancel
	c.ordersDone = 0
	c.artifactsSent = 0
	return ctx, nil
}

// RequestCancel is always accepted and idempotent. A pending reservation is
// released immediately; a live run is cancelled cooperatively and stays busy
// until its task observes the cancellation and finishes.
func (c *RunController) RequestCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePending:
		c.state = StateIdle
	case StateBusy:
		if c.cancel != nil {
			c.cancel()
		}
	}
}

// Finish clears the busy state and the cancellation flag. It runs on every
// pipeline exit path: success, cancellation, and fatal error alike.
func (c *RunController) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = StateIdle
	c.mode = ""
}

// Status returns a snapshot of the slot.
func (c *RunController) Status() RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := RunStatus{
		State:         c.state,
		Mode:          c.mode,
		OrdersDone:    c.ordersDone,
		ArtifactsSent: c.artifactsSent,
	}
	if c.state == StateBusy {
		st.Elapsed = time.Since(c.started)
	}
	return st
}

// AddOrdersDone advances the progress counter shown by Status.
func (c *RunController) AddOrdersDone(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ordersDone += n
}

// AddArtifactsSent advances the progress counter shown by Status.
func (c *RunController) AddArtifactsSent(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifactsSent += n
}

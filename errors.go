package wbpilot

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBusy is returned by the run controller when a run is already live or a
// mode selection is outstanding.
var ErrBusy = errors.New("a run is already in progress")

// ErrEmptyShipment marks the order-abort heuristic: the packaging view never
// showed a box to create after the configured attempt budget.
var ErrEmptyShipment = errors.New("no box to create, shipment looks empty")

// FatalError is a remote operation that failed after its full attempt
// budget. It is order-local unless the caller decides otherwise.
type FatalError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// sleepCtx pauses for d or until ctx is cancelled, whichever comes first.
// Every pause in the pipeline goes through a function of this shape so tests
// can run without real delays.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Package wbpilot orchestrates marketplace order fulfillment: it sequences a
// per-order pipeline over a remote API and a screen actuator, gated by
// operator confirmations from a chat channel, and delivers the produced
// artifacts back through that channel.
package wbpilot

import "fmt"

// Mode selects how the pipeline treats gated steps.
type Mode string

const (
	// ModeSupervised requires explicit operator acknowledgment at every
	// gated step.
	ModeSupervised Mode = "supervised"
	// ModeUnattended proceeds automatically after a stabilization pause.
	ModeUnattended Mode = "unattended"
)

// Order is one marketplace order in the current run's working set. Seq is
// the 1-based position assigned at pipeline entry, stable for the run.
type Order struct {
	ID       int64
	Quantity int
	Seq      int
}

// Artifact is one generated document tied to an order. SubIndex 1 is the
// order-level document; 2..n are item documents.
type Artifact struct {
	Path     string
	OrderSeq int
	SubIndex int
}

// Name returns the artifact's canonical name, e.g. "3_1".
func (a Artifact) Name() string {
	return fmt.Sprintf("%d_%d", a.OrderSeq, a.SubIndex)
}

// less orders artifacts by (order sequence, sub-index), ascending. This is
// the only ordering guarantee the aggregator offers.
func less(a, b Artifact) bool {
	if a.OrderSeq != b.OrderSeq {
		return a.OrderSeq < b.OrderSeq
	}
	return a.SubIndex < b.SubIndex
}

package wbpilot

import "sync"

// OrderLedger records which order IDs have completed the pipeline. An ID
// present in the ledger is never re-entered into a later run's working set.
// The ledger lives for the process lifetime; it is not persisted.
type OrderLedger struct {
	mu   sync.Mutex
	done map[int64]struct{}
}

func NewOrderLedger() *OrderLedger {
	return &OrderLedger{done: make(map[int64]struct{})}
}

// MarkProcessed records id as completed. Marking twice is a no-op.
func (l *OrderLedger) MarkProcessed(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done[id] = struct{}{}
}

// Processed reports whether id has already completed a pipeline.
func (l *OrderLedger) Processed(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[id]
	return ok
}

// Len returns the number of completed orders.
func (l *OrderLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done)
}

package wbpilot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerMarksAndReports(t *testing.T) {
	l := NewOrderLedger()
	assert.False(t, l.Processed(101))

	l.MarkProcessed(101)
	assert.True(t, l.Processed(101))
	assert.False(t, l.Processed(102))
	assert.Equal(t, 1, l.Len())

	// Marking twice is a no-op.
	l.MarkProcessed(101)
	assert.Equal(t, 1, l.Len())
}

func TestLedgerConcurrentAccess(t *testing.T) {
	l := NewOrderLedger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			l.MarkProcessed(id)
			l.Processed(id)
		}(int64(i % 10))
	}
	wg.Wait()
	assert.Equal(t, 10, l.Len())
}

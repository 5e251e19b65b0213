package wbpilot

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

const (
	defaultBatchSize    = 5
	fileSendAttempts    = 3
	interBatchPause     = 2 * time.Second
	interAttemptBaseSec = 1
)

// DispatchResult is the outcome of one batch send. Failed holds the artifact
// names that never went through so the final report can name them.
type DispatchResult struct {
	Sent   int
	Failed []string
}

// BatchDispatcher sends individual artifacts through the messenger in fixed
// batches. A file that exhausts its attempt budget is skipped, never
// re-queued; the run goes on and the shortfall surfaces in the result.
type BatchDispatcher struct {
	Messenger Messenger
	BatchSize int
	Logger    *slog.Logger

	// Sleep overrides the inter-attempt and inter-batch pauses for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (d *BatchDispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *BatchDispatcher) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return sleepCtx(ctx, dur)
}

// Send delivers every artifact in (order sequence, sub-index) order. A
// cancelled context stops between sends; whatever was already delivered
// stays counted in the result.
func (d *BatchDispatcher) Send(ctx context.Context, artifacts []Artifact) DispatchResult {
	var res DispatchResult
	if len(artifacts) == 0 {
		return res
	}

	sorted := make([]Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	for start := 0; start < len(sorted); start += batchSize {
		end := start + batchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		for _, art := range sorted[start:end] {
			if ctx.Err() != nil {
				return res
			}
			if d.sendOne(ctx, art) {
				res.Sent++
			} else {
				res.Failed = append(res.Failed, art.Name())
			}
		}
		if end < len(sorted) {
			if err := d.sleep(ctx, interBatchPause); err != nil {
				return res
			}
		}
	}
	return res
}

func (d *BatchDispatcher) sendOne(ctx context.Context, art Artifact) bool {
	for attempt := 0; attempt < fileSendAttempts; attempt++ {
		err := d.Messenger.SendFile(ctx, art.Path)
		if err == nil {
			return true
		}
		d.logger().Error("artifact send failed",
			"file", art.Name(),
			"attempt", attempt+1,
			"error", err)
		if ctx.Err() != nil {
			return false
		}
		if attempt < fileSendAttempts-1 {
			pause := time.Duration(interAttemptBaseSec<<attempt) * time.Second
			if err := d.sleep(ctx, pause); err != nil {
				return false
			}
		}
	}
	return false
}

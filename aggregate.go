package wbpilot

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/avashchuk/wbpilot/document"
)

// Aggregator builds the combined delivery document from a run's artifacts:
// an optional cover page followed by every artifact in (order sequence,
// sub-index) order.
type Aggregator struct {
	Store    *document.Store
	Composer document.Composer
	Logger   *slog.Logger
}

// combinedName is the merged document's artifact name in the session
// directory.
const combinedName = "combined"

func (a *Aggregator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Merge writes the combined document and returns its path. With no artifacts
// it returns "" and no error: an empty run produces no document. A cover
// failure is logged and the merge proceeds without the cover; a merge failure
// is the caller's problem.
func (a *Aggregator) Merge(artifacts []Artifact) (string, error) {
	if len(artifacts) == 0 {
		return "", nil
	}

	sorted := make([]Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	var pages []string
	coverPath := a.Store.PathFor("cover")
	if err := a.Composer.Cover(coverPath); err != nil {
		a.logger().Warn("cover page failed, merging without it", "error", err)
	} else {
		pages = append(pages, coverPath)
	}
	for _, art := range sorted {
		pages = append(pages, art.Path)
	}

	out := a.Store.PathFor(combinedName)
	if err := a.Composer.Merge(pages, out); err != nil {
		return "", fmt.Errorf("failed to build combined document: %w", err)
	}
	if !a.Store.Valid(out) {
		return "", fmt.Errorf("combined document came out empty")
	}
	return out, nil
}

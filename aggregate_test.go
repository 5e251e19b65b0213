package wbpilot

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avashchuk/wbpilot/document"
)

func newTestAggregator(t *testing.T) (*Aggregator, *document.Store) {
	t.Helper()
	store, err := document.NewStore(t.TempDir())
	require.NoError(t, err)
	return &Aggregator{
		Store:    store,
		Composer: &document.RawComposer{CoverData: []byte("[COVER PAGE]")},
	}, store
}

func writeArtifact(t *testing.T, store *document.Store, art Artifact, content string) Artifact {
	t.Helper()
	path := store.PathFor(art.Name())
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	art.Path = path
	return art
}

func TestMergePreservesArtifactOrder(t *testing.T) {
	agg, store := newTestAggregator(t)

	// Handed over out of order; the merge must sort by (order, sub-index).
	arts := []Artifact{
		writeArtifact(t, store, Artifact{OrderSeq: 2, SubIndex: 1}, "<order2 box>"),
		writeArtifact(t, store, Artifact{OrderSeq: 1, SubIndex: 2}, "<order1 item>"),
		writeArtifact(t, store, Artifact{OrderSeq: 1, SubIndex: 1}, "<order1 box>"),
	}

	out, err := agg.Merge(arts)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "[COVER PAGE]<order1 box><order1 item><order2 box>", string(data))
}

func TestMergeEmptyInputProducesNothing(t *testing.T) {
	agg, _ := newTestAggregator(t)
	out, err := agg.Merge(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMergeSurvivesCoverFailure(t *testing.T) {
	agg, store := newTestAggregator(t)
	agg.Composer = &document.RawComposer{} // no cover data configured

	art := writeArtifact(t, store, Artifact{OrderSeq: 1, SubIndex: 1}, "<order1 box sticker>")
	out, err := agg.Merge([]Artifact{art})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "<order1 box sticker>", string(data))
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	agg, store := newTestAggregator(t)
	arts := []Artifact{
		writeArtifact(t, store, Artifact{OrderSeq: 2, SubIndex: 1}, "<second order>"),
		writeArtifact(t, store, Artifact{OrderSeq: 1, SubIndex: 1}, "<first order!>"),
	}

	_, err := agg.Merge(arts)
	require.NoError(t, err)
	assert.Equal(t, 2, arts[0].OrderSeq)
}

package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreValid(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	good := s.PathFor("1_1")
	require.NoError(t, os.WriteFile(good, []byte("%PDF-1.4 enough bytes"), 0644))
	assert.True(t, s.Valid(good))

	truncated := s.PathFor("1_2")
	require.NoError(t, os.WriteFile(truncated, []byte("tiny"), 0644))
	assert.False(t, s.Valid(truncated), "files at or below the minimum size are treated as absent")

	assert.False(t, s.Valid(s.PathFor("missing")))
}

func TestStoreCleanStale(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "old_1.pdf"), []byte("stale artifact"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old_2.pdf"), []byte("stale artifact"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("not a pdf"), 0644))

	assert.Equal(t, 2, s.CleanStale())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt", entries[0].Name())
}

func TestRawComposerMergePreservesOrder(t *testing.T) {
	dir := t.TempDir()
	pages := make([]string, 0, 3)
	for i, content := range []string{"AAA", "BBB", "CCC"} {
		path := filepath.Join(dir, string(rune('a'+i))+".pdf")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		pages = append(pages, path)
	}

	c := &RawComposer{CoverData: []byte("COVER")}
	out := filepath.Join(dir, "merged.pdf")
	require.NoError(t, c.Merge(pages, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "AAABBBCCC", string(data))

	cover := filepath.Join(dir, "cover.pdf")
	require.NoError(t, c.Cover(cover))
	data, err = os.ReadFile(cover)
	require.NoError(t, err)
	assert.Equal(t, "COVER", string(data))
}

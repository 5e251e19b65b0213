package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var recs []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		recs = append(recs, r)
	}
	require.NoError(t, scanner.Err())
	return recs
}

func TestJournalAppend(t *testing.T) {
	dir := t.TempDir()
	j := New("run-1", Config{Directory: dir})
	defer j.Close()

	j.Append(Record{OrderID: 123, Step: "create_shipment", Status: "ok"})
	j.Append(Record{OrderID: 123, Step: "deliver", Status: "aborted", Detail: "api rejected"})
	require.NoError(t, j.Close())

	recs := readRecords(t, j.Filepath())
	require.Len(t, recs, 2)
	assert.Equal(t, "run-1", recs[0].RunID)
	assert.Equal(t, "create_shipment", recs[0].Step)
	assert.False(t, recs[0].Time.IsZero())
	assert.Equal(t, "api rejected", recs[1].Detail)
}

func TestJournalNoFileUntilFirstAppend(t *testing.T) {
	dir := t.TempDir()
	j := New("run-2", Config{Directory: dir})
	defer j.Close()

	_, err := os.Stat(j.Filepath())
	assert.True(t, os.IsNotExist(err))
}

func TestJournalCleanupKeepsNewest(t *testing.T) {
	dir := t.TempDir()

	// Seed five old journal files with staggered mtimes.
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		path := filepath.Join(dir, "run-"+name+".jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))
		mt := time.Now().Add(-time.Duration(10-i) * time.Minute)
		require.NoError(t, os.Chtimes(path, mt, mt))
	}

	j := New("f", Config{Directory: dir, MaxJournalFiles: 3})
	defer j.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// The oldest two must be gone.
	_, err = os.Stat(filepath.Join(dir, "run-a.jsonl"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "run-b.jsonl"))
	assert.True(t, os.IsNotExist(err))
}

package checkpoint

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidfetch/internal/progress"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	missing, err := store.Get("camA/x1.mp4")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Save(&Record{
		Key:       "camA/x1.mp4",
		Partition: "camA",
		Size:      1024,
		Status:    StatusCompleted,
	}))

	got, err := store.Get("camA/x1.mp4")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "camA", got.Partition)
	assert.Equal(t, int64(1024), got.Size)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSQLiteStoreUpsertAndListFailed(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(&Record{
		Key: "camA/x1.mp4", Partition: "camA", Status: StatusFailed, LastError: "timeout",
	}))
	require.NoError(t, store.Save(&Record{
		Key: "camB/y1.mp4", Partition: "camB", Status: StatusFailed, LastError: "503",
	}))

	failed, err := store.ListFailed()
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	// Re-saving the same key as completed must replace, not duplicate.
	require.NoError(t, store.Save(&Record{
		Key: "camA/x1.mp4", Partition: "camA", Size: 10, Status: StatusCompleted,
	}))

	failed, err = store.ListFailed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "camB/y1.mp4", failed[0].Key)
}

func TestSummaryWriterWritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSummaryWriter(dir)
	require.NoError(t, err)

	tr := progress.NewTracker(w, 2)
	tr.Record(progress.Success("camA/x1.mp4", "camA", "", 100))
	tr.Record(progress.Failed("camB/y1.mp4", "camB", "connection reset"))

	summary, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Success: 1")
	assert.Contains(t, string(summary), "camA: 1 videos")

	f, err := os.Open(filepath.Join(dir, FailuresFile))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"video", "error"}, rows[0])
	assert.Equal(t, []string{"camB/y1.mp4", "connection reset"}, rows[1])

	// No stray temp files after a completed write.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestSummaryWriterRewritesWholesale(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSummaryWriter(dir)
	require.NoError(t, err)

	snap1 := progress.Snapshot{
		Success:    5,
		Partitions: map[string]progress.PartitionStat{"camA": {Count: 5, Bytes: 500}},
		Failures:   []progress.Failure{{Key: "camB/y.mp4", Reason: "x"}},
	}
	require.NoError(t, w.WriteSnapshot(snap1))

	snap2 := progress.Snapshot{
		Success:    9,
		Partitions: map[string]progress.PartitionStat{"camA": {Count: 9, Bytes: 900}},
	}
	require.NoError(t, w.WriteSnapshot(snap2))

	summary, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Success: 9")
	assert.NotContains(t, string(summary), "Success: 5")

	failures, err := os.ReadFile(filepath.Join(dir, FailuresFile))
	require.NoError(t, err)
	assert.NotContains(t, string(failures), "camB/y.mp4", "failure list is replaced, not appended")
}

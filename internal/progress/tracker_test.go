package progress

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu     sync.Mutex
	writes []Snapshot
}

func (s *memSink) WriteSnapshot(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, snap)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func TestTrackerAggregates(t *testing.T) {
	tr := NewTracker(nil, 0)

	tr.Record(Success("camA/x1.mp4", "camA", "/v/camA/x1.mp4", 100))
	tr.Record(Exists("camA/x2.mp4", "camA", "/v/camA/x2.mp4", 50))
	tr.Record(Success("camB/y1.mp4", "camB", "/v/camB/y1.mp4", 200))
	tr.Record(Failed("camB/y2.mp4", "camB", "timeout"))
	tr.Record(Invalid("bad_key.mp4", "malformed item key"))

	snap := tr.Snapshot()
	assert.Equal(t, int64(2), snap.Success)
	assert.Equal(t, int64(1), snap.Exists)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(1), snap.Invalid)
	assert.Equal(t, int64(350), snap.TotalBytes)
	assert.Equal(t, int64(5), snap.Processed())

	assert.Equal(t, PartitionStat{Count: 2, Bytes: 150}, snap.Partitions["camA"])
	assert.Equal(t, PartitionStat{Count: 1, Bytes: 200}, snap.Partitions["camB"])
	assert.Equal(t, []string{"camA", "camB"}, snap.PartitionLabels())

	require.Len(t, snap.Failures, 2)
	assert.Equal(t, "camB/y2.mp4", snap.Failures[0].Key)
	assert.Equal(t, "bad_key.mp4", snap.Failures[1].Key)
}

// Per-partition counts must sum to the number of items present on disk
// regardless of the order results arrive in.
func TestTrackerOrderIndependence(t *testing.T) {
	results := make([]Result, 0, 300)
	for i := 0; i < 100; i++ {
		results = append(results, Success("camA/a.mp4", "camA", "", 10))
		results = append(results, Exists("camB/b.mp4", "camB", "", 20))
		results = append(results, Failed("camC/c.mp4", "camC", "boom"))
	}
	rand.Shuffle(len(results), func(i, j int) { results[i], results[j] = results[j], results[i] })

	tr := NewTracker(nil, 0)
	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(results); i += 10 {
				tr.Record(results[i])
			}
		}(w)
	}
	wg.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, int64(100), snap.Success)
	assert.Equal(t, int64(100), snap.Exists)
	assert.Equal(t, int64(100), snap.Failed)
	assert.Equal(t, int64(3000), snap.TotalBytes)

	var partitionSum int64
	for _, stat := range snap.Partitions {
		partitionSum += stat.Count
	}
	assert.Equal(t, snap.Completed(), partitionSum)
}

func TestTrackerCheckpointInterval(t *testing.T) {
	sink := &memSink{}
	tr := NewTracker(sink, 10)

	for i := 0; i < 25; i++ {
		tr.Record(Success("camA/x.mp4", "camA", "", 1))
	}
	assert.Equal(t, 2, sink.count(), "25 records at interval 10 should checkpoint twice")

	// Checkpoint content reflects exactly the recorded results at write time.
	sink.mu.Lock()
	first := sink.writes[0]
	sink.mu.Unlock()
	assert.Equal(t, int64(10), first.Processed())

	snap, err := tr.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 3, sink.count(), "finalize writes once more")
	assert.Equal(t, int64(25), snap.Success)
}

func TestBuildReport(t *testing.T) {
	tr := NewTracker(nil, 0)
	tr.Record(Success("camA/x.mp4", "camA", "", 1024))
	snap := tr.Snapshot()
	snap.StartTime = time.Now().Add(-30 * time.Minute)

	r := BuildReport(snap, time.Now())
	assert.InDelta(t, 2.0, r.ItemsPerHour, 0.01)
	assert.InDelta(t, 2048, r.BytesPerHour, 1)

	out := r.Render()
	assert.Contains(t, out, "Success: 1")
	assert.Contains(t, out, "camA: 1 videos")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 MB", FormatBytes(3*1024*1024/2))
	assert.Equal(t, "2.0 GB", FormatBytes(2*1024*1024*1024))

	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h0m30s", FormatDuration(time.Hour+30*time.Second))
}

package progress

import (
	"sort"
	"sync"
	"time"
)

// PartitionStat aggregates completed items for one partition (camera).
type PartitionStat struct {
	Count int64
	Bytes int64
}

// Failure records one item that could not be transferred.
type Failure struct {
	Key    string
	Reason string
}

// Snapshot is the aggregate transfer state. The tracker owns the canonical
// in-memory copy; checkpoint writers receive deep copies.
type Snapshot struct {
	Success    int64
	Exists     int64
	Failed     int64
	Invalid    int64
	TotalBytes int64
	Partitions map[string]PartitionStat
	Failures   []Failure
	StartTime  time.Time
	Total      int64
}

// Processed returns the number of results recorded so far.
func (s Snapshot) Processed() int64 {
	return s.Success + s.Exists + s.Failed + s.Invalid
}

// Completed returns the number of items present on disk (fetched or found).
func (s Snapshot) Completed() int64 {
	return s.Success + s.Exists
}

// PartitionLabels returns the partition labels sorted lexically.
func (s Snapshot) PartitionLabels() []string {
	labels := make([]string, 0, len(s.Partitions))
	for label := range s.Partitions {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Partitions = make(map[string]PartitionStat, len(s.Partitions))
	for k, v := range s.Partitions {
		out.Partitions[k] = v
	}
	out.Failures = append([]Failure(nil), s.Failures...)
	return out
}

// CheckpointSink persists a snapshot durably. Writes replace the previous
// checkpoint wholesale.
type CheckpointSink interface {
	WriteSnapshot(snap Snapshot) error
}

// Tracker accumulates transfer results. Record is the single serialized
// consumption point: workers produce concurrently, mutations happen one at
// a time under the mutex.
type Tracker struct {
	mu              sync.Mutex
	snap            Snapshot
	sink            CheckpointSink
	interval        int
	sinceCheckpoint int
}

// NewTracker creates a tracker that checkpoints through sink after every
// interval recorded results. A nil sink disables checkpointing.
func NewTracker(sink CheckpointSink, interval int) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Partitions: make(map[string]PartitionStat),
			StartTime:  time.Now(),
		},
		sink:     sink,
		interval: interval,
	}
}

// SetTotal sets the expected item count, used for percentages and ETA.
func (t *Tracker) SetTotal(total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Total = total
}

// Record applies one transfer result to the aggregate and checkpoints when
// the interval is reached. The checkpoint write happens synchronously on
// the caller's goroutine; at this item volume it is not a bottleneck.
func (t *Tracker) Record(res Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch res.Outcome {
	case OutcomeSuccess:
		t.snap.Success++
		t.snap.TotalBytes += res.Bytes
		t.addPartition(res.Partition, res.Bytes)
	case OutcomeExists:
		t.snap.Exists++
		t.snap.TotalBytes += res.Bytes
		t.addPartition(res.Partition, res.Bytes)
	case OutcomeFailed:
		t.snap.Failed++
		t.snap.Failures = append(t.snap.Failures, Failure{Key: res.Key, Reason: res.Reason})
	case OutcomeInvalid:
		t.snap.Invalid++
		t.snap.Failures = append(t.snap.Failures, Failure{Key: res.Key, Reason: res.Reason})
	}

	if t.sink == nil || t.interval <= 0 {
		return
	}
	t.sinceCheckpoint++
	if t.sinceCheckpoint >= t.interval {
		t.sinceCheckpoint = 0
		// Periodic write failures are not fatal; the next interval or the
		// final checkpoint will try again.
		_ = t.sink.WriteSnapshot(t.snap.clone())
	}
}

func (t *Tracker) addPartition(label string, bytes int64) {
	stat := t.snap.Partitions[label]
	stat.Count++
	stat.Bytes += bytes
	t.snap.Partitions[label] = stat
}

// Snapshot returns a copy of the current aggregate state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap.clone()
}

// Finalize writes one final checkpoint and returns the closing snapshot.
func (t *Tracker) Finalize() (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.snap.clone()
	if t.sink == nil {
		return snap, nil
	}
	return snap, t.sink.WriteSnapshot(snap)
}

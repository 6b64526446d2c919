package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vidfetch/internal/checkpoint"
	"vidfetch/internal/progress"
)

// fakeClient is an in-memory transfer client that counts fetches per key.
type fakeClient struct {
	mu      sync.Mutex
	calls   map[string]int
	errs    map[string]error
	payload []byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		calls:   make(map[string]int),
		errs:    make(map[string]error),
		payload: []byte("video data"),
	}
}

func (c *fakeClient) Fetch(ctx context.Context, key, localPath string) error {
	c.mu.Lock()
	c.calls[key]++
	err := c.errs[key]
	payload := c.payload
	c.mu.Unlock()

	if err != nil {
		return err
	}
	return os.WriteFile(localPath, payload, 0o644)
}

func (c *fakeClient) Ping(ctx context.Context) error { return nil }
func (c *fakeClient) Close() error                   { return nil }

func (c *fakeClient) callCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key]
}

func (c *fakeClient) totalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

func testConfig(dir string) Config {
	return Config{SaveDir: dir, Retries: 3, RetryBackoffMs: 1}
}

func newProcessor(t *testing.T, client *fakeClient, cfg Config) *TaskProcessor {
	t.Helper()
	return &TaskProcessor{
		config:  cfg,
		client:  client,
		tracker: progress.NewTracker(nil, 0),
		logger:  zap.NewNop(),
	}
}

func TestProcessFetchesAndVerifies(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	p := newProcessor(t, client, testConfig(dir))

	res := p.Process(context.Background(), Task{Key: "camA/x1.mp4"})

	assert.Equal(t, progress.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "camA", res.Partition)
	assert.Equal(t, int64(len("video data")), res.Bytes)
	assert.Equal(t, filepath.Join(dir, "camA", "x1.mp4"), res.LocalPath)
	assert.Equal(t, 1, client.callCount("camA/x1.mp4"))
}

func TestProcessInvalidKeyTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	p := newProcessor(t, client, testConfig(dir))

	for _, key := range []string{"onlyonepart.mp4", "a/b/c.mp4"} {
		res := p.Process(context.Background(), Task{Key: key})
		assert.Equal(t, progress.OutcomeInvalid, res.Outcome, "key %q", key)
	}

	assert.Equal(t, 0, client.totalCalls(), "invalid keys must never reach the client")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "invalid keys must not create directories")
}

func TestProcessExistingFileSkipsFetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "camA"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "camA", "x1.mp4"), []byte("already here"), 0o644))

	client := newFakeClient()
	p := newProcessor(t, client, testConfig(dir))

	res := p.Process(context.Background(), Task{Key: "camA/x1.mp4"})

	assert.Equal(t, progress.OutcomeExists, res.Outcome)
	assert.Equal(t, int64(len("already here")), res.Bytes)
	assert.Equal(t, 0, client.totalCalls())
}

func TestProcessZeroSizeFileIsRefetched(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "camA"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "camA", "x1.mp4"), nil, 0o644))

	client := newFakeClient()
	p := newProcessor(t, client, testConfig(dir))

	res := p.Process(context.Background(), Task{Key: "camA/x1.mp4"})

	assert.Equal(t, progress.OutcomeSuccess, res.Outcome, "a zero-size leftover is not a complete copy")
	assert.Equal(t, 1, client.totalCalls())
}

func TestProcessEmptyDownloadFails(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	client.payload = nil
	p := newProcessor(t, client, testConfig(dir))

	res := p.Process(context.Background(), Task{Key: "camA/x1.mp4"})

	assert.Equal(t, progress.OutcomeFailed, res.Outcome)
	assert.Equal(t, "empty file", res.Reason)
	assert.Equal(t, 1, client.totalCalls(), "an empty download is terminal, not retried")
}

func TestProcessRetriesExactlyAttempts(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	client.errs["camA/x1.mp4"] = fmt.Errorf("connection reset")

	cfg := testConfig(dir)
	cfg.Retries = 4
	p := newProcessor(t, client, cfg)

	res := p.Process(context.Background(), Task{Key: "camA/x1.mp4"})

	assert.Equal(t, progress.OutcomeFailed, res.Outcome)
	assert.Equal(t, "connection reset", res.Reason, "only the final attempt's error surfaces")
	assert.Equal(t, 4, client.callCount("camA/x1.mp4"))
}

func TestProcessResumeUsesCheckpointRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := checkpoint.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(&checkpoint.Record{
		Key: "camA/x1.mp4", Partition: "camA", Size: 777, Status: checkpoint.StatusCompleted,
	}))

	client := newFakeClient()
	cfg := testConfig(dir)
	cfg.Resume = true
	p := newProcessor(t, client, cfg)
	p.checkpoint = store

	res := p.Process(context.Background(), Task{Key: "camA/x1.mp4"})

	assert.Equal(t, progress.OutcomeExists, res.Outcome)
	assert.Equal(t, int64(777), res.Bytes)
	assert.Equal(t, 0, client.totalCalls())
}

func runPool(t *testing.T, client *fakeClient, cfg Config, keys []string, workers int) progress.Snapshot {
	t.Helper()

	tracker := progress.NewTracker(nil, 0)
	pool := NewPool(workers, cfg, client, nil, nil, tracker, zap.NewNop())

	tasks := make(chan Task, workers*2)
	var wg sync.WaitGroup
	pool.Start(context.Background(), tasks, &wg)

	for _, key := range keys {
		tasks <- Task{Key: key}
	}
	close(tasks)
	wg.Wait()

	return tracker.Snapshot()
}

func TestPoolFetchesEachItemAtMostOnce(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()

	keys := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		keys = append(keys, fmt.Sprintf("cam%02d/video_%04d.mp4", i%10, i))
	}

	snap := runPool(t, client, testConfig(dir), keys, 20)

	assert.Equal(t, int64(1000), snap.Success)
	assert.Equal(t, int64(1000), snap.Processed())
	for _, key := range keys {
		assert.Equal(t, 1, client.callCount(key), "key %s", key)
	}

	var partitionSum int64
	for _, stat := range snap.Partitions {
		partitionSum += stat.Count
	}
	assert.Equal(t, snap.Completed(), partitionSum)
}

func TestPoolSecondRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()

	keys := []string{"camA/x1.mp4", "camA/x2.mp4", "camB/y1.mp4"}

	first := runPool(t, client, testConfig(dir), keys, 4)
	assert.Equal(t, int64(3), first.Success)

	second := runPool(t, client, testConfig(dir), keys, 4)
	assert.Equal(t, int64(0), second.Success, "no new downloads on the second run")
	assert.Equal(t, int64(3), second.Exists)
	assert.Equal(t, 3, client.totalCalls(), "remote store contacted once per item total")
}

// Manifest of five keys, one pre-existing local file, one malformed key.
func TestPoolMixedManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "camA"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "camA", "x1.mp4"), []byte("existing"), 0o644))

	client := newFakeClient()
	keys := []string{"camA/x1.mp4", "camA/x2.mp4", "camB/y1.mp4", "bad_key.mp4", "camB/y2.mp4"}

	snap := runPool(t, client, testConfig(dir), keys, 4)

	assert.Equal(t, int64(1), snap.Exists)
	assert.Equal(t, int64(1), snap.Invalid)
	assert.Equal(t, int64(3), snap.Success)
	assert.Equal(t, 3, client.totalCalls(), "only the three missing valid items are dispatched")

	assert.Equal(t, int64(2), snap.Partitions["camA"].Count)
	assert.Equal(t, int64(2), snap.Partitions["camB"].Count)
}

func TestPoolRecordsFailuresInCheckpointStore(t *testing.T) {
	dir := t.TempDir()
	store, err := checkpoint.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	client := newFakeClient()
	client.errs["camB/y1.mp4"] = fmt.Errorf("503 service unavailable")

	tracker := progress.NewTracker(nil, 0)
	cfg := testConfig(dir)
	cfg.Retries = 2
	pool := NewPool(2, cfg, client, store, nil, tracker, zap.NewNop())

	tasks := make(chan Task, 4)
	var wg sync.WaitGroup
	pool.Start(context.Background(), tasks, &wg)
	tasks <- Task{Key: "camA/x1.mp4"}
	tasks <- Task{Key: "camB/y1.mp4"}
	close(tasks)
	wg.Wait()

	completed, err := store.Get("camA/x1.mp4")
	require.NoError(t, err)
	require.NotNil(t, completed)
	assert.Equal(t, checkpoint.StatusCompleted, completed.Status)

	failed, err := store.ListFailed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "camB/y1.mp4", failed[0].Key)
	assert.Equal(t, "503 service unavailable", failed[0].LastError)
}

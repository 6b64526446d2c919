package checkpoint

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidfetch/internal/progress"
)

// File names written under the checkpoint directory.
const (
	SummaryFile  = "download_summary.txt"
	FailuresFile = "failed_downloads.csv"
)

// SummaryWriter persists progress snapshots as a human-readable summary plus
// a tabular failure list. Each write replaces the previous files wholesale;
// writes go through a temp file and rename so a crash mid-write never leaves
// a truncated checkpoint behind.
type SummaryWriter struct {
	dir string
}

// NewSummaryWriter creates a writer rooted at dir, creating it if needed.
func NewSummaryWriter(dir string) (*SummaryWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &SummaryWriter{dir: dir}, nil
}

// WriteSnapshot implements progress.CheckpointSink.
func (w *SummaryWriter) WriteSnapshot(snap progress.Snapshot) error {
	if err := w.writeSummary(snap); err != nil {
		return err
	}
	return w.writeFailures(snap)
}

func (w *SummaryWriter) writeSummary(snap progress.Snapshot) error {
	report := progress.BuildReport(snap, time.Now())

	var b strings.Builder
	b.WriteString(report.Render())

	return WriteFileAtomic(filepath.Join(w.dir, SummaryFile), []byte(b.String()))
}

func (w *SummaryWriter) writeFailures(snap progress.Snapshot) error {
	var b strings.Builder
	cw := csv.NewWriter(&b)

	if err := cw.Write([]string{"video", "error"}); err != nil {
		return err
	}
	for _, f := range snap.Failures {
		if err := cw.Write([]string{f.Key, f.Reason}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	return WriteFileAtomic(filepath.Join(w.dir, FailuresFile), []byte(b.String()))
}

// WriteFileAtomic replaces path with data via temp file and rename.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

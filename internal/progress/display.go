package progress

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Display periodically renders tracker state to the console while the
// worker pool runs.
type Display struct {
	tracker  *Tracker
	interval time.Duration
	out      io.Writer
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewDisplay creates a display updating every interval.
func NewDisplay(tracker *Tracker, interval time.Duration) *Display {
	return &Display{
		tracker:  tracker,
		interval: interval,
		out:      os.Stdout,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start starts the display loop.
func (d *Display) Start() {
	go d.loop()
}

// Stop stops the display and prints a final progress line.
func (d *Display) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

func (d *Display) loop() {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.render(false)
		case <-d.stopCh:
			d.render(true)
			return
		}
	}
}

func (d *Display) render(final bool) {
	snap := d.tracker.Snapshot()

	elapsed := time.Since(snap.StartTime)
	var rate float64
	if elapsed.Hours() > 0 {
		rate = float64(snap.Completed()) / elapsed.Hours()
	}

	var percent float64
	if snap.Total > 0 {
		percent = float64(snap.Processed()) / float64(snap.Total) * 100
	}

	end := "\r"
	if final {
		end = "\n"
	}
	fmt.Fprintf(d.out, "%.1f%% | success %d | exists %d | failed %d | %s | %.0f/hr    %s",
		percent, snap.Success, snap.Exists, snap.Failed,
		FormatBytes(snap.TotalBytes), rate, end)
}

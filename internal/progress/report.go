package progress

import (
	"fmt"
	"strings"
	"time"
)

// Report is the derived end-of-run summary.
type Report struct {
	Snapshot     Snapshot
	Elapsed      time.Duration
	ItemsPerHour float64
	BytesPerHour float64
}

// BuildReport derives throughput figures from a closing snapshot.
func BuildReport(snap Snapshot, now time.Time) Report {
	elapsed := now.Sub(snap.StartTime)
	hours := elapsed.Hours()

	r := Report{Snapshot: snap, Elapsed: elapsed}
	if hours > 0 {
		r.ItemsPerHour = float64(snap.Completed()) / hours
		r.BytesPerHour = float64(snap.TotalBytes) / hours
	}
	return r
}

// Render formats the report for the console and the summary checkpoint.
func (r Report) Render() string {
	var b strings.Builder
	snap := r.Snapshot

	fmt.Fprintf(&b, "Transfer summary\n")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("=", 50))
	fmt.Fprintf(&b, "Success: %d\n", snap.Success)
	fmt.Fprintf(&b, "Exists:  %d\n", snap.Exists)
	fmt.Fprintf(&b, "Failed:  %d\n", snap.Failed)
	fmt.Fprintf(&b, "Invalid: %d\n", snap.Invalid)
	fmt.Fprintf(&b, "Total:   %s\n", FormatBytes(snap.TotalBytes))
	fmt.Fprintf(&b, "Elapsed: %s\n", FormatDuration(r.Elapsed))
	fmt.Fprintf(&b, "Rate:    %.0f items/hour, %s/hour\n", r.ItemsPerHour, FormatBytes(int64(r.BytesPerHour)))

	if len(snap.Partitions) > 0 {
		fmt.Fprintf(&b, "\nPer-camera stats:\n")
		for _, label := range snap.PartitionLabels() {
			stat := snap.Partitions[label]
			fmt.Fprintf(&b, "  %s: %d videos, %s\n", label, stat.Count, FormatBytes(stat.Bytes))
		}
	}

	return b.String()
}

// FormatBytes formats bytes in human readable format
func FormatBytes(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	case bytes < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1024*1024*1024))
	}
}

// FormatDuration formats duration in human readable format
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

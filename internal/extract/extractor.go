// Package extract wraps the GPU feature-extraction collaborator. The model
// itself lives outside this process; we invoke it once per video and parse
// its output.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"

	"vidfetch/internal/features"
)

// Extractor produces one feature record for a local video file. The GPU is
// a single shared resource, so implementations are never invoked
// concurrently with themselves.
type Extractor interface {
	Extract(ctx context.Context, videoPath string) (features.Record, error)
}

// CommandExtractor runs a configured model command per video. The command
// receives the video path as its final argument and must print one JSON
// object with the feature fields to stdout.
type CommandExtractor struct {
	command string
	args    []string
}

// NewCommandExtractor creates an extractor wrapping the given command.
func NewCommandExtractor(command string, args []string) *CommandExtractor {
	return &CommandExtractor{command: command, args: args}
}

func (e *CommandExtractor) Extract(ctx context.Context, videoPath string) (features.Record, error) {
	args := append(append([]string(nil), e.args...), videoPath)
	cmd := exec.CommandContext(ctx, e.command, args...)

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return features.Record{}, fmt.Errorf("extractor failed: %v: %s", err, exitErr.Stderr)
		}
		return features.Record{}, fmt.Errorf("extractor failed: %w", err)
	}

	var rec features.Record
	if err := json.Unmarshal(out, &rec); err != nil {
		return features.Record{}, fmt.Errorf("parse extractor output: %w", err)
	}

	rec.Video = filepath.Base(videoPath)
	rec.Camera = filepath.Base(filepath.Dir(videoPath))
	return rec, nil
}

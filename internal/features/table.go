// Package features holds the accumulated feature table produced by the
// extraction pass and its CSV checkpoint.
package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"vidfetch/internal/checkpoint"
)

// Record is one row of extracted features for a single video.
type Record struct {
	Video          string  `json:"video"`
	Camera         string  `json:"camera"`
	FramesSampled  int     `json:"frames_sampled"`
	Detections     int     `json:"detections"`
	MeanConfidence float64 `json:"mean_confidence"`
	VehicleDensity float64 `json:"vehicle_density"`
}

var csvHeader = []string{"video", "camera", "frames_sampled", "detections", "mean_confidence", "vehicle_density"}

// Table accumulates feature records across batches. Rows keep insertion
// order; the index by video filename backs ProcessedSet lookups.
type Table struct {
	rows  []Record
	index map[string]int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Append adds one record, replacing any previous row for the same video.
func (t *Table) Append(rec Record) {
	if i, ok := t.index[rec.Video]; ok {
		t.rows[i] = rec
		return
	}
	t.index[rec.Video] = len(t.rows)
	t.rows = append(t.rows, rec)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the rows in insertion order.
func (t *Table) Rows() []Record {
	return t.rows
}

// ProcessedSet returns the video filenames already present in the table.
// Used to filter the remaining work list before batching.
func (t *Table) ProcessedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(t.rows))
	for _, rec := range t.rows {
		set[rec.Video] = struct{}{}
	}
	return set
}

// Load reads a feature table from a prior checkpoint. A missing file yields
// an empty table; a fresh run starts from nothing.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open feature checkpoint: %w", err)
	}
	defer f.Close()

	table, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("read feature checkpoint %s: %w", path, err)
	}
	return table, nil
}

func read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return NewTable(), nil
	}
	if err != nil {
		return nil, err
	}
	if strings.Join(header, ",") != strings.Join(csvHeader, ",") {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	table := NewTable()
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rec, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		table.Append(rec)
	}

	return table, nil
}

func parseRow(row []string) (Record, error) {
	if len(row) != len(csvHeader) {
		return Record{}, fmt.Errorf("row has %d fields, want %d", len(row), len(csvHeader))
	}

	frames, err := strconv.Atoi(row[2])
	if err != nil {
		return Record{}, fmt.Errorf("frames_sampled: %w", err)
	}
	detections, err := strconv.Atoi(row[3])
	if err != nil {
		return Record{}, fmt.Errorf("detections: %w", err)
	}
	conf, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return Record{}, fmt.Errorf("mean_confidence: %w", err)
	}
	density, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return Record{}, fmt.Errorf("vehicle_density: %w", err)
	}

	return Record{
		Video:          row[0],
		Camera:         row[1],
		FramesSampled:  frames,
		Detections:     detections,
		MeanConfidence: conf,
		VehicleDensity: density,
	}, nil
}

// Save rewrites the checkpoint file wholesale via temp file and rename.
func (t *Table) Save(path string) error {
	var b strings.Builder
	cw := csv.NewWriter(&b)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range t.rows {
		row := []string{
			rec.Video,
			rec.Camera,
			strconv.Itoa(rec.FramesSampled),
			strconv.Itoa(rec.Detections),
			strconv.FormatFloat(rec.MeanConfidence, 'f', -1, 64),
			strconv.FormatFloat(rec.VehicleDensity, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	return checkpoint.WriteFileAtomic(path, []byte(b.String()))
}

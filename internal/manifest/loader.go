package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Load reads the manifest CSV at path and returns the deduplicated list of
// item keys from the named column, preserving first-seen order. A manifest
// that cannot be opened or is missing the key column is a fatal error for
// the whole run.
func Load(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	keys, err := Read(f, column)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return keys, nil
}

// Read parses manifest rows from r. The first row must be a header
// containing the key column.
func Read(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := -1
	for i, name := range header {
		if name == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", column, header)
	}

	var keys []string
	seen := make(map[string]struct{})
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if col >= len(row) {
			continue
		}
		key := row[col]
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	return keys, nil
}

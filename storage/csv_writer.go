package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"airbnb-etl/models"
)

// CSVWriter writes a preview of a cleaned table to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path.
// Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}
	return &CSVWriter{file: f, writer: csv.NewWriter(f)}, nil
}

// WriteSample writes the header and the first limit rows of t. A negative
// limit writes every row.
func (c *CSVWriter) WriteSample(t *models.Table, limit int) (int, error) {
	if err := c.writer.Write(t.Columns); err != nil {
		return 0, fmt.Errorf("csv: write header: %w", err)
	}

	rows := t.Rows
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	line := make([]string, len(t.Columns))
	for _, r := range rows {
		for i, col := range t.Columns {
			line[i] = cellString(r[col])
		}
		if err := c.writer.Write(line); err != nil {
			return 0, fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return len(rows), c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// WriteSampleFile is a convenience wrapper that writes one sample file.
func WriteSampleFile(path string, t *models.Table, limit int) (int, error) {
	w, err := NewCSVWriter(path)
	if err != nil {
		return 0, err
	}
	n, err := w.WriteSample(t, limit)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return n, err
}

package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"airbnb-etl/models"
)

var ErrBadStaging = errors.New("malformed staging file")

// stagingHeader is the first line of a staging file.
type stagingHeader struct {
	Table   string            `json:"table"`
	Columns []string          `json:"columns"`
	Kinds   map[string]string `json:"kinds"`
}

// WriteStaged saves t as JSON lines: a header followed by one array per row
// in column order. It is the handoff format between the stage binaries.
func WriteStaged(path string, t *models.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("staging: create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("staging: create %q: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)

	kinds := make(map[string]string, len(t.Columns))
	for c, k := range InferKinds(t) {
		kinds[c] = k.String()
	}
	if err := enc.Encode(stagingHeader{Table: t.Name, Columns: t.Columns, Kinds: kinds}); err != nil {
		return fmt.Errorf("staging: header: %w", err)
	}

	row := make([]any, len(t.Columns))
	for i, r := range t.Rows {
		for j, c := range t.Columns {
			row[j] = stagedValue(r[c])
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("staging: row %d: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("staging: flush %q: %w", path, err)
	}
	return f.Close()
}

func stagedValue(v any) any {
	switch x := v.(type) {
	case []any, []string, map[string]any:
		return x
	}
	return cellValue(v)
}

// ReadStaged loads a table written by WriteStaged. Numbers come back as
// int64 or float64 following the column kind recorded in the header.
func ReadStaged(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("staging: open %q: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	dec.UseNumber()

	var h stagingHeader
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %s: header: %v", ErrBadStaging, path, err)
	}

	t := models.NewTable(h.Table, h.Columns, nil)
	for line := 2; ; line++ {
		var raw []any
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrBadStaging, path, line, err)
		}
		if len(raw) != len(h.Columns) {
			return nil, fmt.Errorf("%w: %s line %d: %d values for %d columns",
				ErrBadStaging, path, line, len(raw), len(h.Columns))
		}

		r := make(models.Record, len(h.Columns))
		for i, c := range h.Columns {
			r[c] = fromJSON(raw[i], parseKind(h.Kinds[c]))
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

func fromJSON(v any, kind ColumnKind) any {
	switch x := v.(type) {
	case json.Number:
		if kind != KindReal {
			if n, err := x.Int64(); err == nil {
				return n
			}
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		for i := range x {
			x[i] = fromJSON(x[i], KindText)
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = fromJSON(x[k], KindText)
		}
		return x
	}
	return v
}

package models

import (
	"fmt"
	"math"
	"strings"
)

// Record is a single row keyed by column name.
type Record map[string]any

// Table is an ordered set of columns over a slice of records, the in-memory
// shape every pipeline stage passes around.
type Table struct {
	Name    string
	Columns []string
	Rows    []Record
}

// Dataset bundles the two tables the pipeline moves between stages.
type Dataset struct {
	Listings *Table
	Reviews  *Table
}

// NewTable builds a table whose columns are the union of the row keys, in the
// order given by columns first and then in first-seen order.
func NewTable(name string, columns []string, rows []Record) *Table {
	t := &Table{Name: name, Rows: rows}
	for _, c := range columns {
		t.AddColumn(c)
	}
	for _, r := range rows {
		for k := range r {
			if !t.HasColumn(k) {
				t.Columns = append(t.Columns, k)
			}
		}
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends name to the column list unless it is already present.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Clone returns a copy whose rows can be mutated without touching t.
func (t *Table) Clone() *Table {
	out := &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Record, len(t.Rows)),
	}
	for i, r := range t.Rows {
		cp := make(Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Filter returns a table holding only the rows for which keep is true.
// Rows are shared with t, not copied.
func (t *Table) Filter(keep func(Record) bool) *Table {
	out := &Table{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([]Record, 0, len(t.Rows))
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// NullCounts reports how many rows hold a null value for each column.
// Columns without nulls are omitted.
func (t *Table) NullCounts() map[string]int {
	counts := make(map[string]int)
	for _, c := range t.Columns {
		for _, r := range t.Rows {
			if IsNull(r[c]) {
				counts[c]++
			}
		}
	}
	return counts
}

// IsNull reports whether v counts as a missing cell: nil, NaN or a
// whitespace-only string.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// Key renders the values of cols in r as a single comparable string.
func Key(r Record, cols []string) string {
	var b strings.Builder
	for i, c := range cols {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		fmt.Fprintf(&b, "%T:%v", r[c], r[c])
	}
	return b.String()
}

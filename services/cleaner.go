package services

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"airbnb-etl/config"
	"airbnb-etl/models"
	"airbnb-etl/utils"
)

// Cleaner applies the row-level remediation rules: null handling and
// duplicate removal.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// NullResult summarises a null-remediation pass.
type NullResult struct {
	Dropped map[string]int // rows dropped per drop-policy column
	Filled  map[string]int // cells filled per fill-policy column
}

// RemediateNulls drops rows with nulls in drop-policy columns, then fills
// the remaining policy columns. Columns absent from the table are skipped.
func (c *Cleaner) RemediateNulls(t *models.Table, policy map[string]config.NullRule) (*models.Table, NullResult) {
	res := NullResult{Dropped: map[string]int{}, Filled: map[string]int{}}
	before := t.Len()

	counts := t.NullCounts()
	if len(counts) > 0 {
		c.logger.Info("[cleaner] %s: %d columns with null values", t.Name, len(counts))
		for _, col := range t.Columns {
			if n, ok := counts[col]; ok {
				c.logger.Info("[cleaner]   - %s: %d nulls (%.2f%%)", col, n, pct(n, before))
			}
		}
	}

	cols := make([]string, 0, len(policy))
	for col := range policy {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	out := t
	for _, col := range cols {
		rule := policy[col]
		if rule.Action != config.NullDrop {
			continue
		}
		if !t.HasColumn(col) {
			c.logger.Warn("[cleaner] %s: drop policy column '%s' not found", t.Name, col)
			continue
		}
		n := counts[col]
		if n == 0 {
			continue
		}
		kept := out.Filter(func(r models.Record) bool { return !models.IsNull(r[col]) })
		res.Dropped[col] = out.Len() - kept.Len()
		if res.Dropped[col] > 0 {
			c.logger.Warn("[cleaner] %s: dropped %d rows with null '%s'", t.Name, res.Dropped[col], col)
		}
		out = kept
	}

	for _, col := range cols {
		rule := policy[col]
		if rule.Action == config.NullDrop || !out.HasColumn(col) {
			continue
		}
		fill, ok := c.fillValue(out, col, rule)
		if !ok {
			continue
		}
		for _, r := range out.Rows {
			if models.IsNull(r[col]) {
				r[col] = fill
				res.Filled[col]++
			}
		}
		if res.Filled[col] > 0 {
			c.logger.Info("[cleaner]   - %s: filled %d nulls with %v (%s)", col, res.Filled[col], fill, rule)
		}
	}

	c.logger.Transformation("Null value remediation ("+t.Name+")", before, out.Len(), describePolicy(policy, cols))
	return out, res
}

func (c *Cleaner) fillValue(t *models.Table, col string, rule config.NullRule) (any, bool) {
	switch rule.Action {
	case config.NullZero:
		return 0.0, true
	case config.NullFill:
		return fillLiteral(t, col, rule.Value), true
	case config.NullMedian:
		vals := numericValues(t, col)
		if len(vals) == 0 {
			c.logger.Warn("[cleaner] %s: no numeric values in '%s' to take a median from", t.Name, col)
			return nil, false
		}
		return Quantile(vals, 0.5), true
	case config.NullMode:
		if m, ok := modeValue(t, col); ok {
			return m, true
		}
		return "Unknown", true
	}
	return nil, false
}

// fillLiteral types a fill:<value> literal after the column it fills: on a
// column holding only numbers a numeric literal stays numeric, otherwise it
// is kept as text.
func fillLiteral(t *models.Table, col, value string) any {
	seen, ints := false, true
	for _, r := range t.Rows {
		switch r[col].(type) {
		case int64, int:
			seen = true
		case float64:
			seen, ints = true, false
		default:
			if !models.IsNull(r[col]) {
				return value
			}
		}
	}
	if !seen {
		return value
	}
	v := strings.TrimSpace(value)
	if ints {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return value
}

// RemoveDuplicates keeps the first row for each key. When any key column is
// missing the whole row is the key. Applying it twice changes nothing.
func (c *Cleaner) RemoveDuplicates(t *models.Table, keyCols []string) *models.Table {
	before := t.Len()

	cols := keyCols
	for _, k := range keyCols {
		if !t.HasColumn(k) {
			cols = nil
			break
		}
	}
	basis := "columns " + strings.Join(cols, ",")
	if len(cols) == 0 {
		cols = t.Columns
		basis = "whole row"
	}

	seen := make(map[string]struct{}, before)
	out := t.Filter(func(r models.Record) bool {
		k := models.Key(r, cols)
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})

	removed := before - out.Len()
	if removed > 0 {
		c.logger.Debug("[cleaner] %s: %d duplicates on %s", t.Name, removed, basis)
	}
	c.logger.Transformation("Duplicate removal ("+t.Name+")", before, out.Len(),
		fmt.Sprintf("%d duplicate records removed (key: %s)", removed, basis))
	return out
}

func describePolicy(policy map[string]config.NullRule, cols []string) string {
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, col+"="+policy[col].String())
	}
	return strings.Join(parts, ", ")
}

func numericValues(t *models.Table, col string) []float64 {
	vals := make([]float64, 0, t.Len())
	for _, r := range t.Rows {
		if f, ok := toFloat(r[col]); ok {
			vals = append(vals, f)
		}
	}
	return vals
}

// modeValue returns the most frequent non-null value, earliest on ties.
func modeValue(t *models.Table, col string) (any, bool) {
	counts := make(map[string]int)
	first := make(map[string]any)
	var order []string
	for _, r := range t.Rows {
		v := r[col]
		if models.IsNull(v) {
			continue
		}
		k := fmt.Sprint(v)
		if _, ok := first[k]; !ok {
			first[k] = v
			order = append(order, k)
		}
		counts[k]++
	}
	best := ""
	for _, k := range order {
		if best == "" || counts[k] > counts[best] {
			best = k
		}
	}
	if best == "" {
		return nil, false
	}
	return first[best], true
}

func toFloat(v any) (float64, bool) {
	if models.IsNull(v) {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

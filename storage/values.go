package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"airbnb-etl/models"
)

// ColumnKind is the storage affinity inferred for a column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInteger
	KindReal
)

func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	}
	return "text"
}

func parseKind(s string) ColumnKind {
	switch s {
	case "integer":
		return KindInteger
	case "real":
		return KindReal
	}
	return KindText
}

// InferKinds picks an affinity per column from the non-null cells: all
// integers (or booleans) is INTEGER, any mix with floats is REAL, anything
// else is TEXT.
func InferKinds(t *models.Table) map[string]ColumnKind {
	kinds := make(map[string]ColumnKind, len(t.Columns))
	for _, c := range t.Columns {
		seen, hasFloat, other := false, false, false
		for _, r := range t.Rows {
			switch v := r[c].(type) {
			case nil:
			case int64, int, int32, bool:
				seen = true
			case float64:
				if !math.IsNaN(v) {
					seen, hasFloat = true, true
				}
			default:
				other = true
			}
			if other {
				break
			}
		}
		switch {
		case other || !seen:
			kinds[c] = KindText
		case hasFloat:
			kinds[c] = KindReal
		default:
			kinds[c] = KindInteger
		}
	}
	return kinds
}

// cellValue converts a cell into something database/sql and the sheet
// writers accept: scalars pass through, nested values become JSON text.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case string, int64:
		return x
	case []any, []string, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

// cellString renders a cell for text outputs such as CSV.
func cellString(v any) string {
	switch x := cellValue(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// withCreatedAt returns the table's columns plus created_at when missing.
func withCreatedAt(t *models.Table) []string {
	cols := append([]string(nil), t.Columns...)
	if !t.HasColumn(models.ColCreatedAt) {
		cols = append(cols, models.ColCreatedAt)
	}
	return cols
}

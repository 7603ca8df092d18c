package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"airbnb-etl/models"
)

// ISODate is the layout dates are normalised to.
const ISODate = "2006-01-02"

var ErrMalformedDate = errors.New("malformed date")

// ParseDate accepts a time.Time or any date string the permissive parser
// understands. Strings without a zone are read as UTC.
func ParseDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, fmt.Errorf("%w: empty", ErrMalformedDate)
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrMalformedDate, v)
}

// NormaliseDates rewrites each present date column as YYYY-MM-DD strings.
// Cells that cannot be parsed become null. It returns the failures per column.
func (t *Transformer) NormaliseDates(tbl *models.Table, cols []string) map[string]int {
	failures := make(map[string]int)
	var converted []string

	for _, col := range cols {
		if !tbl.HasColumn(col) {
			t.logger.Warn("[dates] %s: date column '%s' not found, skipping", tbl.Name, col)
			continue
		}
		for _, r := range tbl.Rows {
			v := r[col]
			if models.IsNull(v) {
				r[col] = nil
				continue
			}
			parsed, err := ParseDate(v)
			if err != nil {
				r[col] = nil
				failures[col]++
				continue
			}
			r[col] = parsed.Format(ISODate)
		}
		converted = append(converted, col)
		t.logger.Info("[dates]   - %s.%s converted to ISO format", tbl.Name, col)
		if n := failures[col]; n > 0 {
			t.logger.Warn("[dates] %s.%s: %d dates could not be parsed and were set to null", tbl.Name, col, n)
			t.metrics.ParseFailures(tbl.Name, col, "malformed", n)
		}
	}

	t.logger.Transformation("Date conversion to ISO-8601 ("+tbl.Name+")", tbl.Len(), tbl.Len(),
		fmt.Sprintf("columns: %s", strings.Join(converted, ", ")))
	return failures
}

// DeriveDateParts adds <prefix>year, month, day, quarter and day_of_week
// (Monday = 0) computed from an ISO date column.
func (t *Transformer) DeriveDateParts(tbl *models.Table, col, prefix string) {
	if !tbl.HasColumn(col) {
		t.logger.Warn("[dates] %s: column '%s' not found, no temporal fields derived", tbl.Name, col)
		return
	}

	names := []string{prefix + "year", prefix + "month", prefix + "day", prefix + "quarter", prefix + "day_of_week"}
	for _, n := range names {
		tbl.AddColumn(n)
	}

	var minYear, maxYear int64
	months := make(map[int64]struct{})
	for _, r := range tbl.Rows {
		d, ok := isoDate(r[col])
		if !ok {
			for _, n := range names {
				r[n] = nil
			}
			continue
		}
		year, month := int64(d.Year()), int64(d.Month())
		r[names[0]] = year
		r[names[1]] = month
		r[names[2]] = int64(d.Day())
		r[names[3]] = (month-1)/3 + 1
		r[names[4]] = int64((d.Weekday() + 6) % 7)

		if minYear == 0 || year < minYear {
			minYear = year
		}
		if year > maxYear {
			maxYear = year
		}
		months[month] = struct{}{}
	}

	t.logger.Info("[dates] %s: temporal fields created: %s", tbl.Name, strings.Join(names, ", "))
	details := "fields: " + strings.Join(names, ", ")
	if maxYear > 0 {
		t.logger.Info("[dates]   - year range: %d - %d", minYear, maxYear)
		t.logger.Info("[dates]   - distinct months: %d", len(months))
		details += fmt.Sprintf("; years %d-%d", minYear, maxYear)
	}
	t.logger.Transformation("Temporal field derivation ("+tbl.Name+")", tbl.Len(), tbl.Len(), details)
}

func isoDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		d, err := time.Parse(ISODate, x)
		return d, err == nil
	case time.Time:
		return x, true
	}
	return time.Time{}, false
}

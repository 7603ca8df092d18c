package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"airbnb-etl/models"
)

var ErrMalformedAmenities = errors.New("malformed amenities")

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// ParseAmenities reads an amenities cell. It accepts a decoded array, a JSON
// list string, a Python-style list string and a brace list such as
// {TV,"Air conditioning"}. Entries are trimmed and de-duplicated.
func ParseAmenities(v any) ([]string, error) {
	var items []string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []string:
		items = x
	case []any:
		for _, e := range x {
			if e != nil {
				items = append(items, fmt.Sprint(e))
			}
		}
	case string:
		parsed, err := parseAmenityString(x)
		if err != nil {
			return nil, err
		}
		items = parsed
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrMalformedAmenities, v)
	}
	return uniqueTrimmed(items), nil
}

func parseAmenityString(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}

	if strings.HasPrefix(s, "[") {
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out, nil
		}
		// single-quoted list literal
		if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &out); err == nil {
			return out, nil
		}
		return nil, fmt.Errorf("%w: %.40q", ErrMalformedAmenities, s)
	}

	if strings.HasPrefix(s, "{") {
		if !strings.HasSuffix(s, "}") {
			return nil, fmt.Errorf("%w: unterminated brace list", ErrMalformedAmenities)
		}
		s = s[1 : len(s)-1]
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(s))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	rec, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAmenities, err)
	}
	return rec, nil
}

func uniqueTrimmed(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// AmenitySlug turns an amenity name into a column-safe identifier. Names
// without ASCII letters or digits yield "".
func AmenitySlug(name string) string {
	s := slugRegexp.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}

// TopAmenities returns the n most frequent amenities, breaking ties by
// first appearance.
func TopAmenities(lists [][]string, n int) []models.AmenityCount {
	counts := make(map[string]int)
	var order []string
	for _, l := range lists {
		for _, a := range l {
			if _, ok := counts[a]; !ok {
				order = append(order, a)
			}
			counts[a]++
		}
	}

	out := make([]models.AmenityCount, 0, len(order))
	for _, a := range order {
		out = append(out, models.AmenityCount{Name: a, Count: counts[a]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ExpandAmenities adds a has_<slug> 0/1 column for each of the top n
// amenities plus an amenities_count column, and rewrites the source cell as
// a JSON list. It returns the amenities that became columns.
func (t *Transformer) ExpandAmenities(tbl *models.Table, col string, n int) []models.AmenityCount {
	if !tbl.HasColumn(col) {
		t.logger.Warn("[amenities] %s: column '%s' not found, skipping expansion", tbl.Name, col)
		return nil
	}
	t.logger.Info("[amenities] Expanding '%s' - top %d", col, n)

	lists := make([][]string, len(tbl.Rows))
	failures := 0
	for i, r := range tbl.Rows {
		l, err := ParseAmenities(r[col])
		if err != nil {
			failures++
			t.logger.Debug("[amenities] row %d: %v", i, err)
		}
		lists[i] = l
	}
	if failures > 0 {
		t.logger.Warn("[amenities] %s: %d amenity lists could not be parsed", tbl.Name, failures)
		t.metrics.ParseFailures(tbl.Name, col, "malformed", failures)
	}

	top := TopAmenities(lists, n)
	if len(top) == 0 {
		t.logger.Warn("[amenities] %s: no amenities could be extracted", tbl.Name)
		return nil
	}

	t.logger.Info("[amenities] Top %d amenities:", len(top))
	colNames := make([]string, len(top))
	used := make(map[string]int)
	for i, a := range top {
		t.logger.Info("[amenities]   %d. %s: %d listings", i+1, a.Name, a.Count)
		slug := AmenitySlug(a.Name)
		if slug == "" {
			slug = fmt.Sprintf("amenity_%d", i+1)
		}
		name := "has_" + slug
		if used[name]++; used[name] > 1 {
			name = fmt.Sprintf("%s_%d", name, used[name])
		}
		colNames[i] = name
		tbl.AddColumn(name)
	}
	tbl.AddColumn(models.ColAmenitiesCount)

	for i, r := range tbl.Rows {
		have := make(map[string]struct{}, len(lists[i]))
		for _, a := range lists[i] {
			have[a] = struct{}{}
		}
		for j, a := range top {
			if _, ok := have[a.Name]; ok {
				r[colNames[j]] = int64(1)
			} else {
				r[colNames[j]] = int64(0)
			}
		}
		r[models.ColAmenitiesCount] = int64(len(lists[i]))
		if lists[i] != nil {
			b, _ := json.Marshal(lists[i])
			r[col] = string(b)
		}
	}

	t.logger.Transformation("Amenities expansion ("+tbl.Name+")", tbl.Len(), tbl.Len(),
		fmt.Sprintf("%d binary columns created", len(colNames)))
	return top
}

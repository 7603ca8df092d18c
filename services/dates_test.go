package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"airbnb-etl/config"
	"airbnb-etl/models"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  any
		want string
	}{
		{"2023-03-15", "2023-03-15"},
		{"2023-03-15 10:22:01", "2023-03-15"},
		{"2023-03-15T23:59:00Z", "2023-03-15"},
		{"03/15/2023", "2023-03-15"},
		{"March 15, 2023", "2023-03-15"},
		{time.Date(2021, 7, 4, 12, 0, 0, 0, time.UTC), "2021-07-04"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.raw)
		if err != nil {
			t.Errorf("ParseDate(%v) error: %v", tt.raw, err)
			continue
		}
		if got.Format(ISODate) != tt.want {
			t.Errorf("ParseDate(%v) = %s; want %s", tt.raw, got.Format(ISODate), tt.want)
		}
	}

	for _, bad := range []any{"not a date", "", 42} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrMalformedDate) {
			t.Errorf("ParseDate(%#v) error = %v; want ErrMalformedDate", bad, err)
		}
	}
}

func TestNormaliseDates(t *testing.T) {
	logger, buf := newTestLogger()
	tr := NewTransformer(logger, config.DefaultRules(), nil)

	tbl := models.NewTable("listings", []string{"last_scraped", "host_since"}, []models.Record{
		{"last_scraped": "2023-03-15 08:00:00", "host_since": "2015-06-01"},
		{"last_scraped": "garbage", "host_since": nil},
		{"last_scraped": "2023-03-17", "host_since": "June 2, 2016"},
	})

	failures := tr.NormaliseDates(tbl, []string{"last_scraped", "host_since", "first_review"})

	if failures["last_scraped"] != 1 {
		t.Errorf("failures: got %v", failures)
	}
	if tbl.Rows[0]["last_scraped"] != "2023-03-15" {
		t.Errorf("got %v", tbl.Rows[0]["last_scraped"])
	}
	if tbl.Rows[1]["last_scraped"] != nil {
		t.Errorf("unparseable date should be null, got %v", tbl.Rows[1]["last_scraped"])
	}
	if tbl.Rows[2]["host_since"] != "2016-06-02" {
		t.Errorf("got %v", tbl.Rows[2]["host_since"])
	}
	if !strings.Contains(buf.String(), "date column 'first_review' not found") {
		t.Errorf("missing column should be logged")
	}
}

func TestDeriveDateParts(t *testing.T) {
	logger, _ := newTestLogger()
	tr := NewTransformer(logger, config.DefaultRules(), nil)

	tbl := models.NewTable("reviews", []string{"date"}, []models.Record{
		{"date": "2023-03-15"}, // Wednesday
		{"date": "2020-12-27"}, // Sunday
		{"date": nil},
	})
	tr.DeriveDateParts(tbl, "date", "review_")

	for _, c := range []string{"review_year", "review_month", "review_day", "review_quarter", "review_day_of_week"} {
		if !tbl.HasColumn(c) {
			t.Errorf("missing derived column %s", c)
		}
	}

	r := tbl.Rows[0]
	if r["review_year"] != int64(2023) || r["review_month"] != int64(3) || r["review_day"] != int64(15) {
		t.Errorf("derived parts: %v", r)
	}
	if r["review_quarter"] != int64(1) {
		t.Errorf("quarter: got %v, want 1", r["review_quarter"])
	}
	if r["review_day_of_week"] != int64(2) {
		t.Errorf("day_of_week: got %v, want 2 (Wednesday)", r["review_day_of_week"])
	}
	if tbl.Rows[1]["review_day_of_week"] != int64(6) || tbl.Rows[1]["review_quarter"] != int64(4) {
		t.Errorf("sunday in Q4: %v", tbl.Rows[1])
	}
	if tbl.Rows[2]["review_year"] != nil {
		t.Errorf("null date should yield null parts")
	}
}

package services

import (
	"errors"
	"reflect"
	"testing"

	"airbnb-etl/config"
	"airbnb-etl/models"
)

func TestParseAmenities(t *testing.T) {
	tests := []struct {
		raw  any
		want []string
	}{
		{`["Wifi", "TV", "Wifi"]`, []string{"Wifi", "TV"}},
		{`['Wifi', 'Kitchen']`, []string{"Wifi", "Kitchen"}},
		{`{TV,"Air conditioning",Wifi}`, []string{"TV", "Air conditioning", "Wifi"}},
		{"Wifi, Pool", []string{"Wifi", "Pool"}},
		{[]any{"Wifi", nil, " TV "}, []string{"Wifi", "TV"}},
		{[]string{"Wifi"}, []string{"Wifi"}},
		{"{}", nil},
		{nil, nil},
	}
	for _, tt := range tests {
		got, err := ParseAmenities(tt.raw)
		if err != nil {
			t.Errorf("ParseAmenities(%#v) error: %v", tt.raw, err)
			continue
		}
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseAmenities(%#v) = %q; want %q", tt.raw, got, tt.want)
		}
	}

	for _, bad := range []any{`["Wifi"`, `{Wifi`, 12} {
		if _, err := ParseAmenities(bad); !errors.Is(err, ErrMalformedAmenities) {
			t.Errorf("ParseAmenities(%#v) error = %v; want ErrMalformedAmenities", bad, err)
		}
	}
}

func TestAmenitySlug(t *testing.T) {
	tests := map[string]string{
		"Wifi":                  "wifi",
		"Air conditioning":      "air_conditioning",
		"Free parking (street)": "free_parking_street",
		"  Hot-tub!  ":          "hot_tub",
		"洗衣机":                   "",
	}
	for in, want := range tests {
		if got := AmenitySlug(in); got != want {
			t.Errorf("AmenitySlug(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestTopAmenitiesTieBreak(t *testing.T) {
	lists := [][]string{
		{"TV", "Wifi"},
		{"Kitchen", "Wifi"},
		{"Pool"},
	}
	got := TopAmenities(lists, 3)
	want := []models.AmenityCount{{Name: "Wifi", Count: 2}, {Name: "TV", Count: 1}, {Name: "Kitchen", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopAmenities = %v; want %v", got, want)
	}
}

func TestExpandAmenities(t *testing.T) {
	logger, _ := newTestLogger()
	tr := NewTransformer(logger, config.DefaultRules(), nil)

	tbl := models.NewTable("listings", []string{"id", "amenities"}, []models.Record{
		{"id": int64(1), "amenities": `["Wifi", "TV"]`},
		{"id": int64(2), "amenities": `{Wifi,Kitchen}`},
		{"id": int64(3), "amenities": nil},
	})

	top := tr.ExpandAmenities(tbl, "amenities", 2)
	if len(top) != 2 || top[0].Name != "Wifi" {
		t.Fatalf("top: %v", top)
	}
	for _, c := range []string{"has_wifi", "has_tv", "amenities_count"} {
		if !tbl.HasColumn(c) {
			t.Errorf("missing column %s", c)
		}
	}
	if tbl.HasColumn("has_kitchen") {
		t.Errorf("only the top 2 amenities should become columns")
	}

	if tbl.Rows[1]["has_wifi"] != int64(1) || tbl.Rows[1]["has_tv"] != int64(0) {
		t.Errorf("row 2 flags: %v", tbl.Rows[1])
	}
	if tbl.Rows[2]["has_wifi"] != int64(0) || tbl.Rows[2]["amenities_count"] != int64(0) {
		t.Errorf("row 3 flags: %v", tbl.Rows[2])
	}
	if tbl.Rows[1]["amenities"] != `["Wifi","Kitchen"]` {
		t.Errorf("amenities cell should be normalised JSON, got %v", tbl.Rows[1]["amenities"])
	}
}

func TestExpandAmenitiesNonASCIINames(t *testing.T) {
	logger, _ := newTestLogger()
	tr := NewTransformer(logger, config.DefaultRules(), nil)

	tbl := models.NewTable("listings", []string{"id", "amenities"}, []models.Record{
		{"id": int64(1), "amenities": `["Wifi", "洗衣机", "Café"]`},
		{"id": int64(2), "amenities": `["Wifi"]`},
	})

	tr.ExpandAmenities(tbl, "amenities", 3)
	for _, c := range []string{"has_wifi", "has_amenity_2", "has_caf"} {
		if !tbl.HasColumn(c) {
			t.Errorf("missing column %s in %v", c, tbl.Columns)
		}
	}
	if tbl.HasColumn("has_") {
		t.Errorf("empty slug produced a bare has_ column")
	}
	if tbl.Rows[0]["has_amenity_2"] != int64(1) || tbl.Rows[1]["has_amenity_2"] != int64(0) {
		t.Errorf("flags: %v", tbl.Rows)
	}
}

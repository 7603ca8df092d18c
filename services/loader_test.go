package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"airbnb-etl/config"
	"airbnb-etl/models"
	"airbnb-etl/storage"
)

func cleanDataset() *models.Dataset {
	return &models.Dataset{
		Listings: models.NewTable("listings", []string{"id", "name", "price", "price_category"}, []models.Record{
			{"id": int64(1), "name": "Loft", "price": 100.0, "price_category": "Low"},
			{"id": int64(2), "name": "Casa", "price": 250.5, "price_category": "Premium"},
		}),
		Reviews: models.NewTable("reviews", []string{"id", "listing_id", "date"}, []models.Record{
			{"id": int64(10), "listing_id": int64(1), "date": "2023-01-05"},
			{"id": int64(11), "listing_id": int64(2), "date": "2023-02-01"},
			{"id": int64(12), "listing_id": int64(99), "date": "2023-03-01"},
		}),
	}
}

func TestLoaderReplaceAndVerify(t *testing.T) {
	logger, buf := newTestLogger()
	dir := t.TempDir()
	store, err := storage.OpenSQLite(context.Background(), filepath.Join(dir, "etl.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	l := NewLoader(logger, store, storage.NewExcelWriter(filepath.Join(dir, "clean.xlsx")), config.LoadReplace, nil)

	ds := cleanDataset()
	v, err := l.Load(context.Background(), ds)
	if err != nil {
		t.Fatal(err)
	}

	if v.Listings.SQLiteRows != 2 || v.Listings.SheetRows != 2 || !v.Listings.CountsMatch {
		t.Errorf("listings check: %+v", v.Listings)
	}
	if v.Reviews.SQLiteRows != 3 || v.Reviews.SheetRows != 3 || !v.Reviews.CountsMatch {
		t.Errorf("reviews check: %+v", v.Reviews)
	}
	if v.Listings.Columns != 5 {
		t.Errorf("listings columns (with created_at): got %d, want 5", v.Listings.Columns)
	}
	if v.OrphanReviews != 1 {
		t.Errorf("orphans: got %d, want 1", v.OrphanReviews)
	}
	if v.DatabaseSizeMB <= 0 {
		t.Errorf("database size should be positive")
	}
	if v.OK() {
		t.Errorf("verification with orphans should not be OK")
	}

	log := buf.String()
	if !strings.Contains(log, "WARNING - [verify] 1 reviews reference a listing id not present in listings") {
		t.Errorf("orphan warning missing:\n%s", log)
	}

	// a second replace load leaves the same counts
	v, err = l.Load(context.Background(), ds)
	if err != nil {
		t.Fatal(err)
	}
	if v.Listings.SQLiteRows != 2 || v.Reviews.SQLiteRows != 3 {
		t.Errorf("replace mode accumulated rows: %d / %d", v.Listings.SQLiteRows, v.Reviews.SQLiteRows)
	}
}

func TestLoaderAppend(t *testing.T) {
	logger, _ := newTestLogger()
	dir := t.TempDir()
	store, err := storage.OpenSQLite(context.Background(), filepath.Join(dir, "etl.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	l := NewLoader(logger, store, storage.NewExcelWriter(filepath.Join(dir, "clean.xlsx")), config.LoadAppend, nil)

	ds := cleanDataset()
	if _, err := l.Load(context.Background(), ds); err != nil {
		t.Fatal(err)
	}

	ds.Listings.AddColumn("has_wifi")
	for _, r := range ds.Listings.Rows {
		r["has_wifi"] = int64(1)
	}
	v, err := l.Load(context.Background(), ds)
	if err != nil {
		t.Fatal(err)
	}
	if v.Listings.Expected != 4 || v.Listings.SQLiteRows != 4 || !v.Listings.CountsMatch {
		t.Errorf("append listings: %+v", v.Listings)
	}
	if v.Listings.Columns != 6 {
		t.Errorf("append should add the new column: got %d columns", v.Listings.Columns)
	}
}

func TestLoaderIncompleteDataset(t *testing.T) {
	logger, buf := newTestLogger()
	l := NewLoader(logger, nil, nil, config.LoadReplace, nil)

	if _, err := l.Load(context.Background(), &models.Dataset{}); err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(buf.String(), "ERROR - ") {
		t.Errorf("should log an ERROR line")
	}
}

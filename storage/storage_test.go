package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"airbnb-etl/models"
)

func listingsTable() *models.Table {
	return models.NewTable("listings", []string{"id", "name", "price", "amenities", "has_wifi", "last_scraped"}, []models.Record{
		{"id": int64(1), "name": "Loft", "price": 100.0, "amenities": `["Wifi"]`, "has_wifi": int64(1), "last_scraped": "2023-03-15"},
		{"id": int64(2), "name": "Casa \"Azul\"", "price": 1200.0, "amenities": nil, "has_wifi": int64(0), "last_scraped": nil},
		{"id": int64(3), "name": "Cuarto", "price": 55.5, "amenities": `["TV"]`, "has_wifi": int64(0), "last_scraped": "2023-03-16"},
	})
}

func TestInferKinds(t *testing.T) {
	tbl := models.NewTable("t", []string{"i", "f", "mixed", "s", "empty", "flag"}, []models.Record{
		{"i": int64(1), "f": 1.5, "mixed": int64(1), "s": "a", "empty": nil, "flag": true},
		{"i": nil, "f": 2.0, "mixed": 2.5, "s": int64(3), "empty": nil, "flag": false},
	})
	kinds := InferKinds(tbl)
	assert.Equal(t, KindInteger, kinds["i"])
	assert.Equal(t, KindReal, kinds["f"])
	assert.Equal(t, KindReal, kinds["mixed"])
	assert.Equal(t, KindText, kinds["s"])
	assert.Equal(t, KindText, kinds["empty"])
	assert.Equal(t, KindInteger, kinds["flag"])
}

func TestSQLiteReplace(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "etl.db")
	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	tbl := listingsTable()
	require.NoError(t, s.WriteTable(ctx, tbl, ModeReplace))
	require.NoError(t, s.WriteTable(ctx, tbl, ModeReplace))

	n, err := s.CountRows(ctx, "listings")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cols, err := s.ColumnCount(ctx, "listings")
	require.NoError(t, err)
	assert.Equal(t, len(tbl.Columns)+1, cols, "created_at column")

	nulls, err := s.CountNulls(ctx, "listings", "last_scraped")
	require.NoError(t, err)
	assert.Equal(t, 1, nulls)

	var price float64
	var createdAt string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT price, created_at FROM listings WHERE id = 2`).Scan(&price, &createdAt))
	assert.Equal(t, 1200.0, price)
	_, err = time.Parse(time.RFC3339, createdAt)
	assert.NoError(t, err)

	assert.Greater(t, s.SizeMB(), 0.0)
}

func TestSQLiteAppendAddsColumns(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "etl.db"))
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountRows(ctx, "listings")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "missing table counts as empty")

	require.NoError(t, s.WriteTable(ctx, listingsTable(), ModeAppend))

	more := listingsTable()
	more.AddColumn("has_pool")
	for _, r := range more.Rows {
		r["has_pool"] = int64(1)
	}
	require.NoError(t, s.WriteTable(ctx, more, ModeAppend))

	n, err = s.CountRows(ctx, "listings")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	nulls, err := s.CountNulls(ctx, "listings", "has_pool")
	require.NoError(t, err)
	assert.Equal(t, 3, nulls, "rows from the first load have no has_pool")
}

func TestSQLiteCountOrphans(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "etl.db"))
	require.NoError(t, err)
	defer s.Close()

	reviews := models.NewTable("reviews", []string{"id", "listing_id"}, []models.Record{
		{"id": int64(10), "listing_id": int64(1)},
		{"id": int64(11), "listing_id": int64(7)},
		{"id": int64(12), "listing_id": int64(8)},
	})
	require.NoError(t, s.WriteTable(ctx, listingsTable(), ModeReplace))
	require.NoError(t, s.WriteTable(ctx, reviews, ModeReplace))

	n, err := s.CountOrphans(ctx, "reviews", "listing_id", "listings", "id")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExcelWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "clean.xlsx")
	w := NewExcelWriter(path)

	ds := &models.Dataset{
		Listings: listingsTable(),
		Reviews: models.NewTable("reviews", []string{"id", "listing_id", "comments"}, []models.Record{
			{"id": int64(10), "listing_id": int64(1), "comments": strings.Repeat("x", maxCellChars+10)},
		}),
	}
	require.NoError(t, w.Write(ds, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	n, err := w.CountRows(SheetListings)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = w.CountRows(SheetReviews)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetListings, SheetReviews, SheetSummary}, f.GetSheetList())

	header, err := f.GetCellValue(SheetListings, "B1")
	require.NoError(t, err)
	assert.Equal(t, "name", header)

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"listings", "3", "6", "2024-05-01 10:00:00"}, rows[1])

	comment, err := f.GetCellValue(SheetReviews, "C2")
	require.NoError(t, err)
	assert.Len(t, comment, maxCellChars)
}

func TestWriteSampleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples", "listings_clean_sample.csv")

	n, err := WriteSampleFile(path, listingsTable(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, listingsTable().Columns, records[0])
	assert.Equal(t, []string{"2", `Casa "Azul"`, "1200", "", "0", ""}, records[2])
}

func TestStagingRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clean_listings.jsonl")
	in := listingsTable()

	require.NoError(t, WriteStaged(path, in))
	out, err := ReadStaged(path)
	require.NoError(t, err)

	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Columns, out.Columns)
	require.Equal(t, in.Len(), out.Len())

	// whole prices stay float, ids stay int
	assert.Equal(t, int64(2), out.Rows[1]["id"])
	assert.Equal(t, 1200.0, out.Rows[1]["price"])
	assert.Equal(t, 55.5, out.Rows[2]["price"])
	assert.Nil(t, out.Rows[1]["amenities"])
	assert.Equal(t, "2023-03-15", out.Rows[0]["last_scraped"])
}

func TestReadStagedMalformed(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.jsonl")
	require.NoError(t, os.WriteFile(short, []byte(`{"table":"t","columns":["a","b"]}`+"\n[1]\n"), 0644))
	_, err := ReadStaged(short)
	assert.True(t, errors.Is(err, ErrBadStaging))

	garbage := filepath.Join(dir, "garbage.jsonl")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0644))
	_, err = ReadStaged(garbage)
	assert.True(t, errors.Is(err, ErrBadStaging))

	_, err = ReadStaged(filepath.Join(dir, "missing.jsonl"))
	assert.Error(t, err)
}

func TestPostgresInsertPlaceholders(t *testing.T) {
	tbl := models.NewTable("reviews", []string{"id", "listing_id"}, []models.Record{
		{"id": int64(10), "listing_id": int64(1)},
		{"id": int64(11), "listing_id": nil},
	})
	q, args := postgresInsert(tbl, withCreatedAt(tbl), tbl.Rows, "2024-05-01T10:00:00Z")

	assert.Equal(t, `INSERT INTO "reviews" ("id","listing_id","created_at") VALUES ($1,$2,$3),($4,$5,$6)`, q)
	assert.Equal(t, []any{int64(10), int64(1), "2024-05-01T10:00:00Z", int64(11), nil, "2024-05-01T10:00:00Z"}, args)
}

func TestPostgresSchema(t *testing.T) {
	kinds := map[string]ColumnKind{"id": KindInteger, "price": KindReal, "name": KindText}
	got := postgresCreateSQL("listings", []string{"id", "price", "name", "created_at"}, kinds, true)
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "listings" ("id" BIGINT, "price" DOUBLE PRECISION, "name" TEXT, "created_at" TIMESTAMPTZ)`,
		got)

	assert.Equal(t, 500, postgresBatchSize(10))
	assert.Equal(t, 65535/200, postgresBatchSize(200))
}

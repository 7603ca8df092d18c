package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"airbnb-etl/models"
)

// Sheet names of the exported workbook.
const (
	SheetListings = "Listings"
	SheetReviews  = "Reviews"
	SheetSummary  = "Summary"
)

// excel rejects cells longer than this
const maxCellChars = 32767

// ExcelWriter exports cleaned tables to an .xlsx workbook.
type ExcelWriter struct {
	path string
}

func NewExcelWriter(path string) *ExcelWriter {
	return &ExcelWriter{path: path}
}

func (w *ExcelWriter) Path() string { return w.path }

// Write replaces the workbook with one sheet per table and a Summary sheet.
func (w *ExcelWriter) Write(ds *models.Dataset, exportedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetListings); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	if err := writeSheet(f, SheetListings, ds.Listings); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetReviews); err != nil {
		return fmt.Errorf("xlsx: add sheet %s: %w", SheetReviews, err)
	}
	if err := writeSheet(f, SheetReviews, ds.Reviews); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("xlsx: add sheet %s: %w", SheetSummary, err)
	}
	summary := models.NewTable(SheetSummary,
		[]string{"table", "rows", "columns", "exported_at"}, nil)
	for _, t := range []*models.Table{ds.Listings, ds.Reviews} {
		summary.Rows = append(summary.Rows, models.Record{
			"table":       t.Name,
			"rows":        int64(t.Len()),
			"columns":     int64(len(t.Columns)),
			"exported_at": exportedAt.Format("2006-01-02 15:04:05"),
		})
	}
	if err := writeSheet(f, SheetSummary, summary); err != nil {
		return err
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", w.path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t *models.Table) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("xlsx: stream %s: %w", sheet, err)
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("xlsx: %s header: %w", sheet, err)
	}

	for i, r := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx: %s row %d: %w", sheet, i, err)
		}
		values := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			values[j] = sheetValue(r[c])
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("xlsx: %s row %d: %w", sheet, i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsx: flush %s: %w", sheet, err)
	}
	return nil
}

func sheetValue(v any) any {
	x := cellValue(v)
	if s, ok := x.(string); ok {
		if r := []rune(s); len(r) > maxCellChars {
			return string(r[:maxCellChars])
		}
	}
	return x
}

// CountRows reopens the workbook and returns the number of data rows in
// sheet, excluding the header.
func (w *ExcelWriter) CountRows(sheet string) (int, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return 0, fmt.Errorf("xlsx: open %q: %w", w.path, err)
	}
	defer f.Close()

	rows, err := f.Rows(sheet)
	if err != nil {
		return 0, fmt.Errorf("xlsx: read %s: %w", sheet, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Error(); err != nil {
		return 0, fmt.Errorf("xlsx: read %s: %w", sheet, err)
	}
	if n > 0 {
		n-- // header
	}
	return n, nil
}

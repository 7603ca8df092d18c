package services

import (
	"context"
	"fmt"
	"time"

	"airbnb-etl/config"
	"airbnb-etl/metrics"
	"airbnb-etl/models"
	"airbnb-etl/utils"
)

// RelationalStore is the primary persistence target of the load stage.
type RelationalStore interface {
	WriteTable(ctx context.Context, t *models.Table, mode string) error
	CountRows(ctx context.Context, table string) (int, error)
	ColumnCount(ctx context.Context, table string) (int, error)
	CountNulls(ctx context.Context, table, col string) (int, error)
	CountOrphans(ctx context.Context, child, fk, parent, pk string) (int, error)
	Path() string
	SizeMB() float64
}

// Workbook is the spreadsheet export of the load stage.
type Workbook interface {
	Write(ds *models.Dataset, exportedAt time.Time) error
	CountRows(sheet string) (int, error)
	Path() string
}

// Mirror is an optional secondary database receiving the same tables.
type Mirror interface {
	WriteTable(ctx context.Context, t *models.Table, mode string) error
	CountRows(ctx context.Context, table string) (int, error)
}

// Loader persists the cleaned dataset and verifies what was written.
type Loader struct {
	logger  *utils.Logger
	store   RelationalStore
	book    Workbook
	mirror  Mirror
	mode    string
	metrics *metrics.Recorder
	now     func() time.Time

	// sheet name per table
	Sheets map[string]string
}

func NewLoader(logger *utils.Logger, store RelationalStore, book Workbook, mode string, rec *metrics.Recorder) *Loader {
	return &Loader{
		logger:  logger,
		store:   store,
		book:    book,
		mode:    mode,
		metrics: rec,
		now:     time.Now,
		Sheets: map[string]string{
			models.ListingsTable: "Listings",
			models.ReviewsTable:  "Reviews",
		},
	}
}

// WithMirror attaches a secondary database. Mirror failures are logged and
// do not fail the load.
func (l *Loader) WithMirror(m Mirror) *Loader {
	l.mirror = m
	return l
}

// Load writes both tables to the store and the workbook, then verifies the
// persisted state. Write failures are terminal; integrity findings are
// reported as warnings in the returned Verification.
func (l *Loader) Load(ctx context.Context, ds *models.Dataset) (*models.Verification, error) {
	if ds == nil || ds.Listings == nil || ds.Reviews == nil {
		l.logger.Error("[load] nothing to load: dataset is incomplete")
		return nil, fmt.Errorf("load: incomplete dataset")
	}

	l.logger.Info("STEP 1: Writing tables to SQLite (%s, mode=%s)", l.store.Path(), l.mode)
	tables := []*models.Table{ds.Listings, ds.Reviews}
	previous := make(map[string]int, len(tables))
	for _, t := range tables {
		prev, err := l.store.CountRows(ctx, t.Name)
		if err != nil {
			l.logger.Error("[load] %s: could not read existing row count: %v", t.Name, err)
			return nil, fmt.Errorf("load %s: %w", t.Name, err)
		}
		if l.mode == config.LoadAppend {
			previous[t.Name] = prev
		}

		if err := l.store.WriteTable(ctx, t, l.mode); err != nil {
			l.logger.Error("[load] %s: write to SQLite failed: %v", t.Name, err)
			return nil, fmt.Errorf("load %s: %w", t.Name, err)
		}
		l.logger.Info("[load] Table '%s' written: %s records", t.Name, utils.FormatInt(t.Len()))
		l.metrics.Rows("load", t.Name, t.Len())
	}

	l.logger.Info("STEP 2: Exporting workbook (%s)", l.book.Path())
	if err := l.book.Write(ds, l.now()); err != nil {
		l.logger.Error("[load] workbook export failed: %v", err)
		return nil, fmt.Errorf("load: %w", err)
	}
	l.logger.Info("[load] Workbook written with sheets %s, %s and Summary",
		l.Sheets[models.ListingsTable], l.Sheets[models.ReviewsTable])

	if l.mirror != nil {
		l.logger.Info("STEP 2b: Mirroring tables to PostgreSQL")
		for _, t := range tables {
			if err := l.mirror.WriteTable(ctx, t, l.mode); err != nil {
				l.logger.Warn("[load] %s: PostgreSQL mirror failed: %v", t.Name, err)
				continue
			}
			if n, err := l.mirror.CountRows(ctx, t.Name); err == nil {
				l.logger.Info("[load] Mirror '%s': %s records", t.Name, utils.FormatInt(n))
			}
		}
	}

	l.logger.Info("STEP 3: Verifying load")
	return l.Verify(ctx, ds, previous)
}

// Verify compares persisted counts with the dataset and runs the integrity
// checks. previous holds row counts present before an append.
func (l *Loader) Verify(ctx context.Context, ds *models.Dataset, previous map[string]int) (*models.Verification, error) {
	v := &models.Verification{
		DatabasePath: l.store.Path(),
		CheckedAt:    l.now(),
	}

	var err error
	if v.Listings, err = l.checkTable(ctx, ds.Listings, previous[ds.Listings.Name]); err != nil {
		return nil, err
	}
	if v.Reviews, err = l.checkTable(ctx, ds.Reviews, previous[ds.Reviews.Name]); err != nil {
		return nil, err
	}

	if v.Listings.NullIDs > 0 {
		l.logger.Warn("[verify] %d listings have a null id", v.Listings.NullIDs)
	} else {
		l.logger.Info("[verify] Null ids in listings: 0")
	}

	if ds.Reviews.HasColumn(models.ColListingID) && ds.Listings.HasColumn(models.ColID) {
		v.OrphanReviews, err = l.store.CountOrphans(ctx, ds.Reviews.Name, models.ColListingID,
			ds.Listings.Name, models.ColID)
		if err != nil {
			l.logger.Error("[verify] orphan check failed: %v", err)
			return nil, fmt.Errorf("verify: %w", err)
		}
		if v.OrphanReviews > 0 {
			l.logger.Warn("[verify] %s reviews reference a listing id not present in listings",
				utils.FormatInt(v.OrphanReviews))
		} else {
			l.logger.Info("[verify] Every review references an existing listing")
		}
	}

	v.DatabaseSizeMB = l.store.SizeMB()
	l.logger.Info("[verify] Database size: %.2f MB", v.DatabaseSizeMB)
	if v.OK() {
		l.logger.Info("[verify] Verification passed")
	} else {
		l.logger.Warn("[verify] Verification finished with findings")
	}
	return v, nil
}

func (l *Loader) checkTable(ctx context.Context, t *models.Table, previous int) (models.TableCheck, error) {
	c := models.TableCheck{Table: t.Name, Expected: previous + t.Len()}

	var err error
	if c.SQLiteRows, err = l.store.CountRows(ctx, t.Name); err != nil {
		l.logger.Error("[verify] %s: count failed: %v", t.Name, err)
		return c, fmt.Errorf("verify %s: %w", t.Name, err)
	}
	if c.Columns, err = l.store.ColumnCount(ctx, t.Name); err != nil {
		l.logger.Error("[verify] %s: column count failed: %v", t.Name, err)
		return c, fmt.Errorf("verify %s: %w", t.Name, err)
	}
	if c.SheetRows, err = l.book.CountRows(l.Sheets[t.Name]); err != nil {
		l.logger.Error("[verify] %s: workbook read failed: %v", t.Name, err)
		return c, fmt.Errorf("verify %s: %w", t.Name, err)
	}
	if t.HasColumn(models.ColID) {
		if c.NullIDs, err = l.store.CountNulls(ctx, t.Name, models.ColID); err != nil {
			l.logger.Error("[verify] %s: null id check failed: %v", t.Name, err)
			return c, fmt.Errorf("verify %s: %w", t.Name, err)
		}
	}

	c.CountsMatch = c.SQLiteRows == c.Expected && c.SheetRows == t.Len()
	l.logger.Info("[verify] %s: expected %s, SQLite %s, sheet %s, %d columns", t.Name,
		utils.FormatInt(c.Expected), utils.FormatInt(c.SQLiteRows), utils.FormatInt(c.SheetRows), c.Columns)
	if !c.CountsMatch {
		l.logger.Warn("[verify] %s: row count mismatch (expected %d, SQLite %d, sheet %d of %d)",
			t.Name, c.Expected, c.SQLiteRows, c.SheetRows, t.Len())
	}
	return c, nil
}

package services

import (
	"errors"
	"fmt"
	"math"

	"airbnb-etl/config"
	"airbnb-etl/metrics"
	"airbnb-etl/models"
	"airbnb-etl/utils"
)

var ErrMissingColumn = errors.New("required column missing")

// Transformer runs the fixed cleaning sequence over the extracted tables.
type Transformer struct {
	logger  *utils.Logger
	rules   *config.Rules
	metrics *metrics.Recorder
	cleaner *Cleaner
}

func NewTransformer(logger *utils.Logger, rules *config.Rules, rec *metrics.Recorder) *Transformer {
	return &Transformer{
		logger:  logger,
		rules:   rules,
		metrics: rec,
		cleaner: NewCleaner(logger),
	}
}

// Transform cleans both tables of a dataset.
func (t *Transformer) Transform(ds *models.Dataset) (*models.Dataset, error) {
	listings, err := t.TransformListings(ds.Listings)
	if err != nil {
		return nil, err
	}
	reviews, err := t.TransformReviews(ds.Reviews)
	if err != nil {
		return nil, err
	}
	return &models.Dataset{Listings: listings, Reviews: reviews}, nil
}

// TransformListings applies the listing rules. The input table is not modified.
func (t *Transformer) TransformListings(in *models.Table) (*models.Table, error) {
	return t.apply(in, models.ListingsTable, t.rules.Listings)
}

// TransformReviews applies the review rules. The input table is not modified.
func (t *Transformer) TransformReviews(in *models.Table) (*models.Table, error) {
	return t.apply(in, models.ReviewsTable, t.rules.Reviews)
}

func (t *Transformer) apply(in *models.Table, name string, dr config.DatasetRules) (*models.Table, error) {
	if in == nil {
		t.logger.Error("[transform] %s: no input table", name)
		return nil, fmt.Errorf("transform %s: %w: no table", name, ErrMissingColumn)
	}

	t.logger.Info("============================================================")
	t.logger.Info("STARTING TRANSFORMATION OF %s", name)
	t.logger.Info("============================================================")
	t.logger.Info("Initial data: %s records, %d columns", utils.FormatInt(in.Len()), len(in.Columns))

	for _, c := range dr.RequiredColumns {
		if !in.HasColumn(c) {
			t.logger.Error("[transform] %s: required column '%s' is missing, aborting", name, c)
			return nil, fmt.Errorf("transform %s: %w: %q", name, ErrMissingColumn, c)
		}
	}

	tbl := in.Clone()
	tbl.Name = name
	initialRows, initialCols := tbl.Len(), len(tbl.Columns)

	// (a) null remediation
	tbl, nulls := t.cleaner.RemediateNulls(tbl, dr.Nulls)
	for col, n := range nulls.Dropped {
		t.metrics.Dropped(name, "null_"+col, n)
	}

	// (b) duplicates
	before := tbl.Len()
	tbl = t.cleaner.RemoveDuplicates(tbl, dr.KeyColumns)
	t.metrics.Dropped(name, "duplicates", before-tbl.Len())

	// (c) prices
	if dr.PriceColumn != "" {
		var err error
		if tbl, err = t.NormalisePrices(tbl, dr.PriceColumn); err != nil {
			return nil, err
		}
	}

	// (d) dates
	if len(dr.DateColumns) > 0 {
		failures := t.NormaliseDates(tbl, dr.DateColumns)
		tbl = t.dropUnparsedDates(tbl, dr.Nulls, failures)
	}

	// (e) temporal fields
	if dr.DeriveFrom != "" {
		t.DeriveDateParts(tbl, dr.DeriveFrom, dr.DerivePrefix)
	}

	// (f) price categories
	if dr.CategoryColumn != "" && dr.PriceColumn != "" {
		t.CategorizePrices(tbl, dr.PriceColumn, dr.CategoryColumn, dr.Buckets)
	}

	// (g) amenities
	if dr.AmenitiesColumn != "" {
		t.ExpandAmenities(tbl, dr.AmenitiesColumn, dr.TopAmenities)
	}

	t.logger.Info("============================================================")
	t.logger.Info("TRANSFORMATION OF %s FINISHED", name)
	t.logger.Info("Final data: %s records (lost: %d), %d columns (added: %d)",
		utils.FormatInt(tbl.Len()), initialRows-tbl.Len(), len(tbl.Columns), len(tbl.Columns)-initialCols)
	t.logger.Info("============================================================")
	t.metrics.Rows("transform", name, tbl.Len())
	return tbl, nil
}

// dropUnparsedDates removes rows whose drop-policy date column was nulled by
// a parse failure, so the null policy still holds after conversion.
func (t *Transformer) dropUnparsedDates(tbl *models.Table, policy map[string]config.NullRule, failures map[string]int) *models.Table {
	for col, n := range failures {
		if n == 0 || policy[col].Action != config.NullDrop {
			continue
		}
		before := tbl.Len()
		tbl = tbl.Filter(func(r models.Record) bool { return !models.IsNull(r[col]) })
		dropped := before - tbl.Len()
		if dropped > 0 {
			t.logger.Warn("[dates] %s: dropped %d rows with an unparseable '%s'", tbl.Name, dropped, col)
			t.metrics.Dropped(tbl.Name, "unparsed_"+col, dropped)
		}
	}
	return tbl
}

// PriceStats summarises one price normalisation pass.
type PriceStats struct {
	Parsed   int
	Failures map[string]int // by reason: "empty", "malformed"
	Excluded int
	Zeroed   int
	Min      float64
	Max      float64
	Mean     float64
}

// NormalisePrices replaces every price cell with its numeric value. Cells
// that fail to parse are excluded or set to zero per the price policy.
func (t *Transformer) NormalisePrices(tbl *models.Table, col string) (*models.Table, error) {
	t.logger.Info("[prices] Normalising prices in '%s.%s'", tbl.Name, col)
	if !tbl.HasColumn(col) {
		t.logger.Error("[prices] %s: price column '%s' not found, aborting", tbl.Name, col)
		return nil, fmt.Errorf("transform %s: %w: %q", tbl.Name, ErrMissingColumn, col)
	}

	before := tbl.Len()
	stats := PriceStats{Failures: map[string]int{}, Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64

	out := tbl.Filter(func(r models.Record) bool {
		v, err := ParsePrice(r[col])
		if err != nil {
			stats.Failures[priceFailureReason(err)]++
			t.logger.Debug("[prices] %v", err)
			if t.rules.PricePolicy == config.PriceZero {
				stats.Zeroed++
				v = 0
			} else {
				stats.Excluded++
				return false
			}
		} else {
			stats.Parsed++
		}
		r[col] = v
		sum += v
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
		return true
	})

	for reason, n := range stats.Failures {
		t.logger.Warn("[prices] %s: %d prices could not be parsed (%s)", tbl.Name, n, reason)
		t.metrics.ParseFailures(tbl.Name, col, reason, n)
	}
	t.metrics.Dropped(tbl.Name, "price_unparseable", stats.Excluded)

	if out.Len() > 0 {
		stats.Mean = sum / float64(out.Len())
		t.logger.Info("[prices]   - min: $%.2f", stats.Min)
		t.logger.Info("[prices]   - max: $%.2f", stats.Max)
		t.logger.Info("[prices]   - mean: $%.2f", stats.Mean)
	}

	details := fmt.Sprintf("policy=%s, parsed=%d, excluded=%d, zeroed=%d",
		t.rules.PricePolicy, stats.Parsed, stats.Excluded, stats.Zeroed)
	t.logger.Transformation("Price normalisation ("+tbl.Name+")", before, out.Len(), details)
	return out, nil
}

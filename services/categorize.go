package services

import (
	"fmt"
	"math"
	"sort"

	"airbnb-etl/config"
	"airbnb-etl/models"
)

// Quantile returns the q-th quantile of vals using linear interpolation
// between closest ranks. vals need not be sorted; it is not modified.
func Quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)

	pos := float64(len(s)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	return s[lo] + (s[hi]-s[lo])*(pos-float64(lo))
}

// PriceBounds holds the inclusive upper bounds for Low, Medium and High.
type PriceBounds [3]float64

// BucketBounds computes the category bounds for prices under the given rules.
func BucketBounds(prices []float64, b config.BucketRules) PriceBounds {
	if b.Mode == config.BucketFixed {
		return PriceBounds{b.Thresholds[0], b.Thresholds[1], b.Thresholds[2]}
	}
	return PriceBounds{Quantile(prices, 0.25), Quantile(prices, 0.50), Quantile(prices, 0.75)}
}

// Category maps a price onto its bucket. Bounds are inclusive.
func (pb PriceBounds) Category(price any) string {
	p, ok := toFloat(price)
	if !ok {
		return models.CategoryUnknown
	}
	switch {
	case p <= pb[0]:
		return models.CategoryLow
	case p <= pb[1]:
		return models.CategoryMedium
	case p <= pb[2]:
		return models.CategoryHigh
	}
	return models.CategoryPremium
}

// CategorizePrices writes the price category of every row into column out.
func (t *Transformer) CategorizePrices(tbl *models.Table, priceCol, out string, b config.BucketRules) PriceBounds {
	prices := numericValues(tbl, priceCol)
	tbl.AddColumn(out)

	if len(prices) == 0 {
		t.logger.Warn("[categorize] %s: no numeric prices, every row is %s", tbl.Name, models.CategoryUnknown)
		for _, r := range tbl.Rows {
			r[out] = models.CategoryUnknown
		}
		t.logger.Transformation("Price categorization ("+tbl.Name+")", tbl.Len(), tbl.Len(),
			"no numeric prices, every row is "+models.CategoryUnknown)
		nan := math.NaN()
		return PriceBounds{nan, nan, nan}
	}

	bounds := BucketBounds(prices, b)
	mode := b.Mode
	if mode == "" {
		mode = config.BucketQuantile
	}
	t.logger.Info("[categorize] %s bounds (%s):", tbl.Name, mode)
	t.logger.Info("[categorize]   - %s <= $%.2f", models.CategoryLow, bounds[0])
	t.logger.Info("[categorize]   - %s <= $%.2f", models.CategoryMedium, bounds[1])
	t.logger.Info("[categorize]   - %s <= $%.2f", models.CategoryHigh, bounds[2])

	dist := make(map[string]int)
	for _, r := range tbl.Rows {
		c := bounds.Category(r[priceCol])
		r[out] = c
		dist[c]++
	}

	t.logger.Info("[categorize] Category distribution:")
	for _, c := range []string{models.CategoryLow, models.CategoryMedium, models.CategoryHigh, models.CategoryPremium, models.CategoryUnknown} {
		if n := dist[c]; n > 0 {
			t.logger.Info("[categorize]   - %s: %d (%.2f%%)", c, n, pct(n, tbl.Len()))
		}
	}
	t.logger.Transformation("Price categorization ("+tbl.Name+")", tbl.Len(), tbl.Len(),
		fmt.Sprintf("%s bounds: %s <= %.2f, %s <= %.2f, %s <= %.2f, %s above", mode,
			models.CategoryLow, bounds[0], models.CategoryMedium, bounds[1],
			models.CategoryHigh, bounds[2], models.CategoryPremium))
	return bounds
}

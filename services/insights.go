package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"airbnb-etl/models"
	"airbnb-etl/utils"
)

type InsightService struct {
	logger       *utils.Logger
	amenitiesCol string
	topN         int
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, amenitiesCol: models.ColAmenities, topN: 10}
}

// Generate computes exploratory statistics over the cleaned dataset.
func (s *InsightService) Generate(ds *models.Dataset) *models.InsightReport {
	report := &models.InsightReport{
		ByCategory:      make(map[string]int),
		ByNeighbourhood: make(map[string]int),
		ReviewsByYear:   make(map[int64]int),
	}
	if ds == nil {
		return report
	}

	listingIDs := make(map[string]struct{})
	if l := ds.Listings; l != nil {
		report.TotalListings = l.Len()

		var prices []float64
		var lists [][]string
		for _, r := range l.Rows {
			if id := r[models.ColID]; !models.IsNull(id) {
				listingIDs[fmt.Sprint(id)] = struct{}{}
			}
			if p, ok := r[models.ColPrice].(float64); ok {
				prices = append(prices, p)
				if report.MostExpensive == nil || p > report.MaxPrice {
					report.MaxPrice = p
					report.MostExpensive = r
				}
			}
			if c, ok := r[models.ColPriceCategory].(string); ok {
				report.ByCategory[c]++
			}
			if n, ok := r[models.ColNeighbourhood].(string); ok && n != "" {
				report.ByNeighbourhood[n]++
			}
			if l.HasColumn(s.amenitiesCol) {
				a, _ := ParseAmenities(r[s.amenitiesCol])
				lists = append(lists, a)
			}
		}

		report.PricedListings = len(prices)
		if len(prices) > 0 {
			var total float64
			report.MinPrice = prices[0]
			for _, p := range prices {
				total += p
				if p < report.MinPrice {
					report.MinPrice = p
				}
			}
			report.AveragePrice = round2(total / float64(len(prices)))
			report.MedianPrice = round2(Quantile(prices, 0.5))
			report.MinPrice = round2(report.MinPrice)
			report.MaxPrice = round2(report.MaxPrice)
		}
		report.TopAmenities = TopAmenities(lists, s.topN)
	}

	if rv := ds.Reviews; rv != nil {
		report.TotalReviews = rv.Len()
		orphans := 0
		for _, r := range rv.Rows {
			if y, ok := r["review_year"].(int64); ok {
				report.ReviewsByYear[y]++
			}
			if _, ok := listingIDs[fmt.Sprint(r[models.ColListingID])]; !ok {
				orphans++
			}
		}
		if rv.Len() > 0 {
			report.OrphanReviewRate = float64(orphans) / float64(rv.Len())
		}
	}

	s.logger.Info("[insights] %s listings (%s priced), %s reviews, orphan rate %.2f%%",
		utils.FormatInt(report.TotalListings), utils.FormatInt(report.PricedListings),
		utils.FormatInt(report.TotalReviews), report.OrphanReviewRate*100)
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 AIRBNB DATASET INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Clean listings : \033[1m%s\033[0m\n", utils.FormatInt(r.TotalListings))
	fmt.Fprintf(w, "  Clean reviews  : \033[1m%s\033[0m\n", utils.FormatInt(r.TotalReviews))
	fmt.Fprintf(w, "  Orphan reviews : \033[1m%.2f%%\033[0m\n", r.OrphanReviewRate*100)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (per night)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m$%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Median price  : \033[1;32m$%.2f\033[0m\n", r.MedianPrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m$%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m$%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	// Most Expensive
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(fmt.Sprint(r.MostExpensive[models.ColName]), 50))
		fmt.Fprintf(w, "  Neighbourhood : %v\n", r.MostExpensive[models.ColNeighbourhood])
		fmt.Fprintf(w, "  Price         : \033[1;31m$%.2f/night\033[0m\n", r.MaxPrice)
		fmt.Fprintln(w)
	}

	// Price categories
	fmt.Fprintf(w, "\033[1;33m  Listings by Price Category\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, c := range []string{models.CategoryLow, models.CategoryMedium, models.CategoryHigh,
		models.CategoryPremium, models.CategoryUnknown} {
		if n := r.ByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-10s %s\n", c, utils.FormatInt(n))
		}
	}
	fmt.Fprintln(w)

	// Top amenities
	fmt.Fprintf(w, "\033[1;33m  Top Amenities\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopAmenities) == 0 {
		fmt.Fprintf(w, "  No amenity data\n")
	}
	for i, a := range r.TopAmenities {
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s %s\n", i+1, truncate(a.Name, 38), utils.FormatInt(a.Count))
	}
	fmt.Fprintln(w)

	// Listings by neighbourhood
	fmt.Fprintf(w, "\033[1;33m  Top Neighbourhoods\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByNeighbourhood) == 0 {
		fmt.Fprintf(w, "  No neighbourhood data\n")
	} else {
		type hoodCount struct {
			name  string
			count int
		}
		var hoods []hoodCount
		for n, cnt := range r.ByNeighbourhood {
			hoods = append(hoods, hoodCount{n, cnt})
		}
		sort.Slice(hoods, func(i, j int) bool {
			if hoods[i].count != hoods[j].count {
				return hoods[i].count > hoods[j].count
			}
			return hoods[i].name < hoods[j].name
		})
		if len(hoods) > 10 {
			hoods = hoods[:10]
		}
		for _, h := range hoods {
			fmt.Fprintf(w, "  %-30s %s\n", truncate(h.name, 28), utils.FormatInt(h.count))
		}
	}
	fmt.Fprintln(w)

	// Reviews per year
	if len(r.ReviewsByYear) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Reviews per Year\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		years := make([]int64, 0, len(r.ReviewsByYear))
		for y := range r.ReviewsByYear {
			years = append(years, y)
		}
		sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })
		for _, y := range years {
			fmt.Fprintf(w, "  %d : %s\n", y, utils.FormatInt(r.ReviewsByYear[y]))
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

package models

import "time"

// Collection and table names.
const (
	ListingsTable = "listings"
	ReviewsTable  = "reviews"
)

// Listing columns the cleaning rules read or derive.
const (
	ColID              = "id"
	ColName            = "name"
	ColPrice           = "price"
	ColNeighbourhood   = "neighbourhood"
	ColHostName        = "host_name"
	ColReviewsPerMonth = "reviews_per_month"
	ColLastScraped     = "last_scraped"
	ColHostSince       = "host_since"
	ColFirstReview     = "first_review"
	ColLastReview      = "last_review"
	ColAmenities       = "amenities"
	ColAmenitiesCount  = "amenities_count"
	ColPriceCategory   = "price_category"
	ColCreatedAt       = "created_at"
)

// Review columns.
const (
	ColListingID = "listing_id"
	ColDate      = "date"
)

// Price categories, ordered from cheapest to most expensive.
const (
	CategoryLow     = "Low"
	CategoryMedium  = "Medium"
	CategoryHigh    = "High"
	CategoryPremium = "Premium"
	CategoryUnknown = "Unknown"
)

// InsightReport holds the exploratory statistics computed over the cleaned dataset.
type InsightReport struct {
	TotalListings    int
	TotalReviews     int
	PricedListings   int
	AveragePrice     float64
	MedianPrice      float64
	MinPrice         float64
	MaxPrice         float64
	MostExpensive    Record
	ByCategory       map[string]int
	ByNeighbourhood  map[string]int
	TopAmenities     []AmenityCount
	ReviewsByYear    map[int64]int
	OrphanReviewRate float64
}

// AmenityCount pairs an amenity with the number of listings offering it.
type AmenityCount struct {
	Name  string
	Count int
}

// TableCheck is the persisted-state summary of one table after loading.
type TableCheck struct {
	Table       string
	Expected    int
	SQLiteRows  int
	SheetRows   int
	Columns     int
	NullIDs     int
	CountsMatch bool
}

// Verification is the report produced after the load stage.
type Verification struct {
	Listings       TableCheck
	Reviews        TableCheck
	OrphanReviews  int
	DatabasePath   string
	DatabaseSizeMB float64
	CheckedAt      time.Time
}

// OK reports whether every count matched and no integrity problem was found.
func (v *Verification) OK() bool {
	return v.Listings.CountsMatch && v.Reviews.CountsMatch &&
		v.Listings.NullIDs == 0 && v.OrphanReviews == 0
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"airbnb-etl/models"
)

// Unparseable-price policies.
const (
	PriceNull = "null" // exclude the row
	PriceZero = "zero" // substitute 0
)

// Bucket modes for price categorization.
const (
	BucketQuantile = "quantile"
	BucketFixed    = "fixed"
)

// NullAction is what null remediation does with a missing cell.
type NullAction string

const (
	NullDrop   NullAction = "drop"
	NullMedian NullAction = "median"
	NullMode   NullAction = "mode"
	NullZero   NullAction = "zero"
	NullFill   NullAction = "fill"
)

// NullRule is a per-column null policy. In YAML it is written as
// "drop", "median", "mode", "zero" or "fill:<value>".
type NullRule struct {
	Action NullAction
	Value  string
}

func (n *NullRule) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	rule, err := ParseNullRule(s)
	if err != nil {
		return err
	}
	*n = rule
	return nil
}

// ParseNullRule parses the textual form of a NullRule.
func ParseNullRule(s string) (NullRule, error) {
	s = strings.TrimSpace(s)
	if v, ok := strings.CutPrefix(s, string(NullFill)+":"); ok {
		return NullRule{Action: NullFill, Value: v}, nil
	}
	switch a := NullAction(strings.ToLower(s)); a {
	case NullDrop, NullMedian, NullMode, NullZero:
		return NullRule{Action: a}, nil
	}
	return NullRule{}, fmt.Errorf("rules: unknown null policy %q", s)
}

func (n NullRule) String() string {
	if n.Action == NullFill {
		return string(NullFill) + ":" + n.Value
	}
	return string(n.Action)
}

type BucketRules struct {
	Mode       string    `yaml:"mode"`
	Thresholds []float64 `yaml:"thresholds"`
}

// DatasetRules configures the cleaning sequence for one table.
type DatasetRules struct {
	KeyColumns      []string            `yaml:"key_columns"`
	RequiredColumns []string            `yaml:"required_columns"`
	Nulls           map[string]NullRule `yaml:"nulls"`
	PriceColumn     string              `yaml:"price_column"`
	DateColumns     []string            `yaml:"date_columns"`
	DeriveFrom      string              `yaml:"derive_from"`
	DerivePrefix    string              `yaml:"derive_prefix"`
	CategoryColumn  string              `yaml:"category_column"`
	Buckets         BucketRules         `yaml:"buckets"`
	AmenitiesColumn string              `yaml:"amenities_column"`
	TopAmenities    int                 `yaml:"top_amenities"`
}

// Rules holds the cleaning configuration for both datasets.
type Rules struct {
	PricePolicy string       `yaml:"price_policy"`
	Listings    DatasetRules `yaml:"listings"`
	Reviews     DatasetRules `yaml:"reviews"`
}

// DefaultRules returns the built-in cleaning rules.
func DefaultRules() *Rules {
	return &Rules{
		PricePolicy: PriceNull,
		Listings: DatasetRules{
			KeyColumns:      []string{models.ColID},
			RequiredColumns: []string{models.ColID, models.ColPrice},
			Nulls: map[string]NullRule{
				models.ColID:              {Action: NullDrop},
				models.ColName:            {Action: NullDrop},
				models.ColHostName:        {Action: NullFill, Value: "Unknown"},
				models.ColNeighbourhood:   {Action: NullMode},
				models.ColReviewsPerMonth: {Action: NullZero},
			},
			PriceColumn: models.ColPrice,
			DateColumns: []string{
				models.ColLastScraped, models.ColHostSince,
				models.ColFirstReview, models.ColLastReview,
			},
			CategoryColumn:  models.ColPriceCategory,
			Buckets:         BucketRules{Mode: BucketQuantile},
			AmenitiesColumn: models.ColAmenities,
			TopAmenities:    10,
		},
		Reviews: DatasetRules{
			KeyColumns:      []string{models.ColID},
			RequiredColumns: []string{models.ColListingID, models.ColDate},
			Nulls: map[string]NullRule{
				models.ColListingID: {Action: NullDrop},
				models.ColDate:      {Action: NullDrop},
			},
			DateColumns:  []string{models.ColDate},
			DeriveFrom:   models.ColDate,
			DerivePrefix: "review_",
		},
	}
}

// LoadRules returns the default rules overlaid with the YAML file at path.
// An empty path yields the defaults.
func LoadRules(path string) (*Rules, error) {
	r := DefaultRules()
	if path == "" {
		return r, r.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("rules: parse %q: %w", path, err)
	}
	return r, r.Validate()
}

// Rules loads the cleaning rules named by RULES_PATH and applies the
// PRICE_POLICY override.
func (c *Config) Rules() (*Rules, error) {
	r, err := LoadRules(c.RulesPath)
	if err != nil {
		return nil, err
	}
	if c.PricePolicy != "" {
		r.PricePolicy = c.PricePolicy
	}
	return r, r.Validate()
}

// Validate checks policy names and bucket thresholds.
func (r *Rules) Validate() error {
	switch r.PricePolicy {
	case PriceNull, PriceZero:
	default:
		return fmt.Errorf("rules: unknown price policy %q", r.PricePolicy)
	}
	for _, d := range []DatasetRules{r.Listings, r.Reviews} {
		if err := d.Buckets.validate(); err != nil {
			return err
		}
		if d.TopAmenities < 0 {
			return errors.New("rules: top_amenities must not be negative")
		}
	}
	return nil
}

func (b BucketRules) validate() error {
	switch b.Mode {
	case "", BucketQuantile:
		return nil
	case BucketFixed:
		if len(b.Thresholds) != 3 {
			return fmt.Errorf("rules: fixed buckets need 3 thresholds, got %d", len(b.Thresholds))
		}
		if !(b.Thresholds[0] <= b.Thresholds[1] && b.Thresholds[1] <= b.Thresholds[2]) {
			return errors.New("rules: fixed bucket thresholds must be ascending")
		}
		return nil
	}
	return fmt.Errorf("rules: unknown bucket mode %q", b.Mode)
}

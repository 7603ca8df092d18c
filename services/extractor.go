package services

import (
	"context"
	"errors"
	"fmt"

	"airbnb-etl/config"
	"airbnb-etl/metrics"
	"airbnb-etl/models"
	"airbnb-etl/utils"
)

var (
	ErrConnection      = errors.New("document store connection failed")
	ErrEmptyCollection = errors.New("collection is empty")
	ErrUnexpectedShape = errors.New("unexpected table shape")
)

// DocumentSource reads named collections as tables.
type DocumentSource interface {
	Fetch(ctx context.Context, collection string) (*models.Table, error)
	Close(ctx context.Context) error
}

// Dialer opens a DocumentSource.
type Dialer func(ctx context.Context) (DocumentSource, error)

// Extractor pulls the listings and reviews collections from the document store.
type Extractor struct {
	logger  *utils.Logger
	dial    Dialer
	rules   *config.Rules
	metrics *metrics.Recorder

	ListingsCollection string
	ReviewsCollection  string
}

// NewExtractor creates an Extractor reading the default collection names.
func NewExtractor(logger *utils.Logger, dial Dialer, rules *config.Rules, rec *metrics.Recorder) *Extractor {
	return &Extractor{
		logger:             logger,
		dial:               dial,
		rules:              rules,
		metrics:            rec,
		ListingsCollection: models.ListingsTable,
		ReviewsCollection:  models.ReviewsTable,
	}
}

// Extract connects, reads both collections and validates them. Any failure
// is terminal: there is no retry.
func (e *Extractor) Extract(ctx context.Context) (*models.Dataset, error) {
	e.logger.Info("[extract] Connecting to document store...")
	src, err := e.dial(ctx)
	if err != nil {
		e.logger.Error("[extract] Connection failed: %v", err)
		return nil, fmt.Errorf("extract: %w: %w", ErrConnection, err)
	}
	defer func() {
		if err := src.Close(ctx); err != nil {
			e.logger.Warn("[extract] Closing document store: %v", err)
		}
	}()
	e.logger.Info("[extract] Connection established")

	listings, err := e.collection(ctx, src, e.ListingsCollection, models.ListingsTable, e.rules.Listings.RequiredColumns)
	if err != nil {
		return nil, err
	}
	reviews, err := e.collection(ctx, src, e.ReviewsCollection, models.ReviewsTable, e.rules.Reviews.RequiredColumns)
	if err != nil {
		return nil, err
	}

	return &models.Dataset{Listings: listings, Reviews: reviews}, nil
}

func (e *Extractor) collection(ctx context.Context, src DocumentSource, collection, table string, required []string) (*models.Table, error) {
	e.logger.Info("[extract] Extracting collection '%s'...", collection)
	t, err := src.Fetch(ctx, collection)
	if err != nil {
		e.logger.Error("[extract] Failed to read collection '%s': %v", collection, err)
		return nil, fmt.Errorf("extract: fetch %q: %w", collection, err)
	}
	if t.Len() == 0 {
		e.logger.Error("[extract] No documents found in collection '%s'", collection)
		return nil, fmt.Errorf("extract: %q: %w", collection, ErrEmptyCollection)
	}
	t.Name = table

	if err := validateShape(t, required); err != nil {
		e.logger.Error("[extract] Collection '%s' has an unexpected shape: %v", collection, err)
		return nil, fmt.Errorf("extract: %q: %w", collection, err)
	}

	e.logger.Info("[extract] Collection '%s' extracted: %s records, %d columns",
		collection, utils.FormatInt(t.Len()), len(t.Columns))
	e.metrics.Rows("extract", table, t.Len())
	return t, nil
}

func validateShape(t *models.Table, required []string) error {
	for _, c := range required {
		if !t.HasColumn(c) {
			return fmt.Errorf("%w: missing column %q", ErrUnexpectedShape, c)
		}
	}
	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"airbnb-etl/config"
	"airbnb-etl/metrics"
	"airbnb-etl/models"
	"airbnb-etl/services"
	"airbnb-etl/source/mongodb"
	"airbnb-etl/storage"
	"airbnb-etl/utils"
)

// Stage labels, also used in log file names.
const (
	LabelExtract   = "EXTRACT"
	LabelTransform = "TRANSFORM"
	LabelLoad      = "LOAD"
)

// Staging kinds.
const (
	StagedRaw   = "raw"
	StagedClean = "clean"
)

const metricsJob = "airbnb_etl"

// Env carries the configuration shared by every stage of one run.
type Env struct {
	Config  *config.Config
	Rules   *config.Rules
	Metrics *metrics.Recorder

	// Report receives the insight summary printed after transformation.
	Report io.Writer

	dial services.Dialer
}

// NewEnv resolves and validates the cleaning rules for cfg.
func NewEnv(cfg *config.Config, report io.Writer) (*Env, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	return &Env{
		Config:  cfg,
		Rules:   rules,
		Metrics: metrics.New(),
		Report:  report,
		dial: func(ctx context.Context) (services.DocumentSource, error) {
			src, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
	}, nil
}

// RunStage runs fn under a fresh run log labelled label. The log is always
// finalized, and fn's error is logged before it is returned.
func (e *Env) RunStage(ctx context.Context, label string, fn func(context.Context, *utils.Logger) error) error {
	logger, err := utils.NewRunLogger(e.Config.LogsDir, label)
	if err != nil {
		return err
	}
	logger.SetDebug(e.Config.Debug)

	start := time.Now()
	logger.Info("%s PROCESS STARTED", label)

	err = fn(ctx, logger)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("%s PROCESS FAILED after %s: %v", label, elapsed.Round(time.Millisecond), err)
	} else {
		e.Metrics.StageDone(label, elapsed)
		logger.Info("%s PROCESS COMPLETED SUCCESSFULLY in %s", label, elapsed.Round(time.Millisecond))
	}

	if ferr := logger.Finalize(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

// PushMetrics sends the run's metrics to the configured Pushgateway.
func (e *Env) PushMetrics(logger *utils.Logger) {
	if err := e.Metrics.Push(e.Config.PushgatewayURL, metricsJob); err != nil {
		logger.Warn("[metrics] %v", err)
	}
}

// Extract reads both collections from MongoDB.
func (e *Env) Extract(ctx context.Context, logger *utils.Logger) (*models.Dataset, error) {
	ex := services.NewExtractor(logger, e.dial, e.Rules, e.Metrics)
	ex.ListingsCollection = e.Config.ListingsCollection
	ex.ReviewsCollection = e.Config.ReviewsCollection
	return ex.Extract(ctx)
}

// Transform cleans ds, writes the sample CSVs and prints the insight report.
func (e *Env) Transform(logger *utils.Logger, ds *models.Dataset) (*models.Dataset, error) {
	clean, err := services.NewTransformer(logger, e.Rules, e.Metrics).Transform(ds)
	if err != nil {
		return nil, err
	}

	for _, t := range []*models.Table{clean.Listings, clean.Reviews} {
		path := e.Config.SamplePath(t.Name)
		n, err := storage.WriteSampleFile(path, t, e.Config.SampleRows)
		if err != nil {
			logger.Warn("[samples] %s: %v", t.Name, err)
			continue
		}
		logger.Info("[samples] %s: first %d rows written to %s", t.Name, n, path)
	}

	if e.Report != nil {
		insights := services.NewInsightService(logger)
		insights.Print(e.Report, insights.Generate(clean))
	}
	return clean, nil
}

// Load persists ds to SQLite and the workbook, mirroring to PostgreSQL when
// a DSN is configured, and returns the verification report.
func (e *Env) Load(ctx context.Context, logger *utils.Logger, ds *models.Dataset) (*models.Verification, error) {
	store, err := storage.OpenSQLite(ctx, e.Config.SQLitePath)
	if err != nil {
		logger.Error("[load] %v", err)
		return nil, err
	}
	defer store.Close()

	loader := services.NewLoader(logger, store, storage.NewExcelWriter(e.Config.ExcelPath), e.Config.LoadMode, e.Metrics)

	if e.Config.PostgresDSN != "" {
		retry := &utils.RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, Logger: logger}
		pg, err := storage.NewPostgresWriter(ctx, e.Config.PostgresDSN, retry)
		if err != nil {
			logger.Warn("[load] PostgreSQL mirror disabled: %v", err)
		} else {
			defer pg.Close()
			loader.WithMirror(pg)
		}
	}

	return loader.Load(ctx, ds)
}

// SaveStaged writes both tables of ds as staging files of the given kind.
func (e *Env) SaveStaged(logger *utils.Logger, kind string, ds *models.Dataset) error {
	for _, t := range []*models.Table{ds.Listings, ds.Reviews} {
		path := e.Config.StagingPath(kind, t.Name)
		if err := storage.WriteStaged(path, t); err != nil {
			return err
		}
		logger.Info("[staging] %s saved to %s (%s records)", t.Name, path, utils.FormatInt(t.Len()))
	}
	return nil
}

// LoadStaged reads the staging files of the given kind. A missing file means
// the previous stage has not run.
func (e *Env) LoadStaged(logger *utils.Logger, kind string) (*models.Dataset, error) {
	ds := &models.Dataset{}
	for _, name := range []string{models.ListingsTable, models.ReviewsTable} {
		path := e.Config.StagingPath(kind, name)
		t, err := storage.ReadStaged(path)
		if err != nil {
			return nil, fmt.Errorf("read %s staging for %s: %w", kind, name, err)
		}
		logger.Info("[staging] %s read from %s (%s records)", name, path, utils.FormatInt(t.Len()))
		if name == models.ListingsTable {
			ds.Listings = t
		} else {
			ds.Reviews = t
		}
	}
	return ds, nil
}

var (
	_ services.RelationalStore = (*storage.SQLiteStore)(nil)
	_ services.Workbook        = (*storage.ExcelWriter)(nil)
	_ services.Mirror          = (*storage.PostgresWriter)(nil)
)

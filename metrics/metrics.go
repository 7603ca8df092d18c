package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder collects per-run pipeline metrics in a private registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	reg *prometheus.Registry

	rows          *prometheus.GaugeVec
	dropped       *prometheus.CounterVec
	parseFailures *prometheus.CounterVec
	stageDuration *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec
}

func New() *Recorder {
	r := &Recorder{reg: prometheus.NewRegistry()}

	r.rows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airbnb_etl",
		Name:      "rows",
		Help:      "Rows in a table at the end of a stage",
	}, []string{"stage", "table"})
	r.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airbnb_etl",
		Name:      "rows_dropped_total",
		Help:      "Rows removed by a cleaning rule",
	}, []string{"table", "rule"})
	r.parseFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airbnb_etl",
		Name:      "parse_failures_total",
		Help:      "Cells that could not be parsed, by reason",
	}, []string{"table", "column", "reason"})
	r.stageDuration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airbnb_etl",
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent in a stage",
	}, []string{"stage"})
	r.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "airbnb_etl",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time a stage last completed",
	}, []string{"stage"})

	r.reg.MustRegister(r.rows, r.dropped, r.parseFailures, r.stageDuration, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) Rows(stage, table string, n int) {
	if r == nil {
		return
	}
	r.rows.WithLabelValues(stage, table).Set(float64(n))
}

func (r *Recorder) Dropped(table, rule string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.dropped.WithLabelValues(table, rule).Add(float64(n))
}

func (r *Recorder) ParseFailures(table, column, reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.parseFailures.WithLabelValues(table, column, reason).Add(float64(n))
}

// StageDone records how long a stage took and marks it successful.
func (r *Recorder) StageDone(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Set(d.Seconds())
	r.lastSuccess.WithLabelValues(stage).SetToCurrentTime()
}

// Push sends the registry to a Prometheus Pushgateway under job.
func (r *Recorder) Push(url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.reg).Push(); err != nil {
		return fmt.Errorf("metrics: push to %q: %w", url, err)
	}
	return nil
}

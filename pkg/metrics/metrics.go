package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_ingested_total",
		Help: "Total number of tradebook rows ingested",
	}, []string{"status"})

	FIFORuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fifo_runs_total",
		Help: "Total number of FIFO matching passes",
	}, []string{"trigger"})

	FIFORunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fifo_run_duration_seconds",
		Help:    "Duration of FIFO matching passes",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})

	UnmatchedSells = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unmatched_sells_total",
		Help: "Total number of unmatched-sell diagnostics produced",
	})

	SkippedCorporateActions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skipped_corporate_actions_total",
		Help: "Total number of corporate actions skipped by the adjuster",
	})

	TaxReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tax_reports_total",
		Help: "Total number of tax report calculations",
	}, []string{"country", "status"})

	TaxReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tax_report_duration_seconds",
		Help:    "Duration of tax report calculations",
		Buckets: prometheus.DefBuckets,
	}, []string{"country"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordDatabaseQuery(queryType, status string, duration float64) {
	DatabaseQueries.WithLabelValues(queryType, status).Inc()
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(duration)
}

func RecordTradesIngested(status string, count int64) {
	TradesIngested.WithLabelValues(status).Add(float64(count))
}

func RecordTaxReport(country, status string) {
	TaxReports.WithLabelValues(country, status).Inc()
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

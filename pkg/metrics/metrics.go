package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transaction metrics
	TxnBegunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slstore_txn_begun_total",
			Help: "Total number of transactions begun by mode",
		},
		[]string{"mode"},
	)

	TxnCommittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slstore_txn_committed_total",
			Help: "Total number of transactions committed by mode",
		},
		[]string{"mode"},
	)

	TxnAbortedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slstore_txn_aborted_total",
			Help: "Total number of transactions aborted by mode",
		},
		[]string{"mode"},
	)

	TxnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slstore_txn_duration_seconds",
			Help:    "Time a transaction stayed open, from Begin to Commit or Abort",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slstore_commit_duration_seconds",
			Help:    "Time spent draining a staging index into the persistent store",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Staging index metrics
	StagingIndexSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slstore_staging_index_entries",
			Help:    "Number of entries drained from a staging index at commit",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Cursor metrics
	CursorStateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slstore_cursor_state_total",
			Help: "Total number of merged-cursor resolutions by resulting state",
		},
		[]string{"state"},
	)

	// Session cache metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slstore_sessions_active",
			Help: "Number of sessions currently registered in the cache",
		},
	)

	SessionResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slstore_session_resolutions_total",
			Help: "Total number of cookie-to-session resolutions by result",
		},
		[]string{"result"}, // "anonymous", "resolved", "rejected"
	)

	UsersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slstore_users_created_total",
			Help: "Total number of users created",
		},
	)
)

func init() {
	prometheus.MustRegister(TxnBegunTotal)
	prometheus.MustRegister(TxnCommittedTotal)
	prometheus.MustRegister(TxnAbortedTotal)
	prometheus.MustRegister(TxnDuration)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(StagingIndexSize)
	prometheus.MustRegister(CursorStateTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionResolutionsTotal)
	prometheus.MustRegister(UsersCreatedTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

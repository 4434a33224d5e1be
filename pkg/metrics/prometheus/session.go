package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rtftp/rtftpd/pkg/metrics"
)

// sessionMetrics is the Prometheus implementation of metrics.SessionMetrics.
type sessionMetrics struct {
	attachTotal    *prometheus.CounterVec
	attachDuration prometheus.Histogram
	evictions      *prometheus.CounterVec
	active         prometheus.Gauge
	statCache      *prometheus.CounterVec
}

// NewSessionMetrics creates a Prometheus-backed metrics.SessionMetrics.
//
// Returns a nil interface if metrics are not enabled (InitRegistry not
// called); calling a method on that value panics, so callers check for nil.
func NewSessionMetrics() metrics.SessionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &sessionMetrics{
		attachTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rtftpd_session_attach_total",
			Help: "Total NBD attach attempts by outcome.",
		}, []string{"result"}),
		attachDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "rtftpd_session_attach_duration_seconds",
			Help:    "NBD attach duration in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		evictions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rtftpd_session_evictions_total",
			Help: "Total sessions closed and removed from the registry, by reason.",
		}, []string{"reason"}),
		active: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rtftpd_sessions_active",
			Help: "Current number of guest sessions, across all states.",
		}),
		statCache: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rtftpd_stat_cache_results_total",
			Help: "Stat cache lookups by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *sessionMetrics) RecordAttach(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.attachTotal.WithLabelValues(result).Inc()
	m.attachDuration.Observe(duration.Seconds())
}

func (m *sessionMetrics) RecordEviction(reason string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(reason).Inc()
}

func (m *sessionMetrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.active.Set(float64(count))
}

func (m *sessionMetrics) RecordStatCacheResult(outcome string) {
	if m == nil {
		return
	}
	m.statCache.WithLabelValues(outcome).Inc()
}

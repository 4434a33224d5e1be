package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rtftp/rtftpd/pkg/metrics"
)

// transferMetrics is the Prometheus implementation of metrics.TransferMetrics.
type transferMetrics struct {
	active          prometheus.Gauge
	completed       *prometheus.CounterVec
	bytesSent       prometheus.Histogram
	blocksSent      prometheus.Histogram
	duration        *prometheus.HistogramVec
	retransmits     *prometheus.CounterVec
	optionsAccepted *prometheus.CounterVec
}

// NewTransferMetrics creates a Prometheus-backed metrics.TransferMetrics.
//
// Returns a nil interface if metrics are not enabled (InitRegistry not
// called); calling a method on that value panics, so callers check for nil.
func NewTransferMetrics() metrics.TransferMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &transferMetrics{
		active: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rtftpd_transfers_active",
			Help: "Number of RRQ transfers currently in progress.",
		}),
		completed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rtftpd_transfers_completed_total",
			Help: "Total completed transfers by outcome.",
		}, []string{"outcome"}),
		bytesSent: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "rtftpd_transfer_bytes_sent",
			Help:    "Distribution of total bytes sent per transfer.",
			Buckets: []float64{4096, 65536, 1048576, 16777216, 134217728, 1073741824},
		}),
		blocksSent: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "rtftpd_transfer_blocks_sent",
			Help:    "Distribution of DATA blocks sent per transfer.",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rtftpd_transfer_duration_seconds",
			Help:    "Transfer duration in seconds by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		retransmits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rtftpd_transfer_retransmits_total",
			Help: "Total DATA/OACK retransmissions by packet type.",
		}, []string{"packet_type"}),
		optionsAccepted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rtftpd_transfer_options_negotiated_total",
			Help: "Total options accepted during negotiation, by option name and clamped value.",
		}, []string{"option", "value"}),
	}
}

func (m *transferMetrics) RecordTransferStart() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *transferMetrics) RecordTransferEnd(outcome string, bytes int64, blocks int, duration time.Duration) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.completed.WithLabelValues(outcome).Inc()
	m.bytesSent.Observe(float64(bytes))
	m.blocksSent.Observe(float64(blocks))
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *transferMetrics) RecordRetransmit(packetType string) {
	if m == nil {
		return
	}
	m.retransmits.WithLabelValues(packetType).Inc()
}

func (m *transferMetrics) RecordOptionNegotiated(option string, value int) {
	if m == nil {
		return
	}
	m.optionsAccepted.WithLabelValues(option, strconv.Itoa(value)).Inc()
}

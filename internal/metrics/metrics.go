package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pcmtap_active_sessions",
		Help: "Number of capture sessions currently running",
	})
	RingOccupancyBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pcmtap_ring_occupancy_bytes",
		Help: "Ring buffer occupancy observed at the start of the last drain tick",
	})
)

// Counters
var (
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcmtap_sessions_started_total",
		Help: "Total capture sessions started",
	})
	RegistrationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcmtap_registration_failures_total",
		Help: "Device callback registrations rejected by the audio subsystem",
	})
	DrainedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcmtap_drained_bytes_total",
		Help: "Raw float32 bytes read from the ring buffer",
	})
	PCMBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcmtap_pcm_bytes_total",
		Help: "Converted 16-bit PCM bytes appended to the sink",
	})
	DroppedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcmtap_dropped_bytes_total",
		Help: "Raw bytes dropped by the producer because the ring was full",
	})
	OverflowWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcmtap_overflow_warnings_total",
		Help: "High-water warnings emitted by the overflow monitor",
	})
	SinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pcmtap_sink_errors_total",
		Help: "PCM sink failures by operation",
	}, []string{"op"})
)

// Histograms
var (
	DrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pcmtap_drain_duration_ms",
		Help:    "Drain tick duration in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)

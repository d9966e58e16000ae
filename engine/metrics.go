package engine

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics collection for transfers.
type Metrics struct {
	transferDuration *prometheus.HistogramVec
	activeTransfers  *prometheus.GaugeVec
	bytesReceived    *prometheus.CounterVec
}

// NewMetrics creates a transfer metrics collector registered against
// registry. If registry is nil, the default Prometheus registry is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		transferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transfer_duration_seconds",
				Help:    "Transfer duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"method", "status_code", "host"},
		),

		activeTransfers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "transfer_active",
				Help: "Number of transfers currently in flight",
			},
			[]string{"host"},
		),

		bytesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_received_bytes_total",
				Help: "Total response body bytes delivered",
			},
			[]string{"host"},
		),
	}
}

func (m *Metrics) transferStarted(host string) {
	m.activeTransfers.WithLabelValues(host).Inc()
}

func (m *Metrics) transferEnded(host string) {
	m.activeTransfers.WithLabelValues(host).Dec()
}

func (m *Metrics) observeTransfer(method, host string, statusCode int, received int64, duration time.Duration) {
	m.transferDuration.WithLabelValues(method, strconv.Itoa(statusCode), host).Observe(duration.Seconds())
	m.bytesReceived.WithLabelValues(host).Add(float64(received))
}

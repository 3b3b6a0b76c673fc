// Package metrics records lifecycle metrics in a per-process Prometheus
// registry and can dump them as a node-exporter textfile.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// Recorder implements ports.MetricsRecorder.
type Recorder struct {
	registry        *prometheus.Registry
	generations     *prometheus.CounterVec
	images          prometheus.Counter
	spendCents      prometheus.Counter
	pollAttempts    prometheus.Counter
	transportErrors *prometheus.CounterVec
	duration        prometheus.Histogram
}

// New registers the afcover collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afcover_generations_total",
				Help: "Lifecycle runs by final stage",
			},
			[]string{"stage"},
		),
		images: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "afcover_images_delivered_total",
				Help: "Images downloaded and charged",
			},
		),
		spendCents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "afcover_spend_cents_total",
				Help: "Charged spend in US cents",
			},
		),
		pollAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "afcover_poll_attempts_total",
				Help: "Status checks sent to the queue",
			},
		),
		transportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "afcover_transport_errors_total",
				Help: "Queue API errors by kind",
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "afcover_lifecycle_duration_seconds",
				Help:    "Wall time of a lifecycle run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s..128s
			},
		),
	}
	r.registry.MustRegister(r.generations, r.images, r.spendCents, r.pollAttempts, r.transportErrors, r.duration)
	return r
}

func (r *Recorder) ObserveLifecycle(stage domain.Stage, elapsed time.Duration) {
	r.generations.WithLabelValues(string(stage)).Inc()
	r.duration.Observe(elapsed.Seconds())
}

func (r *Recorder) AddImages(n int) {
	if n > 0 {
		r.images.Add(float64(n))
	}
}

func (r *Recorder) AddSpend(amount domain.Money) {
	if amount.IsPositive() {
		r.spendCents.Add(amount.Mul(decimal.NewFromInt(100)).InexactFloat64())
	}
}

func (r *Recorder) IncPollAttempt() {
	r.pollAttempts.Inc()
}

func (r *Recorder) IncTransportError(kind domain.ErrorKind) {
	r.transportErrors.WithLabelValues(string(kind)).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the registry to path atomically. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

var _ ports.MetricsRecorder = (*Recorder)(nil)

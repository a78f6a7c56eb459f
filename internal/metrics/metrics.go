package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nao1215/freezedry/internal/model"
)

const namespace = "freezedry"

// Fetch results.
const (
	ResultOK     = "ok"
	ResultCached = "cached"
	ResultError  = "error"
)

// Metrics owns a private registry and the collectors registered in it.
type Metrics struct {
	registry *prometheus.Registry

	fetches         *prometheus.CounterVec
	fetchBytes      prometheus.Counter
	fetchDuration   *prometheus.HistogramVec
	captures        *prometheus.CounterVec
	captureDuration prometheus.Histogram
	captureBytes    prometheus.Histogram
	resources       *prometheus.CounterVec
}

// New returns collectors registered in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Number of resource fetches by result.",
		}, []string{"result"}),
		fetchBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_bytes_total",
			Help:      "Bytes of response bodies fetched from the network.",
		}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of network fetches by status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		captures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Number of captures by status.",
		}, []string{"status"}),
		captureDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Duration of captures.",
			Buckets:   []float64{1, 5, 10, 15, 30, 60, 120},
		}),
		captureBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_bytes",
			Help:      "Size of the archived root document.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
		resources: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_total",
			Help:      "Number of subresources by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records one fetch. status is zero when no response arrived.
func (m *Metrics) ObserveFetch(status, size int, d time.Duration, cached bool, err error) {
	switch {
	case err != nil:
		m.fetches.WithLabelValues(ResultError).Inc()
	case cached:
		m.fetches.WithLabelValues(ResultCached).Inc()
		return
	default:
		m.fetches.WithLabelValues(ResultOK).Inc()
		m.fetchBytes.Add(float64(size))
	}
	m.fetchDuration.WithLabelValues(strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveCapture records a finished capture.
func (m *Metrics) ObserveCapture(c *model.Capture) {
	status := "success"
	if !c.Succeeded() {
		status = "failure"
	}
	m.captures.WithLabelValues(status).Inc()
	m.captureDuration.Observe(c.Duration().Seconds())
	if c.Succeeded() {
		m.captureBytes.Observe(float64(c.Bytes))
	}
	for typ, n := range c.Resources {
		m.resources.WithLabelValues(typ, "resolved").Add(float64(n))
	}
	for _, f := range c.Failures {
		m.resources.WithLabelValues(f.Type, "failed").Inc()
	}
}

// WriteToTextfile writes the registry to path atomically.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

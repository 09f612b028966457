// Package metrics exposes pipeline counters as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vidsurface"

// Drop reasons used as the "reason" label of the dropped counter.
const (
	DropRegistryMiss = "registry_miss"
	DropDetached     = "detached"
	DropLate         = "late"
	DropPresent      = "present_error"
)

// Metrics holds the pipeline collectors. Each Metrics has its own registry
// so several pipelines (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	decoded          *prometheus.CounterVec
	decodeErrors     *prometheus.CounterVec
	dropped          *prometheus.CounterVec
	presented        *prometheus.CounterVec
	superseded       *prometheus.CounterVec
	reconfigurations *prometheus.CounterVec
	openStreams      prometheus.Gauge
}

// New creates and registers the pipeline collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Frames produced by decode sessions.",
		}, []string{"stream"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Payloads that failed to decode.",
		}, []string{"stream"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Decoded frames that were never presented.",
		}, []string{"stream", "reason"}),
		presented: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_presented_total",
			Help:      "Frames handed to a render surface.",
		}, []string{"stream"}),
		superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_superseded_total",
			Help:      "Presented frames replaced before any draw tick displayed them.",
		}, []string{"stream"}),
		reconfigurations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surface_reconfigurations_total",
			Help:      "Surface reconfigurations caused by format changes.",
		}, []string{"stream"}),
		openStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_streams",
			Help:      "Streams currently open.",
		}),
	}
	m.registry.MustRegister(
		m.decoded,
		m.decodeErrors,
		m.dropped,
		m.presented,
		m.superseded,
		m.reconfigurations,
		m.openStreams,
		prometheus.NewGoCollector(),
	)
	return m
}

// Decoded counts n frames produced for stream.
func (m *Metrics) Decoded(stream string, n int) {
	m.decoded.WithLabelValues(stream).Add(float64(n))
}

// DecodeError counts a payload of stream that failed to decode.
func (m *Metrics) DecodeError(stream string) {
	m.decodeErrors.WithLabelValues(stream).Inc()
}

// Dropped counts a decoded frame of stream that was not presented. reason
// is one of the Drop constants.
func (m *Metrics) Dropped(stream, reason string) {
	m.dropped.WithLabelValues(stream, reason).Inc()
}

// Presented counts a frame handed to the surface of stream.
func (m *Metrics) Presented(stream string) {
	m.presented.WithLabelValues(stream).Inc()
}

// Superseded counts n presented frames replaced before a draw showed them.
func (m *Metrics) Superseded(stream string, n uint64) {
	if n > 0 {
		m.superseded.WithLabelValues(stream).Add(float64(n))
	}
}

// Reconfigured counts a surface reconfiguration of stream.
func (m *Metrics) Reconfigured(stream string) {
	m.reconfigurations.WithLabelValues(stream).Inc()
}

// StreamOpened increments the open streams gauge.
func (m *Metrics) StreamOpened() { m.openStreams.Inc() }

// StreamClosed decrements the open streams gauge.
func (m *Metrics) StreamClosed() { m.openStreams.Dec() }

// DroppedCount returns the current value of the dropped counter.
func (m *Metrics) DroppedCount(stream, reason string) float64 {
	return counterValue(m.dropped.WithLabelValues(stream, reason))
}

// ReconfiguredCount returns the current value of the reconfiguration counter.
func (m *Metrics) ReconfiguredCount(stream string) float64 {
	return counterValue(m.reconfigurations.WithLabelValues(stream))
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the exposition handler for m.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

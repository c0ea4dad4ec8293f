// Package observability exports monitor activity as Prometheus metrics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/monbridge/internal/bridge"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "monbridge"

// Metrics implements bridge.Observer on a private Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	live     prometheus.Gauge
	opened   prometheus.Counter
	calls    *prometheus.CounterVec
	blocks   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	verdicts prometheus.Counter
}

// New creates metrics under namespace. An empty namespace uses
// DefaultNamespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitors_live",
			Help:      "Monitors initialized and not yet released.",
		}),
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitors_opened_total",
			Help:      "Monitors initialized since start.",
		}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_calls_total",
			Help:      "Ingestion calls by mode and outcome.",
		}, []string{"mode", "status"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdict_blocks_total",
			Help:      "Verdict blocks returned to the host, by mode.",
		}, []string{"mode"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_latency_seconds",
			Help:      "Time from host call to flattened verdict array.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"mode"}),
		verdicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdict_values_total",
			Help:      "Individual verdict values returned to the host.",
		}),
	}

	m.registry.MustRegister(m.live, m.opened, m.calls, m.blocks, m.latency, m.verdicts)
	return m
}

var _ bridge.Observer = (*Metrics)(nil)

func (m *Metrics) MonitorOpened() {
	m.live.Inc()
	m.opened.Inc()
}

func (m *Metrics) MonitorReleased() {
	m.live.Dec()
}

func (m *Metrics) Ingested(mode bridge.MarshalMode, res bridge.Result, elapsed time.Duration) {
	m.calls.WithLabelValues(string(mode), res.Status.String()).Inc()
	m.blocks.WithLabelValues(string(mode)).Add(float64(res.Frames))
	m.latency.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
	m.verdicts.Add(float64(len(res.Values)))
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves /metrics and a /health probe.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	return mux
}

// Package metrics holds the prometheus instrumentation of the engine.
// All collectors live on a private registry so tests never collide on
// the global default.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	CyclesStarted     prometheus.Counter
	CyclesCompleted   prometheus.Counter
	ComponentAttempts *prometheus.CounterVec
	LastCycleSeconds  prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		CyclesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "phorecast",
			Name:      "cycles_started_total",
			Help:      "Number of forecast cycles started.",
		}),
		CyclesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "phorecast",
			Name:      "cycles_completed_total",
			Help:      "Number of forecast cycles that ran to completion.",
		}),
		ComponentAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phorecast",
			Name:      "component_attempts_total",
			Help:      "Component execution attempts by category and result.",
		}, []string{"category", "result"}),
		LastCycleSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "phorecast",
			Name:      "last_cycle_duration_seconds",
			Help:      "Wall-clock duration of the most recent cycle.",
		}),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

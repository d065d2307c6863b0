// Package metrics exposes dev-server build activity as Prometheus metrics,
// grounded on the corpus's daemon/prometheus bridge pattern (build counters
// and gauges registered once, updated after each build).
package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder tracks dev-server build outcomes as Prometheus metrics.
type Recorder struct {
	once sync.Once

	registry *prom.Registry

	buildsTotal   *prom.CounterVec
	buildDuration prom.Histogram
	pagesTotal    prom.Gauge
	clients       prom.Gauge
}

// NewRecorder constructs and registers the dev server's metrics against reg.
// A nil reg gets a fresh registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{registry: reg}
	r.once.Do(func() {
		r.buildsTotal = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bengal",
			Name:      "builds_total",
			Help:      "Dev server builds by outcome",
		}, []string{"outcome"})
		r.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "bengal",
			Name:      "build_duration_seconds",
			Help:      "Build duration, including rebuilds triggered by file changes",
			Buckets:   prom.DefBuckets,
		})
		r.pagesTotal = prom.NewGauge(prom.GaugeOpts{
			Namespace: "bengal",
			Name:      "pages_total",
			Help:      "Pages produced by the most recent build",
		})
		r.clients = prom.NewGauge(prom.GaugeOpts{
			Namespace: "bengal",
			Name:      "live_reload_clients",
			Help:      "Connected live-reload WebSocket clients",
		})
		reg.MustRegister(
			r.buildsTotal, r.buildDuration, r.pagesTotal, r.clients,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return r
}

// Registry returns the underlying Prometheus registry for serving /metrics.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// ObserveBuild records one build's outcome, duration, and resulting page count.
func (r *Recorder) ObserveBuild(outcome string, d time.Duration, pages int) {
	if r == nil {
		return
	}
	r.buildsTotal.WithLabelValues(outcome).Inc()
	r.buildDuration.Observe(d.Seconds())
	r.pagesTotal.Set(float64(pages))
}

// SetClients records the current live-reload client count.
func (r *Recorder) SetClients(n int) {
	if r == nil {
		return
	}
	r.clients.Set(float64(n))
}

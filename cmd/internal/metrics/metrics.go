// Package metrics exposes process counters in the Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucashicks1/cssebot/cmd/internal/cache"
	"github.com/lucashicks1/cssebot/cmd/internal/studio"
	"github.com/lucashicks1/cssebot/cmd/internal/wizard"
)

const namespace = "cssebot"

// Registry owns every collector the bot reports.
type Registry struct {
	reg *prometheus.Registry

	cacheEvents  *prometheus.CounterVec
	wizardEvents *prometheus.CounterVec
	reconciles   *prometheus.CounterVec
	interactions *prometheus.CounterVec
	gateway      *prometheus.CounterVec
}

// New builds a registry with the Go runtime and process collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Cache lookups by cache name and result (hit, miss, expire).",
		}, []string{"cache", "event"}),
		wizardEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wizard",
			Name:      "transitions_total",
			Help:      "Wizard session transitions by flow and event.",
		}, []string{"flow", "event"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "studio",
			Name:      "reconcile_total",
			Help:      "Successful studio reconciliations by outcome.",
		}, []string{"outcome"}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discord",
			Name:      "interactions_total",
			Help:      "Handled interactions by type and status.",
		}, []string{"type", "status"}),
		gateway: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discord",
			Name:      "gateway_events_total",
			Help:      "Gateway dispatch events received by event name.",
		}, []string{"event"}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.cacheEvents,
		r.wizardEvents,
		r.reconciles,
		r.interactions,
		r.gateway,
	)
	return r
}

// Handler serves the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Cache returns a cache.Metrics reporting under name.
func (r *Registry) Cache(name string) cache.Metrics {
	return cacheMetrics{
		hit:    r.cacheEvents.WithLabelValues(name, "hit"),
		miss:   r.cacheEvents.WithLabelValues(name, "miss"),
		expire: r.cacheEvents.WithLabelValues(name, "expire"),
	}
}

type cacheMetrics struct {
	hit, miss, expire prometheus.Counter
}

func (m cacheMetrics) Hit()    { m.hit.Inc() }
func (m cacheMetrics) Miss()   { m.miss.Inc() }
func (m cacheMetrics) Expire() { m.expire.Inc() }

// Wizard returns a wizard.Observer counting transitions of flow.
func (r *Registry) Wizard(flow string) wizard.Observer {
	return wizardObserver{vec: r.wizardEvents, flow: flow}
}

type wizardObserver struct {
	vec  *prometheus.CounterVec
	flow string
}

func (o wizardObserver) Transition(event string) { o.vec.WithLabelValues(o.flow, event).Inc() }

// Reconciled implements studio.OutcomeObserver.
func (r *Registry) Reconciled(o studio.Outcome) { r.reconciles.WithLabelValues(o.String()).Inc() }

// Interaction counts one handled interaction.
func (r *Registry) Interaction(kind, status string) { r.interactions.WithLabelValues(kind, status).Inc() }

// GatewayEvent counts one gateway dispatch.
func (r *Registry) GatewayEvent(name string) { r.gateway.WithLabelValues(name).Inc() }

var _ studio.OutcomeObserver = (*Registry)(nil)

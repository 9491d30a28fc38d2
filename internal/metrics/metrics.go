// Package metrics exposes Prometheus counters for the diagnostic flow and
// turns engine lifecycle events into both log lines and metric updates.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	NodeVisits *prometheus.CounterVec
	Restarts   prometheus.Counter
	Persisted  *prometheus.CounterVec
	Invoices   *prometheus.CounterVec
	Payments   prometheus.Counter
	TreeSwaps  *prometheus.CounterVec
}

// New registers the armlab collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "armlab_node_visits_total",
				Help: "Total number of node visits",
			},
			[]string{"node_id", "kind"},
		),
		Restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "armlab_restarts_total",
			Help: "Total number of wizard restarts, including tree swap resets",
		}),
		Persisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "armlab_results_persisted_total",
				Help: "Diagnostic result saves by outcome",
			},
			[]string{"status", "stale"},
		),
		Invoices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "armlab_invoices_total",
				Help: "Premium invoice attempts by outcome",
			},
			[]string{"outcome"},
		),
		Payments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "armlab_payments_confirmed_total",
			Help: "Successful payments confirmed by the bot",
		}),
		TreeSwaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "armlab_tree_swaps_total",
				Help: "Active tree changes by source",
			},
			[]string{"source"},
		),
	}

	m.registry.MustRegister(
		m.NodeVisits, m.Restarts, m.Persisted, m.Invoices, m.Payments, m.TreeSwaps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InvoiceOutcome records an invoice attempt; it fits payment.WithInvoiceHook.
func (m *Metrics) InvoiceOutcome(outcome string) {
	m.Invoices.WithLabelValues(outcome).Inc()
}

// PaymentConfirmed records a bot-confirmed payment.
func (m *Metrics) PaymentConfirmed(*domain.Purchase) {
	m.Payments.Inc()
}

// TreeChanged records a catalog swap; it fits catalog.WithChangeHook.
func (m *Metrics) TreeChanged(ref domain.TreeRef) {
	m.TreeSwaps.WithLabelValues(string(ref.Source)).Inc()
}

// Hooks returns lifecycle hooks that log every event and record metrics.
// A nil logger disables logging.
func (m *Metrics) Hooks(logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = logging.NewNop()
	}
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("node_enter",
				"session_id", e.SessionID,
				"node_id", e.NodeID,
				"kind", e.NodeKind,
			)
			m.NodeVisits.WithLabelValues(e.NodeID, string(e.NodeKind)).Inc()
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("node_leave", "session_id", e.SessionID, "node_id", e.NodeID)
		},
		OnRestart: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Info("restart", "session_id", e.SessionID)
			m.Restarts.Inc()
		},
		OnPersist: func(ctx context.Context, e *domain.PersistEvent) {
			logger.Info("persist",
				"session_id", e.SessionID,
				"tree_id", e.TreeID,
				"node_id", e.NodeID,
				"status", e.Status,
				"stale", e.Stale,
			)
			m.Persisted.WithLabelValues(string(e.Status), strconv.FormatBool(e.Stale)).Inc()
		},
	}
}

// Chain runs every non-nil hook of each set in order.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, s := range sets {
		out.OnNodeEnter = chainNode(out.OnNodeEnter, s.OnNodeEnter)
		out.OnNodeLeave = chainNode(out.OnNodeLeave, s.OnNodeLeave)
		out.OnRestart = chainNode(out.OnRestart, s.OnRestart)
		out.OnPersist = chainPersist(out.OnPersist, s.OnPersist)
	}
	return out
}

func chainNode(a, b func(context.Context, *domain.NodeEvent)) func(context.Context, *domain.NodeEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *domain.NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainPersist(a, b func(context.Context, *domain.PersistEvent)) func(context.Context, *domain.PersistEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *domain.PersistEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

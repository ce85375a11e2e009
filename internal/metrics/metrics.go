// Package metrics wraps the Prometheus collectors exposed by the fan-out
// server (spec.md §9 ambient stack).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps every Prometheus collector the server reports.
type Registry struct {
	ActiveSessions        prometheus.Gauge
	SessionsClosedBackpressure prometheus.Counter
	MessagesIngested      prometheus.Counter
	MessagesDeliveredByChannel *prometheus.CounterVec
	FilterBuildErrors     *prometheus.CounterVec
	AcceptErrors          prometheus.Counter
	ConnectionsRateLimited *prometheus.CounterVec
	FilterEntriesByKind   *prometheus.GaugeVec
}

// NewRegistry creates and registers every collector.
func NewRegistry() *Registry {
	return &Registry{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fanout_sessions_active",
			Help: "Number of active subscription sessions.",
		}),
		SessionsClosedBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fanout_sessions_closed_backpressure_total",
			Help: "Total number of sessions closed because their outbound queue overflowed.",
		}),
		MessagesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fanout_messages_ingested_total",
			Help: "Total number of canonical messages read from the ingestion source.",
		}),
		MessagesDeliveredByChannel: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fanout_messages_delivered_total",
			Help: "Total number of update frames delivered, by wire channel.",
		}, []string{"channel"}),
		FilterBuildErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fanout_filter_build_errors_total",
			Help: "Total number of filter build failures, by error kind.",
		}, []string{"kind"}),
		AcceptErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fanout_accept_errors_total",
			Help: "Total number of connection accept/handshake errors.",
		}),
		ConnectionsRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fanout_connections_rate_limited_total",
			Help: "Total number of connection attempts rejected by the admission rate limiter, by scope.",
		}, []string{"scope"}),
		FilterEntriesByKind: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fanout_filter_entries",
			Help: "Number of named filter entries currently installed across all active sessions, by channel kind.",
		}, []string{"kind"}),
	}
}

// SetActiveSessions implements session.HubMetrics.
func (r *Registry) SetActiveSessions(n int) { r.ActiveSessions.Set(float64(n)) }

// IncClosedOnBackpressure implements session.HubMetrics.
func (r *Registry) IncClosedOnBackpressure() { r.SessionsClosedBackpressure.Inc() }

// IncMessagesIngested implements session.HubMetrics.
func (r *Registry) IncMessagesIngested() { r.MessagesIngested.Inc() }

// AdjustFilterEntries implements session.FilterMetrics.
func (r *Registry) AdjustFilterEntries(kind string, delta int) {
	r.FilterEntriesByKind.WithLabelValues(kind).Add(float64(delta))
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics exposes Prometheus counters for family lifecycle events
// and HTTP traffic. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coparent"

// Metrics holds the collectors registered for one process
type Metrics struct {
	invitations   *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	roleSync      *prometheus.CounterVec
	sweptExpired  prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invitation_transitions_total",
			Help:      "Invitation lifecycle transitions by resulting status.",
		}, []string{"status"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_transfers_total",
			Help:      "Admin transfer attempts by outcome.",
		}, []string{"outcome"}),
		roleSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idp_role_sync_total",
			Help:      "Identity provider role updates by result.",
		}, []string{"result"}),
		sweptExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invitations_swept_total",
			Help:      "Pending invitations flipped to EXPIRED by the housekeeping sweep.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.invitations, m.transfers, m.roleSync, m.sweptExpired, m.httpRequests, m.httpDurations)
	return m
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// InvitationTransition records an invitation reaching status
func (m *Metrics) InvitationTransition(status string) {
	if m == nil {
		return
	}
	m.invitations.WithLabelValues(status).Inc()
}

// Swept records invitations expired by the sweep
func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptExpired.Add(float64(n))
}

// Transfer records the outcome of an admin transfer
func (m *Metrics) Transfer(outcome string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(outcome).Inc()
}

// RoleSync records one identity provider call
func (m *Metrics) RoleSync(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.roleSync.WithLabelValues(result).Inc()
}

// Request records a completed HTTP request
func (m *Metrics) Request(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDurations.WithLabelValues(route).Observe(elapsed.Seconds())
}

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects counters and latencies for auth flows
type Metrics interface {
	ObserveHash(op string, d time.Duration)
	SessionIssued(flow string)
	LoginAttempt(result string)
	GateRejected(stage GateStage)
	ResetRequested(result string)
	ResetCompleted(result string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveHash(string, time.Duration) {}
func (noopMetrics) SessionIssued(string)              {}
func (noopMetrics) LoginAttempt(string)               {}
func (noopMetrics) GateRejected(GateStage)            {}
func (noopMetrics) ResetRequested(string)             {}
func (noopMetrics) ResetCompleted(string)             {}

// PrometheusMetrics implements Metrics with client_golang collectors
type PrometheusMetrics struct {
	hashDuration   *prometheus.HistogramVec
	sessionsIssued *prometheus.CounterVec
	loginAttempts  *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
	resetRequests  *prometheus.CounterVec
	resetCompleted *prometheus.CounterVec
}

// NewPrometheusMetrics registers the auth collectors on reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		hashDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_password_hash_duration_seconds",
			Help:    "Latency of bcrypt hash and verify operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		sessionsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_sessions_issued_total",
			Help: "Total number of session tokens issued",
		}, []string{"flow"}),
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Total number of login attempts by result",
		}, []string{"result"}),
		gateRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_gate_rejections_total",
			Help: "Total number of requests rejected by the access gate, by last reached stage",
		}, []string{"stage"}),
		resetRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_reset_requests_total",
			Help: "Total number of password reset requests by result",
		}, []string{"result"}),
		resetCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_reset_completions_total",
			Help: "Total number of password reset completions by result",
		}, []string{"result"}),
	}
}

func (m *PrometheusMetrics) ObserveHash(op string, d time.Duration) {
	m.hashDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *PrometheusMetrics) SessionIssued(flow string) {
	m.sessionsIssued.WithLabelValues(flow).Inc()
}

func (m *PrometheusMetrics) LoginAttempt(result string) {
	m.loginAttempts.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) GateRejected(stage GateStage) {
	m.gateRejections.WithLabelValues(stage.String()).Inc()
}

func (m *PrometheusMetrics) ResetRequested(result string) {
	m.resetRequests.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) ResetCompleted(result string) {
	m.resetCompleted.WithLabelValues(result).Inc()
}

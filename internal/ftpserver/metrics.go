package ftpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "ftplab"

// Metrics is a server.MetricsCollector backed by Prometheus. All series live
// on a private registry so several servers can run in one process.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	commands         *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	transfers        *prometheus.CounterVec
	transferBytes    *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	connections      *prometheus.CounterVec
	authentications  *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// NewMetrics registers the server metrics plus the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "FTP commands processed, by command and result.",
		}, []string{"command", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent handling FTP commands.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"command"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfers_total",
			Help:      "Completed data transfers, by operation.",
		}, []string{"operation"}),
		transferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transfer_bytes_total",
			Help:      "Bytes moved over data connections, by operation.",
		}, []string{"operation"}),
		transferDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "transfer_duration_seconds",
			Help:      "Duration of data transfers.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"operation"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_total",
			Help:      "Control connections, by outcome and rejection reason.",
		}, []string{"result", "reason"}),
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "authentications_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Control connections currently open.",
		}),
	}

	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.transfers,
		m.transferBytes,
		m.transferDuration,
		m.connections,
		m.authentications,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordCommand counts a command seen by the session wrapper and its latency.
func (m *Metrics) RecordCommand(cmd string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	cmd = strings.ToUpper(cmd)
	m.commands.WithLabelValues(cmd, result(success)).Inc()
	m.commandDuration.WithLabelValues(cmd).Observe(d.Seconds())
}

// RecordTransfer counts a completed transfer reported by the engine.
func (m *Metrics) RecordTransfer(op string, bytes int64, d time.Duration) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(op).Inc()
	m.transferBytes.WithLabelValues(op).Add(float64(bytes))
	m.transferDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordConnection counts a control connection by outcome and reason.
func (m *Metrics) RecordConnection(accepted bool, reason string) {
	if m == nil {
		return
	}
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	m.connections.WithLabelValues(outcome, reason).Inc()
}

// RecordAuthentication counts a login attempt. The user name is dropped to
// keep label cardinality fixed.
func (m *Metrics) RecordAuthentication(success bool, _ string) {
	if m == nil {
		return
	}
	m.authentications.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.activeSessions.Inc()
	}
}

func (m *Metrics) sessionClosed() {
	if m != nil {
		m.activeSessions.Dec()
	}
}

// Package metrics exposes the process-wide server metrics as prometheus
// collectors: connection churn, chunk reassembly volume, service faults by
// status code, and discovery registration outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alxayo/opcua-server/internal/ua/status"
)

// ServerMetrics is the shared metrics handle. All methods are nil-safe so
// callers that run without a registry (tests, tools) can pass nil.
type ServerMetrics struct {
	serverInfo          *prometheus.GaugeVec
	activeConnections   prometheus.Gauge
	acceptedConnections prometheus.Counter
	rejectedConnections prometheus.Counter
	chunksReassembled   prometheus.Counter
	requestsDispatched  prometheus.Counter
	serviceFaults       *prometheus.CounterVec
	discoveryRegister   *prometheus.CounterVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		serverInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "opcua_server_info",
			Help: "Static server identity; value is always 1.",
		}, []string{"application_name", "application_uri", "product_uri"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcua_active_connections",
			Help: "Currently tracked client connections.",
		}),
		acceptedConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_accepted_connections_total",
			Help: "Connections accepted since start.",
		}),
		rejectedConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_rejected_connections_total",
			Help: "Connections rejected or failed during handshake.",
		}),
		chunksReassembled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_chunks_reassembled_total",
			Help: "Secure-conversation chunks fed to the assembler.",
		}),
		requestsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_requests_dispatched_total",
			Help: "Service requests handed to the dispatcher.",
		}),
		serviceFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opcua_service_faults_total",
			Help: "Service faults returned, by status code.",
		}, []string{"status_code"}),
		discoveryRegister: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opcua_discovery_registrations_total",
			Help: "Discovery registration attempts, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.serverInfo,
		m.activeConnections,
		m.acceptedConnections,
		m.rejectedConnections,
		m.chunksReassembled,
		m.requestsDispatched,
		m.serviceFaults,
		m.discoveryRegister,
	)
	return m
}

// SetServerInfo records the server identity labels.
func (m *ServerMetrics) SetServerInfo(applicationName, applicationURI, productURI string) {
	if m == nil {
		return
	}
	m.serverInfo.WithLabelValues(applicationName, applicationURI, productURI).Set(1)
}

// ConnectionAccepted bumps the accept counters.
func (m *ServerMetrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.acceptedConnections.Inc()
	m.activeConnections.Inc()
}

// ConnectionClosed decrements the active gauge.
func (m *ServerMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// ConnectionRejected counts a failed accept or handshake.
func (m *ServerMetrics) ConnectionRejected() {
	if m == nil {
		return
	}
	m.rejectedConnections.Inc()
}

// ChunkReassembled counts one chunk fed to an assembler.
func (m *ServerMetrics) ChunkReassembled() {
	if m == nil {
		return
	}
	m.chunksReassembled.Inc()
}

// RequestDispatched counts one decoded service request.
func (m *ServerMetrics) RequestDispatched() {
	if m == nil {
		return
	}
	m.requestsDispatched.Inc()
}

// ServiceFault counts one fault by its status code name.
func (m *ServerMetrics) ServiceFault(code status.Code) {
	if m == nil {
		return
	}
	m.serviceFaults.WithLabelValues(code.String()).Inc()
}

// DiscoveryRegistration counts one registration attempt.
func (m *ServerMetrics) DiscoveryRegistration(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.discoveryRegister.WithLabelValues(outcome).Inc()
}

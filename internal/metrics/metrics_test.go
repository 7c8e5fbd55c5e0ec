package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/alxayo/opcua-server/internal/ua/status"
)

func TestCollectorsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetServerInfo("srv", "urn:srv", "urn:prod")
	m.ConnectionAccepted()
	m.ConnectionAccepted()
	m.ConnectionClosed()
	m.ConnectionRejected()
	m.ChunkReassembled()
	m.RequestDispatched()
	m.ServiceFault(status.BadTooManyOperations)
	m.ServiceFault(status.BadTooManyOperations)
	m.DiscoveryRegistration(true)
	m.DiscoveryRegistration(false)

	require.Equal(t, float64(2), testutil.ToFloat64(m.acceptedConnections))
	require.Equal(t, float64(1), testutil.ToFloat64(m.activeConnections))
	require.Equal(t, float64(1), testutil.ToFloat64(m.rejectedConnections))
	require.Equal(t, float64(2), testutil.ToFloat64(m.serviceFaults.WithLabelValues("BadTooManyOperations")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.discoveryRegister.WithLabelValues("success")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.discoveryRegister.WithLabelValues("failure")))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *ServerMetrics
	require.NotPanics(t, func() {
		m.SetServerInfo("a", "b", "c")
		m.ConnectionAccepted()
		m.ConnectionClosed()
		m.ConnectionRejected()
		m.ChunkReassembled()
		m.RequestDispatched()
		m.ServiceFault(status.Good)
		m.DiscoveryRegistration(true)
	})
}

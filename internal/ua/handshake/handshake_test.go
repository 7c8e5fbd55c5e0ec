package handshake

import (
	"testing"

	"github.com/stretchr/testify/require"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
	"github.com/alxayo/opcua-server/internal/ua/tcp"
)

func serverLimits() Limits {
	return Limits{ReceiveBufferSize: 65536, SendBufferSize: 65536, MaxMessageSize: 65536, MaxChunkCount: 5}
}

func TestHelloAcknowledgeExchange(t *testing.T) {
	m := New(serverLimits())
	require.Equal(t, StateNew, m.State())

	ack, err := m.OnHello(&tcp.Hello{
		ReceiveBufferSize: 65536,
		SendBufferSize:    65536,
		EndpointURL:       "opc.tcp://127.0.0.1:4840",
	})
	require.NoError(t, err)
	require.Equal(t, StateAcknowledged, m.State())
	require.Equal(t, uint32(65536), ack.ReceiveBufferSize)
	require.Equal(t, uint32(65536), ack.SendBufferSize)
	require.Equal(t, uint32(65536), ack.MaxMessageSize)
	require.Equal(t, uint32(5), ack.MaxChunkCount)
}

func TestHelloNegotiatesMinimum(t *testing.T) {
	m := New(serverLimits())
	ack, err := m.OnHello(&tcp.Hello{
		ReceiveBufferSize: 8192,
		SendBufferSize:    16384,
		MaxMessageSize:    32768,
		MaxChunkCount:     10,
		EndpointURL:       "opc.tcp://host:4840/x",
	})
	require.NoError(t, err)
	// Server send side is capped by the client's receive buffer and vice
	// versa.
	require.Equal(t, uint32(8192), ack.SendBufferSize)
	require.Equal(t, uint32(16384), ack.ReceiveBufferSize)
	require.Equal(t, uint32(32768), ack.MaxMessageSize)
	require.Equal(t, uint32(5), ack.MaxChunkCount)
	require.Equal(t, m.Limits().SendBufferSize, ack.SendBufferSize)
}

func TestHelloZeroMeansUnlimited(t *testing.T) {
	m := New(serverLimits())
	ack, err := m.OnHello(&tcp.Hello{
		ReceiveBufferSize: 65536,
		SendBufferSize:    65536,
		MaxMessageSize:    0,
		MaxChunkCount:     0,
		EndpointURL:       "opc.tcp://127.0.0.1:4840",
	})
	require.NoError(t, err)
	require.Equal(t, uint32(65536), ack.MaxMessageSize)
	require.Equal(t, uint32(5), ack.MaxChunkCount)
}

func TestHelloBadEndpointURL(t *testing.T) {
	for _, u := range []string{"", "http://host:4840", "opc.tcp://"} {
		m := New(serverLimits())
		_, err := m.OnHello(&tcp.Hello{EndpointURL: u})
		require.Error(t, err, "url %q", u)
		require.Equal(t, status.BadTcpEndpointUrlInvalid, errs.StatusCodeOf(err))
		require.True(t, m.Closed())
	}
}

func TestDuplicateHelloRejected(t *testing.T) {
	m := New(serverLimits())
	h := &tcp.Hello{EndpointURL: "opc.tcp://127.0.0.1:4840"}
	_, err := m.OnHello(h)
	require.NoError(t, err)
	_, err = m.OnHello(h)
	require.Error(t, err)
	require.Equal(t, status.BadTcpMessageTypeInvalid, errs.StatusCodeOf(err))
}

func TestChunkBeforeChannelOpenRejected(t *testing.T) {
	m := New(serverLimits())
	err := m.OnChunk()
	require.Error(t, err)
	require.Equal(t, status.BadTcpMessageTypeInvalid, errs.StatusCodeOf(err))
	require.True(t, m.Closed())
}

func TestOpenChannelBeforeHelloRejected(t *testing.T) {
	m := New(serverLimits())
	err := m.OnOpenSecureChannel()
	require.Error(t, err)
	require.True(t, m.Closed())
}

func TestFullProgression(t *testing.T) {
	m := New(serverLimits())
	_, err := m.OnHello(&tcp.Hello{EndpointURL: "opc.tcp://127.0.0.1:4840"})
	require.NoError(t, err)

	require.NoError(t, m.OnOpenSecureChannel())
	require.Equal(t, StateSecureChannelOpen, m.State())

	require.NoError(t, m.OnChunk())

	m.OnSessionActivated()
	require.Equal(t, StateSessionActive, m.State())

	// Renew on a live channel stays put.
	require.NoError(t, m.OnOpenSecureChannel())
	require.Equal(t, StateSessionActive, m.State())

	m.Close()
	require.True(t, m.Closed())
}

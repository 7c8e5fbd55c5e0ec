// Package handshake implements the per-connection state machine that gates
// which message kinds a connection may carry at each stage of its life.
package handshake

import (
	"fmt"
	"net/url"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
	"github.com/alxayo/opcua-server/internal/ua/tcp"
)

// State is one stage of the connection lifecycle.
type State int

const (
	StateNew State = iota
	StateHelloReceived
	StateAcknowledged
	StateSecureChannelOpen
	StateSessionActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateHelloReceived:
		return "HelloReceived"
	case StateAcknowledged:
		return "Acknowledged"
	case StateSecureChannelOpen:
		return "SecureChannelOpen"
	case StateSessionActive:
		return "SessionActive"
	default:
		return "Closing"
	}
}

// Limits are the buffer sizes and caps in effect after the Hello exchange.
type Limits struct {
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// Machine drives the handshake transitions for one connection. Not safe
// for concurrent use; the owning transport serializes all inbound traffic.
type Machine struct {
	state  State
	server Limits
	limits Limits
}

// New creates a machine advertising the server's own limits.
func New(server Limits) *Machine {
	return &Machine{state: StateNew, server: server}
}

// State returns the current stage.
func (m *Machine) State() State { return m.state }

// Limits returns the negotiated limits; zero until Hello is processed.
func (m *Machine) Limits() Limits { return m.limits }

// OnHello processes the client Hello: validates the endpoint url, computes
// the effective limits as the minimum of both sides, and returns the
// Acknowledge to send. Any state but New rejects the Hello.
func (m *Machine) OnHello(h *tcp.Hello) (*tcp.Acknowledge, error) {
	if m.state != StateNew {
		prev := m.state
		m.state = StateClosing
		return nil, errs.NewFramingError("handshake.hello", status.BadTcpMessageTypeInvalid,
			fmt.Errorf("hello in state %s", prev))
	}
	u, err := url.Parse(h.EndpointURL)
	if err != nil || u.Scheme != "opc.tcp" || u.Host == "" {
		m.state = StateClosing
		return nil, errs.NewFramingError("handshake.hello", status.BadTcpEndpointUrlInvalid,
			fmt.Errorf("endpoint url %q", h.EndpointURL))
	}
	m.state = StateHelloReceived

	m.limits = Limits{
		ReceiveBufferSize: minNonZero(h.SendBufferSize, m.server.ReceiveBufferSize),
		SendBufferSize:    minNonZero(h.ReceiveBufferSize, m.server.SendBufferSize),
		MaxMessageSize:    minNonZero(h.MaxMessageSize, m.server.MaxMessageSize),
		MaxChunkCount:     minNonZero(h.MaxChunkCount, m.server.MaxChunkCount),
	}
	ack := &tcp.Acknowledge{
		ProtocolVersion:   0,
		ReceiveBufferSize: m.limits.ReceiveBufferSize,
		SendBufferSize:    m.limits.SendBufferSize,
		MaxMessageSize:    m.limits.MaxMessageSize,
		MaxChunkCount:     m.limits.MaxChunkCount,
	}
	m.state = StateAcknowledged
	return ack, nil
}

// minNonZero treats 0 as "no limit" on either side.
func minNonZero(a, b uint32) uint32 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// OnOpenSecureChannel gates the OPN chunk: only valid once acknowledged
// (initial open) or on an already-open channel (renew).
func (m *Machine) OnOpenSecureChannel() error {
	switch m.state {
	case StateAcknowledged:
		m.state = StateSecureChannelOpen
		return nil
	case StateSecureChannelOpen, StateSessionActive:
		return nil
	default:
		m.state = StateClosing
		return errs.NewFramingError("handshake.open_channel", status.BadTcpMessageTypeInvalid,
			fmt.Errorf("open secure channel in state %s", m.state))
	}
}

// OnChunk gates MSG/CLO chunks: any chunk before the channel is open is
// rejected.
func (m *Machine) OnChunk() error {
	switch m.state {
	case StateSecureChannelOpen, StateSessionActive:
		return nil
	default:
		m.state = StateClosing
		return errs.NewFramingError("handshake.chunk", status.BadTcpMessageTypeInvalid,
			fmt.Errorf("chunk in state %s", m.state))
	}
}

// OnSessionActivated records that ActivateSession succeeded.
func (m *Machine) OnSessionActivated() {
	if m.state == StateSecureChannelOpen {
		m.state = StateSessionActive
	}
}

// Close moves to Closing; terminal.
func (m *Machine) Close() { m.state = StateClosing }

// Closed reports whether the machine is terminal.
func (m *Machine) Closed() bool { return m.state == StateClosing }

// Package transport runs one task per accepted TCP connection: it owns the
// socket, drives the handshake machine, feeds the message buffer, reassembles
// chunks, and hands complete requests to the dispatcher.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/alxayo/opcua-server/internal/bufpool"
	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/logger"
	"github.com/alxayo/opcua-server/internal/metrics"
	"github.com/alxayo/opcua-server/internal/ua/addrspace"
	"github.com/alxayo/opcua-server/internal/ua/chunkasm"
	"github.com/alxayo/opcua-server/internal/ua/dispatch"
	"github.com/alxayo/opcua-server/internal/ua/handshake"
	"github.com/alxayo/opcua-server/internal/ua/session"
	"github.com/alxayo/opcua-server/internal/ua/state"
	"github.com/alxayo/opcua-server/internal/ua/status"
	"github.com/alxayo/opcua-server/internal/ua/svc"
	"github.com/alxayo/opcua-server/internal/ua/tcp"
)

// Server-side defaults advertised during the Hello exchange.
const (
	DefaultReceiveBufferSize = 65536
	DefaultSendBufferSize    = 65536
	DefaultMaxMessageSize    = 1 << 20
	DefaultMaxChunkCount     = 64
)

const readChunkSize = 4096

// Transport drives one client connection.
type Transport struct {
	conn  net.Conn
	state *state.ServerState
	space *addrspace.AddressSpace
	met   *metrics.ServerMetrics
	log   *slog.Logger

	fsm    *handshake.Machine
	buffer *tcp.MessageBuffer

	channel    *session.SecureChannel
	assembler  *chunkasm.Assembler
	dispatcher *dispatch.Dispatcher

	channelLifetime time.Duration
	terminated      atomic.Bool
}

// New wraps an accepted socket.
func New(conn net.Conn, st *state.ServerState, space *addrspace.AddressSpace, met *metrics.ServerMetrics) *Transport {
	return &Transport{
		conn:  conn,
		state: st,
		space: space,
		met:   met,
		log:   logger.Logger().With("component", "transport", "remote", conn.RemoteAddr().String()),
		fsm: handshake.New(handshake.Limits{
			ReceiveBufferSize: DefaultReceiveBufferSize,
			SendBufferSize:    DefaultSendBufferSize,
			MaxMessageSize:    DefaultMaxMessageSize,
			MaxChunkCount:     DefaultMaxChunkCount,
		}),
		buffer:          tcp.NewMessageBuffer(DefaultMaxMessageSize),
		channelLifetime: time.Hour,
	}
}

// IsSessionTerminated reports whether the transport has shut down; the
// reaper removes terminated connections.
func (t *Transport) IsSessionTerminated() bool { return t.terminated.Load() }

// Close tears the socket down. Safe to call more than once.
func (t *Transport) Close() {
	if t.terminated.CompareAndSwap(false, true) {
		_ = t.conn.Close()
		t.met.ConnectionClosed()
	}
}

// Run reads from the socket until the peer disconnects, the context is
// cancelled, or a fatal protocol error closes the connection. A panic in a
// handler is caught here so one bad connection cannot take the process
// down.
func (t *Transport) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("transport panic", "panic", fmt.Sprint(r))
		}
		t.Close()
	}()

	buf := bufpool.Get(readChunkSize)
	defer bufpool.Put(buf)

	for {
		if err := ctx.Err(); err != nil {
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := t.conn.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if t.sessionExpired() {
					t.log.Info("session inactivity timeout, closing")
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				t.log.Warn("read failed", "error", err)
			}
			return
		}
		msgs, err := t.buffer.StoreBytes(buf[:n])
		for _, m := range msgs {
			if !t.handleMessage(m) {
				return
			}
		}
		if err != nil {
			t.sendError(errs.StatusCodeOf(err), err.Error())
			return
		}
	}
}

// sessionExpired reports whether the connection's session has outlived its
// inactivity timeout. Connections without a session idle indefinitely; the
// reaper level above decides their fate.
func (t *Transport) sessionExpired() bool {
	if t.dispatcher == nil {
		return false
	}
	sess := t.dispatcher.Session()
	return sess != nil && sess.Expired(time.Now().UTC())
}

// handleMessage processes one framed message; false means close.
func (t *Transport) handleMessage(m *tcp.Message) bool {
	switch {
	case m.Hello != nil:
		return t.handleHello(m.Hello)
	case m.Error != nil:
		t.log.Info("client error message", "code", m.Error.Code.String(), "reason", m.Error.Reason)
		return false
	case m.IsChunk():
		return t.handleChunkMessage(m)
	default:
		t.sendError(status.BadTcpMessageTypeInvalid, "unexpected message")
		return false
	}
}

func (t *Transport) handleHello(h *tcp.Hello) bool {
	ack, err := t.fsm.OnHello(h)
	if err != nil {
		t.met.ConnectionRejected()
		t.sendError(errs.StatusCodeOf(err), "hello rejected")
		return false
	}
	frame, err := tcp.EncodeAcknowledge(ack)
	if err != nil {
		return false
	}
	if _, err := t.conn.Write(frame); err != nil {
		return false
	}
	t.log.Debug("hello acknowledged", "endpoint_url", h.EndpointURL,
		"recv_buf", ack.ReceiveBufferSize, "send_buf", ack.SendBufferSize)
	return true
}

func (t *Transport) handleChunkMessage(m *tcp.Message) bool {
	switch m.Header.Type {
	case tcp.TypeOpenChannel:
		if err := t.fsm.OnOpenSecureChannel(); err != nil {
			t.sendError(errs.StatusCodeOf(err), "secure channel open rejected")
			return false
		}
		return t.handleOpenChannel(m)
	case tcp.TypeCloseChannel:
		if err := t.fsm.OnChunk(); err != nil {
			t.sendError(errs.StatusCodeOf(err), "chunk rejected")
			return false
		}
		t.log.Debug("secure channel closed by client")
		return false
	default:
		if err := t.fsm.OnChunk(); err != nil {
			t.sendError(errs.StatusCodeOf(err), "chunk rejected")
			return false
		}
		return t.handleServiceChunk(m)
	}
}

// handleOpenChannel allocates the channel on first open, renews afterwards.
func (t *Transport) handleOpenChannel(m *tcp.Message) bool {
	chunk, err := chunkasm.ParseChunk(m)
	if err != nil {
		t.sendError(errs.StatusCodeOf(err), "malformed open chunk")
		return false
	}
	t.met.ChunkReassembled()

	if t.channel == nil {
		id := t.state.NextSecureChannelID()
		t.channel = session.NewSecureChannel(id, t.channelLifetime, time.Now().UTC())
		limits := t.fsm.Limits()
		t.assembler = chunkasm.New(t.channel, limits.MaxMessageSize, limits.MaxChunkCount)
		t.dispatcher = dispatch.New(t.state, t.space, t.channel, t.met)
		t.log = logger.WithChannel(t.log, id, t.conn.RemoteAddr().String())
	}

	req, err := t.assembler.Push(chunk)
	if err != nil {
		t.sendError(errs.StatusCodeOf(err), "open chunk rejected")
		return false
	}
	if req == nil {
		return true
	}

	msg, err := svc.Decode(bytes.NewReader(req.Body))
	if err != nil {
		t.sendError(errs.StatusCodeOf(err), "open request undecodable")
		return false
	}
	open, ok := msg.(*svc.OpenSecureChannelRequest)
	if !ok {
		t.sendError(status.BadTcpMessageTypeInvalid, "OPN chunk must carry OpenSecureChannelRequest")
		return false
	}

	now := time.Now().UTC()
	tokenID := t.channel.TokenID()
	if open.RequestType == svc.SecurityTokenRequestRenew {
		tokenID = t.channel.Renew(now)
	}
	resp := &svc.OpenSecureChannelResponse{
		Header: svc.NewResponseHeader(&open.Header, status.Good, now),
		SecurityToken: svc.ChannelSecurityToken{
			ChannelID:       t.channel.ID(),
			TokenID:         tokenID,
			CreatedAt:       t.channel.CreatedAt(),
			RevisedLifetime: open.RequestedLifetime,
		},
	}
	t.log.Debug("secure channel open", "token_id", tokenID, "renew", open.RequestType == svc.SecurityTokenRequestRenew)
	return t.sendResponse(tcp.TypeOpenChannel, req.RequestID, resp)
}

func (t *Transport) handleServiceChunk(m *tcp.Message) bool {
	chunk, err := chunkasm.ParseChunk(m)
	if err != nil {
		t.sendError(errs.StatusCodeOf(err), "malformed chunk")
		return false
	}
	t.met.ChunkReassembled()

	req, err := t.assembler.Push(chunk)
	if err != nil {
		t.sendError(errs.StatusCodeOf(err), "chunk rejected")
		return false
	}
	if req == nil {
		return true
	}

	msg, err := svc.Decode(bytes.NewReader(req.Body))
	if err != nil {
		// An undecodable body is a framing-level failure; an unknown but
		// well-formed service is answered with a fault below.
		if errs.StatusCodeOf(err) != status.BadNotImplemented {
			t.sendError(errs.StatusCodeOf(err), "request undecodable")
			return false
		}
		t.log.Warn("unsupported service", "error", err)
		fault := &svc.ServiceFault{Header: svc.ResponseHeader{
			Timestamp:     time.Now().UTC(),
			ServiceResult: status.BadNotImplemented,
		}}
		return t.sendResponse(tcp.TypeMessage, req.RequestID, fault)
	}
	request, ok := msg.(svc.Request)
	if !ok {
		t.sendError(status.BadTcpMessageTypeInvalid, "response message on request channel")
		return false
	}

	resp := t.dispatcher.Dispatch(request)
	if t.dispatcher.Session() != nil && t.dispatcher.Session().Activated() {
		t.fsm.OnSessionActivated()
	}
	return t.sendResponse(tcp.TypeMessage, req.RequestID, resp)
}

// sendResponse encodes a service response and writes it as one or more
// chunks sized to the negotiated send buffer.
func (t *Transport) sendResponse(msgType string, requestID uint32, resp svc.Message) bool {
	var body bytes.Buffer
	if err := svc.Encode(&body, resp); err != nil {
		t.log.Error("response encode failed", "error", err)
		return false
	}

	// Space left for payload once the frame, security and sequence headers
	// are accounted for.
	const chunkOverhead = tcp.MessageHeaderLen + 8 + 8
	maxBody := int(t.fsm.Limits().SendBufferSize) - chunkOverhead
	if maxBody <= 0 {
		maxBody = DefaultSendBufferSize - chunkOverhead
	}

	payload := body.Bytes()
	for first := true; first || len(payload) > 0; first = false {
		n := len(payload)
		chunkType := byte(tcp.ChunkFinal)
		if n > maxBody {
			n = maxBody
			chunkType = tcp.ChunkIntermediate
		}
		c := &chunkasm.Chunk{
			MessageType:    msgType,
			ChunkType:      chunkType,
			ChannelID:      t.channel.ID(),
			TokenID:        t.channel.TokenID(),
			SequenceNumber: t.channel.NextSendSequence(),
			RequestID:      requestID,
			Body:           payload[:n],
		}
		if msgType == tcp.TypeOpenChannel {
			c.SecurityPolicyURI = state.SecurityPolicyNoneURI
		}
		raw, err := chunkasm.EncodeChunkBody(c)
		if err != nil {
			return false
		}
		frame, err := tcp.FrameChunk(msgType, chunkType, raw)
		if err != nil {
			return false
		}
		if _, err := t.conn.Write(frame); err != nil {
			t.log.Warn("response write failed", "error", err)
			return false
		}
		payload = payload[n:]
	}
	return true
}

// sendError writes a best-effort Error message before the connection
// closes.
func (t *Transport) sendError(code status.Code, reason string) {
	t.fsm.Close()
	frame, err := tcp.EncodeError(&tcp.ErrorMessage{Code: code, Reason: reason})
	if err != nil {
		return
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = t.conn.Write(frame)
	t.log.Info("connection error sent", "code", code.String(), "reason", reason)
}

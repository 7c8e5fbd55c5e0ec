// Package discovery periodically registers this server with a discovery
// peer. Registration uses plain blocking socket I/O and runs in a detached,
// panic-isolated goroutine per tick so a slow or hostile discovery server
// can never stall the executor or take the process down.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/alxayo/opcua-server/internal/logger"
	"github.com/alxayo/opcua-server/internal/metrics"
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/chunkasm"
	"github.com/alxayo/opcua-server/internal/ua/state"
	"github.com/alxayo/opcua-server/internal/ua/status"
	"github.com/alxayo/opcua-server/internal/ua/svc"
	"github.com/alxayo/opcua-server/internal/ua/tcp"
)

// RegistrationInterval is the wall-clock period between registrations,
// anchored at server start.
const RegistrationInterval = 5 * time.Minute

const dialTimeout = 10 * time.Second
const ioTimeout = 10 * time.Second

// Registrar owns the registration timer.
type Registrar struct {
	url      string
	st       *state.ServerState
	met      *metrics.ServerMetrics
	log      *slog.Logger
	interval time.Duration
}

// New builds a registrar targeting the configured discovery url.
func New(discoveryURL string, st *state.ServerState, met *metrics.ServerMetrics) *Registrar {
	return &Registrar{
		url:      discoveryURL,
		st:       st,
		met:      met,
		log:      logger.Logger().With("component", "discovery", "url", discoveryURL),
		interval: RegistrationInterval,
	}
}

// Run ticks at a fixed interval until the context is cancelled. Each tick
// detaches a worker goroutine; the tick never waits for the previous
// registration to finish, preserving the fixed-interval anchor.
func (r *Registrar) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go r.registerOnce()
		}
	}
}

// registerOnce performs one registration with panic isolation. Failures are
// logged and counted, never propagated.
func (r *Registrar) registerOnce() {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("discovery registration panicked", "panic", fmt.Sprint(p))
			r.met.DiscoveryRegistration(false)
		}
	}()
	if err := r.register(); err != nil {
		r.log.Warn("discovery registration failed", "error", err)
		r.met.DiscoveryRegistration(false)
		return
	}
	r.log.Info("registered with discovery server")
	r.met.DiscoveryRegistration(true)
}

// register speaks the minimum client-side protocol: Hello, open a
// None-policy secure channel, send RegisterServer, read the answer.
func (r *Registrar) register() error {
	u, err := url.Parse(r.url)
	if err != nil || u.Scheme != "opc.tcp" || u.Host == "" {
		return fmt.Errorf("discovery url %q: %v", r.url, err)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "4840")
	}
	conn, err := net.DialTimeout("tcp", host, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", host, err)
	}
	defer conn.Close()

	c := &client{conn: conn, buf: tcp.NewMessageBuffer(0)}
	if err := c.hello(r.url); err != nil {
		return err
	}
	if err := c.openChannel(); err != nil {
		return err
	}

	cfg := r.st.Config()
	req := &svc.RegisterServerRequest{
		Header: svc.RequestHeader{Timestamp: time.Now().UTC(), RequestHandle: 1, TimeoutHint: uint32(ioTimeout / time.Millisecond)},
		Server: svc.RegisteredServer{
			ServerURI:     cfg.ApplicationURI,
			ProductURI:    cfg.ProductURI,
			ServerNames:   []bin.LocalizedText{{Text: cfg.ApplicationName}},
			ServerType:    svc.ApplicationTypeServer,
			DiscoveryURLs: []string{cfg.BaseEndpointURL() + "/"},
			IsOnline:      !r.st.IsAborted(),
		},
	}
	resp, err := c.request(req)
	if err != nil {
		return err
	}
	switch m := resp.(type) {
	case *svc.RegisterServerResponse:
		if m.Header.ServiceResult.IsBad() {
			return fmt.Errorf("registration rejected: %s", m.Header.ServiceResult)
		}
		return nil
	case *svc.ServiceFault:
		return fmt.Errorf("registration fault: %s", m.Header.ServiceResult)
	default:
		return fmt.Errorf("unexpected response %T", resp)
	}
}

// client is the minimal blocking UA-TCP client used for registration.
type client struct {
	conn    net.Conn
	buf     *tcp.MessageBuffer
	seq     uint32
	reqID   uint32
	channel uint32
	token   uint32
}

func (c *client) hello(endpointURL string) error {
	frame, err := tcp.EncodeHello(&tcp.Hello{
		ReceiveBufferSize: 65536,
		SendBufferSize:    65536,
		EndpointURL:       endpointURL,
	})
	if err != nil {
		return err
	}
	if err := c.write(frame); err != nil {
		return err
	}
	m, err := c.read()
	if err != nil {
		return err
	}
	if m.Error != nil {
		return fmt.Errorf("discovery server error: %s %s", m.Error.Code, m.Error.Reason)
	}
	if m.Acknowledge == nil {
		return fmt.Errorf("expected acknowledge, got %s", m.Header.Type)
	}
	return nil
}

func (c *client) openChannel() error {
	resp, err := c.exchange(tcp.TypeOpenChannel, &svc.OpenSecureChannelRequest{
		Header:            svc.RequestHeader{Timestamp: time.Now().UTC(), RequestHandle: 1},
		RequestType:       svc.SecurityTokenRequestIssue,
		SecurityMode:      svc.SecurityModeNone,
		RequestedLifetime: uint32(time.Hour / time.Millisecond),
	})
	if err != nil {
		return err
	}
	open, ok := resp.(*svc.OpenSecureChannelResponse)
	if !ok {
		return fmt.Errorf("unexpected open response %T", resp)
	}
	if open.Header.ServiceResult.IsBad() {
		return fmt.Errorf("open channel rejected: %s", open.Header.ServiceResult)
	}
	c.channel = open.SecurityToken.ChannelID
	c.token = open.SecurityToken.TokenID
	return nil
}

func (c *client) request(m svc.Message) (svc.Message, error) {
	return c.exchange(tcp.TypeMessage, m)
}

func (c *client) exchange(msgType string, m svc.Message) (svc.Message, error) {
	var body bytes.Buffer
	if err := svc.Encode(&body, m); err != nil {
		return nil, err
	}
	c.seq++
	c.reqID++
	chunk := &chunkasm.Chunk{
		MessageType:    msgType,
		ChunkType:      tcp.ChunkFinal,
		ChannelID:      c.channel,
		TokenID:        c.token,
		SequenceNumber: c.seq,
		RequestID:      c.reqID,
		Body:           body.Bytes(),
	}
	if msgType == tcp.TypeOpenChannel {
		chunk.SecurityPolicyURI = state.SecurityPolicyNoneURI
	}
	raw, err := chunkasm.EncodeChunkBody(chunk)
	if err != nil {
		return nil, err
	}
	frame, err := tcp.FrameChunk(msgType, tcp.ChunkFinal, raw)
	if err != nil {
		return nil, err
	}
	if err := c.write(frame); err != nil {
		return nil, err
	}

	// Responses may span chunks; accumulate until the final one.
	var acc []byte
	for {
		msg, err := c.read()
		if err != nil {
			return nil, err
		}
		if msg.Error != nil {
			return nil, fmt.Errorf("peer error: %s %s", msg.Error.Code, msg.Error.Reason)
		}
		if !msg.IsChunk() {
			return nil, fmt.Errorf("expected chunk, got %s", msg.Header.Type)
		}
		respChunk, err := chunkasm.ParseChunk(msg)
		if err != nil {
			return nil, err
		}
		acc = append(acc, respChunk.Body...)
		if respChunk.IsFinal() {
			break
		}
		if respChunk.IsAbort() {
			return nil, fmt.Errorf("peer aborted response: %s", status.BadCommunicationError)
		}
	}
	return svc.Decode(bytes.NewReader(acc))
}

func (c *client) write(frame []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	_, err := c.conn.Write(frame)
	return err
}

func (c *client) read() (*tcp.Message, error) {
	buf := make([]byte, 4096)
	deadline := time.Now().Add(ioTimeout)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, err
		}
		msgs, err := c.buf.StoreBytes(buf[:n])
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			return msgs[0], nil
		}
	}
}

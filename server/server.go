// Package server wires the pieces into a runnable OPC UA server: the accept
// loop, abort propagation, connection reaping, pending polling actions, and
// the discovery registration timer.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alxayo/opcua-server/internal/config"
	"github.com/alxayo/opcua-server/internal/discovery"
	"github.com/alxayo/opcua-server/internal/logger"
	"github.com/alxayo/opcua-server/internal/metrics"
	"github.com/alxayo/opcua-server/internal/pki"
	"github.com/alxayo/opcua-server/internal/ua/addrspace"
	"github.com/alxayo/opcua-server/internal/ua/state"
	"github.com/alxayo/opcua-server/internal/ua/transport"
)

// reapInterval is the abort-poll cadence: dead connections are swept and
// the abort flag observed once a second.
const reapInterval = time.Second

// errAbortComplete unwinds the errgroup once the connection list has
// drained after an abort; Run treats it as a clean stop.
var errAbortComplete = errors.New("abort complete")

type pollingAction struct {
	interval time.Duration
	fn       func()
}

// Server owns the process-wide handles and the connection list.
type Server struct {
	cfg   config.Config
	state *state.ServerState
	space *addrspace.AddressSpace
	store *pki.Store
	met   *metrics.ServerMetrics
	log   *slog.Logger

	mu           sync.RWMutex
	conns        []*transport.Transport
	pendingPolls []pollingAction
	pollCtx      context.Context
	pollWg       *sync.WaitGroup
	running      bool

	listenerAddr net.Addr
}

// New validates the config and assembles the server: state, certificate
// store, address space with the standard nodes, and metrics identity.
func New(cfg config.Config, met *metrics.ServerMetrics) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	st := state.New(cfg)
	store, err := pki.NewStore(cfg.PKIDir, cfg.CreateSampleKeypair, cfg.ApplicationName, cfg.ApplicationURI)
	if err != nil {
		return nil, fmt.Errorf("pki: %w", err)
	}
	store.SetTrustClientCerts(cfg.TrustClientCerts)
	st.SetCertificate(store.Certificate())

	space := addrspace.New()
	if err := addrspace.PopulateStandardNodes(space, cfg.ApplicationURI, time.Now().UTC(), func() int32 {
		return int32(st.RunState())
	}); err != nil {
		return nil, fmt.Errorf("address space: %w", err)
	}

	met.SetServerInfo(cfg.ApplicationName, cfg.ApplicationURI, cfg.ProductURI)

	return &Server{
		cfg:   cfg,
		state: st,
		space: space,
		store: store,
		met:   met,
		log:   logger.Logger().With("component", "server"),
	}, nil
}

// State exposes the shared server state.
func (s *Server) State() *state.ServerState { return s.state }

// AddressSpace exposes the node graph for application nodes and methods.
func (s *Server) AddressSpace() *addrspace.AddressSpace { return s.space }

// Abort asks the server to stop: no new connections are accepted, existing
// ones drain, and Run returns once the connection list is empty.
func (s *Server) Abort() { s.state.Abort() }

// Addr returns the bound listener address, nil before Run binds it.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listenerAddr
}

// ConnectionCount returns the number of tracked connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// AddPollingAction schedules fn every intervalMs milliseconds. Actions
// registered before Run are queued and started when Run begins; afterwards
// they start immediately.
func (s *Server) AddPollingAction(intervalMs uint32, fn func()) {
	action := pollingAction{interval: time.Duration(intervalMs) * time.Millisecond, fn: fn}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.pendingPolls = append(s.pendingPolls, action)
		return
	}
	s.startPollingAction(action)
}

// startPollingAction launches the interval goroutine. Caller holds s.mu.
func (s *Server) startPollingAction(a pollingAction) {
	if a.interval <= 0 {
		s.log.Warn("polling action with non-positive interval dropped")
		return
	}
	ctx := s.pollCtx
	s.pollWg.Add(1)
	go func() {
		defer s.pollWg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runIsolated(s.log, a.fn)
			}
		}
	}()
}

// runIsolated invokes fn with panic containment, so one bad polling action
// cannot take the server down.
func runIsolated(log *slog.Logger, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("polling action panicked", "panic", fmt.Sprint(p))
		}
	}()
	fn()
}

// Run starts the server and blocks until abort completes or the context is
// cancelled. The listener, the abort-poll task and the discovery timer all
// run under one errgroup.
func (s *Server) Run(ctx context.Context) error {
	s.state.SetRunState(state.Running)
	s.state.SetStartTime(time.Now().UTC())

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	s.mu.Lock()
	s.running = true
	s.pollCtx = gctx
	s.pollWg = &sync.WaitGroup{}
	pending := s.pendingPolls
	s.pendingPolls = nil
	for _, a := range pending {
		s.startPollingAction(a)
	}
	s.mu.Unlock()

	if url := s.cfg.DiscoveryServerURL; url != "" {
		registrar := discovery.New(url, s.state, s.met)
		g.Go(func() error {
			registrar.Run(gctx)
			return nil
		})
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		s.state.SetRunState(state.Failed)
		cancelRun()
		_ = g.Wait()
		s.stopPolling()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr(), err)
	}
	s.mu.Lock()
	s.listenerAddr = ln.Addr()
	s.mu.Unlock()
	s.log.Info("listening", "addr", ln.Addr().String(), "endpoint", s.cfg.BaseEndpointURL())

	// Abort pact: the accept stream ends on the first message, which the
	// abort-poll task sends once the abort flag is observed.
	abortCh := make(chan struct{}, 1)

	g.Go(func() error {
		return s.abortPoll(gctx, abortCh)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-abortCh:
		}
		return ln.Close()
	})
	g.Go(func() error {
		s.acceptLoop(gctx, ln)
		return nil
	})

	err = g.Wait()
	s.drainConnections()
	s.stopPolling()
	if err != nil && !errors.Is(err, errAbortComplete) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, context.Canceled) {
		s.state.SetRunState(state.Failed)
		return err
	}
	s.state.SetRunState(state.Shutdown)
	s.log.Info("server stopped")
	return nil
}

// stopPolling marks the server stopped and waits out the interval tasks.
func (s *Server) stopPolling() {
	s.mu.Lock()
	s.running = false
	wg := s.pollWg
	s.mu.Unlock()
	wg.Wait()
}

// acceptLoop accepts until the listener closes. Each socket becomes a
// transport with its own goroutine.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn("accept failed", "error", err)
			}
			return
		}
		if s.state.IsAborted() {
			_ = conn.Close()
			s.met.ConnectionRejected()
			continue
		}
		tr := transport.New(conn, s.state, s.space, s.met)
		s.mu.Lock()
		s.conns = append(s.conns, tr)
		s.mu.Unlock()
		s.met.ConnectionAccepted()
		s.log.Info("connection accepted", "remote", conn.RemoteAddr().String())
		go tr.Run(ctx)
	}
}

// abortPoll sweeps dead connections once a second. When the abort flag is
// set it signals the accept pact immediately, then keeps sweeping until the
// connection list drains.
func (s *Server) abortPoll(ctx context.Context, abortCh chan<- struct{}) error {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	signalled := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.removeDeadConnections()
			if !s.state.IsAborted() {
				continue
			}
			if !signalled {
				abortCh <- struct{}{}
				signalled = true
				s.log.Info("abort observed, accept loop stopping")
			}
			if s.ConnectionCount() == 0 {
				return errAbortComplete
			}
		}
	}
}

// removeDeadConnections drops transports that report terminated. The check
// is a lock-free atomic read, so the sweep never waits on a busy connection.
func (s *Server) removeDeadConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	alive := s.conns[:0]
	for _, c := range s.conns {
		if c.IsSessionTerminated() {
			s.log.Debug("reaped dead connection")
			continue
		}
		alive = append(alive, c)
	}
	s.conns = alive
}

// drainConnections closes whatever is left once Run unwinds; by then abort
// processing has already let live clients disconnect on their own.
func (s *Server) drainConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

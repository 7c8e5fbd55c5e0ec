package server

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alxayo/opcua-server/internal/config"
	"github.com/alxayo/opcua-server/internal/ua/state"
	"github.com/alxayo/opcua-server/internal/ua/tcp"
)

func freePort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return uint16(port)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.TCP.Port = freePort(t)
	cfg.PKIDir = t.TempDir()
	// Sample keypair generation costs seconds of entropy-bound RSA work per
	// test; the server runs fine without one on None-policy endpoints.
	cfg.CreateSampleKeypair = false
	return cfg
}

func startServer(t *testing.T, cfg config.Config) (*Server, chan error) {
	t.Helper()
	s, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", cfg.ListenAddr(), 100*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 3*time.Second, 20*time.Millisecond)
	return s, done
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ApplicationName = ""
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestRunTransitionsState(t *testing.T) {
	cfg := testConfig(t)
	s, done := startServer(t, cfg)
	require.Equal(t, state.Running, s.State().RunState())
	require.NotZero(t, s.State().StartTime())

	s.Abort()
	require.NoError(t, waitErr(t, done, 5*time.Second))
	require.Equal(t, state.Shutdown, s.State().RunState())
}

func waitErr(t *testing.T, done chan error, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		t.Fatal("server did not stop in time")
		return nil
	}
}

func TestServerAnswersHello(t *testing.T) {
	cfg := testConfig(t)
	s, done := startServer(t, cfg)

	conn, err := net.Dial("tcp", cfg.ListenAddr())
	require.NoError(t, err)
	defer conn.Close()

	frame, err := tcp.EncodeHello(&tcp.Hello{
		ReceiveBufferSize: 65536,
		SendBufferSize:    65536,
		EndpointURL:       cfg.BaseEndpointURL() + "/",
	})
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)

	mb := tcp.NewMessageBuffer(0)
	buf := make([]byte, 1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	msgs, err := mb.StoreBytes(buf[:n])
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Acknowledge)

	require.GreaterOrEqual(t, s.ConnectionCount(), 1)
	_ = conn.Close()
	s.Abort()
	require.NoError(t, waitErr(t, done, 5*time.Second))
}

func TestGracefulAbortWithLiveConnections(t *testing.T) {
	cfg := testConfig(t)
	s, done := startServer(t, cfg)

	// Two live connections that have said Hello.
	var conns []net.Conn
	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", cfg.ListenAddr())
		require.NoError(t, err)
		frame, err := tcp.EncodeHello(&tcp.Hello{
			ReceiveBufferSize: 65536, SendBufferSize: 65536,
			EndpointURL: cfg.BaseEndpointURL() + "/",
		})
		require.NoError(t, err)
		_, err = conn.Write(frame)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	require.Eventually(t, func() bool { return s.ConnectionCount() == 2 }, 3*time.Second, 20*time.Millisecond)

	s.Abort()

	// The listener stops accepting within 1.5s of the abort.
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", cfg.ListenAddr(), 100*time.Millisecond)
		if err != nil {
			return true
		}
		_ = conn.Close()
		return false
	}, 1500*time.Millisecond, 50*time.Millisecond)

	// Run does not return while the clients hang on.
	select {
	case <-done:
		t.Fatal("run returned before connections drained")
	case <-time.After(300 * time.Millisecond):
	}

	for _, c := range conns {
		_ = c.Close()
	}
	require.NoError(t, waitErr(t, done, 5*time.Second))
	require.Zero(t, s.ConnectionCount())
}

func TestPollingActions(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, nil)
	require.NoError(t, err)

	var before, after atomic.Int32
	// Queued before Run: drained into a live interval task at startup.
	s.AddPollingAction(20, func() { before.Add(1) })
	// A panicking action must not hurt anything.
	s.AddPollingAction(20, func() { panic("boom") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return s.Addr() != nil }, 3*time.Second, 20*time.Millisecond)

	// Registered while running: starts immediately.
	s.AddPollingAction(20, func() { after.Add(1) })

	require.Eventually(t, func() bool {
		return before.Load() >= 3 && after.Load() >= 3
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, waitErr(t, done, 5*time.Second))
}

func TestContextCancelStopsServer(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return s.Addr() != nil }, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, waitErr(t, done, 5*time.Second))
	require.Equal(t, state.Shutdown, s.State().RunState())
}

package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alxayo/opcua-server/internal/config"
	"github.com/alxayo/opcua-server/internal/ua/svc"
)

func TestLifecycleState(t *testing.T) {
	s := New(config.Default())
	require.Equal(t, Shutdown, s.RunState())

	s.SetRunState(Running)
	require.Equal(t, Running, s.RunState())
	require.Equal(t, "Running", s.RunState().String())

	now := time.Now()
	s.SetStartTime(now)
	require.Equal(t, now, s.StartTime())

	require.False(t, s.IsAborted())
	s.Abort()
	require.True(t, s.IsAborted())
	s.Abort()
	require.True(t, s.IsAborted())
}

func TestCountersAreUnique(t *testing.T) {
	s := New(config.Default())
	seen := make(map[uint32]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.NextSecureChannelID()
			mu.Lock()
			require.False(t, seen[id])
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, 50)
	require.NotZero(t, s.NextSubscriptionID())
}

func TestEndpointsReflectConfigAndCertificate(t *testing.T) {
	cfg := config.Default()
	s := New(cfg)
	s.SetCertificate([]byte{1, 2, 3})

	eps := s.Endpoints()
	require.Len(t, eps, 1)
	ep := eps[0]
	require.Equal(t, "opc.tcp://127.0.0.1:4855/", ep.EndpointURL)
	require.Equal(t, []byte{1, 2, 3}, ep.ServerCertificate)
	require.Equal(t, svc.SecurityModeNone, ep.SecurityMode)
	require.Equal(t, SecurityPolicyNoneURI, ep.SecurityPolicyURI)
	require.Len(t, ep.UserIdentityTokens, 1)
	require.Equal(t, "anonymous", ep.UserIdentityTokens[0].PolicyID)
	require.Equal(t, svc.UserTokenTypeAnonymous, ep.UserIdentityTokens[0].TokenType)

	app := s.ApplicationDescription()
	require.Equal(t, cfg.ApplicationURI, app.ApplicationURI)
	require.Equal(t, svc.ApplicationTypeServer, app.ApplicationType)
}

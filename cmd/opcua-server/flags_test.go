package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.host)
	require.Equal(t, uint(4855), cfg.port)
	require.Equal(t, "info", cfg.logLevel)

	sc := cfg.serverConfig()
	require.NoError(t, sc.Validate())
}

func TestParseFlagsRejects(t *testing.T) {
	cases := [][]string{
		{"-port", "0"},
		{"-port", "99999"},
		{"-log-level", "loud"},
		{"-discovery-url", "http://nope"},
		{"-user-token", "missing-equals"},
		{"-user-token", "id=nopassword"},
	}
	for _, args := range cases {
		_, err := parseFlags(args)
		require.Error(t, err, "%v", args)
	}
}

func TestParseFlagsUserTokens(t *testing.T) {
	cfg, err := parseFlags([]string{"-user-token", "op=alice:secret", "-user-token", "ro=bob:pw"})
	require.NoError(t, err)

	sc := cfg.serverConfig()
	require.NoError(t, sc.Validate())
	require.Equal(t, "alice", sc.UserTokens["op"].User)
	require.Equal(t, "bob", sc.UserTokens["ro"].User)
	// Every endpoint advertises the new token ids.
	for _, ep := range sc.Endpoints {
		require.Contains(t, ep.UserTokenIDs, "op")
		require.Contains(t, ep.UserTokenIDs, "ro")
	}
}

func TestParseFlagsDiscoveryURL(t *testing.T) {
	cfg, err := parseFlags([]string{"-discovery-url", "opc.tcp://lds.local:4840"})
	require.NoError(t, err)
	require.Equal(t, "opc.tcp://lds.local:4840", cfg.serverConfig().DiscoveryServerURL)
}

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alxayo/opcua-server/internal/ua/bin"
)

func TestSessionLifecycle(t *testing.T) {
	now := time.Now()
	s := New("client-1", 30*time.Second, now)

	require.False(t, s.Activated())
	require.Equal(t, bin.IdentifierGUID, s.ID().Kind)
	require.Equal(t, bin.IdentifierOpaque, s.AuthenticationToken().Kind)
	require.Equal(t, 30*time.Second, s.Timeout())

	s.Activate("anonymous", now)
	require.True(t, s.Activated())
	require.Equal(t, "anonymous", s.UserIdentity())
}

func TestSessionTimeoutClamping(t *testing.T) {
	now := time.Now()
	require.Equal(t, DefaultSessionTimeout, New("s", 0, now).Timeout())
	require.Equal(t, DefaultSessionTimeout, New("s", -time.Second, now).Timeout())
	require.Equal(t, MaxSessionTimeout, New("s", time.Hour, now).Timeout())
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()
	s := New("s", 10*time.Second, now)

	require.False(t, s.Expired(now.Add(5*time.Second)))
	require.True(t, s.Expired(now.Add(11*time.Second)))

	s.Touch(now.Add(9 * time.Second))
	require.False(t, s.Expired(now.Add(15*time.Second)))
}

func TestSessionTokenValidation(t *testing.T) {
	s := New("s", time.Minute, time.Now())
	require.True(t, s.ValidateToken(s.AuthenticationToken()))
	require.False(t, s.ValidateToken(bin.NewNumericNodeId(0, 1)))

	other := New("other", time.Minute, time.Now())
	require.False(t, s.ValidateToken(other.AuthenticationToken()))
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := New("a", time.Minute, time.Now())
	b := New("b", time.Minute, time.Now())
	require.False(t, a.ID().Equal(b.ID()))
	require.False(t, a.AuthenticationToken().Equal(b.AuthenticationToken()))
}

func TestSessionSubscriptions(t *testing.T) {
	s := New("s", time.Minute, time.Now())
	s.AddSubscription(3)
	s.AddSubscription(9)
	require.Equal(t, []uint32{3, 9}, s.SubscriptionIDs())
}

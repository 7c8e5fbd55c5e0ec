package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alxayo/opcua-server/internal/ua/bin"
)

// DefaultSessionTimeout bounds how long a session survives without client
// activity when the client requests no (or an unreasonable) timeout.
const DefaultSessionTimeout = 60 * time.Second

// MaxSessionTimeout caps what a client may request.
const MaxSessionTimeout = 10 * time.Minute

// Session is one logical client session: created by CreateSession, usable
// after ActivateSession, and reaped when its inactivity timeout lapses.
type Session struct {
	mu sync.Mutex

	id           bin.NodeId
	authToken    bin.NodeId
	name         string
	activated    bool
	userIdentity string
	timeout      time.Duration
	lastActivity time.Time

	subscriptionIDs []uint32
}

// New creates an inactive session. Session and authentication-token ids are
// fresh UUIDs so they cannot collide across process restarts.
func New(name string, requestedTimeout time.Duration, now time.Time) *Session {
	timeout := requestedTimeout
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if timeout > MaxSessionTimeout {
		timeout = MaxSessionTimeout
	}
	return &Session{
		id:           bin.NodeId{Namespace: 1, Kind: bin.IdentifierGUID, GUID: uuid.New()},
		authToken:    bin.NodeId{Namespace: 0, Kind: bin.IdentifierOpaque, Opaque: uuidBytes()},
		name:         name,
		timeout:      timeout,
		lastActivity: now,
	}
}

func uuidBytes() []byte {
	id := uuid.New()
	return id[:]
}

// ID returns the session id.
func (s *Session) ID() bin.NodeId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// AuthenticationToken returns the token the client must present on every
// request after CreateSession.
func (s *Session) AuthenticationToken() bin.NodeId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authToken
}

// Name returns the client-chosen session name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Timeout returns the revised inactivity timeout.
func (s *Session) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// Activate marks the session usable and records the authenticated user.
func (s *Session) Activate(userIdentity string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activated = true
	s.userIdentity = userIdentity
	s.lastActivity = now
}

// Activated reports whether ActivateSession has succeeded.
func (s *Session) Activated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activated
}

// UserIdentity returns the identity bound at activation.
func (s *Session) UserIdentity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userIdentity
}

// ValidateToken reports whether tok matches this session's authentication
// token.
func (s *Session) ValidateToken(tok bin.NodeId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authToken.Equal(tok)
}

// Touch records client activity, deferring the inactivity timeout.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// Expired reports whether the inactivity timeout has lapsed.
func (s *Session) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity) > s.timeout
}

// AddSubscription records a subscription id owned by this session.
func (s *Session) AddSubscription(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptionIDs = append(s.subscriptionIDs, id)
}

// SubscriptionIDs returns a copy of the owned subscription ids.
func (s *Session) SubscriptionIDs() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint32, len(s.subscriptionIDs))
	copy(out, s.subscriptionIDs)
	return out
}

// Package state holds the process-wide shared server state: identity,
// endpoints, run state, the abort flag, and the id counters every
// connection draws from.
package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/alxayo/opcua-server/internal/config"
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/svc"
)

// RunState is the coarse server lifecycle state.
type RunState int32

const (
	Shutdown RunState = iota
	Running
	Failed
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "Running"
	case Failed:
		return "Failed"
	default:
		return "Shutdown"
	}
}

// SecurityPolicyNoneURI is the only security policy this core negotiates.
const SecurityPolicyNoneURI = "http://opcfoundation.org/UA/SecurityPolicy#None"

// TransportProfileBinaryURI is the uatcp-uasc-uabinary transport profile.
const TransportProfileBinaryURI = "http://opcfoundation.org/UA-Profile/Transport/uatcp-uasc-uabinary"

// ServerState is shared by the server, every transport, and the dispatcher
// behind a readers-writer lock. The abort flag and counters are atomics so
// the hot paths never block on the mutex.
type ServerState struct {
	mu  sync.RWMutex
	cfg config.Config

	certificateDER []byte
	startTime      time.Time

	runState       atomic.Int32
	abort          atomic.Bool
	subscriptionID atomic.Uint32
	secureChanID   atomic.Uint32
}

// New builds the state from a validated config.
func New(cfg config.Config) *ServerState {
	return &ServerState{cfg: cfg}
}

// Config returns a copy of the configuration.
func (s *ServerState) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetCertificate records the server certificate advertised on endpoints.
func (s *ServerState) SetCertificate(der []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certificateDER = der
}

// Certificate returns the server certificate DER, or nil.
func (s *ServerState) Certificate() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.certificateDER
}

// SetRunState transitions the lifecycle state.
func (s *ServerState) SetRunState(rs RunState) { s.runState.Store(int32(rs)) }

// RunState returns the lifecycle state.
func (s *ServerState) RunState() RunState { return RunState(s.runState.Load()) }

// SetStartTime records when Run began.
func (s *ServerState) SetStartTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = t
}

// StartTime returns when Run began.
func (s *ServerState) StartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startTime
}

// Abort flips the abort flag. Idempotent.
func (s *ServerState) Abort() { s.abort.Store(true) }

// IsAborted reports whether Abort has been called.
func (s *ServerState) IsAborted() bool { return s.abort.Load() }

// NextSubscriptionID allocates a process-unique subscription id.
func (s *ServerState) NextSubscriptionID() uint32 { return s.subscriptionID.Add(1) }

// NextSecureChannelID allocates a process-unique secure channel id.
func (s *ServerState) NextSecureChannelID() uint32 { return s.secureChanID.Add(1) }

// ApplicationDescription builds the server's identity record.
func (s *ServerState) ApplicationDescription() svc.ApplicationDescription {
	cfg := s.Config()
	return svc.ApplicationDescription{
		ApplicationURI:  cfg.ApplicationURI,
		ProductURI:      cfg.ProductURI,
		ApplicationName: bin.LocalizedText{Text: cfg.ApplicationName},
		ApplicationType: svc.ApplicationTypeServer,
		DiscoveryURLs:   []string{cfg.BaseEndpointURL() + "/"},
	}
}

// Endpoints builds the advertised endpoint descriptions from the config
// and the current certificate.
func (s *ServerState) Endpoints() []svc.EndpointDescription {
	s.mu.RLock()
	cfg := s.cfg
	cert := s.certificateDER
	s.mu.RUnlock()

	app := s.ApplicationDescription()
	out := make([]svc.EndpointDescription, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		tokens := make([]svc.UserTokenPolicy, 0, len(ep.UserTokenIDs))
		for _, id := range ep.UserTokenIDs {
			tok := cfg.UserTokens[id]
			tokenType := svc.UserTokenTypeAnonymous
			if tok.User != "" {
				tokenType = svc.UserTokenTypeUserName
			}
			tokens = append(tokens, svc.UserTokenPolicy{
				PolicyID:          id,
				TokenType:         tokenType,
				SecurityPolicyURI: SecurityPolicyNoneURI,
			})
		}
		out = append(out, svc.EndpointDescription{
			EndpointURL:         cfg.BaseEndpointURL() + ep.Path,
			Server:              app,
			ServerCertificate:   cert,
			SecurityMode:        securityModeValue(ep.SecurityMode),
			SecurityPolicyURI:   SecurityPolicyNoneURI,
			UserIdentityTokens:  tokens,
			TransportProfileURI: TransportProfileBinaryURI,
		})
	}
	return out
}

func securityModeValue(mode string) uint32 {
	switch mode {
	case "Sign":
		return svc.SecurityModeSign
	case "SignAndEncrypt":
		return svc.SecurityModeSignAndEncrypt
	default:
		return svc.SecurityModeNone
	}
}

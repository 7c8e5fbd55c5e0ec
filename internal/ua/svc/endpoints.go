package svc

import (
	"io"

	"github.com/alxayo/opcua-server/internal/ua/bin"
)

// Application types.
const (
	ApplicationTypeServer          uint32 = 0
	ApplicationTypeClient          uint32 = 1
	ApplicationTypeClientAndServer uint32 = 2
	ApplicationTypeDiscoveryServer uint32 = 3
)

// User token types.
const (
	UserTokenTypeAnonymous   uint32 = 0
	UserTokenTypeUserName    uint32 = 1
	UserTokenTypeCertificate uint32 = 2
)

func encodeOptString(w io.Writer, s string) error {
	if s == "" {
		return bin.EncodeString(w, nil)
	}
	return bin.EncodeString(w, &s)
}

func decodeOptString(r io.Reader) (string, error) {
	s, err := bin.DecodeString(r)
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

// ApplicationDescription identifies an application in discovery and session
// establishment.
type ApplicationDescription struct {
	ApplicationURI      string
	ProductURI          string
	ApplicationName     bin.LocalizedText
	ApplicationType     uint32
	GatewayServerURI    string
	DiscoveryProfileURI string
	DiscoveryURLs       []string
}

func (a *ApplicationDescription) encode(w io.Writer) error {
	if err := encodeOptString(w, a.ApplicationURI); err != nil {
		return err
	}
	if err := encodeOptString(w, a.ProductURI); err != nil {
		return err
	}
	if err := bin.EncodeLocalizedText(w, a.ApplicationName); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, a.ApplicationType); err != nil {
		return err
	}
	if err := encodeOptString(w, a.GatewayServerURI); err != nil {
		return err
	}
	if err := encodeOptString(w, a.DiscoveryProfileURI); err != nil {
		return err
	}
	return encodeStringArray(w, a.DiscoveryURLs)
}

func (a *ApplicationDescription) decode(r io.Reader) error {
	var err error
	if a.ApplicationURI, err = decodeOptString(r); err != nil {
		return err
	}
	if a.ProductURI, err = decodeOptString(r); err != nil {
		return err
	}
	if a.ApplicationName, err = bin.DecodeLocalizedText(r); err != nil {
		return err
	}
	if a.ApplicationType, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if a.GatewayServerURI, err = decodeOptString(r); err != nil {
		return err
	}
	if a.DiscoveryProfileURI, err = decodeOptString(r); err != nil {
		return err
	}
	a.DiscoveryURLs, err = decodeStringArray(r)
	return err
}

// UserTokenPolicy describes one way a session can authenticate.
type UserTokenPolicy struct {
	PolicyID          string
	TokenType         uint32
	IssuedTokenType   string
	IssuerEndpointURL string
	SecurityPolicyURI string
}

func (p *UserTokenPolicy) encode(w io.Writer) error {
	if err := encodeOptString(w, p.PolicyID); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, p.TokenType); err != nil {
		return err
	}
	if err := encodeOptString(w, p.IssuedTokenType); err != nil {
		return err
	}
	if err := encodeOptString(w, p.IssuerEndpointURL); err != nil {
		return err
	}
	return encodeOptString(w, p.SecurityPolicyURI)
}

func (p *UserTokenPolicy) decode(r io.Reader) error {
	var err error
	if p.PolicyID, err = decodeOptString(r); err != nil {
		return err
	}
	if p.TokenType, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if p.IssuedTokenType, err = decodeOptString(r); err != nil {
		return err
	}
	if p.IssuerEndpointURL, err = decodeOptString(r); err != nil {
		return err
	}
	p.SecurityPolicyURI, err = decodeOptString(r)
	return err
}

// EndpointDescription advertises one endpoint of the server.
type EndpointDescription struct {
	EndpointURL         string
	Server              ApplicationDescription
	ServerCertificate   []byte
	SecurityMode        uint32
	SecurityPolicyURI   string
	UserIdentityTokens  []UserTokenPolicy
	TransportProfileURI string
	SecurityLevel       byte
}

func (e *EndpointDescription) encode(w io.Writer) error {
	if err := encodeOptString(w, e.EndpointURL); err != nil {
		return err
	}
	if err := e.Server.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeByteString(w, e.ServerCertificate); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, e.SecurityMode); err != nil {
		return err
	}
	if err := encodeOptString(w, e.SecurityPolicyURI); err != nil {
		return err
	}
	if err := bin.EncodeArray(w, e.UserIdentityTokens, func(w io.Writer, p UserTokenPolicy) error {
		return p.encode(w)
	}); err != nil {
		return err
	}
	if err := encodeOptString(w, e.TransportProfileURI); err != nil {
		return err
	}
	return bin.EncodeByte(w, e.SecurityLevel)
}

func (e *EndpointDescription) decode(r io.Reader) error {
	var err error
	if e.EndpointURL, err = decodeOptString(r); err != nil {
		return err
	}
	if err := e.Server.decode(r); err != nil {
		return err
	}
	if e.ServerCertificate, err = bin.DecodeByteString(r); err != nil {
		return err
	}
	if e.SecurityMode, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if e.SecurityPolicyURI, err = decodeOptString(r); err != nil {
		return err
	}
	if e.UserIdentityTokens, err = bin.DecodeArray(r, func(r io.Reader) (UserTokenPolicy, error) {
		var p UserTokenPolicy
		err := p.decode(r)
		return p, err
	}); err != nil {
		return err
	}
	if e.TransportProfileURI, err = decodeOptString(r); err != nil {
		return err
	}
	e.SecurityLevel, err = bin.DecodeByte(r)
	return err
}

// GetEndpointsRequest asks which endpoints the server exposes.
type GetEndpointsRequest struct {
	Header      RequestHeader
	EndpointURL string
	LocaleIDs   []string
	ProfileURIs []string
}

func (m *GetEndpointsRequest) ObjectID() uint32              { return ObjectIDGetEndpointsRequest }
func (m *GetEndpointsRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *GetEndpointsRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := encodeOptString(w, m.EndpointURL); err != nil {
		return err
	}
	if err := encodeStringArray(w, m.LocaleIDs); err != nil {
		return err
	}
	return encodeStringArray(w, m.ProfileURIs)
}

func (m *GetEndpointsRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.EndpointURL, err = decodeOptString(r); err != nil {
		return err
	}
	if m.LocaleIDs, err = decodeStringArray(r); err != nil {
		return err
	}
	m.ProfileURIs, err = decodeStringArray(r)
	return err
}

// GetEndpointsResponse lists the matching endpoints.
type GetEndpointsResponse struct {
	Header    ResponseHeader
	Endpoints []EndpointDescription
}

func (m *GetEndpointsResponse) ObjectID() uint32                { return ObjectIDGetEndpointsResponse }
func (m *GetEndpointsResponse) ResponseHeader() *ResponseHeader { return &m.Header }

func (m *GetEndpointsResponse) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	return bin.EncodeArray(w, m.Endpoints, func(w io.Writer, e EndpointDescription) error {
		return e.encode(w)
	})
}

func (m *GetEndpointsResponse) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	m.Endpoints, err = bin.DecodeArray(r, func(r io.Reader) (EndpointDescription, error) {
		var e EndpointDescription
		err := e.decode(r)
		return e, err
	})
	return err
}

// RegisteredServer is the record a server registers with a discovery peer.
type RegisteredServer struct {
	ServerURI         string
	ProductURI        string
	ServerNames       []bin.LocalizedText
	ServerType        uint32
	GatewayServerURI  string
	DiscoveryURLs     []string
	SemaphoreFilePath string
	IsOnline          bool
}

func (s *RegisteredServer) encode(w io.Writer) error {
	if err := encodeOptString(w, s.ServerURI); err != nil {
		return err
	}
	if err := encodeOptString(w, s.ProductURI); err != nil {
		return err
	}
	if err := bin.EncodeArray(w, s.ServerNames, bin.EncodeLocalizedText); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, s.ServerType); err != nil {
		return err
	}
	if err := encodeOptString(w, s.GatewayServerURI); err != nil {
		return err
	}
	if err := encodeStringArray(w, s.DiscoveryURLs); err != nil {
		return err
	}
	if err := encodeOptString(w, s.SemaphoreFilePath); err != nil {
		return err
	}
	return bin.EncodeBool(w, s.IsOnline)
}

func (s *RegisteredServer) decode(r io.Reader) error {
	var err error
	if s.ServerURI, err = decodeOptString(r); err != nil {
		return err
	}
	if s.ProductURI, err = decodeOptString(r); err != nil {
		return err
	}
	if s.ServerNames, err = bin.DecodeArray(r, bin.DecodeLocalizedText); err != nil {
		return err
	}
	if s.ServerType, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if s.GatewayServerURI, err = decodeOptString(r); err != nil {
		return err
	}
	if s.DiscoveryURLs, err = decodeStringArray(r); err != nil {
		return err
	}
	if s.SemaphoreFilePath, err = decodeOptString(r); err != nil {
		return err
	}
	s.IsOnline, err = bin.DecodeBool(r)
	return err
}

// RegisterServerRequest announces this server to a discovery server.
type RegisterServerRequest struct {
	Header RequestHeader
	Server RegisteredServer
}

func (m *RegisterServerRequest) ObjectID() uint32              { return ObjectIDRegisterServerRequest }
func (m *RegisterServerRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *RegisterServerRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	return m.Server.encode(w)
}

func (m *RegisterServerRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	return m.Server.decode(r)
}

// RegisterServerResponse acknowledges a registration.
type RegisterServerResponse struct {
	Header ResponseHeader
}

func (m *RegisterServerResponse) ObjectID() uint32                { return ObjectIDRegisterServerResponse }
func (m *RegisterServerResponse) ResponseHeader() *ResponseHeader { return &m.Header }
func (m *RegisterServerResponse) encodeBody(w io.Writer) error    { return m.Header.encode(w) }
func (m *RegisterServerResponse) decodeBody(r io.Reader) error    { return m.Header.decode(r) }

package svc

import (
	"io"

	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// CreateSessionRequest establishes a logical session on an open channel.
type CreateSessionRequest struct {
	Header                  RequestHeader
	ClientDescription       ApplicationDescription
	ServerURI               string
	EndpointURL             string
	SessionName             string
	ClientNonce             []byte
	ClientCertificate       []byte
	RequestedSessionTimeout float64
	MaxResponseMessageSize  uint32
}

func (m *CreateSessionRequest) ObjectID() uint32              { return ObjectIDCreateSessionRequest }
func (m *CreateSessionRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *CreateSessionRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := m.ClientDescription.encode(w); err != nil {
		return err
	}
	if err := encodeOptString(w, m.ServerURI); err != nil {
		return err
	}
	if err := encodeOptString(w, m.EndpointURL); err != nil {
		return err
	}
	if err := encodeOptString(w, m.SessionName); err != nil {
		return err
	}
	if err := bin.EncodeByteString(w, m.ClientNonce); err != nil {
		return err
	}
	if err := bin.EncodeByteString(w, m.ClientCertificate); err != nil {
		return err
	}
	if err := bin.EncodeFloat64(w, m.RequestedSessionTimeout); err != nil {
		return err
	}
	return bin.EncodeUint32(w, m.MaxResponseMessageSize)
}

func (m *CreateSessionRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	if err := m.ClientDescription.decode(r); err != nil {
		return err
	}
	var err error
	if m.ServerURI, err = decodeOptString(r); err != nil {
		return err
	}
	if m.EndpointURL, err = decodeOptString(r); err != nil {
		return err
	}
	if m.SessionName, err = decodeOptString(r); err != nil {
		return err
	}
	if m.ClientNonce, err = bin.DecodeByteString(r); err != nil {
		return err
	}
	if m.ClientCertificate, err = bin.DecodeByteString(r); err != nil {
		return err
	}
	if m.RequestedSessionTimeout, err = bin.DecodeFloat64(r); err != nil {
		return err
	}
	m.MaxResponseMessageSize, err = bin.DecodeUint32(r)
	return err
}

// CreateSessionResponse returns the session and authentication token ids.
type CreateSessionResponse struct {
	Header                 ResponseHeader
	SessionID              bin.NodeId
	AuthenticationToken    bin.NodeId
	RevisedSessionTimeout  float64
	ServerNonce            []byte
	ServerCertificate      []byte
	ServerEndpoints        []EndpointDescription
	ServerSignature        SignatureData
	MaxRequestMessageSize  uint32
}

func (m *CreateSessionResponse) ObjectID() uint32                { return ObjectIDCreateSessionResponse }
func (m *CreateSessionResponse) ResponseHeader() *ResponseHeader { return &m.Header }

func (m *CreateSessionResponse) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeNodeId(w, m.SessionID); err != nil {
		return err
	}
	if err := bin.EncodeNodeId(w, m.AuthenticationToken); err != nil {
		return err
	}
	if err := bin.EncodeFloat64(w, m.RevisedSessionTimeout); err != nil {
		return err
	}
	if err := bin.EncodeByteString(w, m.ServerNonce); err != nil {
		return err
	}
	if err := bin.EncodeByteString(w, m.ServerCertificate); err != nil {
		return err
	}
	if err := bin.EncodeArray(w, m.ServerEndpoints, func(w io.Writer, e EndpointDescription) error {
		return e.encode(w)
	}); err != nil {
		return err
	}
	// Server software certificates: always absent.
	if err := bin.EncodeInt32(w, -1); err != nil {
		return err
	}
	if err := m.ServerSignature.encode(w); err != nil {
		return err
	}
	return bin.EncodeUint32(w, m.MaxRequestMessageSize)
}

func (m *CreateSessionResponse) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.SessionID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if m.AuthenticationToken, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if m.RevisedSessionTimeout, err = bin.DecodeFloat64(r); err != nil {
		return err
	}
	if m.ServerNonce, err = bin.DecodeByteString(r); err != nil {
		return err
	}
	if m.ServerCertificate, err = bin.DecodeByteString(r); err != nil {
		return err
	}
	if m.ServerEndpoints, err = bin.DecodeArray(r, func(r io.Reader) (EndpointDescription, error) {
		var e EndpointDescription
		err := e.decode(r)
		return e, err
	}); err != nil {
		return err
	}
	if err := decodeSignedSoftwareCertificates(r); err != nil {
		return err
	}
	if err := m.ServerSignature.decode(r); err != nil {
		return err
	}
	m.MaxRequestMessageSize, err = bin.DecodeUint32(r)
	return err
}

// Signed software certificates are not exchanged under the None policy; each
// entry's certificate data and signature are read and discarded.
func decodeSignedSoftwareCertificates(r io.Reader) error {
	n, err := bin.DecodeInt32(r)
	if err != nil {
		return err
	}
	for i := int32(0); i < n; i++ {
		if _, err := bin.DecodeByteString(r); err != nil {
			return err
		}
		if _, err := bin.DecodeByteString(r); err != nil {
			return err
		}
	}
	return nil
}

// ActivateSessionRequest binds a user identity to a created session.
type ActivateSessionRequest struct {
	Header            RequestHeader
	ClientSignature   SignatureData
	LocaleIDs         []string
	UserIdentityToken ExtensionObject
	UserTokenSignature SignatureData
}

func (m *ActivateSessionRequest) ObjectID() uint32              { return ObjectIDActivateSessionRequest }
func (m *ActivateSessionRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *ActivateSessionRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := m.ClientSignature.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeInt32(w, -1); err != nil {
		return err
	}
	if err := encodeStringArray(w, m.LocaleIDs); err != nil {
		return err
	}
	if err := m.UserIdentityToken.encode(w); err != nil {
		return err
	}
	return m.UserTokenSignature.encode(w)
}

func (m *ActivateSessionRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	if err := m.ClientSignature.decode(r); err != nil {
		return err
	}
	if err := decodeSignedSoftwareCertificates(r); err != nil {
		return err
	}
	var err error
	if m.LocaleIDs, err = decodeStringArray(r); err != nil {
		return err
	}
	if err := m.UserIdentityToken.decode(r); err != nil {
		return err
	}
	return m.UserTokenSignature.decode(r)
}

// ActivateSessionResponse confirms the activation.
type ActivateSessionResponse struct {
	Header      ResponseHeader
	ServerNonce []byte
	Results     []status.Code
}

func (m *ActivateSessionResponse) ObjectID() uint32                { return ObjectIDActivateSessionResponse }
func (m *ActivateSessionResponse) ResponseHeader() *ResponseHeader { return &m.Header }

func (m *ActivateSessionResponse) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeByteString(w, m.ServerNonce); err != nil {
		return err
	}
	if err := encodeStatusCodeArray(w, m.Results); err != nil {
		return err
	}
	return encodeDiagnosticInfos(w, 0)
}

func (m *ActivateSessionResponse) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.ServerNonce, err = bin.DecodeByteString(r); err != nil {
		return err
	}
	if m.Results, err = decodeStatusCodeArray(r); err != nil {
		return err
	}
	return decodeDiagnosticInfos(r)
}

// CloseSessionRequest ends a session, optionally deleting its subscriptions.
type CloseSessionRequest struct {
	Header              RequestHeader
	DeleteSubscriptions bool
}

func (m *CloseSessionRequest) ObjectID() uint32              { return ObjectIDCloseSessionRequest }
func (m *CloseSessionRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *CloseSessionRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	return bin.EncodeBool(w, m.DeleteSubscriptions)
}

func (m *CloseSessionRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	m.DeleteSubscriptions, err = bin.DecodeBool(r)
	return err
}

// CloseSessionResponse acknowledges the close.
type CloseSessionResponse struct {
	Header ResponseHeader
}

func (m *CloseSessionResponse) ObjectID() uint32                { return ObjectIDCloseSessionResponse }
func (m *CloseSessionResponse) ResponseHeader() *ResponseHeader { return &m.Header }
func (m *CloseSessionResponse) encodeBody(w io.Writer) error    { return m.Header.encode(w) }
func (m *CloseSessionResponse) decodeBody(r io.Reader) error    { return m.Header.decode(r) }

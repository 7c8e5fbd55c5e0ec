package svc

import (
	"io"
	"time"

	"github.com/alxayo/opcua-server/internal/ua/bin"
)

// Secure-channel request types.
const (
	SecurityTokenRequestIssue uint32 = 0
	SecurityTokenRequestRenew uint32 = 1
)

// Message security modes.
const (
	SecurityModeInvalid        uint32 = 0
	SecurityModeNone           uint32 = 1
	SecurityModeSign           uint32 = 2
	SecurityModeSignAndEncrypt uint32 = 3
)

// ChannelSecurityToken identifies a secure channel and its current token.
type ChannelSecurityToken struct {
	ChannelID       uint32
	TokenID         uint32
	CreatedAt       time.Time
	RevisedLifetime uint32
}

func (t *ChannelSecurityToken) encode(w io.Writer) error {
	if err := bin.EncodeUint32(w, t.ChannelID); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, t.TokenID); err != nil {
		return err
	}
	if err := bin.EncodeDateTime(w, t.CreatedAt); err != nil {
		return err
	}
	return bin.EncodeUint32(w, t.RevisedLifetime)
}

func (t *ChannelSecurityToken) decode(r io.Reader) error {
	var err error
	if t.ChannelID, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if t.TokenID, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if t.CreatedAt, err = bin.DecodeDateTime(r); err != nil {
		return err
	}
	t.RevisedLifetime, err = bin.DecodeUint32(r)
	return err
}

// OpenSecureChannelRequest opens or renews a secure channel.
type OpenSecureChannelRequest struct {
	Header                RequestHeader
	ClientProtocolVersion uint32
	RequestType           uint32
	SecurityMode          uint32
	ClientNonce           []byte
	RequestedLifetime     uint32
}

func (m *OpenSecureChannelRequest) ObjectID() uint32              { return ObjectIDOpenSecureChannelRequest }
func (m *OpenSecureChannelRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *OpenSecureChannelRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, m.ClientProtocolVersion); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, m.RequestType); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, m.SecurityMode); err != nil {
		return err
	}
	if err := bin.EncodeByteString(w, m.ClientNonce); err != nil {
		return err
	}
	return bin.EncodeUint32(w, m.RequestedLifetime)
}

func (m *OpenSecureChannelRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.ClientProtocolVersion, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if m.RequestType, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if m.SecurityMode, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if m.ClientNonce, err = bin.DecodeByteString(r); err != nil {
		return err
	}
	m.RequestedLifetime, err = bin.DecodeUint32(r)
	return err
}

// OpenSecureChannelResponse returns the allocated channel and token ids.
type OpenSecureChannelResponse struct {
	Header                ResponseHeader
	ServerProtocolVersion uint32
	SecurityToken         ChannelSecurityToken
	ServerNonce           []byte
}

func (m *OpenSecureChannelResponse) ObjectID() uint32                { return ObjectIDOpenSecureChannelResponse }
func (m *OpenSecureChannelResponse) ResponseHeader() *ResponseHeader { return &m.Header }

func (m *OpenSecureChannelResponse) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, m.ServerProtocolVersion); err != nil {
		return err
	}
	if err := m.SecurityToken.encode(w); err != nil {
		return err
	}
	return bin.EncodeByteString(w, m.ServerNonce)
}

func (m *OpenSecureChannelResponse) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.ServerProtocolVersion, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if err := m.SecurityToken.decode(r); err != nil {
		return err
	}
	m.ServerNonce, err = bin.DecodeByteString(r)
	return err
}

// CloseSecureChannelRequest tears down the channel. The body is just the
// request header.
type CloseSecureChannelRequest struct {
	Header RequestHeader
}

func (m *CloseSecureChannelRequest) ObjectID() uint32              { return ObjectIDCloseSecureChannelRequest }
func (m *CloseSecureChannelRequest) RequestHeader() *RequestHeader { return &m.Header }
func (m *CloseSecureChannelRequest) encodeBody(w io.Writer) error  { return m.Header.encode(w) }
func (m *CloseSecureChannelRequest) decodeBody(r io.Reader) error  { return m.Header.decode(r) }

// CloseSecureChannelResponse acknowledges the close.
type CloseSecureChannelResponse struct {
	Header ResponseHeader
}

func (m *CloseSecureChannelResponse) ObjectID() uint32                { return ObjectIDCloseSecureChannelResponse }
func (m *CloseSecureChannelResponse) ResponseHeader() *ResponseHeader { return &m.Header }
func (m *CloseSecureChannelResponse) encodeBody(w io.Writer) error    { return m.Header.encode(w) }
func (m *CloseSecureChannelResponse) decodeBody(r io.Reader) error    { return m.Header.decode(r) }

// ServiceFault is a response whose header carries the failure and whose
// payload is absent.
type ServiceFault struct {
	Header ResponseHeader
}

func (m *ServiceFault) ObjectID() uint32                { return ObjectIDServiceFault }
func (m *ServiceFault) ResponseHeader() *ResponseHeader { return &m.Header }
func (m *ServiceFault) encodeBody(w io.Writer) error    { return m.Header.encode(w) }
func (m *ServiceFault) decodeBody(r io.Reader) error    { return m.Header.decode(r) }

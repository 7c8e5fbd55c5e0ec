// Package tcp implements the UA-TCP framing layer: the 8-byte message
// header, the Hello/Acknowledge/Error connection messages, and the message
// buffer that reassembles framed messages from a raw byte stream.
package tcp

import (
	"bytes"
	"fmt"
	"io"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// MessageHeaderLen is the fixed size of the UA-TCP message header.
const MessageHeaderLen = 8

// Wire message type tags (3 ASCII bytes at offset 0).
const (
	TypeHello       = "HEL"
	TypeAcknowledge = "ACK"
	TypeError       = "ERR"
	TypeMessage     = "MSG"
	TypeOpenChannel = "OPN"
	TypeCloseChannel = "CLO"
)

// Chunk type markers (1 ASCII byte at offset 3).
const (
	ChunkFinal        = 'F'
	ChunkIntermediate = 'C'
	ChunkAbort        = 'A'
)

// MessageHeader is the 8-byte prefix on every UA-TCP message: three ASCII
// type bytes, one chunk-type byte, and a little-endian uint32 size that
// includes the header itself.
type MessageHeader struct {
	Type      string
	ChunkType byte
	Size      uint32
}

// IsChunkType reports whether t tags a secure-conversation chunk (MSG, OPN
// or CLO) rather than a connection message.
func IsChunkType(t string) bool {
	return t == TypeMessage || t == TypeOpenChannel || t == TypeCloseChannel
}

func validMessageType(t string) bool {
	switch t {
	case TypeHello, TypeAcknowledge, TypeError, TypeMessage, TypeOpenChannel, TypeCloseChannel:
		return true
	}
	return false
}

// EncodeMessageHeader writes the 8-byte header.
func EncodeMessageHeader(w io.Writer, h MessageHeader) error {
	if len(h.Type) != 3 {
		return errs.NewFramingError("tcp.encode_header", status.BadTcpMessageTypeInvalid,
			fmt.Errorf("message type %q is not 3 bytes", h.Type))
	}
	if _, err := w.Write([]byte(h.Type)); err != nil {
		return errs.NewFramingError("tcp.encode_header", status.BadTcpInternalError, err)
	}
	if _, err := w.Write([]byte{h.ChunkType}); err != nil {
		return errs.NewFramingError("tcp.encode_header", status.BadTcpInternalError, err)
	}
	return bin.EncodeUint32(w, h.Size)
}

// DecodeMessageHeader reads the 8-byte header and validates the type tag.
// An unknown tag fails with BadTcpMessageTypeInvalid.
func DecodeMessageHeader(r io.Reader) (MessageHeader, error) {
	var raw [4]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return MessageHeader{}, errs.NewFramingError("tcp.decode_header", status.BadDecodingError, err)
	}
	size, err := bin.DecodeUint32(r)
	if err != nil {
		return MessageHeader{}, err
	}
	h := MessageHeader{Type: string(raw[:3]), ChunkType: raw[3], Size: size}
	if !validMessageType(h.Type) {
		return h, errs.NewFramingError("tcp.decode_header", status.BadTcpMessageTypeInvalid,
			fmt.Errorf("unknown message type %q", h.Type))
	}
	if h.Size < MessageHeaderLen {
		return h, errs.NewFramingError("tcp.decode_header", status.BadTcpInternalError,
			fmt.Errorf("message size %d smaller than header", h.Size))
	}
	return h, nil
}

// Hello is the client's opening message carrying its protocol version,
// buffer sizes and the endpoint url it wants to reach.
type Hello struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
	EndpointURL       string
}

// Acknowledge is the server's reply to Hello: the negotiated (possibly
// reduced) buffer sizes and limits. It mirrors Hello without the url.
type Acknowledge struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// ErrorMessage tells the peer why the connection is being torn down.
type ErrorMessage struct {
	Code   status.Code
	Reason string
}

// Message is one framed UA-TCP message as peeled off the stream. Exactly
// one of Hello/Acknowledge/Error/ChunkBody is set, selected by Header.Type:
// HEL, ACK and ERR decode into their structs, while MSG/OPN/CLO keep the
// raw body bytes for the chunk layer to interpret.
type Message struct {
	Header      MessageHeader
	Hello       *Hello
	Acknowledge *Acknowledge
	Error       *ErrorMessage
	ChunkBody   []byte
}

// IsChunk reports whether the message is a secure-conversation chunk.
func (m *Message) IsChunk() bool { return IsChunkType(m.Header.Type) }

func encodeHelloBody(w io.Writer, h *Hello) error {
	for _, v := range []uint32{h.ProtocolVersion, h.ReceiveBufferSize, h.SendBufferSize, h.MaxMessageSize, h.MaxChunkCount} {
		if err := bin.EncodeUint32(w, v); err != nil {
			return err
		}
	}
	url := h.EndpointURL
	return bin.EncodeString(w, &url)
}

func decodeHelloBody(r io.Reader) (*Hello, error) {
	var h Hello
	for _, p := range []*uint32{&h.ProtocolVersion, &h.ReceiveBufferSize, &h.SendBufferSize, &h.MaxMessageSize, &h.MaxChunkCount} {
		v, err := bin.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		*p = v
	}
	s, err := bin.DecodeString(r)
	if err != nil {
		return nil, err
	}
	if s != nil {
		h.EndpointURL = *s
	}
	return &h, nil
}

func encodeAcknowledgeBody(w io.Writer, a *Acknowledge) error {
	for _, v := range []uint32{a.ProtocolVersion, a.ReceiveBufferSize, a.SendBufferSize, a.MaxMessageSize, a.MaxChunkCount} {
		if err := bin.EncodeUint32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func decodeAcknowledgeBody(r io.Reader) (*Acknowledge, error) {
	var a Acknowledge
	for _, p := range []*uint32{&a.ProtocolVersion, &a.ReceiveBufferSize, &a.SendBufferSize, &a.MaxMessageSize, &a.MaxChunkCount} {
		v, err := bin.DecodeUint32(r)
		if err != nil {
			return nil, err
		}
		*p = v
	}
	return &a, nil
}

func encodeErrorBody(w io.Writer, e *ErrorMessage) error {
	if err := bin.EncodeStatusCode(w, e.Code); err != nil {
		return err
	}
	reason := e.Reason
	return bin.EncodeString(w, &reason)
}

func decodeErrorBody(r io.Reader) (*ErrorMessage, error) {
	code, err := bin.DecodeStatusCode(r)
	if err != nil {
		return nil, err
	}
	s, err := bin.DecodeString(r)
	if err != nil {
		return nil, err
	}
	e := &ErrorMessage{Code: code}
	if s != nil {
		e.Reason = *s
	}
	return e, nil
}

// EncodeHello frames a Hello message, computing the size field.
func EncodeHello(h *Hello) ([]byte, error) {
	var body bytes.Buffer
	if err := encodeHelloBody(&body, h); err != nil {
		return nil, err
	}
	return frame(TypeHello, ChunkFinal, body.Bytes())
}

// EncodeAcknowledge frames an Acknowledge message.
func EncodeAcknowledge(a *Acknowledge) ([]byte, error) {
	var body bytes.Buffer
	if err := encodeAcknowledgeBody(&body, a); err != nil {
		return nil, err
	}
	return frame(TypeAcknowledge, ChunkFinal, body.Bytes())
}

// EncodeError frames an Error message.
func EncodeError(e *ErrorMessage) ([]byte, error) {
	var body bytes.Buffer
	if err := encodeErrorBody(&body, e); err != nil {
		return nil, err
	}
	return frame(TypeError, ChunkFinal, body.Bytes())
}

// FrameChunk frames a secure-conversation chunk body under the given type
// tag (MSG, OPN or CLO) and chunk-type marker.
func FrameChunk(msgType string, chunkType byte, body []byte) ([]byte, error) {
	if !IsChunkType(msgType) {
		return nil, errs.NewFramingError("tcp.frame_chunk", status.BadTcpMessageTypeInvalid,
			fmt.Errorf("%q is not a chunk message type", msgType))
	}
	return frame(msgType, chunkType, body)
}

func frame(msgType string, chunkType byte, body []byte) ([]byte, error) {
	var out bytes.Buffer
	h := MessageHeader{Type: msgType, ChunkType: chunkType, Size: uint32(MessageHeaderLen + len(body))}
	if err := EncodeMessageHeader(&out, h); err != nil {
		return nil, err
	}
	if _, err := out.Write(body); err != nil {
		return nil, errs.NewFramingError("tcp.frame", status.BadTcpInternalError, err)
	}
	return out.Bytes(), nil
}

// decodeMessage interprets one complete frame (header + body).
func decodeMessage(h MessageHeader, body []byte) (*Message, error) {
	m := &Message{Header: h}
	r := bytes.NewReader(body)
	var err error
	switch h.Type {
	case TypeHello:
		m.Hello, err = decodeHelloBody(r)
	case TypeAcknowledge:
		m.Acknowledge, err = decodeAcknowledgeBody(r)
	case TypeError:
		m.Error, err = decodeErrorBody(r)
	default:
		m.ChunkBody = body
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

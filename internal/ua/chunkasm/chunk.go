// Package chunkasm reassembles multi-chunk service requests: it parses the
// security and sequence headers off each inbound chunk, validates them
// against the connection's secure channel, and accumulates bodies until the
// final chunk arrives.
package chunkasm

import (
	"bytes"
	"io"

	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/tcp"
)

// Chunk is one parsed secure-conversation chunk: the frame header, the
// security header fields, the sequence header, and the remaining body bytes.
type Chunk struct {
	MessageType string
	ChunkType   byte

	// Symmetric security header (MSG/CLO).
	ChannelID uint32
	TokenID   uint32

	// Asymmetric security header (OPN only).
	SecurityPolicyURI    string
	SenderCertificate    []byte
	ReceiverThumbprint   []byte

	SequenceNumber uint32
	RequestID      uint32
	Body           []byte
}

// IsFinal reports whether this chunk completes its request.
func (c *Chunk) IsFinal() bool { return c.ChunkType == tcp.ChunkFinal }

// IsAbort reports whether this chunk aborts its request.
func (c *Chunk) IsAbort() bool { return c.ChunkType == tcp.ChunkAbort }

// ParseChunk interprets the body of a framed MSG/OPN/CLO message. OPN
// carries the asymmetric security header (policy uri, certificates); MSG and
// CLO carry the symmetric one (channel id, token id). Both are followed by
// the sequence header.
func ParseChunk(m *tcp.Message) (*Chunk, error) {
	c := &Chunk{MessageType: m.Header.Type, ChunkType: m.Header.ChunkType}
	r := bytes.NewReader(m.ChunkBody)

	var err error
	if c.ChannelID, err = bin.DecodeUint32(r); err != nil {
		return nil, err
	}
	if m.Header.Type == tcp.TypeOpenChannel {
		if c.SecurityPolicyURI, err = decodeOptString(r); err != nil {
			return nil, err
		}
		if c.SenderCertificate, err = bin.DecodeByteString(r); err != nil {
			return nil, err
		}
		if c.ReceiverThumbprint, err = bin.DecodeByteString(r); err != nil {
			return nil, err
		}
	} else {
		if c.TokenID, err = bin.DecodeUint32(r); err != nil {
			return nil, err
		}
	}
	if c.SequenceNumber, err = bin.DecodeUint32(r); err != nil {
		return nil, err
	}
	if c.RequestID, err = bin.DecodeUint32(r); err != nil {
		return nil, err
	}
	c.Body = make([]byte, r.Len())
	if _, err := io.ReadFull(r, c.Body); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeChunkBody builds the unframed body for an outbound chunk: security
// header, sequence header, payload. The caller frames it with
// tcp.FrameChunk.
func EncodeChunkBody(c *Chunk) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.EncodeUint32(&buf, c.ChannelID); err != nil {
		return nil, err
	}
	if c.MessageType == tcp.TypeOpenChannel {
		if err := encodeOptString(&buf, c.SecurityPolicyURI); err != nil {
			return nil, err
		}
		if err := bin.EncodeByteString(&buf, c.SenderCertificate); err != nil {
			return nil, err
		}
		if err := bin.EncodeByteString(&buf, c.ReceiverThumbprint); err != nil {
			return nil, err
		}
	} else {
		if err := bin.EncodeUint32(&buf, c.TokenID); err != nil {
			return nil, err
		}
	}
	if err := bin.EncodeUint32(&buf, c.SequenceNumber); err != nil {
		return nil, err
	}
	if err := bin.EncodeUint32(&buf, c.RequestID); err != nil {
		return nil, err
	}
	buf.Write(c.Body)
	return buf.Bytes(), nil
}

func decodeOptString(r io.Reader) (string, error) {
	s, err := bin.DecodeString(r)
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

func encodeOptString(w io.Writer, s string) error {
	if s == "" {
		return bin.EncodeString(w, nil)
	}
	return bin.EncodeString(w, &s)
}

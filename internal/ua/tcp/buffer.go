package tcp

import (
	"bytes"
	"fmt"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// MessageBuffer accumulates inbound bytes and peels off complete framed
// messages. Partial messages stay buffered until the next StoreBytes call.
// Not safe for concurrent use; each transport owns exactly one.
type MessageBuffer struct {
	buf            bytes.Buffer
	maxMessageSize uint32
}

// NewMessageBuffer creates a buffer enforcing maxMessageSize on every
// decoded header. A maxMessageSize of 0 disables the check.
func NewMessageBuffer(maxMessageSize uint32) *MessageBuffer {
	return &MessageBuffer{maxMessageSize: maxMessageSize}
}

// StoreBytes appends data and extracts every complete message now present.
// A message of exactly MessageHeaderLen bytes (empty body) is decoded like
// any other. On a framing error the buffer contents are dropped so a
// corrupt stream cannot wedge the connection in a decode loop.
func (b *MessageBuffer) StoreBytes(data []byte) ([]*Message, error) {
	b.buf.Write(data)

	var out []*Message
	for b.buf.Len() >= MessageHeaderLen {
		raw := b.buf.Bytes()
		h, err := DecodeMessageHeader(bytes.NewReader(raw[:MessageHeaderLen]))
		if err != nil {
			b.buf.Reset()
			return out, errs.NewFramingError("tcp.store_bytes", status.BadCommunicationError, err)
		}
		if b.maxMessageSize != 0 && h.Size > b.maxMessageSize {
			b.buf.Reset()
			return out, errs.NewFramingError("tcp.store_bytes", status.BadTcpMessageTooLarge,
				fmt.Errorf("message size %d exceeds negotiated %d", h.Size, b.maxMessageSize))
		}
		if uint32(b.buf.Len()) < h.Size {
			break
		}
		frame := make([]byte, h.Size)
		if _, err := b.buf.Read(frame); err != nil {
			b.buf.Reset()
			return out, errs.NewFramingError("tcp.store_bytes", status.BadTcpInternalError, err)
		}
		m, err := decodeMessage(h, frame[MessageHeaderLen:])
		if err != nil {
			b.buf.Reset()
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Pending returns how many bytes are buffered awaiting a complete message.
func (b *MessageBuffer) Pending() int { return b.buf.Len() }

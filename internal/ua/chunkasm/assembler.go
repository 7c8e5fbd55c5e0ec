package chunkasm

import (
	"fmt"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/session"
	"github.com/alxayo/opcua-server/internal/ua/status"
	"github.com/alxayo/opcua-server/internal/ua/tcp"
)

// assembly accumulates the bodies of one in-flight request.
type assembly struct {
	requestID  uint32
	bodies     [][]byte
	byteCount  uint32
	chunkCount uint32
}

// Request is one fully reassembled service request.
type Request struct {
	RequestID   uint32
	MessageType string
	Body        []byte
}

// Assembler owns the request_id → in-progress assembly map for one
// connection. It validates each chunk's security header against the secure
// channel and enforces the negotiated size caps. Not safe for concurrent
// use; each transport owns exactly one.
type Assembler struct {
	channel        *session.SecureChannel
	maxRequestSize uint32 // 0 = unbounded
	maxChunkCount  uint32 // 0 = unbounded

	assemblies map[uint32]*assembly
}

// New creates an assembler bound to the connection's secure channel.
func New(channel *session.SecureChannel, maxRequestSize, maxChunkCount uint32) *Assembler {
	return &Assembler{
		channel:        channel,
		maxRequestSize: maxRequestSize,
		maxChunkCount:  maxChunkCount,
		assemblies:     make(map[uint32]*assembly),
	}
}

// Push feeds one chunk in. When the chunk completes a request, the
// reassembled request is returned. Abort chunks discard the partial state
// and return nothing. OPN chunks skip the symmetric-header check since the
// channel does not exist until the open completes.
func (a *Assembler) Push(c *Chunk) (*Request, error) {
	if c.MessageType != tcp.TypeOpenChannel {
		if err := a.channel.VerifySecurity(c.ChannelID, c.TokenID); err != nil {
			return nil, err
		}
	}
	if err := a.channel.VerifyReceiveSequence(c.SequenceNumber); err != nil {
		return nil, err
	}

	if c.IsAbort() {
		delete(a.assemblies, c.RequestID)
		return nil, nil
	}

	asm := a.assemblies[c.RequestID]
	if asm == nil {
		asm = &assembly{requestID: c.RequestID}
		a.assemblies[c.RequestID] = asm
	}

	asm.byteCount += uint32(len(c.Body))
	asm.chunkCount++
	if a.maxRequestSize != 0 && asm.byteCount > a.maxRequestSize {
		delete(a.assemblies, c.RequestID)
		return nil, errs.NewFramingError("chunkasm.push", status.BadRequestTooLarge,
			fmt.Errorf("request %d grew to %d bytes, cap is %d", c.RequestID, asm.byteCount, a.maxRequestSize))
	}
	if a.maxChunkCount != 0 && asm.chunkCount > a.maxChunkCount {
		delete(a.assemblies, c.RequestID)
		return nil, errs.NewFramingError("chunkasm.push", status.BadRequestTooLarge,
			fmt.Errorf("request %d spans %d chunks, cap is %d", c.RequestID, asm.chunkCount, a.maxChunkCount))
	}
	asm.bodies = append(asm.bodies, c.Body)

	if !c.IsFinal() {
		return nil, nil
	}

	delete(a.assemblies, c.RequestID)
	body := make([]byte, 0, asm.byteCount)
	for _, b := range asm.bodies {
		body = append(body, b...)
	}
	return &Request{RequestID: c.RequestID, MessageType: c.MessageType, Body: body}, nil
}

// PendingRequests returns how many partial requests are buffered.
func (a *Assembler) PendingRequests() int { return len(a.assemblies) }

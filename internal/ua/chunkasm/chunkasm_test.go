package chunkasm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/session"
	"github.com/alxayo/opcua-server/internal/ua/status"
	"github.com/alxayo/opcua-server/internal/ua/tcp"
)

func newTestChannel(t *testing.T) *session.SecureChannel {
	t.Helper()
	return session.NewSecureChannel(7, time.Hour, time.Now())
}

func msgChunk(ch *session.SecureChannel, chunkType byte, seq, reqID uint32, body []byte) *Chunk {
	return &Chunk{
		MessageType:    tcp.TypeMessage,
		ChunkType:      chunkType,
		ChannelID:      ch.ID(),
		TokenID:        ch.TokenID(),
		SequenceNumber: seq,
		RequestID:      reqID,
		Body:           body,
	}
}

func TestChunkParseRoundTrip(t *testing.T) {
	c := &Chunk{
		MessageType:    tcp.TypeMessage,
		ChunkType:      tcp.ChunkFinal,
		ChannelID:      7,
		TokenID:        1,
		SequenceNumber: 51,
		RequestID:      3,
		Body:           []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
	body, err := EncodeChunkBody(c)
	require.NoError(t, err)
	frame, err := tcp.FrameChunk(tcp.TypeMessage, tcp.ChunkFinal, body)
	require.NoError(t, err)

	mb := tcp.NewMessageBuffer(0)
	msgs, err := mb.StoreBytes(frame)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	got, err := ParseChunk(msgs[0])
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestOpenChannelChunkRoundTrip(t *testing.T) {
	c := &Chunk{
		MessageType:       tcp.TypeOpenChannel,
		ChunkType:         tcp.ChunkFinal,
		ChannelID:         0,
		SecurityPolicyURI: "http://opcfoundation.org/UA/SecurityPolicy#None",
		SequenceNumber:    1,
		RequestID:         1,
		Body:              []byte{1, 2, 3},
	}
	body, err := EncodeChunkBody(c)
	require.NoError(t, err)
	frame, err := tcp.FrameChunk(tcp.TypeOpenChannel, tcp.ChunkFinal, body)
	require.NoError(t, err)

	mb := tcp.NewMessageBuffer(0)
	msgs, err := mb.StoreBytes(frame)
	require.NoError(t, err)
	got, err := ParseChunk(msgs[0])
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestAssemblerSingleChunk(t *testing.T) {
	ch := newTestChannel(t)
	a := New(ch, 0, 0)

	req, err := a.Push(msgChunk(ch, tcp.ChunkFinal, 1, 9, []byte("hello")))
	require.NoError(t, err)
	require.NotNil(t, req)
	require.Equal(t, uint32(9), req.RequestID)
	require.Equal(t, []byte("hello"), req.Body)
	require.Zero(t, a.PendingRequests())
}

func TestAssemblerMultiChunk(t *testing.T) {
	ch := newTestChannel(t)
	a := New(ch, 0, 0)

	req, err := a.Push(msgChunk(ch, tcp.ChunkIntermediate, 1, 4, []byte("ab")))
	require.NoError(t, err)
	require.Nil(t, req)
	require.Equal(t, 1, a.PendingRequests())

	req, err = a.Push(msgChunk(ch, tcp.ChunkIntermediate, 2, 4, []byte("cd")))
	require.NoError(t, err)
	require.Nil(t, req)

	req, err = a.Push(msgChunk(ch, tcp.ChunkFinal, 3, 4, []byte("ef")))
	require.NoError(t, err)
	require.NotNil(t, req)
	require.Equal(t, []byte("abcdef"), req.Body)
	require.Zero(t, a.PendingRequests())
}

func TestAssemblerSequenceGap(t *testing.T) {
	ch := newTestChannel(t)
	a := New(ch, 0, 0)

	_, err := a.Push(msgChunk(ch, tcp.ChunkIntermediate, 7, 4, []byte("ab")))
	require.NoError(t, err)

	_, err = a.Push(msgChunk(ch, tcp.ChunkFinal, 9, 4, []byte("cd")))
	require.Error(t, err)
	require.Equal(t, status.BadSequenceNumberInvalid, errs.StatusCodeOf(err))
}

func TestAssemblerSequenceReplay(t *testing.T) {
	ch := newTestChannel(t)
	a := New(ch, 0, 0)

	_, err := a.Push(msgChunk(ch, tcp.ChunkIntermediate, 3, 4, nil))
	require.NoError(t, err)
	_, err = a.Push(msgChunk(ch, tcp.ChunkFinal, 3, 4, nil))
	require.Error(t, err)
	require.Equal(t, status.BadSequenceNumberInvalid, errs.StatusCodeOf(err))
}

func TestAssemblerWrongChannelID(t *testing.T) {
	ch := newTestChannel(t)
	a := New(ch, 0, 0)

	c := msgChunk(ch, tcp.ChunkFinal, 1, 4, nil)
	c.ChannelID = 999
	_, err := a.Push(c)
	require.Error(t, err)
	require.Equal(t, status.BadSecureChannelIdInvalid, errs.StatusCodeOf(err))
}

func TestAssemblerWrongTokenID(t *testing.T) {
	ch := newTestChannel(t)
	a := New(ch, 0, 0)

	c := msgChunk(ch, tcp.ChunkFinal, 1, 4, nil)
	c.TokenID = 42
	_, err := a.Push(c)
	require.Error(t, err)
	require.Equal(t, status.BadSecurityTokenRejected, errs.StatusCodeOf(err))
}

func TestAssemblerRequestTooLarge(t *testing.T) {
	ch := newTestChannel(t)
	a := New(ch, 8, 0)

	_, err := a.Push(msgChunk(ch, tcp.ChunkIntermediate, 1, 4, []byte("12345")))
	require.NoError(t, err)
	_, err = a.Push(msgChunk(ch, tcp.ChunkFinal, 2, 4, []byte("67890")))
	require.Error(t, err)
	require.Equal(t, status.BadRequestTooLarge, errs.StatusCodeOf(err))
	require.Zero(t, a.PendingRequests())
}

func TestAssemblerTooManyChunks(t *testing.T) {
	ch := newTestChannel(t)
	a := New(ch, 0, 2)

	_, err := a.Push(msgChunk(ch, tcp.ChunkIntermediate, 1, 4, []byte("a")))
	require.NoError(t, err)
	_, err = a.Push(msgChunk(ch, tcp.ChunkIntermediate, 2, 4, []byte("b")))
	require.NoError(t, err)
	_, err = a.Push(msgChunk(ch, tcp.ChunkFinal, 3, 4, []byte("c")))
	require.Error(t, err)
	require.Equal(t, status.BadRequestTooLarge, errs.StatusCodeOf(err))
}

func TestAssemblerAbortDiscards(t *testing.T) {
	ch := newTestChannel(t)
	a := New(ch, 0, 0)

	_, err := a.Push(msgChunk(ch, tcp.ChunkIntermediate, 1, 4, []byte("partial")))
	require.NoError(t, err)
	require.Equal(t, 1, a.PendingRequests())

	req, err := a.Push(msgChunk(ch, tcp.ChunkAbort, 2, 4, nil))
	require.NoError(t, err)
	require.Nil(t, req)
	require.Zero(t, a.PendingRequests())

	// A fresh request with the same id starts clean.
	req, err = a.Push(msgChunk(ch, tcp.ChunkFinal, 3, 4, []byte("fresh")))
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), req.Body)
}

func TestSecureChannelRenew(t *testing.T) {
	ch := newTestChannel(t)
	old := ch.TokenID()
	renewed := ch.Renew(time.Now())
	require.Equal(t, old+1, renewed)
	require.Error(t, ch.VerifySecurity(ch.ID(), old))
	require.NoError(t, ch.VerifySecurity(ch.ID(), renewed))
}

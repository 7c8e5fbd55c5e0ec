package errors

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alxayo/opcua-server/internal/ua/status"
)

// fakeTimeoutErr simulates a net.Error with Timeout semantics.
type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string { return "fake timeout" }
func (fakeTimeoutErr) Timeout() bool { return true }

func TestFramingError(t *testing.T) {
	cause := stdErrors.New("short read")
	err := NewFramingError("tcp.read_header", status.BadTcpMessageTooLarge, cause)

	require.True(t, IsProtocolError(err))
	require.Equal(t, status.BadTcpMessageTooLarge, StatusCodeOf(err))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "tcp.read_header")
	require.Contains(t, err.Error(), "BadTcpMessageTooLarge")
}

func TestSecurityErrorNilCause(t *testing.T) {
	err := NewSecurityError("chunkasm.verify_token", status.BadSecurityTokenRejected, nil)

	require.True(t, IsProtocolError(err))
	require.Equal(t, status.BadSecurityTokenRejected, StatusCodeOf(err))
	require.NotEmpty(t, err.Error())
}

func TestServiceErrorWrapping(t *testing.T) {
	inner := NewEncodingError("bin.decode_node_id", status.BadDecodingError, stdErrors.New("bad discriminator"))
	outer := NewServiceError("dispatch.read", status.BadNodeIdInvalid, inner)

	require.True(t, IsProtocolError(outer))
	// StatusCodeOf resolves against the outermost protocol-layer error, not
	// the innermost cause.
	require.Equal(t, status.BadNodeIdInvalid, StatusCodeOf(outer))
	require.True(t, IsProtocolError(inner))
	require.Equal(t, status.BadDecodingError, StatusCodeOf(inner))
	require.ErrorIs(t, outer, inner)
}

func TestChunkAndEncodingErrorsWithoutCause(t *testing.T) {
	fe := NewFramingError("chunkasm.append", status.BadRequestTooLarge, nil)
	require.NotEmpty(t, fe.Error())
	require.True(t, IsProtocolError(fe))

	ee := NewEncodingError("bin.decode_variant", status.BadDecodingError, nil)
	require.NotEmpty(t, ee.Error())
	require.True(t, IsProtocolError(ee))
}

func TestStatusCodeOfNonProtocolError(t *testing.T) {
	require.Equal(t, status.Good, StatusCodeOf(nil))
	require.Equal(t, status.BadInternalError, StatusCodeOf(stdErrors.New("plain")))
}

func TestIsTimeout(t *testing.T) {
	root := fakeTimeoutErr{}
	to := NewTimeoutError("handshake.read", 5*time.Second, root)

	require.True(t, IsTimeout(to))
	require.False(t, IsProtocolError(to))
	require.True(t, IsTimeout(context.DeadlineExceeded))

	var ne error = root
	require.True(t, IsTimeout(ne))
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := NewTimeoutError("transport.read", 5*time.Second, stdErrors.New("eof"))
	require.Contains(t, err.Error(), "transport.read")
	require.Contains(t, err.Error(), "5s")
	require.Contains(t, err.Error(), "eof")
}

func TestUnwrapChains(t *testing.T) {
	base := stdErrors.New("io EOF")
	l1 := NewFramingError("tcp.read_header", status.BadCommunicationError, base)

	require.True(t, stdErrors.Is(l1, base))

	var pm protocolMarker
	require.True(t, stdErrors.As(l1, &pm))
}

func TestNilSafety(t *testing.T) {
	require.False(t, IsProtocolError(nil))
	require.False(t, IsTimeout(nil))
}

func TestNegativePredicates(t *testing.T) {
	require.False(t, IsProtocolError(stdErrors.New("plain")))
	require.False(t, IsTimeout(stdErrors.New("plain")))
}

package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/alxayo/opcua-server/internal/ua/status"
)

// protocolMarker is implemented by all protocol-layer error types so we can
// classify them and pull the StatusCode back out without a type switch at
// every call site.
type protocolMarker interface {
	error
	isProtocol()
	StatusCode() status.Code
}

// FramingError indicates a failure in the UA-TCP message header / message
// buffer / chunk reassembly layer: malformed header, oversized message,
// unknown message type.
type FramingError struct {
	Op   string // e.g. "tcp.read_header", "chunkasm.append"
	Code status.Code
	Err  error
}

func (e *FramingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("framing error: %s (%s)", e.Op, e.Code)
	}
	return fmt.Sprintf("framing error: %s (%s): %v", e.Op, e.Code, e.Err)
}
func (e *FramingError) Unwrap() error        { return e.Err }
func (e *FramingError) isProtocol()          {}
func (e *FramingError) StatusCode() status.Code { return e.Code }

// SecurityError indicates a secure-channel or security-token violation:
// unknown channel id, rejected token, invalid sequence number.
type SecurityError struct {
	Op   string
	Code status.Code
	Err  error
}

func (e *SecurityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("security error: %s (%s)", e.Op, e.Code)
	}
	return fmt.Sprintf("security error: %s (%s): %v", e.Op, e.Code, e.Err)
}
func (e *SecurityError) Unwrap() error        { return e.Err }
func (e *SecurityError) isProtocol()          {}
func (e *SecurityError) StatusCode() status.Code { return e.Code }

// ServiceError indicates a failure while dispatching or executing a decoded
// service request: unsupported service, operation-count limit, bad node id.
type ServiceError struct {
	Op   string
	Code status.Code
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("service error: %s (%s)", e.Op, e.Code)
	}
	return fmt.Sprintf("service error: %s (%s): %v", e.Op, e.Code, e.Err)
}
func (e *ServiceError) Unwrap() error        { return e.Err }
func (e *ServiceError) isProtocol()          {}
func (e *ServiceError) StatusCode() status.Code { return e.Code }

// EncodingError indicates a failure in the binary codec layer:
// truncated buffer, length outside MAX_* bounds, unknown type discriminator.
type EncodingError struct {
	Op   string
	Code status.Code
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("encoding error: %s (%s)", e.Op, e.Code)
	}
	return fmt.Sprintf("encoding error: %s (%s): %v", e.Op, e.Code, e.Err)
}
func (e *EncodingError) Unwrap() error        { return e.Err }
func (e *EncodingError) isProtocol()          {}
func (e *EncodingError) StatusCode() status.Code { return e.Code }

// TimeoutError indicates an operation exceeded a deadline or idle timeout.
// It deliberately does not implement protocolMarker: a timeout is a
// transport-level condition, not a decoded StatusCode from the wire.
type TimeoutError struct {
	Op       string
	Duration time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (after %s)", e.Op, e.Duration)
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}
func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTimeout returns true if err is (or wraps) a TimeoutError, a context
// deadline exceeded, or any error type that exposes Timeout() bool and
// returns true.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if stdErrors.As(err, &te) {
		return true
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var toErr interface{ Timeout() bool }
	if stdErrors.As(err, &toErr) && toErr.Timeout() {
		return true
	}
	return false
}

// IsProtocolError returns true if the error chain contains any
// protocol-layer error (FramingError, SecurityError, ServiceError,
// EncodingError).
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}
	var pm protocolMarker
	return stdErrors.As(err, &pm)
}

// StatusCodeOf extracts the StatusCode carried by a protocol-layer error. If
// err does not wrap one, it returns status.BadInternalError so callers always
// have a StatusCode to put on the wire rather than having to branch on ok.
func StatusCodeOf(err error) status.Code {
	if err == nil {
		return status.Good
	}
	var pm protocolMarker
	if stdErrors.As(err, &pm) {
		return pm.StatusCode()
	}
	return status.BadInternalError
}

// Constructors (encourage contextual wrapping with %w when used by callers).
func NewFramingError(op string, code status.Code, cause error) error {
	return &FramingError{Op: op, Code: code, Err: cause}
}
func NewSecurityError(op string, code status.Code, cause error) error {
	return &SecurityError{Op: op, Code: code, Err: cause}
}
func NewServiceError(op string, code status.Code, cause error) error {
	return &ServiceError{Op: op, Code: code, Err: cause}
}
func NewEncodingError(op string, code status.Code, cause error) error {
	return &EncodingError{Op: op, Code: code, Err: cause}
}
func NewTimeoutError(op string, d time.Duration, cause error) error {
	return &TimeoutError{Op: op, Duration: d, Err: cause}
}

// Usage pattern example:
//  if n, err := r.Read(hdr); err != nil {
//      return NewFramingError("tcp.read_header", status.BadTcpInternalError, fmt.Errorf("io: %w", err))
//  }
// Keep layering context with fmt.Errorf("...: %w", err).

package svc

import (
	"fmt"
	"io"
	"time"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// RequestHeader is the common prefix of every service request.
type RequestHeader struct {
	AuthenticationToken bin.NodeId
	Timestamp           time.Time
	RequestHandle       uint32
	ReturnDiagnostics   uint32
	AuditEntryID        string
	TimeoutHint         uint32
}

func (h *RequestHeader) encode(w io.Writer) error {
	if err := bin.EncodeNodeId(w, h.AuthenticationToken); err != nil {
		return err
	}
	if err := bin.EncodeDateTime(w, h.Timestamp); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, h.RequestHandle); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, h.ReturnDiagnostics); err != nil {
		return err
	}
	audit := h.AuditEntryID
	if err := bin.EncodeString(w, &audit); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, h.TimeoutHint); err != nil {
		return err
	}
	return encodeNullExtensionObject(w)
}

func (h *RequestHeader) decode(r io.Reader) error {
	var err error
	if h.AuthenticationToken, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if h.Timestamp, err = bin.DecodeDateTime(r); err != nil {
		return err
	}
	if h.RequestHandle, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if h.ReturnDiagnostics, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	s, err := bin.DecodeString(r)
	if err != nil {
		return err
	}
	if s != nil {
		h.AuditEntryID = *s
	}
	if h.TimeoutHint, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	return decodeNullExtensionObject(r)
}

// ResponseHeader is the common prefix of every service response. A service
// fault is a response whose ServiceResult is bad and whose payload fields
// are absent.
type ResponseHeader struct {
	Timestamp     time.Time
	RequestHandle uint32
	ServiceResult status.Code
	StringTable   []string
}

// NewResponseHeader echoes the request handle and stamps the result, the
// shape every handler uses to open its response.
func NewResponseHeader(req *RequestHeader, result status.Code, now time.Time) ResponseHeader {
	return ResponseHeader{Timestamp: now, RequestHandle: req.RequestHandle, ServiceResult: result}
}

func (h *ResponseHeader) encode(w io.Writer) error {
	if err := bin.EncodeDateTime(w, h.Timestamp); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, h.RequestHandle); err != nil {
		return err
	}
	if err := bin.EncodeStatusCode(w, h.ServiceResult); err != nil {
		return err
	}
	if err := encodeDiagnosticInfo(w); err != nil {
		return err
	}
	if err := bin.EncodeArray(w, h.StringTable, func(w io.Writer, s string) error {
		return bin.EncodeString(w, &s)
	}); err != nil {
		return err
	}
	return encodeNullExtensionObject(w)
}

func (h *ResponseHeader) decode(r io.Reader) error {
	var err error
	if h.Timestamp, err = bin.DecodeDateTime(r); err != nil {
		return err
	}
	if h.RequestHandle, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if h.ServiceResult, err = bin.DecodeStatusCode(r); err != nil {
		return err
	}
	if err := decodeDiagnosticInfo(r); err != nil {
		return err
	}
	if h.StringTable, err = decodeStringArray(r); err != nil {
		return err
	}
	return decodeNullExtensionObject(r)
}

// ExtensionObject is a type-tagged opaque body. The only non-null instance
// this server handles is the user identity token on ActivateSession; every
// other occurrence is the null object (null type id, no body).
type ExtensionObject struct {
	TypeID bin.NodeId
	Body   []byte
}

const (
	extObjNoBody         = 0x00
	extObjByteStringBody = 0x01
)

func (e *ExtensionObject) encode(w io.Writer) error {
	if err := bin.EncodeNodeId(w, e.TypeID); err != nil {
		return err
	}
	if e.Body == nil {
		return bin.EncodeByte(w, extObjNoBody)
	}
	if err := bin.EncodeByte(w, extObjByteStringBody); err != nil {
		return err
	}
	return bin.EncodeByteString(w, e.Body)
}

func (e *ExtensionObject) decode(r io.Reader) error {
	var err error
	if e.TypeID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	enc, err := bin.DecodeByte(r)
	if err != nil {
		return err
	}
	switch enc {
	case extObjNoBody:
		e.Body = nil
		return nil
	case extObjByteStringBody:
		e.Body, err = bin.DecodeByteString(r)
		return err
	default:
		return errs.NewEncodingError("svc.decode_extension_object", status.BadDecodingError,
			fmt.Errorf("unsupported extension object encoding 0x%02x", enc))
	}
}

func encodeNullExtensionObject(w io.Writer) error {
	e := ExtensionObject{TypeID: bin.NewNumericNodeId(0, 0)}
	return e.encode(w)
}

func decodeNullExtensionObject(r io.Reader) error {
	var e ExtensionObject
	return e.decode(r)
}

// DiagnosticInfo is carried as an empty-mask byte: this server neither
// produces nor consumes vendor diagnostics, and a peer that sends populated
// diagnostics is outside what we decode.
func encodeDiagnosticInfo(w io.Writer) error { return bin.EncodeByte(w, 0) }

func decodeDiagnosticInfo(r io.Reader) error {
	mask, err := bin.DecodeByte(r)
	if err != nil {
		return err
	}
	if mask != 0 {
		return errs.NewEncodingError("svc.decode_diagnostic_info", status.BadDecodingError,
			fmt.Errorf("populated diagnostic info (mask 0x%02x) not supported", mask))
	}
	return nil
}

func encodeDiagnosticInfos(w io.Writer, n int) error {
	if n == 0 {
		return bin.EncodeInt32(w, -1)
	}
	if err := bin.EncodeInt32(w, int32(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := encodeDiagnosticInfo(w); err != nil {
			return err
		}
	}
	return nil
}

func decodeDiagnosticInfos(r io.Reader) error {
	n, err := bin.DecodeInt32(r)
	if err != nil {
		return err
	}
	if n < 0 {
		return nil
	}
	if int(n) > bin.MaxArrayLength {
		return errs.NewEncodingError("svc.decode_diagnostic_infos", status.BadEncodingLimitsExceeded,
			fmt.Errorf("diagnostic info array length %d exceeds %d", n, bin.MaxArrayLength))
	}
	for i := int32(0); i < n; i++ {
		if err := decodeDiagnosticInfo(r); err != nil {
			return err
		}
	}
	return nil
}

// SignatureData carries an algorithm uri and signature bytes; with the None
// security policy both halves are null.
type SignatureData struct {
	Algorithm string
	Signature []byte
}

func (s *SignatureData) encode(w io.Writer) error {
	var alg *string
	if s.Algorithm != "" {
		alg = &s.Algorithm
	}
	if err := bin.EncodeString(w, alg); err != nil {
		return err
	}
	return bin.EncodeByteString(w, s.Signature)
}

func (s *SignatureData) decode(r io.Reader) error {
	a, err := bin.DecodeString(r)
	if err != nil {
		return err
	}
	if a != nil {
		s.Algorithm = *a
	}
	s.Signature, err = bin.DecodeByteString(r)
	return err
}

func encodeStringArray(w io.Writer, arr []string) error {
	return bin.EncodeArray(w, arr, func(w io.Writer, s string) error {
		return bin.EncodeString(w, &s)
	})
}

func decodeStringArray(r io.Reader) ([]string, error) {
	return bin.DecodeArray(r, func(r io.Reader) (string, error) {
		s, err := bin.DecodeString(r)
		if err != nil {
			return "", err
		}
		if s == nil {
			return "", nil
		}
		return *s, nil
	})
}

func encodeStatusCodeArray(w io.Writer, arr []status.Code) error {
	return bin.EncodeArray(w, arr, bin.EncodeStatusCode)
}

func decodeStatusCodeArray(r io.Reader) ([]status.Code, error) {
	return bin.DecodeArray(r, bin.DecodeStatusCode)
}

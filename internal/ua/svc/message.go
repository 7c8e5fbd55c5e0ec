// Package svc defines the service request/response records the dispatcher
// routes, together with their UA Binary bodies. Every message is prefixed on
// the wire by the NodeId of its binary-encoding object, which selects the
// decoder.
package svc

import (
	"fmt"
	"io"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// Binary-encoding object ids (namespace 0 numeric NodeIds) for the services
// this server speaks.
const (
	ObjectIDServiceFault               uint32 = 397
	ObjectIDGetEndpointsRequest        uint32 = 428
	ObjectIDGetEndpointsResponse       uint32 = 431
	ObjectIDRegisterServerRequest      uint32 = 437
	ObjectIDRegisterServerResponse     uint32 = 440
	ObjectIDOpenSecureChannelRequest   uint32 = 446
	ObjectIDOpenSecureChannelResponse  uint32 = 449
	ObjectIDCloseSecureChannelRequest  uint32 = 452
	ObjectIDCloseSecureChannelResponse uint32 = 455
	ObjectIDCreateSessionRequest       uint32 = 461
	ObjectIDCreateSessionResponse      uint32 = 464
	ObjectIDActivateSessionRequest     uint32 = 467
	ObjectIDActivateSessionResponse    uint32 = 470
	ObjectIDCloseSessionRequest        uint32 = 473
	ObjectIDCloseSessionResponse       uint32 = 476
	ObjectIDBrowseRequest              uint32 = 527
	ObjectIDBrowseResponse             uint32 = 530
	ObjectIDReadRequest                uint32 = 631
	ObjectIDReadResponse               uint32 = 634
	ObjectIDWriteRequest               uint32 = 673
	ObjectIDWriteResponse              uint32 = 676
	ObjectIDCallRequest                uint32 = 712
	ObjectIDCallResponse               uint32 = 715
)

// Message is one decodable service request or response body.
type Message interface {
	ObjectID() uint32
	encodeBody(w io.Writer) error
	decodeBody(r io.Reader) error
}

// Request is a service request carrying a RequestHeader the dispatcher can
// echo back into the response.
type Request interface {
	Message
	RequestHeader() *RequestHeader
}

// Response is a service response carrying a ResponseHeader.
type Response interface {
	Message
	ResponseHeader() *ResponseHeader
}

// decoders maps each binary-encoding object id to a fresh empty message.
var decoders = map[uint32]func() Message{
	ObjectIDServiceFault:               func() Message { return &ServiceFault{} },
	ObjectIDGetEndpointsRequest:        func() Message { return &GetEndpointsRequest{} },
	ObjectIDGetEndpointsResponse:       func() Message { return &GetEndpointsResponse{} },
	ObjectIDRegisterServerRequest:      func() Message { return &RegisterServerRequest{} },
	ObjectIDRegisterServerResponse:     func() Message { return &RegisterServerResponse{} },
	ObjectIDOpenSecureChannelRequest:   func() Message { return &OpenSecureChannelRequest{} },
	ObjectIDOpenSecureChannelResponse:  func() Message { return &OpenSecureChannelResponse{} },
	ObjectIDCloseSecureChannelRequest:  func() Message { return &CloseSecureChannelRequest{} },
	ObjectIDCloseSecureChannelResponse: func() Message { return &CloseSecureChannelResponse{} },
	ObjectIDCreateSessionRequest:       func() Message { return &CreateSessionRequest{} },
	ObjectIDCreateSessionResponse:      func() Message { return &CreateSessionResponse{} },
	ObjectIDActivateSessionRequest:     func() Message { return &ActivateSessionRequest{} },
	ObjectIDActivateSessionResponse:    func() Message { return &ActivateSessionResponse{} },
	ObjectIDCloseSessionRequest:        func() Message { return &CloseSessionRequest{} },
	ObjectIDCloseSessionResponse:       func() Message { return &CloseSessionResponse{} },
	ObjectIDBrowseRequest:              func() Message { return &BrowseRequest{} },
	ObjectIDBrowseResponse:             func() Message { return &BrowseResponse{} },
	ObjectIDReadRequest:                func() Message { return &ReadRequest{} },
	ObjectIDReadResponse:               func() Message { return &ReadResponse{} },
	ObjectIDWriteRequest:               func() Message { return &WriteRequest{} },
	ObjectIDWriteResponse:              func() Message { return &WriteResponse{} },
	ObjectIDCallRequest:                func() Message { return &CallRequest{} },
	ObjectIDCallResponse:               func() Message { return &CallResponse{} },
}

// Encode writes the binary-encoding NodeId followed by the message body.
func Encode(w io.Writer, m Message) error {
	if err := bin.EncodeNodeId(w, bin.NewNumericNodeId(0, m.ObjectID())); err != nil {
		return err
	}
	return m.encodeBody(w)
}

// Decode reads the binary-encoding NodeId prefix and dispatches to the
// matching body decoder. An id with no registered decoder fails with
// BadNotImplemented: the wire bytes were valid, the service is just one we
// do not speak.
func Decode(r io.Reader) (Message, error) {
	id, err := bin.DecodeNodeId(r)
	if err != nil {
		return nil, err
	}
	if id.Namespace != 0 || id.Kind != bin.IdentifierNumeric {
		return nil, errs.NewEncodingError("svc.decode", status.BadDecodingError,
			fmt.Errorf("message object id %s is not a ns=0 numeric id", id))
	}
	mk, ok := decoders[id.Numeric]
	if !ok {
		return nil, errs.NewServiceError("svc.decode", status.BadNotImplemented,
			fmt.Errorf("unsupported service object id %d", id.Numeric))
	}
	m := mk()
	if err := m.decodeBody(r); err != nil {
		return nil, err
	}
	return m, nil
}

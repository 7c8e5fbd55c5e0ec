package svc

import (
	"io"

	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// CallMethodRequest invokes one method on one object.
type CallMethodRequest struct {
	ObjectNodeID   bin.NodeId
	MethodNodeID   bin.NodeId
	InputArguments []bin.Variant
}

func (c *CallMethodRequest) encode(w io.Writer) error {
	if err := bin.EncodeNodeId(w, c.ObjectNodeID); err != nil {
		return err
	}
	if err := bin.EncodeNodeId(w, c.MethodNodeID); err != nil {
		return err
	}
	return bin.EncodeArray(w, c.InputArguments, bin.EncodeVariant)
}

func (c *CallMethodRequest) decode(r io.Reader) error {
	var err error
	if c.ObjectNodeID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if c.MethodNodeID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	c.InputArguments, err = bin.DecodeArray(r, bin.DecodeVariant)
	return err
}

// CallMethodResult is the per-method outcome: the overall StatusCode,
// per-input-argument StatusCodes, and output arguments. A failed call is a
// result with a bad status, never a dropped element.
type CallMethodResult struct {
	Status               status.Code
	InputArgumentResults []status.Code
	OutputArguments      []bin.Variant
}

func (c *CallMethodResult) encode(w io.Writer) error {
	if err := bin.EncodeStatusCode(w, c.Status); err != nil {
		return err
	}
	if err := encodeStatusCodeArray(w, c.InputArgumentResults); err != nil {
		return err
	}
	if err := encodeDiagnosticInfos(w, 0); err != nil {
		return err
	}
	return bin.EncodeArray(w, c.OutputArguments, bin.EncodeVariant)
}

func (c *CallMethodResult) decode(r io.Reader) error {
	var err error
	if c.Status, err = bin.DecodeStatusCode(r); err != nil {
		return err
	}
	if c.InputArgumentResults, err = decodeStatusCodeArray(r); err != nil {
		return err
	}
	if err := decodeDiagnosticInfos(r); err != nil {
		return err
	}
	c.OutputArguments, err = bin.DecodeArray(r, bin.DecodeVariant)
	return err
}

// CallRequest invokes a batch of methods.
type CallRequest struct {
	Header        RequestHeader
	MethodsToCall []CallMethodRequest
}

func (m *CallRequest) ObjectID() uint32              { return ObjectIDCallRequest }
func (m *CallRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *CallRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	return bin.EncodeArray(w, m.MethodsToCall, func(w io.Writer, c CallMethodRequest) error {
		return c.encode(w)
	})
}

func (m *CallRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	m.MethodsToCall, err = bin.DecodeArray(r, func(r io.Reader) (CallMethodRequest, error) {
		var c CallMethodRequest
		err := c.decode(r)
		return c, err
	})
	return err
}

// CallResponse carries one CallMethodResult per invoked method, in request
// order.
type CallResponse struct {
	Header  ResponseHeader
	Results []CallMethodResult
}

func (m *CallResponse) ObjectID() uint32                { return ObjectIDCallResponse }
func (m *CallResponse) ResponseHeader() *ResponseHeader { return &m.Header }

func (m *CallResponse) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeArray(w, m.Results, func(w io.Writer, c CallMethodResult) error {
		return c.encode(w)
	}); err != nil {
		return err
	}
	return encodeDiagnosticInfos(w, 0)
}

func (m *CallResponse) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.Results, err = bin.DecodeArray(r, func(r io.Reader) (CallMethodResult, error) {
		var c CallMethodResult
		err := c.decode(r)
		return c, err
	}); err != nil {
		return err
	}
	return decodeDiagnosticInfos(r)
}

package svc

import (
	"io"

	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// Timestamps-to-return selectors on Read.
const (
	TimestampsSource  uint32 = 0
	TimestampsServer  uint32 = 1
	TimestampsBoth    uint32 = 2
	TimestampsNeither uint32 = 3
)

// ReadValueId names one (node, attribute) pair to read.
type ReadValueId struct {
	NodeID       bin.NodeId
	AttributeID  uint32
	IndexRange   string
	DataEncoding bin.QualifiedName
}

func (v *ReadValueId) encode(w io.Writer) error {
	if err := bin.EncodeNodeId(w, v.NodeID); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, v.AttributeID); err != nil {
		return err
	}
	if err := encodeOptString(w, v.IndexRange); err != nil {
		return err
	}
	return bin.EncodeQualifiedName(w, v.DataEncoding)
}

func (v *ReadValueId) decode(r io.Reader) error {
	var err error
	if v.NodeID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if v.AttributeID, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if v.IndexRange, err = decodeOptString(r); err != nil {
		return err
	}
	v.DataEncoding, err = bin.DecodeQualifiedName(r)
	return err
}

// ReadRequest reads a batch of attributes.
type ReadRequest struct {
	Header             RequestHeader
	MaxAge             float64
	TimestampsToReturn uint32
	NodesToRead        []ReadValueId
}

func (m *ReadRequest) ObjectID() uint32              { return ObjectIDReadRequest }
func (m *ReadRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *ReadRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeFloat64(w, m.MaxAge); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, m.TimestampsToReturn); err != nil {
		return err
	}
	return bin.EncodeArray(w, m.NodesToRead, func(w io.Writer, v ReadValueId) error {
		return v.encode(w)
	})
}

func (m *ReadRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.MaxAge, err = bin.DecodeFloat64(r); err != nil {
		return err
	}
	if m.TimestampsToReturn, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	m.NodesToRead, err = bin.DecodeArray(r, func(r io.Reader) (ReadValueId, error) {
		var v ReadValueId
		err := v.decode(r)
		return v, err
	})
	return err
}

// ReadResponse carries one DataValue per requested attribute, in request
// order.
type ReadResponse struct {
	Header  ResponseHeader
	Results []bin.DataValue
}

func (m *ReadResponse) ObjectID() uint32                { return ObjectIDReadResponse }
func (m *ReadResponse) ResponseHeader() *ResponseHeader { return &m.Header }

func (m *ReadResponse) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeArray(w, m.Results, bin.EncodeDataValue); err != nil {
		return err
	}
	return encodeDiagnosticInfos(w, 0)
}

func (m *ReadResponse) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.Results, err = bin.DecodeArray(r, bin.DecodeDataValue); err != nil {
		return err
	}
	return decodeDiagnosticInfos(r)
}

// WriteValue names one (node, attribute) pair and the value to store.
type WriteValue struct {
	NodeID      bin.NodeId
	AttributeID uint32
	IndexRange  string
	Value       bin.DataValue
}

func (v *WriteValue) encode(w io.Writer) error {
	if err := bin.EncodeNodeId(w, v.NodeID); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, v.AttributeID); err != nil {
		return err
	}
	if err := encodeOptString(w, v.IndexRange); err != nil {
		return err
	}
	return bin.EncodeDataValue(w, v.Value)
}

func (v *WriteValue) decode(r io.Reader) error {
	var err error
	if v.NodeID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if v.AttributeID, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if v.IndexRange, err = decodeOptString(r); err != nil {
		return err
	}
	v.Value, err = bin.DecodeDataValue(r)
	return err
}

// WriteRequest writes a batch of attributes.
type WriteRequest struct {
	Header       RequestHeader
	NodesToWrite []WriteValue
}

func (m *WriteRequest) ObjectID() uint32              { return ObjectIDWriteRequest }
func (m *WriteRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *WriteRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	return bin.EncodeArray(w, m.NodesToWrite, func(w io.Writer, v WriteValue) error {
		return v.encode(w)
	})
}

func (m *WriteRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	m.NodesToWrite, err = bin.DecodeArray(r, func(r io.Reader) (WriteValue, error) {
		var v WriteValue
		err := v.decode(r)
		return v, err
	})
	return err
}

// WriteResponse carries one StatusCode per write, in request order.
type WriteResponse struct {
	Header  ResponseHeader
	Results []status.Code
}

func (m *WriteResponse) ObjectID() uint32                { return ObjectIDWriteResponse }
func (m *WriteResponse) ResponseHeader() *ResponseHeader { return &m.Header }

func (m *WriteResponse) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := encodeStatusCodeArray(w, m.Results); err != nil {
		return err
	}
	return encodeDiagnosticInfos(w, 0)
}

func (m *WriteResponse) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.Results, err = decodeStatusCodeArray(r); err != nil {
		return err
	}
	return decodeDiagnosticInfos(r)
}

package svc

import (
	"io"
	"time"

	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// Browse directions.
const (
	BrowseDirectionForward uint32 = 0
	BrowseDirectionInverse uint32 = 1
	BrowseDirectionBoth    uint32 = 2
)

// ViewDescription scopes a browse to a view node; the null view browses the
// whole address space.
type ViewDescription struct {
	ViewID      bin.NodeId
	Timestamp   time.Time
	ViewVersion uint32
}

func (v *ViewDescription) encode(w io.Writer) error {
	if err := bin.EncodeNodeId(w, v.ViewID); err != nil {
		return err
	}
	if err := bin.EncodeDateTime(w, v.Timestamp); err != nil {
		return err
	}
	return bin.EncodeUint32(w, v.ViewVersion)
}

func (v *ViewDescription) decode(r io.Reader) error {
	var err error
	if v.ViewID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if v.Timestamp, err = bin.DecodeDateTime(r); err != nil {
		return err
	}
	v.ViewVersion, err = bin.DecodeUint32(r)
	return err
}

// BrowseDescription names one node whose references should be enumerated.
type BrowseDescription struct {
	NodeID          bin.NodeId
	BrowseDirection uint32
	ReferenceTypeID bin.NodeId
	IncludeSubtypes bool
	NodeClassMask   uint32
	ResultMask      uint32
}

func (b *BrowseDescription) encode(w io.Writer) error {
	if err := bin.EncodeNodeId(w, b.NodeID); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, b.BrowseDirection); err != nil {
		return err
	}
	if err := bin.EncodeNodeId(w, b.ReferenceTypeID); err != nil {
		return err
	}
	if err := bin.EncodeBool(w, b.IncludeSubtypes); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, b.NodeClassMask); err != nil {
		return err
	}
	return bin.EncodeUint32(w, b.ResultMask)
}

func (b *BrowseDescription) decode(r io.Reader) error {
	var err error
	if b.NodeID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if b.BrowseDirection, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	if b.ReferenceTypeID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if b.IncludeSubtypes, err = bin.DecodeBool(r); err != nil {
		return err
	}
	if b.NodeClassMask, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	b.ResultMask, err = bin.DecodeUint32(r)
	return err
}

// ReferenceDescription is one edge returned by Browse. The target is an
// ExpandedNodeId; without a namespace uri or server index its wire form is
// identical to a plain NodeId, which is the only form this server emits.
type ReferenceDescription struct {
	ReferenceTypeID bin.NodeId
	IsForward       bool
	TargetID        bin.NodeId
	BrowseName      bin.QualifiedName
	DisplayName     bin.LocalizedText
	NodeClass       uint32
	TypeDefinition  bin.NodeId
}

func (d *ReferenceDescription) encode(w io.Writer) error {
	if err := bin.EncodeNodeId(w, d.ReferenceTypeID); err != nil {
		return err
	}
	if err := bin.EncodeBool(w, d.IsForward); err != nil {
		return err
	}
	if err := bin.EncodeNodeId(w, d.TargetID); err != nil {
		return err
	}
	if err := bin.EncodeQualifiedName(w, d.BrowseName); err != nil {
		return err
	}
	if err := bin.EncodeLocalizedText(w, d.DisplayName); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, d.NodeClass); err != nil {
		return err
	}
	return bin.EncodeNodeId(w, d.TypeDefinition)
}

func (d *ReferenceDescription) decode(r io.Reader) error {
	var err error
	if d.ReferenceTypeID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if d.IsForward, err = bin.DecodeBool(r); err != nil {
		return err
	}
	if d.TargetID, err = bin.DecodeNodeId(r); err != nil {
		return err
	}
	if d.BrowseName, err = bin.DecodeQualifiedName(r); err != nil {
		return err
	}
	if d.DisplayName, err = bin.DecodeLocalizedText(r); err != nil {
		return err
	}
	if d.NodeClass, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	d.TypeDefinition, err = bin.DecodeNodeId(r)
	return err
}

// BrowseResult is the per-node outcome of a Browse.
type BrowseResult struct {
	Status            status.Code
	ContinuationPoint []byte
	References        []ReferenceDescription
}

func (b *BrowseResult) encode(w io.Writer) error {
	if err := bin.EncodeStatusCode(w, b.Status); err != nil {
		return err
	}
	if err := bin.EncodeByteString(w, b.ContinuationPoint); err != nil {
		return err
	}
	return bin.EncodeArray(w, b.References, func(w io.Writer, d ReferenceDescription) error {
		return d.encode(w)
	})
}

func (b *BrowseResult) decode(r io.Reader) error {
	var err error
	if b.Status, err = bin.DecodeStatusCode(r); err != nil {
		return err
	}
	if b.ContinuationPoint, err = bin.DecodeByteString(r); err != nil {
		return err
	}
	b.References, err = bin.DecodeArray(r, func(r io.Reader) (ReferenceDescription, error) {
		var d ReferenceDescription
		err := d.decode(r)
		return d, err
	})
	return err
}

// BrowseRequest enumerates the references of a batch of nodes.
type BrowseRequest struct {
	Header                        RequestHeader
	View                          ViewDescription
	RequestedMaxReferencesPerNode uint32
	NodesToBrowse                 []BrowseDescription
}

func (m *BrowseRequest) ObjectID() uint32              { return ObjectIDBrowseRequest }
func (m *BrowseRequest) RequestHeader() *RequestHeader { return &m.Header }

func (m *BrowseRequest) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := m.View.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeUint32(w, m.RequestedMaxReferencesPerNode); err != nil {
		return err
	}
	return bin.EncodeArray(w, m.NodesToBrowse, func(w io.Writer, b BrowseDescription) error {
		return b.encode(w)
	})
}

func (m *BrowseRequest) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	if err := m.View.decode(r); err != nil {
		return err
	}
	var err error
	if m.RequestedMaxReferencesPerNode, err = bin.DecodeUint32(r); err != nil {
		return err
	}
	m.NodesToBrowse, err = bin.DecodeArray(r, func(r io.Reader) (BrowseDescription, error) {
		var b BrowseDescription
		err := b.decode(r)
		return b, err
	})
	return err
}

// BrowseResponse carries one BrowseResult per browsed node, in request
// order.
type BrowseResponse struct {
	Header  ResponseHeader
	Results []BrowseResult
}

func (m *BrowseResponse) ObjectID() uint32                { return ObjectIDBrowseResponse }
func (m *BrowseResponse) ResponseHeader() *ResponseHeader { return &m.Header }

func (m *BrowseResponse) encodeBody(w io.Writer) error {
	if err := m.Header.encode(w); err != nil {
		return err
	}
	if err := bin.EncodeArray(w, m.Results, func(w io.Writer, b BrowseResult) error {
		return b.encode(w)
	}); err != nil {
		return err
	}
	return encodeDiagnosticInfos(w, 0)
}

func (m *BrowseResponse) decodeBody(r io.Reader) error {
	if err := m.Header.decode(r); err != nil {
		return err
	}
	var err error
	if m.Results, err = bin.DecodeArray(r, func(r io.Reader) (BrowseResult, error) {
		var b BrowseResult
		err := b.decode(r)
		return b, err
	}); err != nil {
		return err
	}
	return decodeDiagnosticInfos(r)
}

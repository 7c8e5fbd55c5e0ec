package addrspace

import (
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// Getter supplies an attribute value on demand, overriding the stored
// table slot. Getters run under the address-space read lock and must not
// mutate observable state.
type Getter func(nodeID bin.NodeId, attrID AttributeID) (bin.DataValue, status.Code)

// Setter intercepts an attribute write, overriding the table slot.
type Setter func(nodeID bin.NodeId, attrID AttributeID, value bin.DataValue) status.Code

// Base holds the state shared by every node kind: the NodeId, the fixed
// attribute table, and the optional per-attribute getter/setter maps.
type Base struct {
	nodeID bin.NodeId
	attrs  [AttributeCount]*bin.DataValue

	getters map[AttributeID]Getter
	setters map[AttributeID]Setter
}

func newBase(nodeID bin.NodeId, class NodeClass, browseName string, displayName string) Base {
	b := Base{nodeID: nodeID}
	b.storeAttr(AttrNodeID, bin.NewNodeIdVariant(nodeID))
	b.storeAttr(AttrNodeClass, bin.NewInt32Variant(int32(class)))
	b.storeAttr(AttrBrowseName, bin.NewStringVariant(browseName))
	b.storeAttr(AttrDisplayName, bin.NewLocalizedTextVariant(bin.LocalizedText{Text: displayName}))
	b.storeAttr(AttrWriteMask, bin.NewUInt32Variant(0))
	b.storeAttr(AttrUserWriteMask, bin.NewUInt32Variant(0))
	return b
}

// storeAttr overwrites a slot directly, bypassing validation and setter
// indirection. Construction-time only.
func (b *Base) storeAttr(id AttributeID, v bin.Variant) {
	dv := bin.DataValue{Value: v, HasValue: true, Status: status.Good, HasStatus: true}
	b.attrs[id-1] = &dv
}

// NodeID returns the node's id.
func (b *Base) NodeID() bin.NodeId { return b.nodeID }

// NodeClass returns the node's class as stored in the attribute table.
func (b *Base) NodeClass() NodeClass {
	dv := b.attrs[AttrNodeClass-1]
	if dv == nil || !dv.HasValue {
		return 0
	}
	c, _ := dv.Value.Scalar.(int32)
	return NodeClass(c)
}

// BrowseName returns the node's browse name.
func (b *Base) BrowseName() string {
	dv := b.attrs[AttrBrowseName-1]
	if dv == nil || !dv.HasValue {
		return ""
	}
	s, _ := dv.Value.Scalar.(string)
	return s
}

// DisplayName returns the node's display name.
func (b *Base) DisplayName() bin.LocalizedText {
	dv := b.attrs[AttrDisplayName-1]
	if dv == nil || !dv.HasValue {
		return bin.LocalizedText{}
	}
	t, _ := dv.Value.Scalar.(bin.LocalizedText)
	return t
}

// FindAttribute reads an attribute: the getter when one is registered, the
// table slot otherwise. The returned DataValue is a copy; mutating it does
// not touch the node. An out-of-range id fails with BadAttributeIdInvalid
// rather than panicking, since attribute ids arrive off the wire.
func (b *Base) FindAttribute(id AttributeID) (bin.DataValue, status.Code) {
	if !id.Valid() {
		return bin.DataValue{}, status.BadAttributeIdInvalid
	}
	if g, ok := b.getters[id]; ok {
		return g(b.nodeID, id)
	}
	dv := b.attrs[id-1]
	if dv == nil {
		return bin.DataValue{}, status.BadAttributeIdInvalid
	}
	return *dv, status.Good
}

// SetAttribute writes an attribute after typed validation. The setter runs
// when one is registered; the table slot is overwritten otherwise.
func (b *Base) SetAttribute(id AttributeID, value bin.DataValue) status.Code {
	if !id.Valid() {
		return status.BadAttributeIdInvalid
	}
	if value.HasValue {
		if code := validateAttributeType(id, value.Value); code != status.Good {
			return code
		}
	}
	if s, ok := b.setters[id]; ok {
		return s(b.nodeID, id, value)
	}
	dv := value
	b.attrs[id-1] = &dv
	return status.Good
}

// SetAttributeGetter registers a getter, replacing any previous one.
func (b *Base) SetAttributeGetter(id AttributeID, g Getter) {
	if b.getters == nil {
		b.getters = make(map[AttributeID]Getter)
	}
	b.getters[id] = g
}

// SetAttributeSetter registers a setter, replacing any previous one.
func (b *Base) SetAttributeSetter(id AttributeID, s Setter) {
	if b.setters == nil {
		b.setters = make(map[AttributeID]Setter)
	}
	b.setters[id] = s
}

// SetWriteMask stores the write mask. WriteMask is UInt32-typed and the
// variant is built here, so the inner SetAttribute cannot fail validation.
func (b *Base) SetWriteMask(mask uint32) {
	_ = b.SetAttribute(AttrWriteMask, valueOnly(bin.NewUInt32Variant(mask)))
}

func valueOnly(v bin.Variant) bin.DataValue {
	return bin.DataValue{Value: v, HasValue: true, Status: status.Good, HasStatus: true}
}

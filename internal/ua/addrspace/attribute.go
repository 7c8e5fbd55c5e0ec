// Package addrspace implements the server's address space: the node graph
// keyed by NodeId, the fixed attribute table on every node, typed attribute
// validation, per-attribute getter/setter indirection, reference indexing,
// and method invocation.
package addrspace

import (
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// AttributeID names one of the 22 standardized node attributes.
type AttributeID uint32

const (
	AttrNodeID                  AttributeID = 1
	AttrNodeClass               AttributeID = 2
	AttrBrowseName              AttributeID = 3
	AttrDisplayName             AttributeID = 4
	AttrDescription             AttributeID = 5
	AttrWriteMask               AttributeID = 6
	AttrUserWriteMask           AttributeID = 7
	AttrIsAbstract              AttributeID = 8
	AttrSymmetric               AttributeID = 9
	AttrInverseName             AttributeID = 10
	AttrContainsNoLoops         AttributeID = 11
	AttrEventNotifier           AttributeID = 12
	AttrValue                   AttributeID = 13
	AttrDataType                AttributeID = 14
	AttrValueRank               AttributeID = 15
	AttrArrayDimensions         AttributeID = 16
	AttrAccessLevel             AttributeID = 17
	AttrUserAccessLevel         AttributeID = 18
	AttrMinimumSamplingInterval AttributeID = 19
	AttrHistorizing             AttributeID = 20
	AttrExecutable              AttributeID = 21
	AttrUserExecutable          AttributeID = 22
)

// AttributeCount is the size of every node's attribute table; slot for
// attribute id a is a-1.
const AttributeCount = 22

// Valid reports whether id is in the standardized range.
func (id AttributeID) Valid() bool { return id >= 1 && id <= AttributeCount }

// validateAttributeType enforces the static per-attribute type table on
// writes. NodeId and NodeClass are never writable; Value accepts any
// variant; everything else has one required variant type.
func validateAttributeType(id AttributeID, v bin.Variant) status.Code {
	switch id {
	case AttrNodeID, AttrNodeClass:
		return status.BadNotWritable
	case AttrBrowseName:
		return requireScalar(v, bin.VariantString)
	case AttrDisplayName, AttrDescription, AttrInverseName:
		return requireScalar(v, bin.VariantLocalizedText)
	case AttrWriteMask, AttrUserWriteMask:
		return requireScalar(v, bin.VariantUInt32)
	case AttrIsAbstract, AttrSymmetric, AttrContainsNoLoops, AttrHistorizing, AttrExecutable, AttrUserExecutable:
		return requireScalar(v, bin.VariantBoolean)
	case AttrEventNotifier, AttrAccessLevel, AttrUserAccessLevel:
		return requireScalar(v, bin.VariantByte)
	case AttrDataType:
		return requireScalar(v, bin.VariantNodeId)
	case AttrValueRank:
		return requireScalar(v, bin.VariantInt32)
	case AttrMinimumSamplingInterval:
		return requireScalar(v, bin.VariantDouble)
	case AttrArrayDimensions:
		if !v.IsUInt32Array() {
			return status.BadTypeMismatch
		}
		return status.Good
	case AttrValue:
		return status.Good
	default:
		return status.BadAttributeIdInvalid
	}
}

func requireScalar(v bin.Variant, want bin.VariantTypeID) status.Code {
	if v.IsArray || v.TypeID != want {
		return status.BadTypeMismatch
	}
	return status.Good
}

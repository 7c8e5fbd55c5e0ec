package addrspace

import (
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// NodeClass is the kind discriminator, using the wire bit values.
type NodeClass int32

const (
	ClassObject        NodeClass = 1
	ClassVariable      NodeClass = 2
	ClassMethod        NodeClass = 4
	ClassObjectType    NodeClass = 8
	ClassVariableType  NodeClass = 16
	ClassReferenceType NodeClass = 32
	ClassDataType      NodeClass = 64
	ClassView          NodeClass = 128
)

// Node is implemented by every node kind. Operations shared by all kinds
// live on Base; kind-specific accessors live on the concrete types.
type Node interface {
	Base() *Base
}

// Object is an instance node.
type Object struct {
	base Base
}

// NewObject builds an Object with its mandatory attributes set.
func NewObject(id bin.NodeId, browseName, displayName string, eventNotifier byte) *Object {
	o := &Object{base: newBase(id, ClassObject, browseName, displayName)}
	o.base.storeAttr(AttrEventNotifier, bin.NewByteVariant(eventNotifier))
	return o
}

func (n *Object) Base() *Base { return &n.base }

// ObjectType describes a class of objects.
type ObjectType struct {
	base Base
}

// NewObjectType builds an ObjectType; IsAbstract is mandatory for the kind.
func NewObjectType(id bin.NodeId, browseName, displayName string, isAbstract bool) *ObjectType {
	t := &ObjectType{base: newBase(id, ClassObjectType, browseName, displayName)}
	t.base.storeAttr(AttrIsAbstract, bin.NewBooleanVariant(isAbstract))
	return t
}

func (n *ObjectType) Base() *Base { return &n.base }

// IsAbstract reports whether the type is abstract, i.e. no instances of it
// may exist.
func (n *ObjectType) IsAbstract() bool {
	dv, code := n.base.FindAttribute(AttrIsAbstract)
	if code != status.Good || !dv.HasValue {
		return false
	}
	b, _ := dv.Value.Scalar.(bool)
	return b
}

// ReferenceType describes a class of references.
type ReferenceType struct {
	base Base
}

// NewReferenceType builds a ReferenceType with its mandatory IsAbstract,
// Symmetric and InverseName attributes.
func NewReferenceType(id bin.NodeId, browseName, displayName, inverseName string, isAbstract, symmetric bool) *ReferenceType {
	t := &ReferenceType{base: newBase(id, ClassReferenceType, browseName, displayName)}
	t.base.storeAttr(AttrIsAbstract, bin.NewBooleanVariant(isAbstract))
	t.base.storeAttr(AttrSymmetric, bin.NewBooleanVariant(symmetric))
	t.base.storeAttr(AttrInverseName, bin.NewLocalizedTextVariant(bin.LocalizedText{Text: inverseName}))
	return t
}

func (n *ReferenceType) Base() *Base { return &n.base }

// Variable is a value-carrying node.
type Variable struct {
	base Base
}

// NewVariable builds a Variable with its mandatory Value, DataType,
// ValueRank, AccessLevel, UserAccessLevel, MinimumSamplingInterval and
// Historizing attributes.
func NewVariable(id bin.NodeId, browseName, displayName string, value bin.Variant, dataType bin.NodeId) *Variable {
	v := &Variable{base: newBase(id, ClassVariable, browseName, displayName)}
	v.base.storeAttr(AttrValue, value)
	v.base.storeAttr(AttrDataType, bin.NewNodeIdVariant(dataType))
	v.base.storeAttr(AttrValueRank, bin.NewInt32Variant(-1))
	v.base.storeAttr(AttrAccessLevel, bin.NewByteVariant(accessLevelCurrentRead|accessLevelCurrentWrite))
	v.base.storeAttr(AttrUserAccessLevel, bin.NewByteVariant(accessLevelCurrentRead|accessLevelCurrentWrite))
	v.base.storeAttr(AttrMinimumSamplingInterval, bin.NewDoubleVariant(0))
	v.base.storeAttr(AttrHistorizing, bin.NewBooleanVariant(false))
	return v
}

const (
	accessLevelCurrentRead  byte = 0x01
	accessLevelCurrentWrite byte = 0x02
)

func (n *Variable) Base() *Base { return &n.base }

// Value reads the Value attribute through the normal getter path.
func (n *Variable) Value() (bin.DataValue, status.Code) {
	return n.base.FindAttribute(AttrValue)
}

// VariableType describes a class of variables.
type VariableType struct {
	base Base
}

// NewVariableType builds a VariableType with IsAbstract, DataType and
// ValueRank mandatory.
func NewVariableType(id bin.NodeId, browseName, displayName string, dataType bin.NodeId, isAbstract bool) *VariableType {
	t := &VariableType{base: newBase(id, ClassVariableType, browseName, displayName)}
	t.base.storeAttr(AttrIsAbstract, bin.NewBooleanVariant(isAbstract))
	t.base.storeAttr(AttrDataType, bin.NewNodeIdVariant(dataType))
	t.base.storeAttr(AttrValueRank, bin.NewInt32Variant(-1))
	return t
}

func (n *VariableType) Base() *Base { return &n.base }

// View scopes a browse to a subset of the graph.
type View struct {
	base Base
}

// NewView builds a View with ContainsNoLoops and EventNotifier mandatory.
func NewView(id bin.NodeId, browseName, displayName string, containsNoLoops bool) *View {
	v := &View{base: newBase(id, ClassView, browseName, displayName)}
	v.base.storeAttr(AttrContainsNoLoops, bin.NewBooleanVariant(containsNoLoops))
	v.base.storeAttr(AttrEventNotifier, bin.NewByteVariant(0))
	return v
}

func (n *View) Base() *Base { return &n.base }

// DataType names an encodable type.
type DataType struct {
	base Base
}

// NewDataType builds a DataType; IsAbstract is mandatory.
func NewDataType(id bin.NodeId, browseName, displayName string, isAbstract bool) *DataType {
	t := &DataType{base: newBase(id, ClassDataType, browseName, displayName)}
	t.base.storeAttr(AttrIsAbstract, bin.NewBooleanVariant(isAbstract))
	return t
}

func (n *DataType) Base() *Base { return &n.base }

// MethodHandler executes a method call. Inputs arrive already validated
// against the declared argument types; outputs are returned with the
// overall status.
type MethodHandler func(inputs []bin.Variant) ([]bin.Variant, status.Code)

// Argument declares one method input: the variant type an argument must
// carry.
type Argument struct {
	Name string
	Type bin.VariantTypeID
}

// Method is an invokable node. Declared input arguments and the handler
// live on the node itself.
type Method struct {
	base Base

	inputArguments []Argument
	handler        MethodHandler
}

// NewMethod builds a Method with Executable/UserExecutable mandatory.
func NewMethod(id bin.NodeId, browseName, displayName string, inputs []Argument, handler MethodHandler) *Method {
	m := &Method{base: newBase(id, ClassMethod, browseName, displayName), inputArguments: inputs, handler: handler}
	m.base.storeAttr(AttrExecutable, bin.NewBooleanVariant(handler != nil))
	m.base.storeAttr(AttrUserExecutable, bin.NewBooleanVariant(handler != nil))
	return m
}

func (n *Method) Base() *Base { return &n.base }

// Executable reports whether the method has a handler.
func (n *Method) Executable() bool { return n.handler != nil }

// InputArguments returns the declared inputs.
func (n *Method) InputArguments() []Argument { return n.inputArguments }

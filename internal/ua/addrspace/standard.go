package addrspace

import (
	"time"

	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// Well-known namespace-0 node ids seeded at startup.
const (
	NodeIDRootFolder    uint32 = 84
	NodeIDObjectsFolder uint32 = 85
	NodeIDTypesFolder   uint32 = 86
	NodeIDViewsFolder   uint32 = 87

	NodeIDServer                  uint32 = 2253
	NodeIDServerNamespaceArray    uint32 = 2255
	NodeIDServerServerArray       uint32 = 2254
	NodeIDServerStatus            uint32 = 2256
	NodeIDServerStatusStartTime   uint32 = 2257
	NodeIDServerStatusCurrentTime uint32 = 2258
	NodeIDServerStatusState       uint32 = 2259
)

// Well-known reference-type ids.
const (
	ReferenceTypeOrganizes    uint32 = 35
	ReferenceTypeHasComponent uint32 = 47
	ReferenceTypeHasProperty  uint32 = 46
)

// Well-known data-type ids.
const (
	DataTypeIDInt32    uint32 = 6
	DataTypeIDUInt32   uint32 = 7
	DataTypeIDString   uint32 = 12
	DataTypeIDDateTime uint32 = 13
)

func ns0(id uint32) bin.NodeId { return bin.NewNumericNodeId(0, id) }

// PopulateStandardNodes seeds the minimum server model: the folder
// hierarchy, the Server object, and the ServerStatus variables. CurrentTime
// reads the wall clock through a getter; State reads the supplied callback
// so the value always reflects the live server state.
func PopulateStandardNodes(a *AddressSpace, applicationURI string, startTime time.Time, stateFn func() int32) error {
	nodes := []Node{
		NewObject(ns0(NodeIDRootFolder), "Root", "Root", 0),
		NewObject(ns0(NodeIDObjectsFolder), "Objects", "Objects", 0),
		NewObject(ns0(NodeIDTypesFolder), "Types", "Types", 0),
		NewObject(ns0(NodeIDViewsFolder), "Views", "Views", 0),
		NewObject(ns0(NodeIDServer), "Server", "Server", 1),
		NewVariable(ns0(NodeIDServerNamespaceArray), "NamespaceArray", "NamespaceArray",
			namespaceArrayValue(applicationURI), ns0(DataTypeIDString)),
		NewVariable(ns0(NodeIDServerServerArray), "ServerArray", "ServerArray",
			serverArrayValue(applicationURI), ns0(DataTypeIDString)),
		NewObject(ns0(NodeIDServerStatus), "ServerStatus", "ServerStatus", 0),
		NewVariable(ns0(NodeIDServerStatusStartTime), "StartTime", "StartTime",
			bin.NewDateTimeVariant(startTime), ns0(DataTypeIDDateTime)),
		NewVariable(ns0(NodeIDServerStatusCurrentTime), "CurrentTime", "CurrentTime",
			bin.NewDateTimeVariant(startTime), ns0(DataTypeIDDateTime)),
		NewVariable(ns0(NodeIDServerStatusState), "State", "State",
			bin.NewInt32Variant(0), ns0(DataTypeIDInt32)),
	}
	for _, n := range nodes {
		if err := a.AddNode(n); err != nil {
			return err
		}
	}

	currentTime := a.FindNode(ns0(NodeIDServerStatusCurrentTime))
	currentTime.Base().SetAttributeGetter(AttrValue, func(bin.NodeId, AttributeID) (bin.DataValue, status.Code) {
		now := time.Now().UTC()
		return bin.NewDataValue(bin.NewDateTimeVariant(now), now), status.Good
	})

	if stateFn != nil {
		state := a.FindNode(ns0(NodeIDServerStatusState))
		state.Base().SetAttributeGetter(AttrValue, func(bin.NodeId, AttributeID) (bin.DataValue, status.Code) {
			return bin.NewDataValue(bin.NewInt32Variant(stateFn()), time.Now().UTC()), status.Good
		})
	}

	organizes := ns0(ReferenceTypeOrganizes)
	hasComponent := ns0(ReferenceTypeHasComponent)
	hasProperty := ns0(ReferenceTypeHasProperty)

	a.AddReference(ns0(NodeIDRootFolder), organizes, ns0(NodeIDObjectsFolder))
	a.AddReference(ns0(NodeIDRootFolder), organizes, ns0(NodeIDTypesFolder))
	a.AddReference(ns0(NodeIDRootFolder), organizes, ns0(NodeIDViewsFolder))
	a.AddReference(ns0(NodeIDObjectsFolder), organizes, ns0(NodeIDServer))
	a.AddReference(ns0(NodeIDServer), hasProperty, ns0(NodeIDServerNamespaceArray))
	a.AddReference(ns0(NodeIDServer), hasProperty, ns0(NodeIDServerServerArray))
	a.AddReference(ns0(NodeIDServer), hasComponent, ns0(NodeIDServerStatus))
	a.AddReference(ns0(NodeIDServerStatus), hasComponent, ns0(NodeIDServerStatusStartTime))
	a.AddReference(ns0(NodeIDServerStatus), hasComponent, ns0(NodeIDServerStatusCurrentTime))
	a.AddReference(ns0(NodeIDServerStatus), hasComponent, ns0(NodeIDServerStatusState))
	return nil
}

func namespaceArrayValue(applicationURI string) bin.Variant {
	return bin.Variant{
		TypeID:  bin.VariantString,
		IsArray: true,
		Array:   []any{"http://opcfoundation.org/UA/", applicationURI},
	}
}

func serverArrayValue(applicationURI string) bin.Variant {
	return bin.Variant{TypeID: bin.VariantString, IsArray: true, Array: []any{applicationURI}}
}

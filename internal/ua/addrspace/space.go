package addrspace

import (
	"fmt"
	"sync"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// Reference is a typed edge between two nodes.
type Reference struct {
	Source        bin.NodeId
	Target        bin.NodeId
	ReferenceType bin.NodeId
}

// AddressSpace is the node graph: nodes keyed by NodeId plus forward and
// inverse reference indexes. Shared read-mostly behind a readers-writer
// lock; attribute writes go through the write lock so a single-attribute
// write is atomic with respect to concurrent reads.
type AddressSpace struct {
	mu sync.RWMutex

	nodes   map[any]Node
	forward map[any][]Reference
	inverse map[any][]Reference
}

// New creates an empty address space.
func New() *AddressSpace {
	return &AddressSpace{
		nodes:   make(map[any]Node),
		forward: make(map[any][]Reference),
		inverse: make(map[any][]Reference),
	}
}

// AddNode inserts a node. A NodeId appears at most once; inserting a
// duplicate is an error.
func (a *AddressSpace) AddNode(n Node) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := n.Base().NodeID().MapKey()
	if _, exists := a.nodes[key]; exists {
		return errs.NewServiceError("addrspace.add_node", status.BadNodeIdInvalid,
			fmt.Errorf("node %s already exists", n.Base().NodeID()))
	}
	a.nodes[key] = n
	return nil
}

// FindNode returns the node with the given id, or nil.
func (a *AddressSpace) FindNode(id bin.NodeId) Node {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nodes[id.MapKey()]
}

// NodeCount returns how many nodes the space holds.
func (a *AddressSpace) NodeCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.nodes)
}

// AddReference inserts a typed edge and indexes it both ways, so the
// inverse lookup from the target yields the source and type.
func (a *AddressSpace) AddReference(source, referenceType, target bin.NodeId) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ref := Reference{Source: source, Target: target, ReferenceType: referenceType}
	a.forward[source.MapKey()] = append(a.forward[source.MapKey()], ref)
	a.inverse[target.MapKey()] = append(a.inverse[target.MapKey()], ref)
}

// ReferencesFrom returns the forward references leaving source.
func (a *AddressSpace) ReferencesFrom(source bin.NodeId) []Reference {
	a.mu.RLock()
	defer a.mu.RUnlock()
	refs := a.forward[source.MapKey()]
	out := make([]Reference, len(refs))
	copy(out, refs)
	return out
}

// ReferencesTo returns the references arriving at target.
func (a *AddressSpace) ReferencesTo(target bin.NodeId) []Reference {
	a.mu.RLock()
	defer a.mu.RUnlock()
	refs := a.inverse[target.MapKey()]
	out := make([]Reference, len(refs))
	copy(out, refs)
	return out
}

// ReadAttribute reads one attribute of one node, consulting the node's
// getter when registered. Unknown nodes and invalid attribute ids produce a
// status-only DataValue, never an error: per-element failures stay inside
// the batch.
func (a *AddressSpace) ReadAttribute(nodeID bin.NodeId, attrID AttributeID) bin.DataValue {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n, ok := a.nodes[nodeID.MapKey()]
	if !ok {
		return bin.NewStatusOnlyDataValue(status.BadNodeIdUnknown)
	}
	dv, code := n.Base().FindAttribute(attrID)
	if code != status.Good {
		return bin.NewStatusOnlyDataValue(code)
	}
	return dv
}

// WriteAttribute writes one attribute of one node through typed validation
// and setter indirection.
func (a *AddressSpace) WriteAttribute(nodeID bin.NodeId, attrID AttributeID, value bin.DataValue) status.Code {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.nodes[nodeID.MapKey()]
	if !ok {
		return status.BadNodeIdUnknown
	}
	return n.Base().SetAttribute(attrID, value)
}

package addrspace

import (
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
	"github.com/alxayo/opcua-server/internal/ua/svc"
)

// CallMethod resolves and invokes one method on one object. Every failure
// stage yields a CallMethodResult with the corresponding StatusCode; it
// never returns an error, because a failed element must not fail the batch.
//
// Resolution requires the method node to hang off the object through a
// HasComponent reference, so a client cannot invoke a method via an
// unrelated object id.
func (a *AddressSpace) CallMethod(req svc.CallMethodRequest) svc.CallMethodResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	obj, ok := a.nodes[req.ObjectNodeID.MapKey()]
	if !ok {
		return svc.CallMethodResult{Status: status.BadNodeIdUnknown}
	}
	node, ok := a.nodes[req.MethodNodeID.MapKey()]
	if !ok {
		return svc.CallMethodResult{Status: status.BadMethodInvalid}
	}
	method, ok := node.(*Method)
	if !ok {
		return svc.CallMethodResult{Status: status.BadMethodInvalid}
	}
	if !a.isComponentOf(obj.Base().NodeID(), method.Base().NodeID()) {
		return svc.CallMethodResult{Status: status.BadMethodInvalid}
	}
	if !method.Executable() {
		return svc.CallMethodResult{Status: status.BadUserAccessDenied}
	}

	declared := method.InputArguments()
	if len(req.InputArguments) < len(declared) {
		return svc.CallMethodResult{Status: status.BadArgumentsMissing}
	}
	if len(req.InputArguments) > len(declared) {
		return svc.CallMethodResult{Status: status.BadInvalidArgument}
	}

	argResults := make([]status.Code, len(declared))
	argsOK := true
	for i, arg := range declared {
		if req.InputArguments[i].IsArray || req.InputArguments[i].TypeID != arg.Type {
			argResults[i] = status.BadTypeMismatch
			argsOK = false
		} else {
			argResults[i] = status.Good
		}
	}
	if !argsOK {
		return svc.CallMethodResult{Status: status.BadInvalidArgument, InputArgumentResults: argResults}
	}

	outputs, code := method.handler(req.InputArguments)
	return svc.CallMethodResult{Status: code, InputArgumentResults: argResults, OutputArguments: outputs}
}

// isComponentOf walks the object's forward HasComponent references looking
// for the method. Assumes the space read lock is held.
func (a *AddressSpace) isComponentOf(object, method bin.NodeId) bool {
	hasComponent := bin.NewNumericNodeId(0, ReferenceTypeHasComponent)
	for _, ref := range a.forward[object.MapKey()] {
		if ref.ReferenceType.Equal(hasComponent) && ref.Target.Equal(method) {
			return true
		}
	}
	return false
}

package dispatch

import (
	"bytes"

	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/status"
	"github.com/alxayo/opcua-server/internal/ua/svc"
)

// browseNode enumerates one node's references, honoring the direction and
// reference-type filter. Continuation points are not issued; results past
// maxRefs are truncated and the count capped, which conforming clients
// handle by browsing narrower.
func (d *Dispatcher) browseNode(b svc.BrowseDescription, maxRefs int) svc.BrowseResult {
	if d.space.FindNode(b.NodeID) == nil {
		return svc.BrowseResult{Status: status.BadNodeIdUnknown}
	}

	var out []svc.ReferenceDescription
	if b.BrowseDirection == svc.BrowseDirectionForward || b.BrowseDirection == svc.BrowseDirectionBoth {
		for _, ref := range d.space.ReferencesFrom(b.NodeID) {
			if !referenceTypeMatches(b, ref.ReferenceType) {
				continue
			}
			out = append(out, d.describeTarget(ref.ReferenceType, true, ref.Target))
		}
	}
	if b.BrowseDirection == svc.BrowseDirectionInverse || b.BrowseDirection == svc.BrowseDirectionBoth {
		for _, ref := range d.space.ReferencesTo(b.NodeID) {
			if !referenceTypeMatches(b, ref.ReferenceType) {
				continue
			}
			out = append(out, d.describeTarget(ref.ReferenceType, false, ref.Source))
		}
	}
	if len(out) > maxRefs {
		out = out[:maxRefs]
	}
	return svc.BrowseResult{Status: status.Good, References: out}
}

// referenceTypeMatches applies the browse filter. A null reference-type id
// matches everything; subtype expansion is limited to exact matches since
// the seeded type hierarchy is flat.
func referenceTypeMatches(b svc.BrowseDescription, refType bin.NodeId) bool {
	if b.ReferenceTypeID.Kind == bin.IdentifierNumeric && b.ReferenceTypeID.Numeric == 0 {
		return true
	}
	return b.ReferenceTypeID.Equal(refType)
}

func (d *Dispatcher) describeTarget(refType bin.NodeId, forward bool, target bin.NodeId) svc.ReferenceDescription {
	desc := svc.ReferenceDescription{
		ReferenceTypeID: refType,
		IsForward:       forward,
		TargetID:        target,
	}
	if n := d.space.FindNode(target); n != nil {
		base := n.Base()
		desc.BrowseName = bin.QualifiedName{NamespaceIndex: target.Namespace, Name: base.BrowseName()}
		desc.DisplayName = base.DisplayName()
		desc.NodeClass = uint32(base.NodeClass())
	}
	return desc
}

// parsePolicyID extracts the policy id string from an encoded user identity
// token body. Every identity token type opens with the policy id string, so
// only the prefix needs decoding. Returns "" when the body is malformed.
func parsePolicyID(body []byte) string {
	s, err := bin.DecodeString(bytes.NewReader(body))
	if err != nil || s == nil {
		return ""
	}
	return *s
}

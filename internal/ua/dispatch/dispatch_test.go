package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alxayo/opcua-server/internal/config"
	"github.com/alxayo/opcua-server/internal/ua/addrspace"
	"github.com/alxayo/opcua-server/internal/ua/bin"
	"github.com/alxayo/opcua-server/internal/ua/session"
	"github.com/alxayo/opcua-server/internal/ua/state"
	"github.com/alxayo/opcua-server/internal/ua/status"
	"github.com/alxayo/opcua-server/internal/ua/svc"
)

func newFixture(t *testing.T) *Dispatcher {
	t.Helper()
	st := state.New(config.Default())
	space := addrspace.New()
	require.NoError(t, addrspace.PopulateStandardNodes(space, "urn:test", time.Now().UTC(), nil))
	ch := session.NewSecureChannel(1, time.Hour, time.Now())
	return New(st, space, ch, nil)
}

// establishSession drives CreateSession + ActivateSession and returns the
// header every later request must carry.
func establishSession(t *testing.T, d *Dispatcher) svc.RequestHeader {
	t.Helper()
	resp := d.Dispatch(&svc.CreateSessionRequest{
		Header:                  svc.RequestHeader{RequestHandle: 1},
		SessionName:             "test",
		RequestedSessionTimeout: 60_000,
	})
	created, ok := resp.(*svc.CreateSessionResponse)
	require.True(t, ok)

	hdr := svc.RequestHeader{AuthenticationToken: created.AuthenticationToken, RequestHandle: 2}
	resp = d.Dispatch(&svc.ActivateSessionRequest{Header: hdr})
	_, ok = resp.(*svc.ActivateSessionResponse)
	require.True(t, ok)
	return hdr
}

func TestCreateSessionReturnsEndpoints(t *testing.T) {
	d := newFixture(t)
	resp := d.Dispatch(&svc.CreateSessionRequest{Header: svc.RequestHeader{RequestHandle: 7}})
	created, ok := resp.(*svc.CreateSessionResponse)
	require.True(t, ok)
	require.Equal(t, uint32(7), created.Header.RequestHandle)
	require.NotEmpty(t, created.ServerEndpoints)
	require.False(t, created.SessionID.Equal(bin.NewNumericNodeId(0, 0)))
	require.NotNil(t, d.Session())
	require.False(t, d.Session().Activated())
}

func TestActivateWithoutSessionFaults(t *testing.T) {
	d := newFixture(t)
	resp := d.Dispatch(&svc.ActivateSessionRequest{Header: svc.RequestHeader{RequestHandle: 3}})
	fault, ok := resp.(*svc.ServiceFault)
	require.True(t, ok)
	require.Equal(t, status.BadSessionIdInvalid, fault.Header.ServiceResult)
	require.Equal(t, uint32(3), fault.Header.RequestHandle)
}

func TestActivateWithWrongTokenFaults(t *testing.T) {
	d := newFixture(t)
	d.Dispatch(&svc.CreateSessionRequest{Header: svc.RequestHeader{RequestHandle: 1}})
	resp := d.Dispatch(&svc.ActivateSessionRequest{
		Header: svc.RequestHeader{AuthenticationToken: bin.NewNumericNodeId(0, 99), RequestHandle: 2},
	})
	fault, ok := resp.(*svc.ServiceFault)
	require.True(t, ok)
	require.Equal(t, status.BadSessionIdInvalid, fault.Header.ServiceResult)
}

func TestReadWithoutSessionFaults(t *testing.T) {
	d := newFixture(t)
	resp := d.Dispatch(&svc.ReadRequest{
		Header:      svc.RequestHeader{RequestHandle: 5},
		NodesToRead: []svc.ReadValueId{{NodeID: bin.NewNumericNodeId(0, 2258), AttributeID: 13}},
	})
	fault, ok := resp.(*svc.ServiceFault)
	require.True(t, ok)
	require.Equal(t, status.BadSessionIdInvalid, fault.Header.ServiceResult)
}

func TestReadCurrentTime(t *testing.T) {
	d := newFixture(t)
	hdr := establishSession(t, d)

	resp := d.Dispatch(&svc.ReadRequest{
		Header:      hdr,
		NodesToRead: []svc.ReadValueId{{NodeID: bin.NewNumericNodeId(0, 2258), AttributeID: 13}},
	})
	read, ok := resp.(*svc.ReadResponse)
	require.True(t, ok)
	require.Len(t, read.Results, 1)
	dv := read.Results[0]
	require.Equal(t, status.Good, dv.Status)
	require.Equal(t, bin.VariantDateTime, dv.Value.TypeID)
	require.WithinDuration(t, time.Now().UTC(), dv.Value.Scalar.(time.Time), 2*time.Second)
}

func TestReadBatchOrderAndPerElementErrors(t *testing.T) {
	d := newFixture(t)
	hdr := establishSession(t, d)

	resp := d.Dispatch(&svc.ReadRequest{
		Header: hdr,
		NodesToRead: []svc.ReadValueId{
			{NodeID: bin.NewNumericNodeId(0, 2258), AttributeID: 13},
			{NodeID: bin.NewNumericNodeId(9, 9), AttributeID: 13},
			{NodeID: bin.NewNumericNodeId(0, 2258), AttributeID: 99},
		},
	})
	read, ok := resp.(*svc.ReadResponse)
	require.True(t, ok)
	require.Len(t, read.Results, 3)
	require.Equal(t, status.Good, read.Results[0].Status)
	require.Equal(t, status.BadNodeIdUnknown, read.Results[1].Status)
	require.Equal(t, status.BadAttributeIdInvalid, read.Results[2].Status)
}

func TestEmptyBatchFaults(t *testing.T) {
	d := newFixture(t)
	hdr := establishSession(t, d)

	for _, req := range []svc.Request{
		&svc.ReadRequest{Header: hdr},
		&svc.WriteRequest{Header: hdr},
		&svc.BrowseRequest{Header: hdr},
		&svc.CallRequest{Header: hdr},
	} {
		fault, ok := d.Dispatch(req).(*svc.ServiceFault)
		require.True(t, ok)
		require.Equal(t, status.BadNothingToDo, fault.Header.ServiceResult)
	}
}

func TestReadOverCapFaults(t *testing.T) {
	d := newFixture(t)
	hdr := establishSession(t, d)

	nodes := make([]svc.ReadValueId, MaxNodesPerRead+1)
	for i := range nodes {
		nodes[i] = svc.ReadValueId{NodeID: bin.NewNumericNodeId(0, 2258), AttributeID: 13}
	}
	fault, ok := d.Dispatch(&svc.ReadRequest{Header: hdr, NodesToRead: nodes}).(*svc.ServiceFault)
	require.True(t, ok)
	require.Equal(t, status.BadTooManyOperations, fault.Header.ServiceResult)
}

func TestCallOverCapFaultsWithoutInvocation(t *testing.T) {
	d := newFixture(t)
	hdr := establishSession(t, d)

	objID := bin.NewNumericNodeId(1, 10)
	methodID := bin.NewNumericNodeId(1, 11)
	invoked := 0
	require.NoError(t, d.space.AddNode(addrspace.NewObject(objID, "o", "o", 0)))
	require.NoError(t, d.space.AddNode(addrspace.NewMethod(methodID, "m", "m", nil,
		func([]bin.Variant) ([]bin.Variant, status.Code) {
			invoked++
			return nil, status.Good
		})))
	d.space.AddReference(objID, bin.NewNumericNodeId(0, addrspace.ReferenceTypeHasComponent), methodID)

	calls := make([]svc.CallMethodRequest, MaxMethodCalls+1)
	for i := range calls {
		calls[i] = svc.CallMethodRequest{ObjectNodeID: objID, MethodNodeID: methodID}
	}
	fault, ok := d.Dispatch(&svc.CallRequest{Header: hdr, MethodsToCall: calls}).(*svc.ServiceFault)
	require.True(t, ok)
	require.Equal(t, status.BadTooManyOperations, fault.Header.ServiceResult)
	require.Zero(t, invoked)

	// At the cap, every element runs.
	resp := d.Dispatch(&svc.CallRequest{Header: hdr, MethodsToCall: calls[:MaxMethodCalls]})
	call, ok := resp.(*svc.CallResponse)
	require.True(t, ok)
	require.Len(t, call.Results, MaxMethodCalls)
	require.Equal(t, MaxMethodCalls, invoked)
}

func TestWriteTypeMismatchPerElement(t *testing.T) {
	d := newFixture(t)
	hdr := establishSession(t, d)

	vid := bin.NewNumericNodeId(1, 50)
	require.NoError(t, d.space.AddNode(addrspace.NewVariable(vid, "v", "v",
		bin.NewDoubleVariant(1), bin.NewNumericNodeId(0, addrspace.DataTypeIDUInt32))))

	before := d.space.ReadAttribute(vid, addrspace.AttrHistorizing)
	resp := d.Dispatch(&svc.WriteRequest{
		Header: hdr,
		NodesToWrite: []svc.WriteValue{
			{NodeID: vid, AttributeID: uint32(addrspace.AttrHistorizing),
				Value: bin.DataValue{Value: bin.NewStringVariant("x"), HasValue: true}},
			{NodeID: vid, AttributeID: uint32(addrspace.AttrValue),
				Value: bin.DataValue{Value: bin.NewDoubleVariant(2), HasValue: true}},
		},
	})
	write, ok := resp.(*svc.WriteResponse)
	require.True(t, ok)
	require.Equal(t, []status.Code{status.BadTypeMismatch, status.Good}, write.Results)
	// The mismatched element left no trace.
	require.Equal(t, before, d.space.ReadAttribute(vid, addrspace.AttrHistorizing))
}

func TestBrowseServerObject(t *testing.T) {
	d := newFixture(t)
	hdr := establishSession(t, d)

	resp := d.Dispatch(&svc.BrowseRequest{
		Header: hdr,
		NodesToBrowse: []svc.BrowseDescription{
			{NodeID: bin.NewNumericNodeId(0, addrspace.NodeIDServer), BrowseDirection: svc.BrowseDirectionForward},
			{NodeID: bin.NewNumericNodeId(0, addrspace.NodeIDServer), BrowseDirection: svc.BrowseDirectionInverse},
			{NodeID: bin.NewNumericNodeId(9, 9), BrowseDirection: svc.BrowseDirectionForward},
		},
	})
	browse, ok := resp.(*svc.BrowseResponse)
	require.True(t, ok)
	require.Len(t, browse.Results, 3)

	fwd := browse.Results[0]
	require.Equal(t, status.Good, fwd.Status)
	require.Len(t, fwd.References, 3) // NamespaceArray, ServerArray, ServerStatus
	for _, ref := range fwd.References {
		require.True(t, ref.IsForward)
		require.NotEmpty(t, ref.BrowseName.Name)
	}

	inv := browse.Results[1]
	require.Len(t, inv.References, 1)
	require.False(t, inv.References[0].IsForward)
	require.True(t, inv.References[0].TargetID.Equal(bin.NewNumericNodeId(0, addrspace.NodeIDObjectsFolder)))

	require.Equal(t, status.BadNodeIdUnknown, browse.Results[2].Status)
}

func TestCloseSessionThenReadFaults(t *testing.T) {
	d := newFixture(t)
	hdr := establishSession(t, d)

	resp := d.Dispatch(&svc.CloseSessionRequest{Header: hdr})
	_, ok := resp.(*svc.CloseSessionResponse)
	require.True(t, ok)
	require.Nil(t, d.Session())

	fault, ok := d.Dispatch(&svc.ReadRequest{
		Header:      hdr,
		NodesToRead: []svc.ReadValueId{{NodeID: bin.NewNumericNodeId(0, 2258), AttributeID: 13}},
	}).(*svc.ServiceFault)
	require.True(t, ok)
	require.Equal(t, status.BadSessionIdInvalid, fault.Header.ServiceResult)
}

func TestGetEndpointsNeedsNoSession(t *testing.T) {
	d := newFixture(t)
	resp := d.Dispatch(&svc.GetEndpointsRequest{Header: svc.RequestHeader{RequestHandle: 1}})
	ge, ok := resp.(*svc.GetEndpointsResponse)
	require.True(t, ok)
	require.NotEmpty(t, ge.Endpoints)
	require.Equal(t, "opc.tcp://127.0.0.1:4855/", ge.Endpoints[0].EndpointURL)
}

func TestUnsupportedServiceFaults(t *testing.T) {
	d := newFixture(t)
	// RegisterServer is a discovery-server service; this server only sends
	// it as a client.
	fault, ok := d.Dispatch(&svc.RegisterServerRequest{Header: svc.RequestHeader{RequestHandle: 4}}).(*svc.ServiceFault)
	require.True(t, ok)
	require.Equal(t, status.BadNotImplemented, fault.Header.ServiceResult)
}

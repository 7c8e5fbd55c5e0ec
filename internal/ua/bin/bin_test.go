package bin

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/alxayo/opcua-server/internal/ua/status"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeBool(&buf, true))
	require.NoError(t, EncodeByte(&buf, 0x42))
	require.NoError(t, EncodeUint16(&buf, 0xBEEF))
	require.NoError(t, EncodeInt32(&buf, -1234))
	require.NoError(t, EncodeUint32(&buf, 0xDEADBEEF))
	require.NoError(t, EncodeInt64(&buf, -1))
	require.NoError(t, EncodeUint64(&buf, 0xFFFFFFFFFFFFFFFF))
	require.NoError(t, EncodeFloat32(&buf, 3.5))
	require.NoError(t, EncodeFloat64(&buf, 2.25))
	require.NoError(t, EncodeStatusCode(&buf, status.BadNodeIdUnknown))

	b, err := DecodeBool(&buf)
	require.NoError(t, err)
	require.True(t, b)

	by, err := DecodeByte(&buf)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), by)

	u16, err := DecodeUint16(&buf)
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), u16)

	i32, err := DecodeInt32(&buf)
	require.NoError(t, err)
	require.Equal(t, int32(-1234), i32)

	u32, err := DecodeUint32(&buf)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), u32)

	i64, err := DecodeInt64(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(-1), i64)

	u64, err := DecodeUint64(&buf)
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), u64)

	f32, err := DecodeFloat32(&buf)
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f32)

	f64, err := DecodeFloat64(&buf)
	require.NoError(t, err)
	require.Equal(t, 2.25, f64)

	code, err := DecodeStatusCode(&buf)
	require.NoError(t, err)
	require.Equal(t, status.BadNodeIdUnknown, code)

	require.Zero(t, buf.Len())
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s := "hello, opc ua"
	require.NoError(t, EncodeString(&buf, &s))
	got, err := DecodeString(&buf)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, s, *got)
}

func TestStringNull(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeString(&buf, nil))
	got, err := DecodeString(&buf)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStringEmptyIsNotNull(t *testing.T) {
	var buf bytes.Buffer
	empty := ""
	require.NoError(t, EncodeString(&buf, &empty))
	got, err := DecodeString(&buf)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "", *got)
}

func TestStringTooLong(t *testing.T) {
	var buf bytes.Buffer
	s := string(make([]byte, MaxStringLength+1))
	err := EncodeString(&buf, &s)
	require.Error(t, err)
}

func TestByteStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	require.NoError(t, EncodeByteString(&buf, payload))
	got, err := DecodeByteString(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestByteStringNull(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeByteString(&buf, nil))
	got, err := DecodeByteString(&buf)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestArrayRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	vals := []uint32{1, 2, 3, 4, 5}
	require.NoError(t, EncodeArray(&buf, vals, EncodeUint32))
	got, err := DecodeArray(&buf, DecodeUint32)
	require.NoError(t, err)
	require.Equal(t, vals, got)
}

func TestArrayNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeArray[uint32](&buf, nil, EncodeUint32))
	got, err := DecodeArray(&buf, DecodeUint32)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestArrayTooLong(t *testing.T) {
	var buf bytes.Buffer
	vals := make([]uint32, MaxArrayLength+1)
	err := EncodeArray(&buf, vals, EncodeUint32)
	require.Error(t, err)
}

func TestNodeIdRoundTripAllKinds(t *testing.T) {
	cases := []NodeId{
		NewNumericNodeId(0, 5),
		NewNumericNodeId(10, 40000),
		NewNumericNodeId(300, 100000),
		NewStringNodeId(2, "MyObject.Temperature"),
		{Namespace: 1, Kind: IdentifierGUID, GUID: uuid.New()},
		{Namespace: 3, Kind: IdentifierOpaque, Opaque: []byte{0xAA, 0xBB, 0xCC}},
	}
	for _, n := range cases {
		var buf bytes.Buffer
		require.NoError(t, EncodeNodeId(&buf, n))
		got, err := DecodeNodeId(&buf)
		require.NoError(t, err)
		require.True(t, n.Equal(got), "expected %s got %s", n, got)
	}
}

func TestNodeIdCompactForms(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeNodeId(&buf, NewNumericNodeId(0, 5)))
	require.Equal(t, []byte{nodeIDTwoByte, 5}, buf.Bytes())
}

func TestNodeIdMapKeyDistinguishesKinds(t *testing.T) {
	a := NewNumericNodeId(1, 5)
	b := NewStringNodeId(1, "5")
	require.NotEqual(t, a.MapKey(), b.MapKey())
}

func TestDateTimeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, EncodeDateTime(&buf, ts))
	got, err := DecodeDateTime(&buf)
	require.NoError(t, err)
	require.True(t, ts.Equal(got))
}

func TestDateTimeZero(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeDateTime(&buf, time.Time{}))
	got, err := DecodeDateTime(&buf)
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestQualifiedNameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	q := QualifiedName{NamespaceIndex: 2, Name: "Temperature"}
	require.NoError(t, EncodeQualifiedName(&buf, q))
	got, err := DecodeQualifiedName(&buf)
	require.NoError(t, err)
	require.Equal(t, q, got)
}

func TestLocalizedTextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	lt := LocalizedText{Locale: "en-US", Text: "Temperature Sensor"}
	require.NoError(t, EncodeLocalizedText(&buf, lt))
	got, err := DecodeLocalizedText(&buf)
	require.NoError(t, err)
	require.Equal(t, lt, got)
}

func TestLocalizedTextOnlyText(t *testing.T) {
	var buf bytes.Buffer
	lt := LocalizedText{Text: "No locale"}
	require.NoError(t, EncodeLocalizedText(&buf, lt))
	got, err := DecodeLocalizedText(&buf)
	require.NoError(t, err)
	require.Equal(t, lt, got)
}

func TestVariantScalarRoundTrip(t *testing.T) {
	cases := []Variant{
		NewBooleanVariant(true),
		NewByteVariant(0x7F),
		NewInt32Variant(-500),
		NewUInt32Variant(500),
		NewDoubleVariant(98.6),
		NewStringVariant("sensor-1"),
		NewDateTimeVariant(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		NewNodeIdVariant(NewNumericNodeId(2, 1001)),
		NewStatusCodeVariant(status.BadOutOfRange),
		NewQualifiedNameVariant(QualifiedName{NamespaceIndex: 2, Name: "Temp"}),
		NewLocalizedTextVariant(LocalizedText{Locale: "en", Text: "Temp"}),
	}
	for _, v := range cases {
		var buf bytes.Buffer
		require.NoError(t, EncodeVariant(&buf, v))
		got, err := DecodeVariant(&buf)
		require.NoError(t, err)
		require.Equal(t, v.TypeID, got.TypeID)
		require.Equal(t, v.Scalar, got.Scalar)
		require.Zero(t, buf.Len())
	}
}

func TestVariantUInt32ArrayRoundTrip(t *testing.T) {
	v := NewUInt32ArrayVariant([]uint32{1, 2, 3})
	require.True(t, v.IsUInt32Array())

	var buf bytes.Buffer
	require.NoError(t, EncodeVariant(&buf, v))
	got, err := DecodeVariant(&buf)
	require.NoError(t, err)
	require.True(t, got.IsArray)
	require.Equal(t, VariantUInt32, got.TypeID)
	require.Equal(t, v.Array, got.Array)
}

func TestVariantNullArray(t *testing.T) {
	v := Variant{TypeID: VariantUInt32, IsArray: true, Array: nil}
	var buf bytes.Buffer
	require.NoError(t, EncodeVariant(&buf, v))
	got, err := DecodeVariant(&buf)
	require.NoError(t, err)
	require.True(t, got.IsArray)
	require.Nil(t, got.Array)
}

func TestDataValueFullRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	dv := NewDataValue(NewDoubleVariant(21.5), now)

	var buf bytes.Buffer
	require.NoError(t, EncodeDataValue(&buf, dv))
	got, err := DecodeDataValue(&buf)
	require.NoError(t, err)

	require.True(t, got.HasValue)
	require.Equal(t, dv.Value.Scalar, got.Value.Scalar)
	require.True(t, got.HasStatus)
	require.Equal(t, status.Good, got.Status)
	require.True(t, got.HasSourceTime)
	require.True(t, now.Equal(got.SourceTimestamp))
	require.True(t, got.HasServerTime)
	require.True(t, now.Equal(got.ServerTimestamp))
}

func TestDataValueStatusOnly(t *testing.T) {
	dv := NewStatusOnlyDataValue(status.BadNodeIdUnknown)
	var buf bytes.Buffer
	require.NoError(t, EncodeDataValue(&buf, dv))
	got, err := DecodeDataValue(&buf)
	require.NoError(t, err)

	require.False(t, got.HasValue)
	require.True(t, got.HasStatus)
	require.Equal(t, status.BadNodeIdUnknown, got.Status)
	require.False(t, got.HasSourceTime)
	require.False(t, got.HasServerTime)
}

func TestDataValueEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeDataValue(&buf, DataValue{}))
	require.Equal(t, []byte{0x00}, buf.Bytes())
	got, err := DecodeDataValue(&buf)
	require.NoError(t, err)
	require.Equal(t, DataValue{}, got)
}

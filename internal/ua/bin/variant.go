package bin

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// VariantTypeID is the UA Binary Variant type tag (Part 6 Table 14),
// occupying the low 6 bits of the encoding byte.
type VariantTypeID byte

const (
	VariantNull VariantTypeID = 0
	VariantBoolean VariantTypeID = 1
	VariantSByte VariantTypeID = 2
	VariantByte VariantTypeID = 3
	VariantInt16 VariantTypeID = 4
	VariantUInt16 VariantTypeID = 5
	VariantInt32 VariantTypeID = 6
	VariantUInt32 VariantTypeID = 7
	VariantInt64 VariantTypeID = 8
	VariantUInt64 VariantTypeID = 9
	VariantFloat VariantTypeID = 10
	VariantDouble VariantTypeID = 11
	VariantString VariantTypeID = 12
	VariantDateTime VariantTypeID = 13
	VariantGuid VariantTypeID = 14
	VariantByteString VariantTypeID = 15
	VariantNodeId VariantTypeID = 17
	VariantStatusCode VariantTypeID = 19
	VariantQualifiedName VariantTypeID = 20
	VariantLocalizedText VariantTypeID = 21
)

const variantArrayBit = 0x80

// Variant is the tagged-union value carried by a DataValue. Exactly one of
// the scalar fields (or Array, for array values) holds the payload,
// selected by TypeID/IsArray.
type Variant struct {
	TypeID  VariantTypeID
	IsArray bool

	Scalar any     // the scalar Go value when !IsArray
	Array  []any   // one entry per element when IsArray, each of the Go type matching TypeID
}

func scalarVariant(id VariantTypeID, v any) Variant { return Variant{TypeID: id, Scalar: v} }

func NewBooleanVariant(v bool) Variant          { return scalarVariant(VariantBoolean, v) }
func NewSByteVariant(v int8) Variant            { return scalarVariant(VariantSByte, v) }
func NewByteVariant(v byte) Variant             { return scalarVariant(VariantByte, v) }
func NewInt16Variant(v int16) Variant           { return scalarVariant(VariantInt16, v) }
func NewUInt16Variant(v uint16) Variant         { return scalarVariant(VariantUInt16, v) }
func NewInt32Variant(v int32) Variant           { return scalarVariant(VariantInt32, v) }
func NewUInt32Variant(v uint32) Variant         { return scalarVariant(VariantUInt32, v) }
func NewInt64Variant(v int64) Variant           { return scalarVariant(VariantInt64, v) }
func NewUInt64Variant(v uint64) Variant         { return scalarVariant(VariantUInt64, v) }
func NewFloatVariant(v float32) Variant         { return scalarVariant(VariantFloat, v) }
func NewDoubleVariant(v float64) Variant        { return scalarVariant(VariantDouble, v) }
func NewStringVariant(v string) Variant         { return scalarVariant(VariantString, v) }
func NewDateTimeVariant(v time.Time) Variant    { return scalarVariant(VariantDateTime, v) }
func NewGuidVariant(v uuid.UUID) Variant        { return scalarVariant(VariantGuid, v) }
func NewByteStringVariant(v []byte) Variant     { return scalarVariant(VariantByteString, v) }
func NewNodeIdVariant(v NodeId) Variant         { return scalarVariant(VariantNodeId, v) }
func NewStatusCodeVariant(v status.Code) Variant { return scalarVariant(VariantStatusCode, v) }
func NewQualifiedNameVariant(v QualifiedName) Variant { return scalarVariant(VariantQualifiedName, v) }
func NewLocalizedTextVariant(v LocalizedText) Variant { return scalarVariant(VariantLocalizedText, v) }

// NewUInt32ArrayVariant builds the ArrayDimensions-shaped array variant: an
// array whose every element is a UInt32.
func NewUInt32ArrayVariant(vs []uint32) Variant {
	arr := make([]any, len(vs))
	for i, v := range vs {
		arr[i] = v
	}
	return Variant{TypeID: VariantUInt32, IsArray: true, Array: arr}
}

// IsUInt32Array reports whether v is an array variant whose every element is
// a UInt32 — the shape ArrayDimensions requires.
func (v Variant) IsUInt32Array() bool {
	return v.IsArray && v.TypeID == VariantUInt32
}

func encodeScalar(w io.Writer, id VariantTypeID, v any) error {
	switch id {
	case VariantBoolean:
		return EncodeBool(w, v.(bool))
	case VariantSByte:
		return EncodeByte(w, byte(v.(int8)))
	case VariantByte:
		return EncodeByte(w, v.(byte))
	case VariantInt16:
		return EncodeUint16(w, uint16(v.(int16)))
	case VariantUInt16:
		return EncodeUint16(w, v.(uint16))
	case VariantInt32:
		return EncodeInt32(w, v.(int32))
	case VariantUInt32:
		return EncodeUint32(w, v.(uint32))
	case VariantInt64:
		return EncodeInt64(w, v.(int64))
	case VariantUInt64:
		return EncodeUint64(w, v.(uint64))
	case VariantFloat:
		return EncodeFloat32(w, v.(float32))
	case VariantDouble:
		return EncodeFloat64(w, v.(float64))
	case VariantString:
		s := v.(string)
		return EncodeString(w, &s)
	case VariantDateTime:
		return EncodeDateTime(w, v.(time.Time))
	case VariantGuid:
		id := v.(uuid.UUID)
		b, err := id.MarshalBinary()
		if err != nil {
			return errs.NewEncodingError("bin.encode_variant", status.BadEncodingError, err)
		}
		_, err = w.Write(b)
		return err
	case VariantByteString:
		return EncodeByteString(w, v.([]byte))
	case VariantNodeId:
		return EncodeNodeId(w, v.(NodeId))
	case VariantStatusCode:
		return EncodeStatusCode(w, v.(status.Code))
	case VariantQualifiedName:
		return EncodeQualifiedName(w, v.(QualifiedName))
	case VariantLocalizedText:
		return EncodeLocalizedText(w, v.(LocalizedText))
	default:
		return errs.NewEncodingError("bin.encode_variant", status.BadTypeMismatch,
			fmt.Errorf("unsupported variant type id %d", id))
	}
}

func decodeScalar(r io.Reader, id VariantTypeID) (any, error) {
	switch id {
	case VariantBoolean:
		return DecodeBool(r)
	case VariantSByte:
		b, err := DecodeByte(r)
		return int8(b), err
	case VariantByte:
		return DecodeByte(r)
	case VariantInt16:
		u, err := DecodeUint16(r)
		return int16(u), err
	case VariantUInt16:
		return DecodeUint16(r)
	case VariantInt32:
		return DecodeInt32(r)
	case VariantUInt32:
		return DecodeUint32(r)
	case VariantInt64:
		return DecodeInt64(r)
	case VariantUInt64:
		return DecodeUint64(r)
	case VariantFloat:
		return DecodeFloat32(r)
	case VariantDouble:
		return DecodeFloat64(r)
	case VariantString:
		s, err := DecodeString(r)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return "", nil
		}
		return *s, nil
	case VariantDateTime:
		return DecodeDateTime(r)
	case VariantGuid:
		var raw [16]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, errs.NewEncodingError("bin.decode_variant", status.BadDecodingError, err)
		}
		id, err := uuid.FromBytes(raw[:])
		if err != nil {
			return nil, errs.NewEncodingError("bin.decode_variant", status.BadDecodingError, err)
		}
		return id, nil
	case VariantByteString:
		return DecodeByteString(r)
	case VariantNodeId:
		return DecodeNodeId(r)
	case VariantStatusCode:
		return DecodeStatusCode(r)
	case VariantQualifiedName:
		return DecodeQualifiedName(r)
	case VariantLocalizedText:
		return DecodeLocalizedText(r)
	default:
		return nil, errs.NewEncodingError("bin.decode_variant", status.BadTypeMismatch,
			fmt.Errorf("unsupported variant type id %d", id))
	}
}

// EncodeVariant writes the 1-byte type tag (with the array bit set for
// array values), the array length when applicable, and the payload.
func EncodeVariant(w io.Writer, v Variant) error {
	if v.TypeID == VariantNull {
		return EncodeByte(w, 0)
	}
	tag := byte(v.TypeID)
	if v.IsArray {
		tag |= variantArrayBit
	}
	if err := EncodeByte(w, tag); err != nil {
		return err
	}
	if !v.IsArray {
		return encodeScalar(w, v.TypeID, v.Scalar)
	}
	if v.Array == nil {
		return EncodeInt32(w, nullLength)
	}
	if len(v.Array) > MaxArrayLength {
		return errs.NewEncodingError("bin.encode_variant", status.BadEncodingLimitsExceeded,
			fmt.Errorf("array length %d exceeds %d", len(v.Array), MaxArrayLength))
	}
	if err := EncodeInt32(w, int32(len(v.Array))); err != nil {
		return err
	}
	for i, elem := range v.Array {
		if err := encodeScalar(w, v.TypeID, elem); err != nil {
			return errs.NewEncodingError("bin.encode_variant", status.BadEncodingError,
				fmt.Errorf("element %d: %w", i, err))
		}
	}
	return nil
}

// DecodeVariant reads a Variant.
func DecodeVariant(r io.Reader) (Variant, error) {
	tag, err := DecodeByte(r)
	if err != nil {
		return Variant{}, errs.NewEncodingError("bin.decode_variant", status.BadDecodingError, err)
	}
	isArray := tag&variantArrayBit != 0
	id := VariantTypeID(tag &^ variantArrayBit)
	if id == VariantNull {
		return Variant{TypeID: VariantNull}, nil
	}
	if !isArray {
		v, err := decodeScalar(r, id)
		if err != nil {
			return Variant{}, err
		}
		return Variant{TypeID: id, Scalar: v}, nil
	}
	n, err := DecodeInt32(r)
	if err != nil {
		return Variant{}, errs.NewEncodingError("bin.decode_variant", status.BadDecodingError, err)
	}
	if n == nullLength {
		return Variant{TypeID: id, IsArray: true, Array: nil}, nil
	}
	if n < 0 || int(n) > MaxArrayLength {
		return Variant{}, errs.NewEncodingError("bin.decode_variant", status.BadEncodingLimitsExceeded,
			fmt.Errorf("array length %d out of range", n))
	}
	arr := make([]any, 0, n)
	for i := int32(0); i < n; i++ {
		v, err := decodeScalar(r, id)
		if err != nil {
			return Variant{}, errs.NewEncodingError("bin.decode_variant", status.BadDecodingError,
				fmt.Errorf("element %d: %w", i, err))
		}
		arr = append(arr, v)
	}
	return Variant{TypeID: id, IsArray: true, Array: arr}, nil
}

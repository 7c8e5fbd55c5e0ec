package bin

import (
	"encoding/binary"
	"io"
	"math"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// EncodeBool writes a single-byte boolean (0x00 false, any non-zero true is
// decoded as true, but we always write 0x01).
func EncodeBool(w io.Writer, v bool) error {
	var b [1]byte
	if v {
		b[0] = 1
	}
	if _, err := w.Write(b[:]); err != nil {
		return errs.NewEncodingError("bin.encode_bool", status.BadEncodingError, err)
	}
	return nil
}

// DecodeBool reads a single-byte boolean.
func DecodeBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, errs.NewEncodingError("bin.decode_bool", status.BadDecodingError, err)
	}
	return b[0] != 0, nil
}

// EncodeByte writes a single unsigned byte.
func EncodeByte(w io.Writer, v byte) error {
	if _, err := w.Write([]byte{v}); err != nil {
		return errs.NewEncodingError("bin.encode_byte", status.BadEncodingError, err)
	}
	return nil
}

// DecodeByte reads a single unsigned byte.
func DecodeByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errs.NewEncodingError("bin.decode_byte", status.BadDecodingError, err)
	}
	return b[0], nil
}

// EncodeUint16 writes a little-endian uint16.
func EncodeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return errs.NewEncodingError("bin.encode_uint16", status.BadEncodingError, err)
	}
	return nil
}

// DecodeUint16 reads a little-endian uint16.
func DecodeUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errs.NewEncodingError("bin.decode_uint16", status.BadDecodingError, err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// EncodeInt32 writes a little-endian int32.
func EncodeInt32(w io.Writer, v int32) error { return EncodeUint32(w, uint32(v)) }

// DecodeInt32 reads a little-endian int32.
func DecodeInt32(r io.Reader) (int32, error) {
	u, err := DecodeUint32(r)
	return int32(u), err
}

// EncodeUint32 writes a little-endian uint32.
func EncodeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return errs.NewEncodingError("bin.encode_uint32", status.BadEncodingError, err)
	}
	return nil
}

// DecodeUint32 reads a little-endian uint32.
func DecodeUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errs.NewEncodingError("bin.decode_uint32", status.BadDecodingError, err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// EncodeInt64 writes a little-endian int64.
func EncodeInt64(w io.Writer, v int64) error { return EncodeUint64(w, uint64(v)) }

// DecodeInt64 reads a little-endian int64.
func DecodeInt64(r io.Reader) (int64, error) {
	u, err := DecodeUint64(r)
	return int64(u), err
}

// EncodeUint64 writes a little-endian uint64.
func EncodeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return errs.NewEncodingError("bin.encode_uint64", status.BadEncodingError, err)
	}
	return nil
}

// DecodeUint64 reads a little-endian uint64.
func DecodeUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errs.NewEncodingError("bin.decode_uint64", status.BadDecodingError, err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// EncodeFloat32 writes a little-endian IEEE754 single.
func EncodeFloat32(w io.Writer, v float32) error { return EncodeUint32(w, math.Float32bits(v)) }

// DecodeFloat32 reads a little-endian IEEE754 single.
func DecodeFloat32(r io.Reader) (float32, error) {
	u, err := DecodeUint32(r)
	return math.Float32frombits(u), err
}

// EncodeFloat64 writes a little-endian IEEE754 double.
func EncodeFloat64(w io.Writer, v float64) error { return EncodeUint64(w, math.Float64bits(v)) }

// DecodeFloat64 reads a little-endian IEEE754 double.
func DecodeFloat64(r io.Reader) (float64, error) {
	u, err := DecodeUint64(r)
	return math.Float64frombits(u), err
}

// EncodeStatusCode writes a StatusCode as a plain little-endian uint32.
func EncodeStatusCode(w io.Writer, c status.Code) error { return EncodeUint32(w, uint32(c)) }

// DecodeStatusCode reads a StatusCode.
func DecodeStatusCode(r io.Reader) (status.Code, error) {
	u, err := DecodeUint32(r)
	return status.Code(u), err
}

package bin

import (
	"fmt"
	"io"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// EncodeString writes a UA String: a signed 32-bit little-endian length
// prefix followed by UTF-8 bytes. A nil pointer encodes length -1 (null).
func EncodeString(w io.Writer, s *string) error {
	if s == nil {
		return EncodeInt32(w, nullLength)
	}
	b := []byte(*s)
	if len(b) > MaxStringLength {
		return errs.NewEncodingError("bin.encode_string", status.BadEncodingLimitsExceeded,
			fmt.Errorf("string length %d exceeds %d", len(b), MaxStringLength))
	}
	if err := EncodeInt32(w, int32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return errs.NewEncodingError("bin.encode_string", status.BadEncodingError, err)
	}
	return nil
}

// DecodeString reads a UA String. A length of -1 decodes to a nil *string.
func DecodeString(r io.Reader) (*string, error) {
	n, err := DecodeInt32(r)
	if err != nil {
		return nil, errs.NewEncodingError("bin.decode_string", status.BadDecodingError, err)
	}
	if n == nullLength {
		return nil, nil
	}
	if n < 0 {
		return nil, errs.NewEncodingError("bin.decode_string", status.BadDecodingError,
			fmt.Errorf("negative string length %d", n))
	}
	if int(n) > MaxStringLength {
		return nil, errs.NewEncodingError("bin.decode_string", status.BadEncodingLimitsExceeded,
			fmt.Errorf("string length %d exceeds %d", n, MaxStringLength))
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errs.NewEncodingError("bin.decode_string", status.BadDecodingError, err)
		}
	}
	s := string(buf)
	return &s, nil
}

// EncodeByteString writes a UA ByteString using the same length-prefix
// convention as String, bounded by MaxByteStringLength.
func EncodeByteString(w io.Writer, b []byte) error {
	if b == nil {
		return EncodeInt32(w, nullLength)
	}
	if len(b) > MaxByteStringLength {
		return errs.NewEncodingError("bin.encode_byte_string", status.BadEncodingLimitsExceeded,
			fmt.Errorf("byte string length %d exceeds %d", len(b), MaxByteStringLength))
	}
	if err := EncodeInt32(w, int32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return errs.NewEncodingError("bin.encode_byte_string", status.BadEncodingError, err)
	}
	return nil
}

// DecodeByteString reads a UA ByteString. A length of -1 decodes to nil.
func DecodeByteString(r io.Reader) ([]byte, error) {
	n, err := DecodeInt32(r)
	if err != nil {
		return nil, errs.NewEncodingError("bin.decode_byte_string", status.BadDecodingError, err)
	}
	if n == nullLength {
		return nil, nil
	}
	if n < 0 {
		return nil, errs.NewEncodingError("bin.decode_byte_string", status.BadDecodingError,
			fmt.Errorf("negative byte string length %d", n))
	}
	if int(n) > MaxByteStringLength {
		return nil, errs.NewEncodingError("bin.decode_byte_string", status.BadEncodingLimitsExceeded,
			fmt.Errorf("byte string length %d exceeds %d", n, MaxByteStringLength))
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errs.NewEncodingError("bin.decode_byte_string", status.BadDecodingError, err)
		}
	}
	return buf, nil
}

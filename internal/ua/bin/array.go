package bin

import (
	"fmt"
	"io"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// EncodeArray writes a signed 32-bit length prefix followed by each element
// encoded with encode. A nil slice encodes length -1 (absent array), matching
// String/ByteString's null convention.
func EncodeArray[T any](w io.Writer, arr []T, encode func(io.Writer, T) error) error {
	if arr == nil {
		return EncodeInt32(w, nullLength)
	}
	if len(arr) > MaxArrayLength {
		return errs.NewEncodingError("bin.encode_array", status.BadEncodingLimitsExceeded,
			fmt.Errorf("array length %d exceeds %d", len(arr), MaxArrayLength))
	}
	if err := EncodeInt32(w, int32(len(arr))); err != nil {
		return err
	}
	for i, v := range arr {
		if err := encode(w, v); err != nil {
			return errs.NewEncodingError("bin.encode_array", status.BadEncodingError,
				fmt.Errorf("element %d: %w", i, err))
		}
	}
	return nil
}

// DecodeArray reads a signed 32-bit length prefix and that many elements
// decoded with decode. A length of -1 decodes to a nil slice.
func DecodeArray[T any](r io.Reader, decode func(io.Reader) (T, error)) ([]T, error) {
	n, err := DecodeInt32(r)
	if err != nil {
		return nil, errs.NewEncodingError("bin.decode_array", status.BadDecodingError, err)
	}
	if n == nullLength {
		return nil, nil
	}
	if n < 0 {
		return nil, errs.NewEncodingError("bin.decode_array", status.BadDecodingError,
			fmt.Errorf("negative array length %d", n))
	}
	if int(n) > MaxArrayLength {
		return nil, errs.NewEncodingError("bin.decode_array", status.BadEncodingLimitsExceeded,
			fmt.Errorf("array length %d exceeds %d", n, MaxArrayLength))
	}
	out := make([]T, 0, n)
	for i := int32(0); i < n; i++ {
		v, err := decode(r)
		if err != nil {
			return nil, errs.NewEncodingError("bin.decode_array", status.BadDecodingError,
				fmt.Errorf("element %d: %w", i, err))
		}
		out = append(out, v)
	}
	return out, nil
}

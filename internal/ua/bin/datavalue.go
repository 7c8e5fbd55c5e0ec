package bin

import (
	"io"
	"time"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// DataValue encoding mask bits; value, status and the timestamps are each
// independently optional on the wire.
const (
	dataValueValueBit             = 0x01
	dataValueStatusBit            = 0x02
	dataValueSourceTimestampBit   = 0x04
	dataValueServerTimestampBit   = 0x08
	dataValueSourcePicosecondsBit = 0x10
	dataValueServerPicosecondsBit = 0x20
)

// DataValue is a timestamped, status-qualified Variant: the payload returned
// by Read and carried in Write requests and subscription notifications.
type DataValue struct {
	Value             Variant
	HasValue          bool
	Status            status.Code
	HasStatus         bool
	SourceTimestamp   time.Time
	HasSourceTime     bool
	ServerTimestamp   time.Time
	HasServerTime     bool
	SourcePicoseconds uint16
	ServerPicoseconds uint16
}

// NewDataValue builds a DataValue carrying only a value, defaulting Status to
// Good and both timestamps to now — the common shape returned by a
// successful Read.
func NewDataValue(v Variant, now time.Time) DataValue {
	return DataValue{
		Value: v, HasValue: true,
		Status: status.Good, HasStatus: true,
		SourceTimestamp: now, HasSourceTime: true,
		ServerTimestamp: now, HasServerTime: true,
	}
}

// NewStatusOnlyDataValue builds a DataValue carrying only a StatusCode, the
// shape returned when an attribute read fails.
func NewStatusOnlyDataValue(code status.Code) DataValue {
	return DataValue{Status: code, HasStatus: true}
}

// EncodeDataValue writes the encoding mask followed by whichever fields are
// present.
func EncodeDataValue(w io.Writer, dv DataValue) error {
	mask := byte(0)
	if dv.HasValue {
		mask |= dataValueValueBit
	}
	if dv.HasStatus {
		mask |= dataValueStatusBit
	}
	if dv.HasSourceTime {
		mask |= dataValueSourceTimestampBit
	}
	if dv.HasServerTime {
		mask |= dataValueServerTimestampBit
	}
	if dv.SourcePicoseconds != 0 {
		mask |= dataValueSourcePicosecondsBit
	}
	if dv.ServerPicoseconds != 0 {
		mask |= dataValueServerPicosecondsBit
	}
	if err := EncodeByte(w, mask); err != nil {
		return err
	}
	if mask&dataValueValueBit != 0 {
		if err := EncodeVariant(w, dv.Value); err != nil {
			return err
		}
	}
	if mask&dataValueStatusBit != 0 {
		if err := EncodeStatusCode(w, dv.Status); err != nil {
			return err
		}
	}
	if mask&dataValueSourceTimestampBit != 0 {
		if err := EncodeDateTime(w, dv.SourceTimestamp); err != nil {
			return err
		}
	}
	if mask&dataValueServerTimestampBit != 0 {
		if err := EncodeDateTime(w, dv.ServerTimestamp); err != nil {
			return err
		}
	}
	if mask&dataValueSourcePicosecondsBit != 0 {
		if err := EncodeUint16(w, dv.SourcePicoseconds); err != nil {
			return err
		}
	}
	if mask&dataValueServerPicosecondsBit != 0 {
		if err := EncodeUint16(w, dv.ServerPicoseconds); err != nil {
			return err
		}
	}
	return nil
}

// DecodeDataValue reads a DataValue.
func DecodeDataValue(r io.Reader) (DataValue, error) {
	mask, err := DecodeByte(r)
	if err != nil {
		return DataValue{}, errs.NewEncodingError("bin.decode_data_value", status.BadDecodingError, err)
	}
	var dv DataValue
	if mask&dataValueValueBit != 0 {
		v, err := DecodeVariant(r)
		if err != nil {
			return DataValue{}, err
		}
		dv.Value = v
		dv.HasValue = true
	}
	if mask&dataValueStatusBit != 0 {
		code, err := DecodeStatusCode(r)
		if err != nil {
			return DataValue{}, err
		}
		dv.Status = code
		dv.HasStatus = true
	}
	if mask&dataValueSourceTimestampBit != 0 {
		t, err := DecodeDateTime(r)
		if err != nil {
			return DataValue{}, err
		}
		dv.SourceTimestamp = t
		dv.HasSourceTime = true
	}
	if mask&dataValueServerTimestampBit != 0 {
		t, err := DecodeDateTime(r)
		if err != nil {
			return DataValue{}, err
		}
		dv.ServerTimestamp = t
		dv.HasServerTime = true
	}
	if mask&dataValueSourcePicosecondsBit != 0 {
		p, err := DecodeUint16(r)
		if err != nil {
			return DataValue{}, err
		}
		dv.SourcePicoseconds = p
	}
	if mask&dataValueServerPicosecondsBit != 0 {
		p, err := DecodeUint16(r)
		if err != nil {
			return DataValue{}, err
		}
		dv.ServerPicoseconds = p
	}
	return dv, nil
}

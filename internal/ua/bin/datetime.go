package bin

import (
	"io"
	"time"
)

// uaEpoch is 1601-01-01 00:00:00 UTC, the origin of OPC UA DateTime ticks.
var uaEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

const ticksPerSecond = int64(10_000_000) // 100ns ticks

// EncodeDateTime writes t as 100ns ticks since 1601-01-01 UTC (a plain
// int64). The zero time.Time encodes as 0.
func EncodeDateTime(w io.Writer, t time.Time) error {
	if t.IsZero() {
		return EncodeInt64(w, 0)
	}
	ticks := (t.Unix()-uaEpoch.Unix())*ticksPerSecond + int64(t.Nanosecond())/100
	return EncodeInt64(w, ticks)
}

// DecodeDateTime reads a UA DateTime and returns the corresponding UTC
// time.Time. A tick value of 0 decodes to the zero time.Time.
func DecodeDateTime(r io.Reader) (time.Time, error) {
	ticks, err := DecodeInt64(r)
	if err != nil {
		return time.Time{}, err
	}
	if ticks == 0 {
		return time.Time{}, nil
	}
	return time.Unix(ticks/ticksPerSecond+uaEpoch.Unix(), (ticks%ticksPerSecond)*100).UTC(), nil
}

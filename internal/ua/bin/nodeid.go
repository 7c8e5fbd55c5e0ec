package bin

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// NodeId identifier encoding discriminators (UA Binary Part 6 §5.2.2.9).
const (
	nodeIDTwoByte   = 0x00
	nodeIDFourByte  = 0x01
	nodeIDNumeric   = 0x02
	nodeIDString    = 0x03
	nodeIDGuid      = 0x04
	nodeIDByteString = 0x05
)

// IdentifierKind tags which concrete type NodeId.Identifier holds.
type IdentifierKind uint8

const (
	IdentifierNumeric IdentifierKind = iota
	IdentifierString
	IdentifierGUID
	IdentifierOpaque
)

// NodeId is the two-part identifier (namespace index + identifier) naming a
// node in the address space. Exactly one of the Numeric/String/GUID/Opaque
// fields is meaningful, selected by Kind.
type NodeId struct {
	Namespace uint16
	Kind      IdentifierKind
	Numeric   uint32
	Str       string
	GUID      uuid.UUID
	Opaque    []byte
}

// NewNumericNodeId builds a NodeId with a numeric identifier.
func NewNumericNodeId(ns uint16, id uint32) NodeId {
	return NodeId{Namespace: ns, Kind: IdentifierNumeric, Numeric: id}
}

// NewStringNodeId builds a NodeId with a string identifier.
func NewStringNodeId(ns uint16, id string) NodeId {
	return NodeId{Namespace: ns, Kind: IdentifierString, Str: id}
}

// String renders the NodeId in the conventional ns=N;i=V / ns=N;s=V form.
func (n NodeId) String() string {
	switch n.Kind {
	case IdentifierString:
		return fmt.Sprintf("ns=%d;s=%s", n.Namespace, n.Str)
	case IdentifierGUID:
		return fmt.Sprintf("ns=%d;g=%s", n.Namespace, n.GUID)
	case IdentifierOpaque:
		return fmt.Sprintf("ns=%d;b=%x", n.Namespace, n.Opaque)
	default:
		return fmt.Sprintf("ns=%d;i=%d", n.Namespace, n.Numeric)
	}
}

// Equal reports whether two NodeIds name the same node. A NodeId appears
// at most once in the address space, so this is the key comparison behind
// every map keyed on NodeId.
func (n NodeId) Equal(o NodeId) bool {
	if n.Namespace != o.Namespace || n.Kind != o.Kind {
		return false
	}
	switch n.Kind {
	case IdentifierString:
		return n.Str == o.Str
	case IdentifierGUID:
		return n.GUID == o.GUID
	case IdentifierOpaque:
		return string(n.Opaque) == string(o.Opaque)
	default:
		return n.Numeric == o.Numeric
	}
}

// MapKey returns a comparable value suitable for use as a Go map key, since
// NodeId itself is not comparable (it embeds a []byte).
func (n NodeId) MapKey() any {
	switch n.Kind {
	case IdentifierString:
		return fmt.Sprintf("s:%d:%s", n.Namespace, n.Str)
	case IdentifierGUID:
		return fmt.Sprintf("g:%d:%s", n.Namespace, n.GUID)
	case IdentifierOpaque:
		return fmt.Sprintf("b:%d:%x", n.Namespace, n.Opaque)
	default:
		return fmt.Sprintf("i:%d:%d", n.Namespace, n.Numeric)
	}
}

// EncodeNodeId writes a NodeId using the most compact discriminator that
// fits the value: two-byte form when namespace is 0 and the numeric id fits
// a byte, four-byte form when namespace fits a byte and the id fits a
// uint16, full numeric form otherwise, or one of the string/guid/bytestring
// forms for non-numeric identifiers.
func EncodeNodeId(w io.Writer, n NodeId) error {
	switch n.Kind {
	case IdentifierNumeric:
		switch {
		case n.Namespace == 0 && n.Numeric <= 0xFF:
			if err := EncodeByte(w, nodeIDTwoByte); err != nil {
				return err
			}
			return EncodeByte(w, byte(n.Numeric))
		case n.Namespace <= 0xFF && n.Numeric <= 0xFFFF:
			if err := EncodeByte(w, nodeIDFourByte); err != nil {
				return err
			}
			if err := EncodeByte(w, byte(n.Namespace)); err != nil {
				return err
			}
			return EncodeUint16(w, uint16(n.Numeric))
		default:
			if err := EncodeByte(w, nodeIDNumeric); err != nil {
				return err
			}
			if err := EncodeUint16(w, n.Namespace); err != nil {
				return err
			}
			return EncodeUint32(w, n.Numeric)
		}
	case IdentifierString:
		if err := EncodeByte(w, nodeIDString); err != nil {
			return err
		}
		if err := EncodeUint16(w, n.Namespace); err != nil {
			return err
		}
		s := n.Str
		return EncodeString(w, &s)
	case IdentifierGUID:
		if err := EncodeByte(w, nodeIDGuid); err != nil {
			return err
		}
		if err := EncodeUint16(w, n.Namespace); err != nil {
			return err
		}
		b, err := n.GUID.MarshalBinary()
		if err != nil {
			return errs.NewEncodingError("bin.encode_node_id", status.BadEncodingError, err)
		}
		if _, err := w.Write(b); err != nil {
			return errs.NewEncodingError("bin.encode_node_id", status.BadEncodingError, err)
		}
		return nil
	case IdentifierOpaque:
		if err := EncodeByte(w, nodeIDByteString); err != nil {
			return err
		}
		if err := EncodeUint16(w, n.Namespace); err != nil {
			return err
		}
		return EncodeByteString(w, n.Opaque)
	default:
		return errs.NewEncodingError("bin.encode_node_id", status.BadEncodingError,
			fmt.Errorf("unknown identifier kind %d", n.Kind))
	}
}

// DecodeNodeId reads a NodeId, dispatching on the 1-byte discriminator.
func DecodeNodeId(r io.Reader) (NodeId, error) {
	disc, err := DecodeByte(r)
	if err != nil {
		return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
	}
	switch disc {
	case nodeIDTwoByte:
		id, err := DecodeByte(r)
		if err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		return NewNumericNodeId(0, uint32(id)), nil
	case nodeIDFourByte:
		ns, err := DecodeByte(r)
		if err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		id, err := DecodeUint16(r)
		if err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		return NewNumericNodeId(uint16(ns), uint32(id)), nil
	case nodeIDNumeric:
		ns, err := DecodeUint16(r)
		if err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		id, err := DecodeUint32(r)
		if err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		return NewNumericNodeId(ns, id), nil
	case nodeIDString:
		ns, err := DecodeUint16(r)
		if err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		s, err := DecodeString(r)
		if err != nil {
			return NodeId{}, err
		}
		var str string
		if s != nil {
			str = *s
		}
		return NewStringNodeId(ns, str), nil
	case nodeIDGuid:
		ns, err := DecodeUint16(r)
		if err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		var raw [16]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		id, err := uuid.FromBytes(raw[:])
		if err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		return NodeId{Namespace: ns, Kind: IdentifierGUID, GUID: id}, nil
	case nodeIDByteString:
		ns, err := DecodeUint16(r)
		if err != nil {
			return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError, err)
		}
		b, err := DecodeByteString(r)
		if err != nil {
			return NodeId{}, err
		}
		return NodeId{Namespace: ns, Kind: IdentifierOpaque, Opaque: b}, nil
	default:
		return NodeId{}, errs.NewEncodingError("bin.decode_node_id", status.BadDecodingError,
			fmt.Errorf("unknown node id discriminator 0x%02x", disc))
	}
}

package bin

import (
	"io"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// QualifiedName is a namespace-scoped name (used for BrowseName).
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// LocalizedText is a locale/text pair (used for DisplayName, Description,
// InverseName). Encoding mask bit0 = locale present, bit1 = text present,
// mirroring how Variant's own optional fields are encoded.
type LocalizedText struct {
	Locale string
	Text   string
}

const (
	localizedTextLocaleBit = 0x01
	localizedTextTextBit   = 0x02
)

// EncodeQualifiedName writes NamespaceIndex then Name.
func EncodeQualifiedName(w io.Writer, q QualifiedName) error {
	if err := EncodeUint16(w, q.NamespaceIndex); err != nil {
		return err
	}
	name := q.Name
	return EncodeString(w, &name)
}

// DecodeQualifiedName reads a QualifiedName.
func DecodeQualifiedName(r io.Reader) (QualifiedName, error) {
	ns, err := DecodeUint16(r)
	if err != nil {
		return QualifiedName{}, errs.NewEncodingError("bin.decode_qualified_name", status.BadDecodingError, err)
	}
	s, err := DecodeString(r)
	if err != nil {
		return QualifiedName{}, err
	}
	q := QualifiedName{NamespaceIndex: ns}
	if s != nil {
		q.Name = *s
	}
	return q, nil
}

// EncodeLocalizedText writes the encoding mask followed by whichever of
// Locale/Text are non-empty.
func EncodeLocalizedText(w io.Writer, t LocalizedText) error {
	mask := byte(0)
	if t.Locale != "" {
		mask |= localizedTextLocaleBit
	}
	if t.Text != "" {
		mask |= localizedTextTextBit
	}
	if err := EncodeByte(w, mask); err != nil {
		return err
	}
	if mask&localizedTextLocaleBit != 0 {
		locale := t.Locale
		if err := EncodeString(w, &locale); err != nil {
			return err
		}
	}
	if mask&localizedTextTextBit != 0 {
		text := t.Text
		if err := EncodeString(w, &text); err != nil {
			return err
		}
	}
	return nil
}

// DecodeLocalizedText reads a LocalizedText.
func DecodeLocalizedText(r io.Reader) (LocalizedText, error) {
	mask, err := DecodeByte(r)
	if err != nil {
		return LocalizedText{}, errs.NewEncodingError("bin.decode_localized_text", status.BadDecodingError, err)
	}
	var t LocalizedText
	if mask&localizedTextLocaleBit != 0 {
		s, err := DecodeString(r)
		if err != nil {
			return LocalizedText{}, err
		}
		if s != nil {
			t.Locale = *s
		}
	}
	if mask&localizedTextTextBit != 0 {
		s, err := DecodeString(r)
		if err != nil {
			return LocalizedText{}, err
		}
		if s != nil {
			t.Text = *s
		}
	}
	return t, nil
}

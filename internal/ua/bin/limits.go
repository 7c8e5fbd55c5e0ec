// Package bin implements the UA Binary encoding (OPC UA Part 6): the
// little-endian primitive, string, array, NodeId, DateTime, Variant, and
// DataValue codecs every wire record in this server is built from. Every
// type here exposes the same shape: Encode(w, v) error / Decode(r)
// (v, error), with errors wrapped through internal/errors carrying a
// StatusCode instead of a bare string.
package bin

// Wire limits enforced by the decoders in this package; MaxCertificateLength
// is enforced by internal/pki when certificates are loaded.
const (
	MaxArrayLength      = 1000
	MaxStringLength     = 65536
	MaxByteStringLength = 65536
	MaxCertificateLength = 32768
)

// nullLength is the signed 32-bit length prefix that denotes a null string,
// byte string, or absent array.
const nullLength int32 = -1

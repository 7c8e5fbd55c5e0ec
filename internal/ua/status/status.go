// Package status defines the OPC UA StatusCode wire values used throughout
// the server core. StatusCode is a plain uint32; the top two bits carry the
// severity (00 Good, 01 Uncertain, 10 Bad) per Part 4 of the specification.
package status

import "fmt"

// Code is a wire-stable OPC UA StatusCode.
type Code uint32

// Severity bits, masked from the top of a Code.
const severityMask = 0xC0000000

const (
	severityGood      = 0x00000000
	severityUncertain = 0x40000000
	severityBad       = 0x80000000
)

// IsGood reports whether code carries no error or uncertainty bit.
func (c Code) IsGood() bool { return uint32(c)&severityMask == severityGood }

// IsUncertain reports whether code carries the Uncertain severity bit.
func (c Code) IsUncertain() bool { return uint32(c)&severityMask == severityUncertain }

// IsBad reports whether code carries the Bad severity bit.
func (c Code) IsBad() bool { return uint32(c)&severityMask == severityBad }

func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(0x%08X)", uint32(c))
}

// Well-known codes. Good is the zero value. The Bad* subset below covers
// the protocol, address-space and dispatch layers; values follow the
// Part 4 status code table.
const (
	Good Code = 0x00000000

	// Framing / transport (handshake FSM, message buffer)
	BadTcpServerTooBusy      Code = 0x807B0000
	BadTcpMessageTypeInvalid Code = 0x807C0000
	BadTcpSecureChannelUnknown Code = 0x807D0000
	BadTcpMessageTooLarge    Code = 0x807E0000
	BadTcpNotEnoughResources Code = 0x807F0000
	BadTcpInternalError      Code = 0x80800000
	BadTcpEndpointUrlInvalid Code = 0x80810000
	BadCommunicationError    Code = 0x80050000
	BadRequestTooLarge       Code = 0x80B80000
	BadResponseTooLarge      Code = 0x80B90000

	// Security / secure channel
	BadSecurityChecksFailed      Code = 0x80130000
	BadSecureChannelIdInvalid    Code = 0x80230000
	BadSecureChannelClosed       Code = 0x80860000
	BadSecurityTokenRejected     Code = 0x80220000
	BadSequenceNumberInvalid     Code = 0x80290000

	// Session
	BadSessionIdInvalid     Code = 0x80250000
	BadSessionClosed        Code = 0x80260000
	BadSessionNotActivated  Code = 0x80270000

	// Service dispatch
	BadNothingToDo        Code = 0x800F0000
	BadTooManyOperations  Code = 0x80100000
	BadTypeMismatch       Code = 0x80740000
	BadNotWritable        Code = 0x803D0000
	BadNodeIdUnknown      Code = 0x80340000
	BadNodeIdInvalid      Code = 0x80330000
	BadAttributeIdInvalid Code = 0x80350000
	BadMethodInvalid      Code = 0x80400000
	BadArgumentsMissing   Code = 0x80AF0000
	BadInvalidArgument    Code = 0x80AB0000
	BadOutOfRange         Code = 0x803B0000
	BadUserAccessDenied   Code = 0x801F0000

	// Encoding / codec layer
	BadDecodingError            Code = 0x80070000
	BadEncodingError            Code = 0x80060000
	BadEncodingLimitsExceeded   Code = 0x80080000

	// Generic
	BadUnexpectedError Code = 0x80010000
	BadInternalError   Code = 0x80020000
	BadInvalidState    Code = 0x80E10000
	BadNotImplemented  Code = 0x80040000
	BadTimeout         Code = 0x800A0000
)

var names = map[Code]string{
	Good:                       "Good",
	BadTcpServerTooBusy:        "BadTcpServerTooBusy",
	BadTcpMessageTypeInvalid:   "BadTcpMessageTypeInvalid",
	BadTcpSecureChannelUnknown: "BadTcpSecureChannelUnknown",
	BadTcpMessageTooLarge:      "BadTcpMessageTooLarge",
	BadTcpNotEnoughResources:   "BadTcpNotEnoughResources",
	BadTcpInternalError:        "BadTcpInternalError",
	BadTcpEndpointUrlInvalid:   "BadTcpEndpointUrlInvalid",
	BadCommunicationError:      "BadCommunicationError",
	BadRequestTooLarge:         "BadRequestTooLarge",
	BadResponseTooLarge:        "BadResponseTooLarge",
	BadSecurityChecksFailed:    "BadSecurityChecksFailed",
	BadSecureChannelIdInvalid:  "BadSecureChannelIdInvalid",
	BadSecureChannelClosed:     "BadSecureChannelClosed",
	BadSecurityTokenRejected:   "BadSecurityTokenRejected",
	BadSequenceNumberInvalid:   "BadSequenceNumberInvalid",
	BadSessionIdInvalid:        "BadSessionIdInvalid",
	BadSessionClosed:           "BadSessionClosed",
	BadSessionNotActivated:     "BadSessionNotActivated",
	BadNothingToDo:             "BadNothingToDo",
	BadTooManyOperations:       "BadTooManyOperations",
	BadTypeMismatch:            "BadTypeMismatch",
	BadNotWritable:             "BadNotWritable",
	BadNodeIdUnknown:           "BadNodeIdUnknown",
	BadNodeIdInvalid:           "BadNodeIdInvalid",
	BadAttributeIdInvalid:      "BadAttributeIdInvalid",
	BadMethodInvalid:           "BadMethodInvalid",
	BadArgumentsMissing:        "BadArgumentsMissing",
	BadInvalidArgument:         "BadInvalidArgument",
	BadOutOfRange:              "BadOutOfRange",
	BadUserAccessDenied:        "BadUserAccessDenied",
	BadDecodingError:           "BadDecodingError",
	BadEncodingError:           "BadEncodingError",
	BadEncodingLimitsExceeded:  "BadEncodingLimitsExceeded",
	BadUnexpectedError:         "BadUnexpectedError",
	BadInternalError:           "BadInternalError",
	BadInvalidState:            "BadInvalidState",
	BadNotImplemented:          "BadNotImplemented",
	BadTimeout:                 "BadTimeout",
}

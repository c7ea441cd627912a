// Package message implements the application message format carried over one
// or more radio packets.
//
// Wire format:
//
//	Address (4, BE) | B9 (1) | LenLo (1) | Blocks (Len) | CRC-16 (2, BE)
//
// where B9 = FollowOn<<7 | (Sequence & 0xf)<<2 | (Len>>8 & 0x3).
//
// Decoding is resumable: Decode returns ErrNeedsMoreData while the buffer is
// shorter than the length announced by the header, so the caller can fetch a
// continuation packet and try again.
package message

import "fmt"

// BlockType identifies a message block. It is the first byte of every block.
type BlockType uint8

const (
	// BlockTypeVersionResponse is returned by a pod during address assignment.
	BlockTypeVersionResponse BlockType = 0x01

	// BlockTypePodInfoResponse carries detailed pod information.
	BlockTypePodInfoResponse BlockType = 0x02

	// BlockTypeSetupPod configures a freshly addressed pod.
	BlockTypeSetupPod BlockType = 0x03

	// BlockTypeErrorResponse is the pod's rejection of a request. A reply whose
	// first block has this type means the pod did not consume the message
	// sequence number.
	BlockTypeErrorResponse BlockType = 0x06

	// BlockTypeAssignAddress assigns a pod its radio address.
	BlockTypeAssignAddress BlockType = 0x07

	// BlockTypeGetStatus requests a status response.
	BlockTypeGetStatus BlockType = 0x0e

	// BlockTypeStatusResponse is the pod's fixed-length status reply. It has
	// no length byte.
	BlockTypeStatusResponse BlockType = 0x1d
)

// String returns a human-readable name for the block type.
func (t BlockType) String() string {
	switch t {
	case BlockTypeVersionResponse:
		return "VersionResponse"
	case BlockTypePodInfoResponse:
		return "PodInfoResponse"
	case BlockTypeSetupPod:
		return "SetupPod"
	case BlockTypeErrorResponse:
		return "ErrorResponse"
	case BlockTypeAssignAddress:
		return "AssignAddress"
	case BlockTypeGetStatus:
		return "GetStatus"
	case BlockTypeStatusResponse:
		return "StatusResponse"
	default:
		return fmt.Sprintf("Block(%#02x)", uint8(t))
	}
}

// IsFixedLength reports whether blocks of this type omit the length byte.
func (t BlockType) IsFixedLength() bool {
	return t == BlockTypeStatusResponse
}

// StatusRequestType selects what a GetStatus block asks for.
type StatusRequestType uint8

const (
	// StatusRequestNormal asks for a regular status response.
	StatusRequestNormal StatusRequestType = 0x00

	// StatusRequestBolusCancelResult asks for the result of a bolus cancel.
	StatusRequestBolusCancelResult StatusRequestType = 0x01
)

// ErrorCodeBadNonce is the ErrorResponse code for a nonce resync request.
// Only this code carries a nonce search key.
const ErrorCodeBadNonce uint8 = 0x14

// Wire format constants.
const (
	// AddressSize is the size of the address field.
	AddressSize = 4

	// HeaderSize is address, B9 and the low length byte.
	HeaderSize = AddressSize + 2

	// CRCSize is the size of the trailing CRC-16.
	CRCSize = 2

	// MaxBodySize is the largest block area the 10-bit length can describe.
	MaxBodySize = 0x3ff

	// MaxBlockBodySize is the largest body a one-byte block length can describe.
	MaxBlockBodySize = 0xff

	// SequenceModulus is the size of the message sequence space (4 bits).
	SequenceModulus = 16

	// StatusResponseSize is the full size of a StatusResponse block.
	StatusResponseSize = 10

	sequenceMask  = SequenceModulus - 1
	sequenceShift = 2
	followOnFlag  = 0x80
	lenHighMask   = 0x03
)

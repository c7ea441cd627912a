// Package packet implements the radio frame format of the pod link.
//
// A packet is one physical radio frame:
//
//	Address (4, big endian) | Type<<5 | Sequence (1) | Data (0-31) | CRC-8 (1)
//
// The packet layer is stateless. Sequence numbers are five bits wide and wrap
// modulo 32; keeping them in step with the peer is the job of pkg/exchange.
package packet

// FrameType identifies the role of a radio frame. It occupies the top three
// bits of the fifth byte.
type FrameType uint8

const (
	// FrameTypePod marks a frame originated by the pod (device).
	FrameTypePod FrameType = 0b111

	// FrameTypePDM marks a frame originated by the controller. Only the first
	// fragment of a controller message uses this type.
	FrameTypePDM FrameType = 0b101

	// FrameTypeCon marks a continuation frame carrying a later fragment of a
	// message already in progress.
	FrameTypeCon FrameType = 0b100

	// FrameTypeAck marks an acknowledgement. Its data is the 4-byte ack address.
	FrameTypeAck FrameType = 0b010
)

// String returns the short name used in radio captures.
func (t FrameType) String() string {
	switch t {
	case FrameTypePod:
		return "POD"
	case FrameTypePDM:
		return "PDM"
	case FrameTypeCon:
		return "CON"
	case FrameTypeAck:
		return "ACK"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the frame type is a defined value.
func (t FrameType) IsValid() bool {
	switch t {
	case FrameTypePod, FrameTypePDM, FrameTypeCon, FrameTypeAck:
		return true
	default:
		return false
	}
}

// Wire format constants.
const (
	// AddressSize is the size of the address field.
	AddressSize = 4

	// HeaderSize is address plus the type/sequence byte.
	HeaderSize = AddressSize + 1

	// CRCSize is the size of the trailing CRC-8.
	CRCSize = 1

	// MinSize is the smallest decodable frame: header and CRC, no data.
	MinSize = HeaderSize + CRCSize

	// MaxDataSize is the largest data field one frame can carry.
	MaxDataSize = 31

	// SequenceModulus is the size of the packet sequence space (5 bits).
	SequenceModulus = 32

	// BroadcastAddress is the address used before a pod has been assigned one.
	BroadcastAddress uint32 = 0xffffffff

	sequenceMask = SequenceModulus - 1
	typeShift    = 5
)

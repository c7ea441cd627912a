package packet

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/backkem/podlink/pkg/crc"
)

// Packet is one radio frame.
type Packet struct {
	Address  uint32
	Type     FrameType
	Sequence uint8
	Data     []byte
}

// New builds a packet, masking the sequence number to five bits and keeping at
// most MaxDataSize bytes of data. Callers fragmenting a message use
// len(p.Data) to learn how much was consumed.
func New(address uint32, frameType FrameType, sequence uint8, data []byte) Packet {
	if len(data) > MaxDataSize {
		data = data[:MaxDataSize]
	}
	return Packet{
		Address:  address,
		Type:     frameType,
		Sequence: sequence & sequenceMask,
		Data:     data,
	}
}

// NewAck builds an acknowledgement carrying ackAddress as its data.
func NewAck(address uint32, sequence uint8, ackAddress uint32) Packet {
	var data [AddressSize]byte
	binary.BigEndian.PutUint32(data[:], ackAddress)
	return New(address, FrameTypeAck, sequence, data[:])
}

// Size returns the encoded size of the packet.
func (p Packet) Size() int {
	return HeaderSize + len(p.Data) + CRCSize
}

// Encode returns the wire bytes of p.
func Encode(p Packet) []byte {
	buf := make([]byte, p.Size())
	binary.BigEndian.PutUint32(buf[0:AddressSize], p.Address)
	buf[AddressSize] = uint8(p.Type)<<typeShift | p.Sequence&sequenceMask
	n := copy(buf[HeaderSize:], p.Data)
	buf[HeaderSize+n] = crc.Checksum8(buf[:HeaderSize+n])
	return buf
}

// Decode parses one radio frame. The returned packet's Data does not alias data.
//
// Radios may hand back bytes after the CRC. A frame whose last byte checks is
// taken whole; otherwise the shortest length whose CRC-8 matches the byte
// after it wins and the rest is discarded.
func Decode(data []byte) (Packet, error) {
	if len(data) < MinSize {
		return Packet{}, ErrInsufficientData
	}

	last, ok := crcOffset(data)
	if !ok {
		return Packet{}, ErrIntegrityCheckFailed
	}

	frameType := FrameType(data[AddressSize] >> typeShift)
	if !frameType.IsValid() {
		return Packet{}, fmt.Errorf("%w: %#03b", ErrUnknownFrameType, uint8(frameType))
	}

	p := Packet{
		Address:  binary.BigEndian.Uint32(data[0:AddressSize]),
		Type:     frameType,
		Sequence: data[AddressSize] & sequenceMask,
		Data:     make([]byte, last-HeaderSize),
	}
	copy(p.Data, data[HeaderSize:last])
	return p, nil
}

// crcOffset returns the index of the frame's CRC byte within data.
func crcOffset(data []byte) (int, bool) {
	end := len(data) - CRCSize
	if end <= HeaderSize+MaxDataSize && crc.Checksum8(data[:end]) == data[end] {
		return end, true
	}
	limit := min(end-1, HeaderSize+MaxDataSize)
	for n := HeaderSize; n <= limit; n++ {
		if crc.Checksum8(data[:n]) == data[n] {
			return n, true
		}
	}
	return 0, false
}

// AckAddress returns the address carried by an acknowledgement packet.
func (p Packet) AckAddress() (uint32, bool) {
	if p.Type != FrameTypeAck || len(p.Data) < AddressSize {
		return 0, false
	}
	return binary.BigEndian.Uint32(p.Data), true
}

// String formats the packet the way radio captures are logged.
func (p Packet) String() string {
	return fmt.Sprintf("ID:%08x PTYPE:%s SEQ:%02d DATA:%s",
		p.Address, p.Type, p.Sequence, hex.EncodeToString(p.Data))
}

// NextSequence returns seq+n modulo 32.
func NextSequence(seq uint8, n int) uint8 {
	return uint8((int(seq) + n) & sequenceMask)
}

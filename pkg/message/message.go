package message

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/backkem/podlink/pkg/crc"
)

// Message is an application message exchanged with a pod.
type Message struct {
	// Address is the pod radio address.
	Address uint32

	// Sequence is the 4-bit message sequence number.
	Sequence uint8

	// ExpectFollowOn tells the receiver another message follows immediately.
	ExpectFollowOn bool

	// Blocks in wire order.
	Blocks []Block
}

// New creates a message with the sequence masked to 4 bits.
func New(address uint32, sequence uint8, blocks ...Block) *Message {
	return &Message{
		Address:  address,
		Sequence: sequence & sequenceMask,
		Blocks:   blocks,
	}
}

// IsErrorResponse reports whether the first block is an ErrorResponse.
func (m *Message) IsErrorResponse() bool {
	return len(m.Blocks) > 0 && m.Blocks[0].Type() == BlockTypeErrorResponse
}

// String renders the message for logs and the parse command.
func (m *Message) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Message(%08x seq:%d", m.Address, m.Sequence)
	if m.ExpectFollowOn {
		sb.WriteString(" followOn")
	}
	for _, b := range m.Blocks {
		sb.WriteString(" ")
		if s, ok := b.(fmt.Stringer); ok {
			sb.WriteString(s.String())
		} else {
			sb.WriteString(b.Type().String())
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// Encode returns the wire form of m. It fails with ErrBlockTooLong when a
// length-prefixed block body does not fit its length byte, and with
// ErrMessageTooLong when the blocks exceed MaxBodySize.
func Encode(m *Message) ([]byte, error) {
	var body []byte
	for _, b := range m.Blocks {
		enc := b.Encode()
		if !b.Type().IsFixedLength() && len(enc)-2 > MaxBlockBodySize {
			return nil, fmt.Errorf("%w: %v has %d bytes", ErrBlockTooLong, b.Type(), len(enc)-2)
		}
		body = append(body, enc...)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(body))
	}

	out := make([]byte, HeaderSize, HeaderSize+len(body)+CRCSize)
	binary.BigEndian.PutUint32(out, m.Address)
	b9 := (m.Sequence&sequenceMask)<<sequenceShift | byte(len(body)>>8)&lenHighMask
	if m.ExpectFollowOn {
		b9 |= followOnFlag
	}
	out[4] = b9
	out[5] = byte(len(body))
	out = append(out, body...)
	return binary.BigEndian.AppendUint16(out, crc.Checksum16(out)), nil
}

// Decode parses a message from data.
//
// It returns ErrNeedsMoreData while data is shorter than the announced
// message, and an error matching ErrMalformed when the CRC or a block is bad.
// Bytes after the CRC are ignored.
func Decode(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, ErrNeedsMoreData
	}
	b9 := data[4]
	bodyLen := int(b9&lenHighMask)<<8 | int(data[5])
	total := HeaderSize + bodyLen + CRCSize
	if len(data) < total {
		return nil, ErrNeedsMoreData
	}

	want := binary.BigEndian.Uint16(data[total-CRCSize : total])
	if got := crc.Checksum16(data[:total-CRCSize]); got != want {
		return nil, &DecodeError{
			Offset: -1,
			Err:    fmt.Errorf("%w: computed %#04x, received %#04x", ErrInvalidCRC, got, want),
		}
	}

	m := &Message{
		Address:        binary.BigEndian.Uint32(data),
		Sequence:       (b9 >> sequenceShift) & sequenceMask,
		ExpectFollowOn: b9&followOnFlag != 0,
	}
	body := data[HeaderSize : HeaderSize+bodyLen]
	for off := 0; off < len(body); {
		b, n, err := decodeBlock(body[off:])
		if err != nil {
			return nil, &DecodeError{Offset: off, Err: err}
		}
		m.Blocks = append(m.Blocks, b)
		off += n
	}
	return m, nil
}

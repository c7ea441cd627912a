package message

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Block is one command or response inside a message.
type Block interface {
	// Type returns the block type byte.
	Type() BlockType

	// Encode returns the full wire form of the block, type byte included.
	Encode() []byte
}

// ErrorResponse is a pod's rejection of a request.
//
// The bad-nonce variant (Code == ErrorCodeBadNonce) carries NonceSearchKey;
// every other code carries FaultCode and Progress.
type ErrorResponse struct {
	Code           uint8
	NonceSearchKey uint16
	FaultCode      uint8
	Progress       uint8
}

// Type implements Block.
func (*ErrorResponse) Type() BlockType { return BlockTypeErrorResponse }

// IsBadNonce reports whether the pod asked for a nonce resync.
func (b *ErrorResponse) IsBadNonce() bool { return b.Code == ErrorCodeBadNonce }

// Encode implements Block.
func (b *ErrorResponse) Encode() []byte {
	out := []byte{byte(BlockTypeErrorResponse), 3, b.Code, 0, 0}
	if b.IsBadNonce() {
		binary.BigEndian.PutUint16(out[3:], b.NonceSearchKey)
	} else {
		out[3] = b.FaultCode
		out[4] = b.Progress
	}
	return out
}

func (b *ErrorResponse) String() string {
	if b.IsBadNonce() {
		return fmt.Sprintf("ErrorResponse(bad nonce, key %#04x)", b.NonceSearchKey)
	}
	return fmt.Sprintf("ErrorResponse(code %#02x, fault %#02x, progress %d)", b.Code, b.FaultCode, b.Progress)
}

func decodeErrorResponse(body []byte) (Block, error) {
	if len(body) < 3 {
		return nil, ErrBlockTooShort
	}
	b := &ErrorResponse{Code: body[0]}
	if b.IsBadNonce() {
		b.NonceSearchKey = binary.BigEndian.Uint16(body[1:3])
	} else {
		b.FaultCode = body[1]
		b.Progress = body[2]
	}
	return b, nil
}

// GetStatus asks the pod for a status response.
type GetStatus struct {
	RequestType StatusRequestType
}

// Type implements Block.
func (*GetStatus) Type() BlockType { return BlockTypeGetStatus }

// Encode implements Block.
func (b *GetStatus) Encode() []byte {
	return []byte{byte(BlockTypeGetStatus), 1, byte(b.RequestType)}
}

func decodeGetStatus(body []byte) (Block, error) {
	if len(body) < 1 {
		return nil, ErrBlockTooShort
	}
	return &GetStatus{RequestType: StatusRequestType(body[0])}, nil
}

// AssignAddress assigns a pod the given radio address.
type AssignAddress struct {
	Address uint32
}

// Type implements Block.
func (*AssignAddress) Type() BlockType { return BlockTypeAssignAddress }

// Encode implements Block.
func (b *AssignAddress) Encode() []byte {
	out := []byte{byte(BlockTypeAssignAddress), 4, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(out[2:], b.Address)
	return out
}

func decodeAssignAddress(body []byte) (Block, error) {
	if len(body) < 4 {
		return nil, ErrBlockTooShort
	}
	return &AssignAddress{Address: binary.BigEndian.Uint32(body)}, nil
}

// StatusResponse is the pod's fixed-length status reply. Body holds the nine
// bytes after the type byte; field interpretation belongs to the command layer.
type StatusResponse struct {
	Body [StatusResponseSize - 1]byte
}

// Type implements Block.
func (*StatusResponse) Type() BlockType { return BlockTypeStatusResponse }

// Encode implements Block.
func (b *StatusResponse) Encode() []byte {
	out := make([]byte, 0, StatusResponseSize)
	out = append(out, byte(BlockTypeStatusResponse))
	return append(out, b.Body[:]...)
}

func (b *StatusResponse) String() string {
	return "StatusResponse(" + hex.EncodeToString(b.Body[:]) + ")"
}

// UnknownBlock preserves a block whose type this package does not interpret.
type UnknownBlock struct {
	BlockType BlockType
	Body      []byte
}

// Type implements Block.
func (b *UnknownBlock) Type() BlockType { return b.BlockType }

// Encode implements Block.
func (b *UnknownBlock) Encode() []byte {
	out := make([]byte, 0, 2+len(b.Body))
	out = append(out, byte(b.BlockType), byte(len(b.Body)))
	return append(out, b.Body...)
}

func (b *UnknownBlock) String() string {
	return fmt.Sprintf("%v(%s)", b.BlockType, hex.EncodeToString(b.Body))
}

var blockDecoders = map[BlockType]func(body []byte) (Block, error){
	BlockTypeErrorResponse: decodeErrorResponse,
	BlockTypeGetStatus:     decodeGetStatus,
	BlockTypeAssignAddress: decodeAssignAddress,
}

// decodeBlock decodes the block at the start of data and returns it together
// with the number of bytes it occupied.
func decodeBlock(data []byte) (Block, int, error) {
	t := BlockType(data[0])
	if t.IsFixedLength() {
		if len(data) < StatusResponseSize {
			return nil, 0, ErrBlockTooShort
		}
		b := &StatusResponse{}
		copy(b.Body[:], data[1:StatusResponseSize])
		return b, StatusResponseSize, nil
	}

	if len(data) < 2 {
		return nil, 0, ErrBlockTooShort
	}
	n := 2 + int(data[1])
	if len(data) < n {
		return nil, 0, ErrBlockTooShort
	}
	body := data[2:n]

	decode, ok := blockDecoders[t]
	if !ok {
		return &UnknownBlock{BlockType: t, Body: append([]byte(nil), body...)}, n, nil
	}
	b, err := decode(body)
	if err != nil {
		return nil, 0, err
	}
	return b, n, nil
}

package podsim

import "github.com/backkem/podlink/pkg/message"

// Status is the StatusResponse body DefaultHandler reports.
var Status = [message.StatusResponseSize - 1]byte{0x18, 0x02, 0x58, 0xf8, 0x00, 0x00, 0x14, 0x6f, 0xff}

// DefaultHandler answers GetStatus with a StatusResponse, AssignAddress with
// an echo of the address, and everything else with an ErrorResponse.
func DefaultHandler(req *message.Message) []message.Block {
	if len(req.Blocks) == 0 {
		return nil
	}
	switch b := req.Blocks[0].(type) {
	case *message.GetStatus:
		return []message.Block{&message.StatusResponse{Body: Status}}
	case *message.AssignAddress:
		return []message.Block{&message.AssignAddress{Address: b.Address}}
	default:
		return []message.Block{&message.ErrorResponse{Code: 0x07}}
	}
}

// EchoHandler answers with the request's own blocks.
func EchoHandler(req *message.Message) []message.Block {
	return req.Blocks
}

// Package session holds the pod session counters and the adapters that
// persist them across restarts.
//
// A State is an immutable snapshot. The transport session replaces its
// snapshot on every change and hands the new value to an Observer, which is
// the integration point for durable storage.
package session

import (
	"fmt"

	"github.com/backkem/podlink/pkg/message"
	"github.com/backkem/podlink/pkg/packet"
)

// State is the pair of sequence counters that must survive a restart.
type State struct {
	// PacketNumber is the next packet sequence number (0-31).
	PacketNumber uint8 `msgpack:"packet" yaml:"packet" json:"packet"`

	// MessageNumber is the next message sequence number (0-15).
	MessageNumber uint8 `msgpack:"message" yaml:"message" json:"message"`
}

// NewState returns a State after range-checking both counters.
func NewState(packetNumber, messageNumber int) (State, error) {
	if packetNumber < 0 || packetNumber >= packet.SequenceModulus {
		return State{}, fmt.Errorf("%w: packet number %d", ErrInvalidState, packetNumber)
	}
	if messageNumber < 0 || messageNumber >= message.SequenceModulus {
		return State{}, fmt.Errorf("%w: message number %d", ErrInvalidState, messageNumber)
	}
	return State{PacketNumber: uint8(packetNumber), MessageNumber: uint8(messageNumber)}, nil
}

// Validate reports whether both counters are in range.
func (s State) Validate() error {
	_, err := NewState(int(s.PacketNumber), int(s.MessageNumber))
	return err
}

// AdvancePacket returns s with the packet number moved forward by n, mod 32.
func (s State) AdvancePacket(n int) State {
	s.PacketNumber = packet.NextSequence(s.PacketNumber, n)
	return s
}

// AdvanceMessage returns s with the message number moved forward by n, mod 16.
func (s State) AdvanceMessage(n int) State {
	s.MessageNumber = uint8((int(s.MessageNumber) + n) & (message.SequenceModulus - 1))
	return s
}

// WithMessageNumber returns s with the message number replaced (masked to 4 bits).
func (s State) WithMessageNumber(n uint8) State {
	s.MessageNumber = n & (message.SequenceModulus - 1)
	return s
}

func (s State) String() string {
	return fmt.Sprintf("packet:%d message:%d", s.PacketNumber, s.MessageNumber)
}

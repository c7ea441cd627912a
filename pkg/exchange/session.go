package exchange

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/podlink/pkg/message"
	"github.com/backkem/podlink/pkg/packet"
	"github.com/backkem/podlink/pkg/session"
	"github.com/backkem/podlink/pkg/transport"
)

// MessageLogger records complete messages as they cross the link.
type MessageLogger interface {
	// OnSent receives the encoded request before its first fragment goes out.
	OnSent(data []byte)

	// OnReceived receives the reassembled reply once it decodes.
	OnReceived(data []byte)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Radio is the driver used for every transmission. Required.
	Radio transport.Radio

	// Address is the pod's radio address.
	Address uint32

	// AckAddress is carried in acknowledgement frames. During pairing it is
	// the address being assigned. Zero means Address.
	AckAddress uint32

	// State is the initial counter snapshot, usually loaded from a
	// session.Store.
	State session.State

	// Observer is notified after every counter change. Optional.
	Observer session.Observer

	// MessageLogger records sent and received messages. Optional.
	MessageLogger MessageLogger

	// Params overrides the default timing. The zero value means DefaultParams.
	Params Params

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// LoggerFactory for debug output. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// Session is the transport session for one pod.
//
// A Session serializes all traffic to its pod. Send must not be called
// concurrently; overlapping calls fail with ErrSessionBusy.
type Session struct {
	radio      transport.Radio
	address    uint32
	ackAddress uint32
	params     Params
	clock      func() time.Time
	observer   session.Observer
	msgLog     MessageLogger
	log        logging.LeveledLogger

	busy  atomic.Bool
	phase atomic.Int32

	mu    sync.RWMutex
	state session.State
}

// NewSession creates a transport session.
func NewSession(config SessionConfig) (*Session, error) {
	if config.Radio == nil {
		return nil, ErrNoRadio
	}
	if err := config.State.Validate(); err != nil {
		return nil, err
	}
	params := config.Params
	if params == (Params{}) {
		params = DefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		radio:      config.Radio,
		address:    config.Address,
		ackAddress: config.AckAddress,
		params:     params,
		clock:      config.Clock,
		observer:   config.Observer,
		msgLog:     config.MessageLogger,
		state:      config.State,
	}
	if s.ackAddress == 0 {
		s.ackAddress = s.address
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("exchange")
	}
	return s, nil
}

// Address returns the pod address.
func (s *Session) Address() uint32 { return s.address }

// Params returns the session timing.
func (s *Session) Params() Params { return s.params }

// State returns a copy of the current counters.
func (s *Session) State() session.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Phase returns the current state machine phase.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

// SendBlocks stamps blocks with the pod address and the current message
// number and sends them.
func (s *Session) SendBlocks(blocks ...message.Block) (*message.Message, error) {
	return s.Send(message.New(s.address, s.State().MessageNumber, blocks...))
}

// Send transmits msg and returns the pod's reply.
//
// The session adopts msg.Sequence as its message counter. On success the
// counter advances by one unless the reply starts with an ErrorResponse
// block. Errors are ErrNoResponse, ErrUnexpectedPacketType,
// ErrPeerAcknowledged, ErrEmptyResponse, or match message.ErrMalformed.
// A msg that cannot be encoded fails with ErrInvalidMessage, wrapping
// message.ErrMessageTooLong or message.ErrBlockTooLong, before anything is
// transmitted or the counters change. A concurrent call fails with
// ErrSessionBusy.
func (s *Session) Send(msg *message.Message) (*message.Message, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrSessionBusy
	}
	defer s.busy.Store(false)
	defer s.setPhase(PhaseIdle)

	resp, err := s.send(msg)
	if err != nil {
		if s.log != nil {
			s.log.Errorf("exchange with %08x failed: %v", s.address, err)
		}
		return nil, err
	}
	return resp, nil
}

func (s *Session) send(msg *message.Message) (*message.Message, error) {
	data, err := message.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if seq := msg.Sequence & (message.SequenceModulus - 1); seq != s.State().MessageNumber {
		s.setState(s.State().WithMessageNumber(seq))
	}
	if s.log != nil {
		s.log.Debugf("send: %v", msg)
	}
	if s.msgLog != nil {
		s.msgLog.OnSent(data)
	}

	var reply packet.Packet
	for offset := 0; offset < len(data); {
		end := min(offset+packet.MaxDataSize, len(data))
		frameType := packet.FrameTypeCon
		if offset == 0 {
			frameType = packet.FrameTypePDM
		}
		if end == len(data) {
			s.setPhase(PhaseAwaitingReply)
		} else {
			s.setPhase(PhaseSending)
		}

		p := packet.New(s.address, frameType, s.State().PacketNumber, data[offset:end])
		reply, err = s.exchange(p, 0, s.params.PreambleExtension)
		if err != nil {
			return nil, err
		}
		offset = end
	}

	if reply.Type == packet.FrameTypeAck {
		if s.log != nil {
			s.log.Debugf("pod acked instead of responding: %v", reply)
		}
		return nil, ErrPeerAcknowledged
	}

	s.setPhase(PhaseReassembling)
	buf := append([]byte(nil), reply.Data...)
	var resp *message.Message
	for {
		resp, err = message.Decode(buf)
		if err == nil {
			break
		}
		if !errors.Is(err, message.ErrNeedsMoreData) {
			return nil, err
		}

		if s.log != nil {
			s.log.Trace("requesting continuation")
		}
		con, err := s.exchange(s.ackPacket(), s.params.ContinuationRepeatCount, s.params.ContinuationPreambleExtension)
		if err != nil {
			return nil, err
		}
		if con.Type != packet.FrameTypeCon {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedPacketType, con.Type)
		}
		buf = append(buf, con.Data...)
	}
	if s.msgLog != nil {
		s.msgLog.OnReceived(buf)
	}

	s.drainQuiet()

	if len(resp.Blocks) == 0 {
		return nil, ErrEmptyResponse
	}
	if !resp.IsErrorResponse() {
		s.setState(s.State().AdvanceMessage(1))
	}
	if s.log != nil {
		s.log.Debugf("recv: %v", resp)
	}
	return resp, nil
}

func (s *Session) ackPacket() packet.Packet {
	return packet.NewAck(s.address, s.State().PacketNumber, s.ackAddress)
}

// setState replaces the snapshot and notifies the observer synchronously.
func (s *Session) setState(next session.State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.OnStateChanged(next)
	}
}

func (s *Session) setPhase(p Phase) {
	if old := Phase(s.phase.Swap(int32(p))); old != p && s.log != nil {
		s.log.Tracef("phase %v -> %v", old, p)
	}
}

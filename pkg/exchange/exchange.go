package exchange

import (
	"errors"
	"fmt"
	"time"

	"github.com/backkem/podlink/pkg/packet"
	"github.com/backkem/podlink/pkg/transport"
)

// exchange transmits p until the pod answers with the next sequence number
// or the exchange timeout passes.
//
// The packet counter advances once before the first transmission and once
// more when a reply is accepted.
func (s *Session) exchange(p packet.Packet, repeatCount int, preambleExtension time.Duration) (packet.Packet, error) {
	data := packet.Encode(p)
	s.setState(s.State().AdvancePacket(1))

	start := s.clock()
	attempts := 0
	for s.clock().Sub(start) < s.params.ExchangeTimeout {
		attempts++
		reply, result, err := s.attempt(data, p, repeatCount, preambleExtension)
		switch result {
		case outcomeAccepted:
			s.setState(s.State().AdvancePacket(1))
			return reply, nil
		case outcomeNoise, outcomeTimeout:
			continue
		case outcomeRadioFailure:
			return packet.Packet{}, fmt.Errorf("%w: %w", ErrNoResponse, err)
		}
	}

	if s.log != nil {
		s.log.Debugf("no reply to %v after %d attempts", p, attempts)
	}
	return packet.Packet{}, ErrNoResponse
}

// attempt performs one radio call and classifies what came back.
func (s *Session) attempt(data []byte, sent packet.Packet, repeatCount int, preambleExtension time.Duration) (packet.Packet, outcome, error) {
	raw, err := s.radio.SendAndListen(data, repeatCount, s.params.PacketResponseTimeout, s.params.RadioRetryCount, preambleExtension)
	if errors.Is(err, transport.ErrResponseTimeout) {
		return packet.Packet{}, outcomeTimeout, nil
	}
	if err != nil {
		return packet.Packet{}, outcomeRadioFailure, err
	}

	reply, err := packet.Decode(raw)
	if err != nil {
		if s.log != nil {
			s.log.Debugf("discarding frame %x: %v", raw, err)
		}
		return packet.Packet{}, outcomeNoise, nil
	}
	if reply.Address != sent.Address {
		if s.log != nil {
			s.log.Debugf("discarding frame for %08x", reply.Address)
		}
		return packet.Packet{}, outcomeNoise, nil
	}
	if want := packet.NextSequence(sent.Sequence, 1); reply.Sequence != want {
		if s.log != nil {
			s.log.Debugf("discarding frame seq %d, want %d", reply.Sequence, want)
		}
		return packet.Packet{}, outcomeNoise, nil
	}
	return reply, outcomeAccepted, nil
}

// drainQuiet acknowledges until a full quiet window passes without hearing
// the pod. Only a decodable frame from the session address restarts the
// window; anything else is skipped and the radio listens out the remainder.
// It never fails: errors end the drain early. The ack reuses the current
// packet number, so the counters do not move.
func (s *Session) drainQuiet() {
	s.setPhase(PhaseDraining)
	data := packet.Encode(s.ackPacket())

	start := s.clock()
	quietSince := start
	for s.clock().Sub(start) < s.params.ExchangeTimeout {
		window := s.params.QuietWindow - s.clock().Sub(quietSince)
		if window <= 0 {
			return
		}
		raw, err := s.radio.SendAndListen(data, s.params.DrainRepeatCount, window, 0, s.params.ContinuationPreambleExtension)
		if errors.Is(err, transport.ErrResponseTimeout) {
			return
		}
		if err != nil {
			if s.log != nil {
				s.log.Debugf("drain ended: %v", err)
			}
			return
		}
		if p, err := packet.Decode(raw); err == nil && p.Address == s.address {
			quietSince = s.clock()
			if s.log != nil {
				s.log.Tracef("heard %v while draining", p)
			}
			continue
		}
		if s.log != nil {
			s.log.Tracef("ignored %x while draining", raw)
		}
	}
	if s.log != nil {
		s.log.Debug("drain did not go quiet before the exchange timeout")
	}
}

// Package exchange implements the transport session that carries application
// messages to a pod over a half-duplex radio.
//
// A Session owns the packet and message sequence counters. Send fragments a
// message into packets, runs one packet exchange per fragment, reassembles a
// fragmented reply by acknowledging continuation frames, then acknowledges
// until the pod goes quiet so its retransmissions cannot be mistaken for the
// next exchange. Every counter change is published to a session.Observer
// before the next radio operation.
package exchange

// Phase is the session state machine position.
//
//	Idle -> Sending -> AwaitingReply -> Reassembling -> Draining -> Idle
//
// Failures return to Idle from any phase.
type Phase int32

const (
	// PhaseIdle means no Send is in progress.
	PhaseIdle Phase = iota

	// PhaseSending means a non-final fragment is being exchanged.
	PhaseSending

	// PhaseAwaitingReply means the final fragment is out and the response
	// packet has not been accepted yet.
	PhaseAwaitingReply

	// PhaseReassembling means continuation frames are being requested.
	PhaseReassembling

	// PhaseDraining means the session is acknowledging until the pod is quiet.
	PhaseDraining
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseSending:
		return "Sending"
	case PhaseAwaitingReply:
		return "AwaitingReply"
	case PhaseReassembling:
		return "Reassembling"
	case PhaseDraining:
		return "Draining"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the phase is a defined value.
func (p Phase) IsValid() bool {
	return p >= PhaseIdle && p <= PhaseDraining
}

// outcome classifies one radio attempt inside a packet exchange.
type outcome int

const (
	// outcomeAccepted: a well-formed frame from the peer with the expected sequence.
	outcomeAccepted outcome = iota

	// outcomeNoise: a frame was heard but it is corrupt, foreign or stale.
	outcomeNoise

	// outcomeTimeout: the radio heard nothing.
	outcomeTimeout

	// outcomeRadioFailure: the driver failed for a reason other than silence.
	outcomeRadioFailure
)

func (o outcome) String() string {
	switch o {
	case outcomeAccepted:
		return "accepted"
	case outcomeNoise:
		return "noise"
	case outcomeTimeout:
		return "timeout"
	case outcomeRadioFailure:
		return "radio failure"
	default:
		return "unknown"
	}
}

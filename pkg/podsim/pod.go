// Package podsim simulates the pod side of the radio link.
//
// Pod is a frame-level state machine: Handle takes one frame from the
// controller and returns the frame the pod would transmit in reply, if any.
// It reassembles fragmented requests, fragments long responses into a POD
// frame followed by CON frames released one per acknowledgement, and answers
// a repeated frame by repeating its last transmission. Start runs the same
// machine over a transport.Endpoint, optionally retransmitting the last frame
// until the controller acknowledges it.
package podsim

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/podlink/pkg/message"
	"github.com/backkem/podlink/pkg/packet"
)

// Handler produces the response blocks for a complete request.
// Returning no blocks yields an empty response message.
type Handler func(req *message.Message) []message.Block

// Config configures a Pod.
type Config struct {
	// Address is the pod's radio address.
	Address uint32

	// Handler builds responses. Defaults to DefaultHandler.
	Handler Handler

	// AckRequests makes the pod acknowledge complete requests instead of
	// answering them.
	AckRequests bool

	// RetransmitInterval enables retransmission of the last frame until it is
	// acknowledged when the pod is served over an endpoint. Zero disables it.
	RetransmitInterval time.Duration

	// MaxRetransmits bounds retransmissions of one frame. Defaults to 10.
	MaxRetransmits int

	// Random supplies retransmit jitter. Defaults to math/rand.
	Random RandomSource

	// LoggerFactory for debug output. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// Stats counts what the pod has seen.
type Stats struct {
	FramesReceived  int
	Duplicates      int
	Requests        int
	Retransmissions int
}

// Pod is a simulated pod.
type Pod struct {
	config  Config
	handler Handler
	log     logging.LeveledLogger

	mu          sync.Mutex
	lastRx      []byte
	lastTx      []byte
	awaitingAck bool
	request     []byte
	pending     [][]byte
	lastRequest []byte
	stats       Stats

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a pod.
func New(config Config) *Pod {
	if config.MaxRetransmits == 0 {
		config.MaxRetransmits = 10
	}
	if config.Random == nil {
		config.Random = DefaultRandomSource
	}
	p := &Pod{
		config:  config,
		handler: config.Handler,
	}
	if p.handler == nil {
		p.handler = DefaultHandler
	}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("podsim")
	}
	return p
}

// Address returns the pod address.
func (p *Pod) Address() uint32 { return p.config.Address }

// Stats returns a snapshot of the counters.
func (p *Pod) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// LastRequest returns the bytes of the last fully reassembled request.
func (p *Pod) LastRequest() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.lastRequest...)
}

// Handle processes one frame from the controller and returns the reply
// frame, or nil when the pod stays silent.
func (p *Pod) Handle(frame []byte) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle(frame)
}

func (p *Pod) handle(frame []byte) []byte {
	rx, err := packet.Decode(frame)
	if err != nil {
		p.debugf("ignoring frame %x: %v", frame, err)
		return nil
	}
	if rx.Address != p.config.Address && rx.Address != packet.BroadcastAddress {
		return nil
	}
	p.stats.FramesReceived++

	if bytes.Equal(frame, p.lastRx) {
		p.stats.Duplicates++
		return p.lastTx
	}
	p.lastRx = append(p.lastRx[:0], frame...)
	p.awaitingAck = false

	var reply []byte
	switch rx.Type {
	case packet.FrameTypePDM:
		p.request = append(p.request[:0], rx.Data...)
		p.pending = nil
		reply = p.onRequestData(rx)
	case packet.FrameTypeCon:
		if p.request == nil {
			return nil
		}
		p.request = append(p.request, rx.Data...)
		reply = p.onRequestData(rx)
	case packet.FrameTypeAck:
		reply = p.onAck(rx)
	default:
		return nil
	}

	p.lastTx = reply
	return reply
}

func (p *Pod) onRequestData(rx packet.Packet) []byte {
	req, err := message.Decode(p.request)
	if errors.Is(err, message.ErrNeedsMoreData) {
		return p.ack(rx)
	}
	reqBytes := p.request
	p.request = nil
	if err != nil {
		p.debugf("dropping malformed request: %v", err)
		return nil
	}

	p.stats.Requests++
	p.lastRequest = append(p.lastRequest[:0], reqBytes...)
	p.debugf("request %v", req)

	if p.config.AckRequests {
		return p.ack(rx)
	}

	resp := message.New(p.config.Address, req.Sequence+1, p.handler(req)...)
	data, err := message.Encode(resp)
	if err != nil {
		p.debugf("response too long: %v", err)
		return nil
	}

	p.pending = nil
	for len(data) > 0 {
		n := min(len(data), packet.MaxDataSize)
		p.pending = append(p.pending, data[:n])
		data = data[n:]
	}
	return p.nextFragment(rx, packet.FrameTypePod)
}

func (p *Pod) onAck(rx packet.Packet) []byte {
	if len(p.pending) == 0 {
		// Final acknowledgement: the controller heard the whole response.
		return nil
	}
	return p.nextFragment(rx, packet.FrameTypeCon)
}

func (p *Pod) nextFragment(rx packet.Packet, frameType packet.FrameType) []byte {
	data := p.pending[0]
	p.pending = p.pending[1:]
	p.awaitingAck = true
	return packet.Encode(packet.New(p.config.Address, frameType, packet.NextSequence(rx.Sequence, 1), data))
}

func (p *Pod) ack(rx packet.Packet) []byte {
	return packet.Encode(packet.NewAck(p.config.Address, packet.NextSequence(rx.Sequence, 1), p.config.Address))
}

func (p *Pod) debugf(format string, args ...interface{}) {
	if p.log != nil {
		p.log.Debugf(format, args...)
	}
}

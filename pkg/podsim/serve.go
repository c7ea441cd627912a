package podsim

import (
	"errors"
	"math/rand"
	"time"

	"github.com/backkem/podlink/pkg/transport"
)

// RetransmitJitter is the scaler for random jitter added to the retransmit
// interval.
const RetransmitJitter = 0.25

// RandomSource provides random values for retransmit jitter.
// Allows injection of deterministic sources for testing.
type RandomSource interface {
	// Float64 returns a random float64 in [0.0, 1.0).
	Float64() float64
}

type defaultRandomSource struct{}

func (defaultRandomSource) Float64() float64 {
	return rand.Float64()
}

// DefaultRandomSource is the default random source using math/rand.
var DefaultRandomSource RandomSource = defaultRandomSource{}

// retransmitDelay returns interval * (1 + random * RetransmitJitter).
func retransmitDelay(interval time.Duration, random RandomSource) time.Duration {
	return time.Duration(float64(interval) * (1.0 + random.Float64()*RetransmitJitter))
}

// Start serves the pod on ep in a background goroutine until Stop is called
// or the pipe closes.
func (p *Pod) Start(ep *transport.Endpoint) error {
	if ep == nil {
		return errors.New("podsim: endpoint required")
	}

	p.mu.Lock()
	if p.stopCh != nil {
		p.mu.Unlock()
		return errors.New("podsim: already started")
	}
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.serve(ep, stopCh)
	}()
	return nil
}

// Stop ends the serve loop and waits for it to exit.
func (p *Pod) Stop() {
	p.mu.Lock()
	stopCh := p.stopCh
	p.stopCh = nil
	p.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	p.wg.Wait()
}

const idlePoll = 50 * time.Millisecond

func (p *Pod) serve(ep *transport.Endpoint, stopCh chan struct{}) {
	retransmits := 0
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		wait := idlePoll
		if p.config.RetransmitInterval > 0 && p.pendingRetransmit(retransmits) {
			wait = retransmitDelay(p.config.RetransmitInterval, p.config.Random)
		}

		frame, err := ep.Receive(wait)
		switch {
		case err == nil:
			retransmits = 0
			if reply := p.Handle(frame); reply != nil {
				if err := ep.Send(reply); err != nil {
					p.debugf("send failed: %v", err)
				}
			}
		case errors.Is(err, transport.ErrResponseTimeout):
			if p.config.RetransmitInterval == 0 {
				continue
			}
			if frame := p.retransmitFrame(retransmits); frame != nil {
				retransmits++
				if err := ep.Send(frame); err != nil {
					p.debugf("retransmit failed: %v", err)
				}
			}
		default:
			return
		}
	}
}

func (p *Pod) pendingRetransmit(done int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.awaitingAck && p.lastTx != nil && done < p.config.MaxRetransmits
}

func (p *Pod) retransmitFrame(done int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.awaitingAck || p.lastTx == nil || done >= p.config.MaxRetransmits {
		return nil
	}
	p.stats.Retransmissions++
	return p.lastTx
}

package transport

import (
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
)

// PipeRadioConfig configures a PipeRadio.
type PipeRadioConfig struct {
	// Endpoint is the side of the pipe the radio transmits from. Required.
	Endpoint *Endpoint

	// LoggerFactory for frame tracing. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// PipeRadio implements Radio over a Pipe endpoint.
//
// Repeat copies and the preamble extension are physical-layer details; over
// the pipe each transmission is a single frame. Frames that arrived outside
// a listen window are discarded before every transmission, the way a radio
// that only listens after transmitting would never hear them.
type PipeRadio struct {
	ep  *Endpoint
	log logging.LeveledLogger

	transmissions atomic.Int64
	discarded     atomic.Int64
}

// NewPipeRadio creates a radio on the given endpoint.
func NewPipeRadio(config PipeRadioConfig) (*PipeRadio, error) {
	if config.Endpoint == nil {
		return nil, errors.New("transport: pipe radio requires an endpoint")
	}
	r := &PipeRadio{ep: config.Endpoint}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("pipe-radio")
	}
	return r, nil
}

// SendAndListen implements Radio.
func (r *PipeRadio) SendAndListen(data []byte, repeatCount int, timeout time.Duration, retryCount int, preambleExtension time.Duration) ([]byte, error) {
	for attempt := 0; attempt <= retryCount; attempt++ {
		if n := r.ep.Flush(); n > 0 {
			r.discarded.Add(int64(n))
			if r.log != nil {
				r.log.Tracef("discarded %d stale frames", n)
			}
		}

		if r.log != nil {
			r.log.Tracef("tx %s repeat:%d preamble:%v attempt:%d", hex.EncodeToString(data), repeatCount, preambleExtension, attempt)
		}
		if err := r.ep.Send(data); err != nil {
			return nil, err
		}
		r.transmissions.Add(1)

		resp, err := r.ep.Receive(timeout)
		if err == nil {
			if r.log != nil {
				r.log.Tracef("rx %s", hex.EncodeToString(resp))
			}
			return resp, nil
		}
		if !errors.Is(err, ErrResponseTimeout) {
			return nil, err
		}
	}
	return nil, ErrResponseTimeout
}

// Transmissions returns how many frames the radio has sent.
func (r *PipeRadio) Transmissions() int64 {
	return r.transmissions.Load()
}

// Discarded returns how many stale frames were dropped before transmitting.
func (r *PipeRadio) Discarded() int64 {
	return r.discarded.Load()
}

var _ Radio = (*PipeRadio)(nil)

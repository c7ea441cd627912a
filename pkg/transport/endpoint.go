package transport

import (
	"net"
	"sync"
	"time"
)

const endpointQueueSize = 64

// Endpoint is one side of a Pipe. A background reader keeps the bridge
// draining so frames are delivered as soon as they are sent; Receive then
// picks them up in arrival order.
type Endpoint struct {
	pipe *Pipe
	side Side
	conn net.Conn

	rx   chan []byte
	done chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newEndpoint(p *Pipe, side Side, conn net.Conn) *Endpoint {
	e := &Endpoint{
		pipe:   p,
		side:   side,
		conn:   conn,
		rx:     make(chan []byte, endpointQueueSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go e.readLoop()
	return e
}

func (e *Endpoint) readLoop() {
	defer close(e.done)
	buf := make([]byte, MaxFrameSize)
	for {
		n, err := e.conn.Read(buf)
		if err != nil {
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		select {
		case e.rx <- frame:
		case <-e.closed:
			return
		default:
			// Receiver is not keeping up; the oldest frame is lost as on air.
			select {
			case <-e.rx:
			default:
			}
			e.rx <- frame
		}
	}
}

// Side returns which end of the pipe this is.
func (e *Endpoint) Side() Side { return e.side }

// LocalAddr returns the endpoint address.
func (e *Endpoint) LocalAddr() net.Addr { return PipeAddr{Side: e.side} }

// Send transmits one frame to the other side, subject to the pipe's
// NetworkCondition.
func (e *Endpoint) Send(frame []byte) error {
	if len(frame) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	if e.pipe.isClosed() {
		return ErrClosed
	}
	copies := e.pipe.impair()
	for i := 0; i < copies; i++ {
		if _, err := e.conn.Write(frame); err != nil {
			return err
		}
	}
	return nil
}

// Receive waits up to timeout for the next frame. It returns
// ErrResponseTimeout if none arrives and ErrClosed once the pipe is closed.
// A non-positive timeout only checks for an already queued frame.
func (e *Endpoint) Receive(timeout time.Duration) ([]byte, error) {
	select {
	case frame := <-e.rx:
		return frame, nil
	default:
	}
	if timeout <= 0 {
		return nil, ErrResponseTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-e.rx:
		return frame, nil
	case <-timer.C:
		return nil, ErrResponseTimeout
	case <-e.closed:
		return nil, ErrClosed
	case <-e.done:
		return nil, ErrClosed
	}
}

// Flush discards every frame already received and returns how many were
// dropped.
func (e *Endpoint) Flush() int {
	n := 0
	for {
		select {
		case <-e.rx:
			n++
		default:
			return n
		}
	}
}

func (e *Endpoint) close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)
		err = e.conn.Close()
	})
	return err
}

func (e *Endpoint) wait() {
	<-e.done
}

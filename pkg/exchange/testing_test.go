package exchange

import (
	"sync"
	"testing"
	"time"

	"github.com/backkem/podlink/pkg/message"
	"github.com/backkem/podlink/pkg/packet"
	"github.com/backkem/podlink/pkg/podsim"
	"github.com/backkem/podlink/pkg/session"
	"github.com/backkem/podlink/pkg/transport"
)

const testAddr = 0x1f01482a

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// radioCall records the arguments of one SendAndListen.
type radioCall struct {
	frame    packet.Packet
	repeat   int
	timeout  time.Duration
	retry    int
	preamble time.Duration
}

// podLink is a Radio that hands every frame straight to a simulated pod.
// intercept may replace the pod's reply for a given call.
type podLink struct {
	t         *testing.T
	clock     *fakeClock
	pod       *podsim.Pod
	calls     []radioCall
	intercept func(call int, sent packet.Packet, reply []byte) ([]byte, error)
}

func newPodLink(t *testing.T, config podsim.Config) *podLink {
	config.Address = testAddr
	return &podLink{t: t, clock: newFakeClock(), pod: podsim.New(config)}
}

func (l *podLink) SendAndListen(data []byte, repeat int, timeout time.Duration, retry int, preamble time.Duration) ([]byte, error) {
	sent, err := packet.Decode(data)
	if err != nil {
		l.t.Fatalf("session transmitted undecodable frame %x: %v", data, err)
	}
	n := len(l.calls)
	l.calls = append(l.calls, radioCall{frame: sent, repeat: repeat, timeout: timeout, retry: retry, preamble: preamble})

	reply := l.pod.Handle(data)
	if l.intercept != nil {
		reply, err = l.intercept(n, sent, reply)
		if err != nil {
			l.clock.Advance(timeout)
			return nil, err
		}
	}
	if reply == nil {
		l.clock.Advance(timeout * time.Duration(retry+1))
		return nil, transport.ErrResponseTimeout
	}
	l.clock.Advance(time.Millisecond)
	return reply, nil
}

// types returns the frame type of every call.
func (l *podLink) types() []packet.FrameType {
	out := make([]packet.FrameType, len(l.calls))
	for i, c := range l.calls {
		out[i] = c.frame.Type
	}
	return out
}

// stateRecorder collects every published state.
type stateRecorder struct {
	states []session.State
}

func (r *stateRecorder) OnStateChanged(s session.State) {
	r.states = append(r.states, s)
}

func newTestSession(t *testing.T, radio transport.Radio, clock *fakeClock, start session.State, obs session.Observer) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		Radio:    radio,
		Address:  testAddr,
		State:    start,
		Observer: obs,
		Clock:    clock.Now,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s
}

func encode(t *testing.T, m *message.Message) []byte {
	t.Helper()
	data, err := message.Encode(m)
	if err != nil {
		t.Fatalf("message.Encode() error = %v", err)
	}
	return data
}

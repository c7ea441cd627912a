package exchange

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/podlink/pkg/message"
	"github.com/backkem/podlink/pkg/packet"
	"github.com/backkem/podlink/pkg/podsim"
	"github.com/backkem/podlink/pkg/session"
	"github.com/backkem/podlink/pkg/transport"
)

// e2eParams shortens the timing so a lossy run finishes quickly.
func e2eParams() Params {
	p := DefaultParams()
	p.PacketResponseTimeout = 40 * time.Millisecond
	p.ExchangeTimeout = 3 * time.Second
	p.QuietWindow = 40 * time.Millisecond
	p.RadioRetryCount = 2
	return p
}

type e2eLink struct {
	pipe  *transport.Pipe
	radio *transport.PipeRadio
	pod   *podsim.Pod
}

func newE2ELink(t *testing.T, seed int64, podConfig podsim.Config, start bool) *e2eLink {
	t.Helper()
	pipe := transport.NewPipeWithConfig(transport.PipeConfig{AutoProcess: true, Seed: seed})
	t.Cleanup(func() { pipe.Close() })

	radio, err := transport.NewPipeRadio(transport.PipeRadioConfig{Endpoint: pipe.Endpoint(transport.SideController)})
	if err != nil {
		t.Fatal(err)
	}

	podConfig.Address = testAddr
	pod := podsim.New(podConfig)
	if start {
		if err := pod.Start(pipe.Endpoint(transport.SidePod)); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(pod.Stop)
	}
	return &e2eLink{pipe: pipe, radio: radio, pod: pod}
}

func TestE2E_CleanLink(t *testing.T) {
	link := newE2ELink(t, 1, podsim.Config{Handler: podsim.EchoHandler}, true)
	store := session.NewMemoryStore()
	s, err := NewSession(SessionConfig{
		Radio:         link.radio,
		Address:       testAddr,
		State:         session.State{PacketNumber: 30, MessageNumber: 14},
		Observer:      session.StoreObserver(store, nil),
		Params:        e2eParams(),
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatal(err)
	}

	payloads := [][]byte{
		{0x01},
		bytes.Repeat([]byte{0xaa}, 70),
		bytes.Repeat([]byte{0x55}, 150),
	}
	for i, body := range payloads {
		req := &message.UnknownBlock{BlockType: 0x40, Body: body}
		resp, err := s.SendBlocks(req)
		if err != nil {
			t.Fatalf("send %d: error = %v", i, err)
		}
		got, ok := resp.Blocks[0].(*message.UnknownBlock)
		if !ok || !bytes.Equal(got.Body, body) {
			t.Errorf("send %d: echoed %v", i, resp.Blocks[0])
		}
	}

	saved, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved != s.State() {
		t.Errorf("stored state = %v, want %v", saved, s.State())
	}
	if want := uint8((14 + 3) % 16); saved.MessageNumber != want {
		t.Errorf("MessageNumber = %d, want %d", saved.MessageNumber, want)
	}
	if st := link.pod.Stats(); st.Requests != 3 {
		t.Errorf("pod requests = %d, want 3", st.Requests)
	}
}

func TestE2E_LossyLink(t *testing.T) {
	link := newE2ELink(t, 7, podsim.Config{Handler: podsim.EchoHandler}, true)
	link.pipe.SetCondition(transport.NetworkCondition{DropRate: 0.15, DuplicateRate: 0.1})

	s, err := NewSession(SessionConfig{
		Radio:   link.radio,
		Address: testAddr,
		Params:  e2eParams(),
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		body := bytes.Repeat([]byte{byte(i)}, 10+i*12)
		resp, err := s.SendBlocks(&message.UnknownBlock{BlockType: 0x40, Body: body})
		if err != nil {
			t.Fatalf("send %d: error = %v", i, err)
		}
		got, ok := resp.Blocks[0].(*message.UnknownBlock)
		if !ok || !bytes.Equal(got.Body, body) {
			t.Errorf("send %d: echoed %v", i, resp.Blocks[0])
		}
	}
	if got := s.State().MessageNumber; got != 10 {
		t.Errorf("MessageNumber = %d, want 10", got)
	}
}

func TestE2E_PodRetransmits(t *testing.T) {
	link := newE2ELink(t, 3, podsim.Config{
		Handler:            podsim.EchoHandler,
		RetransmitInterval: 15 * time.Millisecond,
		MaxRetransmits:     3,
	}, true)

	s, err := NewSession(SessionConfig{Radio: link.radio, Address: testAddr, Params: e2eParams()})
	if err != nil {
		t.Fatal(err)
	}

	// Lose the first continuation request so the pod has to repeat itself.
	var dropped atomic.Bool
	link.pipe.Filter(transport.SideController, func(frame []byte) bool {
		isAck := len(frame) > 4 && packet.FrameType(frame[4]>>5) == packet.FrameTypeAck
		return !isAck || !dropped.CompareAndSwap(false, true)
	})
	body := bytes.Repeat([]byte{0x0f}, 100)
	resp, err := s.SendBlocks(&message.UnknownBlock{BlockType: 0x40, Body: body})
	if err != nil {
		t.Fatalf("SendBlocks() error = %v", err)
	}
	if got := resp.Blocks[0].(*message.UnknownBlock); !bytes.Equal(got.Body, body) {
		t.Errorf("echoed %x", got.Body)
	}
	if !dropped.Load() {
		t.Fatal("filter never dropped a continuation request")
	}
	if st := link.pod.Stats(); st.Retransmissions == 0 {
		t.Errorf("pod retransmissions = 0, want at least one")
	}
}

func TestE2E_PodSilent(t *testing.T) {
	link := newE2ELink(t, 1, podsim.Config{}, false)
	params := e2eParams()
	params.ExchangeTimeout = 300 * time.Millisecond
	store := session.NewMemoryStore()

	s, err := NewSession(SessionConfig{
		Radio:    link.radio,
		Address:  testAddr,
		State:    session.State{PacketNumber: 4, MessageNumber: 2},
		Observer: session.StoreObserver(store, nil),
		Params:   params,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.SendBlocks(&message.GetStatus{})
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("SendBlocks() error = %v, want ErrNoResponse", err)
	}
	saved, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if saved != (session.State{PacketNumber: 5, MessageNumber: 2}) {
		t.Errorf("stored state = %v, want packet:5 message:2", saved)
	}
	if link.radio.Transmissions() < 2 {
		t.Errorf("transmissions = %d, want retries", link.radio.Transmissions())
	}
}

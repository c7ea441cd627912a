package podsim

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/backkem/podlink/pkg/message"
	"github.com/backkem/podlink/pkg/packet"
	"github.com/backkem/podlink/pkg/transport"
)

const podAddr = 0x1f01482a

func encodeMessage(t *testing.T, m *message.Message) []byte {
	t.Helper()
	data, err := message.Encode(m)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return data
}

func decodePacket(t *testing.T, frame []byte) packet.Packet {
	t.Helper()
	if frame == nil {
		t.Fatal("pod stayed silent")
	}
	p, err := packet.Decode(frame)
	if err != nil {
		t.Fatalf("packet.Decode() error = %v", err)
	}
	return p
}

func TestHandleSingleFrame(t *testing.T) {
	pod := New(Config{Address: podAddr})
	req := encodeMessage(t, message.New(podAddr, 4, &message.GetStatus{}))

	reply := decodePacket(t, pod.Handle(packet.Encode(packet.New(podAddr, packet.FrameTypePDM, 13, req))))
	if reply.Type != packet.FrameTypePod || reply.Sequence != 14 {
		t.Fatalf("reply = %v, want POD seq 14", reply)
	}

	resp, err := message.Decode(reply.Data)
	if err != nil {
		t.Fatalf("message.Decode() error = %v", err)
	}
	if resp.Sequence != 5 {
		t.Errorf("response sequence = %d, want 5", resp.Sequence)
	}
	sr, ok := resp.Blocks[0].(*message.StatusResponse)
	if !ok || sr.Body != Status {
		t.Errorf("response blocks = %v", resp.Blocks)
	}
	if !bytes.Equal(pod.LastRequest(), req) {
		t.Errorf("LastRequest() = %x, want %x", pod.LastRequest(), req)
	}
	if pod.Stats().Requests != 1 {
		t.Errorf("Requests = %d, want 1", pod.Stats().Requests)
	}
}

func TestHandleFragmentedRequest(t *testing.T) {
	pod := New(Config{Address: podAddr, Handler: func(*message.Message) []message.Block {
		return []message.Block{&message.GetStatus{}}
	}})
	req := encodeMessage(t, message.New(podAddr, 2, &message.UnknownBlock{BlockType: 0x40, Body: bytes.Repeat([]byte{0xab}, 70)}))
	if len(req) <= 2*packet.MaxDataSize {
		t.Fatalf("request only %d bytes", len(req))
	}

	seq := uint8(30)
	for off, first := 0, true; off < len(req); first = false {
		end := min(off+packet.MaxDataSize, len(req))
		ft := packet.FrameTypeCon
		if first {
			ft = packet.FrameTypePDM
		}
		reply := decodePacket(t, pod.Handle(packet.Encode(packet.New(podAddr, ft, seq, req[off:end]))))
		if reply.Sequence != packet.NextSequence(seq, 1) {
			t.Errorf("reply seq = %d, want %d", reply.Sequence, packet.NextSequence(seq, 1))
		}
		if end < len(req) {
			if reply.Type != packet.FrameTypeAck {
				t.Fatalf("intermediate reply = %v, want ACK", reply)
			}
			if addr, ok := reply.AckAddress(); !ok || addr != podAddr {
				t.Errorf("ack address = %08x, %v", addr, ok)
			}
		} else if reply.Type != packet.FrameTypePod {
			t.Fatalf("final reply = %v, want POD", reply)
		}
		seq = packet.NextSequence(seq, 2)
		off = end
	}

	if !bytes.Equal(pod.LastRequest(), req) {
		t.Errorf("reassembled request differs")
	}
}

func TestHandleFragmentedResponse(t *testing.T) {
	pod := New(Config{Address: podAddr, Handler: EchoHandler})
	block := &message.UnknownBlock{BlockType: 0x41, Body: bytes.Repeat([]byte{0x5a}, 20)}
	req := encodeMessage(t, message.New(podAddr, 9, block, block))
	if len(req) > packet.MaxDataSize*2 || len(req) <= packet.MaxDataSize {
		t.Fatalf("request is %d bytes, want two fragments", len(req))
	}

	// Send request in two frames.
	pod.Handle(packet.Encode(packet.New(podAddr, packet.FrameTypePDM, 0, req[:packet.MaxDataSize])))
	first := decodePacket(t, pod.Handle(packet.Encode(packet.New(podAddr, packet.FrameTypeCon, 2, req[packet.MaxDataSize:]))))
	if first.Type != packet.FrameTypePod || first.Sequence != 3 {
		t.Fatalf("first = %v, want POD seq 3", first)
	}

	buf := append([]byte(nil), first.Data...)
	seq := uint8(4)
	for {
		_, err := message.Decode(buf)
		if err == nil {
			break
		}
		if !errors.Is(err, message.ErrNeedsMoreData) {
			t.Fatalf("Decode() error = %v", err)
		}
		con := decodePacket(t, pod.Handle(packet.Encode(packet.NewAck(podAddr, seq, podAddr))))
		if con.Type != packet.FrameTypeCon || con.Sequence != seq+1 {
			t.Fatalf("continuation = %v, want CON seq %d", con, seq+1)
		}
		buf = append(buf, con.Data...)
		seq += 2
	}

	resp, err := message.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Sequence != 10 || len(resp.Blocks) != 2 {
		t.Errorf("response = %v", resp)
	}

	// The final ack is not answered.
	if got := pod.Handle(packet.Encode(packet.NewAck(podAddr, seq, podAddr))); got != nil {
		t.Errorf("final ack answered with %x", got)
	}
}

func TestHandleDuplicate(t *testing.T) {
	pod := New(Config{Address: podAddr})
	frame := packet.Encode(packet.New(podAddr, packet.FrameTypePDM, 1,
		encodeMessage(t, message.New(podAddr, 0, &message.GetStatus{}))))

	first := pod.Handle(frame)
	second := pod.Handle(frame)
	if first == nil || !bytes.Equal(first, second) {
		t.Errorf("duplicate reply = %x, want %x", second, first)
	}
	st := pod.Stats()
	if st.Duplicates != 1 || st.Requests != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestHandleIgnores(t *testing.T) {
	pod := New(Config{Address: podAddr})
	req := encodeMessage(t, message.New(podAddr, 0, &message.GetStatus{}))

	foreign := packet.Encode(packet.New(0x1f000002, packet.FrameTypePDM, 1, req))
	if got := pod.Handle(foreign); got != nil {
		t.Errorf("foreign frame answered: %x", got)
	}

	corrupt := packet.Encode(packet.New(podAddr, packet.FrameTypePDM, 1, req))
	corrupt[len(corrupt)-1] ^= 0xff
	if got := pod.Handle(corrupt); got != nil {
		t.Errorf("corrupt frame answered: %x", got)
	}

	stray := packet.Encode(packet.New(podAddr, packet.FrameTypeCon, 1, []byte{1, 2, 3}))
	if got := pod.Handle(stray); got != nil {
		t.Errorf("stray continuation answered: %x", got)
	}
}

func TestAckRequests(t *testing.T) {
	pod := New(Config{Address: podAddr, AckRequests: true})
	req := encodeMessage(t, message.New(podAddr, 0, &message.GetStatus{}))

	reply := decodePacket(t, pod.Handle(packet.Encode(packet.New(podAddr, packet.FrameTypePDM, 7, req))))
	if reply.Type != packet.FrameTypeAck || reply.Sequence != 8 {
		t.Errorf("reply = %v, want ACK seq 8", reply)
	}
}

func TestDefaultHandler(t *testing.T) {
	tests := []struct {
		name string
		req  *message.Message
		want message.BlockType
		none bool
	}{
		{"status", message.New(1, 0, &message.GetStatus{}), message.BlockTypeStatusResponse, false},
		{"assign", message.New(1, 0, &message.AssignAddress{Address: 7}), message.BlockTypeAssignAddress, false},
		{"unknown", message.New(1, 0, &message.UnknownBlock{BlockType: 0x55}), message.BlockTypeErrorResponse, false},
		{"empty", message.New(1, 0), 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DefaultHandler(tc.req)
			if tc.none {
				if len(got) != 0 {
					t.Errorf("DefaultHandler() = %v, want none", got)
				}
				return
			}
			if len(got) != 1 || got[0].Type() != tc.want {
				t.Errorf("DefaultHandler() = %v, want %v", got, tc.want)
			}
		})
	}
}

type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

func TestRetransmitDelay(t *testing.T) {
	if got := retransmitDelay(100*time.Millisecond, fixedRandom(0)); got != 100*time.Millisecond {
		t.Errorf("min delay = %v", got)
	}
	if got := retransmitDelay(100*time.Millisecond, fixedRandom(1)); got != 125*time.Millisecond {
		t.Errorf("max delay = %v", got)
	}
}

func TestServeRetransmitsUntilAcked(t *testing.T) {
	pipe := transport.NewPipe()
	defer pipe.Close()

	pod := New(Config{
		Address:            podAddr,
		RetransmitInterval: 10 * time.Millisecond,
		MaxRetransmits:     3,
		Random:             fixedRandom(0),
	})
	if err := pod.Start(pipe.Endpoint(transport.SidePod)); err != nil {
		t.Fatal(err)
	}
	defer pod.Stop()

	ctrl := pipe.Endpoint(transport.SideController)
	req := encodeMessage(t, message.New(podAddr, 0, &message.GetStatus{}))
	if err := ctrl.Send(packet.Encode(packet.New(podAddr, packet.FrameTypePDM, 0, req))); err != nil {
		t.Fatal(err)
	}

	// Original reply plus three retransmissions, then silence.
	var frames [][]byte
	for {
		frame, err := ctrl.Receive(200 * time.Millisecond)
		if err != nil {
			break
		}
		frames = append(frames, frame)
	}
	if len(frames) != 4 {
		t.Fatalf("heard %d frames, want 4", len(frames))
	}
	for _, f := range frames[1:] {
		if !bytes.Equal(f, frames[0]) {
			t.Errorf("retransmission %x differs from %x", f, frames[0])
		}
	}
	if got := pod.Stats().Retransmissions; got != 3 {
		t.Errorf("Retransmissions = %d, want 3", got)
	}
}

func TestServeStopsRetransmittingOnAck(t *testing.T) {
	pipe := transport.NewPipe()
	defer pipe.Close()

	pod := New(Config{
		Address:            podAddr,
		RetransmitInterval: 20 * time.Millisecond,
		MaxRetransmits:     50,
		Random:             fixedRandom(0),
	})
	if err := pod.Start(pipe.Endpoint(transport.SidePod)); err != nil {
		t.Fatal(err)
	}
	defer pod.Stop()

	ctrl := pipe.Endpoint(transport.SideController)
	req := encodeMessage(t, message.New(podAddr, 0, &message.GetStatus{}))
	ctrl.Send(packet.Encode(packet.New(podAddr, packet.FrameTypePDM, 0, req)))
	if _, err := ctrl.Receive(time.Second); err != nil {
		t.Fatalf("no reply: %v", err)
	}
	ctrl.Send(packet.Encode(packet.NewAck(podAddr, 2, podAddr)))

	// Allow anything already in flight to land, then expect silence.
	time.Sleep(50 * time.Millisecond)
	ctrl.Flush()
	if frame, err := ctrl.Receive(100 * time.Millisecond); err == nil {
		t.Errorf("pod still transmitting after ack: %x", frame)
	}
}

func TestStartTwice(t *testing.T) {
	pipe := transport.NewPipe()
	defer pipe.Close()

	pod := New(Config{Address: podAddr})
	if err := pod.Start(pipe.Endpoint(transport.SidePod)); err != nil {
		t.Fatal(err)
	}
	defer pod.Stop()
	if err := pod.Start(pipe.Endpoint(transport.SidePod)); err == nil {
		t.Error("second Start() succeeded")
	}
	if err := New(Config{}).Start(nil); err == nil {
		t.Error("Start(nil) succeeded")
	}
}

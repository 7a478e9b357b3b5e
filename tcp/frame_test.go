package tcp

import (
	"math/rand"
	"testing"

	"github.com/Yok224/trust/wire"
)

func TestFrame(t *testing.T) {
	var buf [64]byte
	tfrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		wantSrc := uint16(1 + rng.Intn(1<<16-1))
		wantDst := uint16(1 + rng.Intn(1<<16-1))
		wantSeq := Value(rng.Uint32())
		wantAck := Value(rng.Uint32())
		wantFlags := Flags(rng.Intn(1 << 9)).Mask()
		wantWnd := uint16(rng.Intn(1 << 16))

		tfrm.SetSourcePort(wantSrc)
		tfrm.SetDestinationPort(wantDst)
		tfrm.SetSeq(wantSeq)
		tfrm.SetAck(wantAck)
		tfrm.SetOffsetAndFlags(5, wantFlags)
		tfrm.SetWindowSize(wantWnd)

		v := new(wire.Validator)
		tfrm.ValidateSize(v)
		if v.Err() != nil {
			t.Fatal(v.Err())
		}
		if got := tfrm.SourcePort(); got != wantSrc {
			t.Errorf("src port: want %d got %d", wantSrc, got)
		}
		if got := tfrm.DestinationPort(); got != wantDst {
			t.Errorf("dst port: want %d got %d", wantDst, got)
		}
		if got := tfrm.Seq(); got != wantSeq {
			t.Errorf("seq: want %d got %d", wantSeq, got)
		}
		if got := tfrm.Ack(); got != wantAck {
			t.Errorf("ack: want %d got %d", wantAck, got)
		}
		if _, got := tfrm.OffsetAndFlags(); got != wantFlags {
			t.Errorf("flags: want %s got %s", wantFlags, got)
		}
		if got := tfrm.WindowSize(); got != wantWnd {
			t.Errorf("window: want %d got %d", wantWnd, got)
		}
		if got := tfrm.HeaderLength(); got != sizeHeader {
			t.Errorf("header length: want %d got %d", sizeHeader, got)
		}
	}
}

func TestFrameShortBuffer(t *testing.T) {
	var buf [19]byte
	if _, err := NewFrame(buf[:]); err != wire.ErrShortBuffer {
		t.Fatalf("want ErrShortBuffer, got %v", err)
	}
}

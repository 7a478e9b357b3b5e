package endpoint

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Yok224/trust/ipv4"
	"github.com/Yok224/trust/tcp"
)

// loopDevice feeds a fixed queue of inbound frames to Recv and records
// every frame handed to Send, letting a test drive a Dispatcher through a
// scripted exchange without a real TUN device.
type loopDevice struct {
	inbound [][]byte
	sent    [][]byte
}

func (l *loopDevice) Send(frame []byte) (int, error) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.sent = append(l.sent, cp)
	return len(frame), nil
}

func (l *loopDevice) Recv(buf []byte) (int, error) {
	if len(l.inbound) == 0 {
		return 0, errEOF
	}
	n := copy(buf, l.inbound[0])
	l.inbound = l.inbound[1:]
	return n, nil
}

func (l *loopDevice) push(frame []byte) { l.inbound = append(l.inbound, frame) }

var errEOF = errEndOfQueue("no more frames queued")

type errEndOfQueue string

func (e errEndOfQueue) Error() string { return string(e) }

func synFrame(srcIP, dstIP [4]byte, srcPort, dstPort uint16, seq tcp.Value, wnd uint16) []byte {
	buf := make([]byte, 40)
	ifrm, _ := ipv4.NewFrame(buf)
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(40)
	ifrm.SetTTL(64)
	ifrm.SetProtocol(6)
	*ifrm.SourceAddr() = srcIP
	*ifrm.DestinationAddr() = dstIP

	tfrm, _ := tcp.NewFrame(ifrm.Payload())
	tfrm.SetSourcePort(srcPort)
	tfrm.SetDestinationPort(dstPort)
	tfrm.SetSeq(seq)
	tfrm.SetOffsetAndFlags(5, tcp.FlagSYN)
	tfrm.SetWindowSize(wnd)
	return buf
}

func TestDispatcherNewFlowReachesSynRcvd(t *testing.T) {
	dev := &loopDevice{}
	d := NewDispatcher(dev, nil)
	dev.push(synFrame([4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, 5555, 443, 42, 1024))

	if err := d.Run(); !errors.Is(err, errEOF) {
		t.Fatalf("Run: want errEOF got %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("want 1 tracked flow, got %d", d.Len())
	}
	if len(dev.sent) != 1 {
		t.Fatalf("want 1 syn-ack sent, got %d", len(dev.sent))
	}
}

func TestDispatcherDropsNonTCP(t *testing.T) {
	dev := &loopDevice{}
	d := NewDispatcher(dev, nil)
	buf := synFrame([4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, 5555, 443, 42, 1024)
	ifrm, _ := ipv4.NewFrame(buf)
	ifrm.SetProtocol(17) // UDP, not TCP.
	dev.push(buf)

	if err := d.Run(); !errors.Is(err, errEOF) {
		t.Fatalf("Run: want errEOF got %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("non-TCP frame should not create a flow, got %d", d.Len())
	}
	if len(dev.sent) != 0 {
		t.Fatalf("non-TCP frame should provoke no reply, got %d", len(dev.sent))
	}
}

func TestDispatcherDropsStrayNonSyn(t *testing.T) {
	dev := &loopDevice{}
	d := NewDispatcher(dev, nil)
	buf := synFrame([4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, 5555, 443, 42, 1024)
	ifrm, _ := ipv4.NewFrame(buf)
	tfrm, _ := tcp.NewFrame(ifrm.Payload())
	tfrm.SetOffsetAndFlags(5, tcp.FlagACK) // not a connection attempt.
	dev.push(buf)

	if err := d.Run(); !errors.Is(err, errEOF) {
		t.Fatalf("Run: want errEOF got %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("stray non-SYN segment for an unknown flow should not create one, got %d", d.Len())
	}
	if len(dev.sent) != 0 {
		t.Fatalf("stray non-SYN segment should provoke no reply, got %d", len(dev.sent))
	}
}

func TestCollectorReportsTrackedFlows(t *testing.T) {
	dev := &loopDevice{}
	d := NewDispatcher(dev, nil)
	dev.push(synFrame([4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, 5555, 443, 42, 1024))
	if err := d.Run(); !errors.Is(err, errEOF) {
		t.Fatal(err)
	}

	c := NewCollector(d)
	ch := make(chan prometheus.Metric, 8)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	n := 0
	for range ch {
		n++
	}
	if n != 2 { // total gauge + one per-state gauge for SynRcvd.
		t.Fatalf("want 2 metrics emitted, got %d", n)
	}
}

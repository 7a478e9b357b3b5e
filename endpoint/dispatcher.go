package endpoint

import (
	"fmt"
	"log/slog"

	"github.com/Yok224/trust/internal"
	"github.com/Yok224/trust/ipv4"
	"github.com/Yok224/trust/tcp"
	"github.com/Yok224/trust/wire"
)

// RawDevice is the full duplex channel the dispatcher reads inbound frames
// from and hands outbound frames to. [internal.Tun] satisfies it.
type RawDevice interface {
	Device
	Recv(buf []byte) (int, error)
}

// Dispatcher demultiplexes inbound IPv4/TCP frames from a single device
// across the flows it has open, keyed by [fourTuple]. There is one
// Dispatcher per TUN device; it is not safe for concurrent use from more
// than the goroutine running [Dispatcher.Run] plus read-only inspection
// (e.g. by package endpoint's metrics collector).
type Dispatcher struct {
	dev   RawDevice
	conns map[fourTuple]*Connection
	log   *slog.Logger
}

// NewDispatcher creates a Dispatcher reading and writing through dev. A nil
// log disables logging.
func NewDispatcher(dev RawDevice, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		dev:   dev,
		conns: make(map[fourTuple]*Connection),
		log:   log,
	}
}

// Len reports the number of flows currently tracked, synchronized or not.
// Exposed for the Prometheus collector in metrics.go.
func (d *Dispatcher) Len() int { return len(d.conns) }

// ForEach calls fn for every tracked connection. Exposed for the Prometheus
// collector in metrics.go; fn must not mutate the Dispatcher.
func (d *Dispatcher) ForEach(fn func(fourTuple, *Connection)) {
	for k, c := range d.conns {
		fn(k, c)
	}
}

// Run reads frames from the device in a loop, routing each to the flow it
// belongs to (creating one via [Accept] on an unrecognized four-tuple with
// SYN set) until Recv returns an error, which Run then returns. Malformed
// or non-TCP frames are logged and dropped rather than terminating the loop.
func (d *Dispatcher) Run() error {
	var buf [2048]byte
	for {
		n, err := d.dev.Recv(buf[:])
		if err != nil {
			return fmt.Errorf("endpoint: device recv: %w", err)
		}
		d.dispatch(buf[:n])
	}
}

func (d *Dispatcher) dispatch(frame []byte) {
	ifrm, err := ipv4.NewFrame(frame)
	if err != nil {
		internal.LogAttrs(d.log, slog.LevelDebug, "dropping frame: too short for an IPv4 header", slog.Int("len", len(frame)))
		return
	}
	var v wire.Validator
	ifrm.ValidateSize(&v)
	if err := v.Err(); err != nil {
		internal.LogAttrs(d.log, slog.LevelDebug, "dropping frame: invalid IPv4 header", slog.String("err", err.Error()))
		return
	}
	if ifrm.Protocol() != wire.IPProtoTCP {
		internal.LogAttrs(d.log, internal.LevelTrace, "dropping frame: not TCP", slog.String("proto", ifrm.Protocol().String()))
		return
	}

	tfrm, err := tcp.NewFrame(ifrm.Payload())
	if err != nil {
		internal.LogAttrs(d.log, slog.LevelDebug, "dropping frame: too short for a TCP header")
		return
	}
	v.Reset()
	tfrm.ValidateSize(&v)
	if err := v.Err(); err != nil {
		internal.LogAttrs(d.log, slog.LevelDebug, "dropping frame: invalid TCP header", slog.String("err", err.Error()))
		return
	}

	key := fourTuple{
		srcIP:   *ifrm.SourceAddr(),
		srcPort: tfrm.SourcePort(),
		dstIP:   *ifrm.DestinationAddr(),
		dstPort: tfrm.DestinationPort(),
	}
	payload := tfrm.Payload()

	conn, ok := d.conns[key]
	if !ok {
		conn, err = Accept(d.dev, ifrm, tfrm, d.log)
		if err != nil {
			internal.LogAttrs(d.log, slog.LevelError, "accept failed", slog.String("flow", key.String()), slog.String("err", err.Error()))
			return
		}
		if conn == nil {
			internal.LogAttrs(d.log, internal.LevelTrace, "dropping frame: unknown flow, no SYN", slog.String("flow", key.String()))
			return
		}
		d.conns[key] = conn
		return
	}

	// A connection that reaches TimeWait is intentionally left in conns: this
	// endpoint has no timer to expire it (see SPEC_FULL.md §9 gap 4), so the
	// map grows without bound over the life of a long-running dispatcher.
	if err := conn.OnPacket(d.dev, tfrm, payload); err != nil {
		internal.LogAttrs(d.log, slog.LevelError, "packet processing failed", slog.String("flow", key.String()), slog.String("err", err.Error()))
	}
}

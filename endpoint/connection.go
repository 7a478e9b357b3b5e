package endpoint

import (
	"errors"
	"log/slog"

	"github.com/Yok224/trust/internal"
	"github.com/Yok224/trust/ipv4"
	"github.com/Yok224/trust/tcp"
	"github.com/Yok224/trust/wire"
)

// ErrDataNotSupported is returned by OnPacket when a synchronized connection
// receives a non-empty payload. This endpoint does not yet surface data to a
// caller — see SPEC_FULL.md §1 Non-goals — so a peer that actually sends
// data beyond the handshake/close exchange triggers this instead of being
// silently corrupted. The original this was ported from panics here
// (assert!(data.is_empty())); this implementation turns that gap into a
// returned error rather than taking the process down, which is the one
// deliberate behavioral improvement over the source — everything else in
// the state machine is preserved exactly, gaps included.
var ErrDataNotSupported = errors.New("endpoint: payload in established connection not supported")

// errUnhandledTransition marks a state transition §9 of the spec leaves
// unspecified (FIN arriving outside FinWait2). The source panics
// (unimplemented!()); this is its Go equivalent, surfaced as an error so a
// single bad peer cannot take the dispatcher down, but still distinguishable
// from ordinary protocol-anomaly handling.
var errUnhandledTransition = errors.New("endpoint: unhandled state transition")

// sendSpace is the Send Sequence Space of RFC 793 §3.2 fig. 4.
type sendSpace struct {
	ISS tcp.Value // initial send sequence number
	UNA tcp.Value // oldest unacknowledged octet
	NXT tcp.Value // next sequence number to send
	WND tcp.Size  // set to advertisedWindow at accept; written as the window of every outbound segment
	UP  bool      // urgent pointer flag, carried but not acted on
	WL1 tcp.Value // seq of last window update; reserved, not consulted
	WL2 tcp.Value // ack of last window update; reserved, not consulted
}

// recvSpace is the Receive Sequence Space of RFC 793 §3.2 fig. 5.
type recvSpace struct {
	IRS tcp.Value // peer's initial sequence number
	NXT tcp.Value // next sequence number expected
	WND tcp.Size  // taken from the window of the peer's SYN; bounds the acceptability test
	UP  bool      // urgent pointer flag, carried but not acted on
}

const (
	initialISS        = 0 // fixed ISS; see SPEC_FULL.md §9 open question 1.
	advertisedWindow  = 1024
	maxTransmitBuffer = 1500
)

// Connection is the per-four-tuple RFC 793 state machine. It holds the
// send/receive sequence spaces, the current state, and cached prototype
// IPv4/TCP headers used to build every outbound segment, mirroring
// github.com/soypat/lneto/tcp.Conn's builder-held-in-the-connection
// approach. A Connection is created only by [Accept] and mutated only by
// [Connection.OnPacket] and the unexported write/sendRST helpers that back
// it — no other code path touches send/recv state.
type Connection struct {
	state tcp.State
	snd   sendSpace
	rcv   recvSpace

	// ipHeader/tcpHeader are the prototype headers: static fields (addresses,
	// ports, TTL, protocol) are set once at construction; mutable fields
	// (sequence, ack, flags, checksum, length) are rewritten on every write.
	ipHeader  [20]byte
	tcpHeader [20]byte

	log *slog.Logger
}

// Device is the byte-level read/write channel a Connection and Dispatcher
// transmit segments over. internal.Tun satisfies it; tests use an in-memory
// fake. The core never depends on how frames actually reach the wire.
type Device interface {
	Send(frame []byte) (int, error)
}

// State returns the connection's current RFC 793 state.
func (c *Connection) State() tcp.State { return c.state }

// Accept evaluates an inbound segment for an unknown four-tuple. If SYN is
// not set the segment is not a connection attempt and (nil, nil) is
// returned so the dispatcher silently drops the frame. Otherwise a new
// Connection is constructed in SynRcvd and a SYN+ACK is transmitted.
func Accept(dev Device, ipf ipv4.Frame, tf tcp.Frame, log *slog.Logger) (*Connection, error) {
	_, flags := tf.OffsetAndFlags()
	if !flags.Has(tcp.FlagSYN) {
		return nil, nil
	}

	c := &Connection{
		state: tcp.StateSynRcvd,
		snd: sendSpace{
			ISS: initialISS,
			UNA: initialISS,
			NXT: initialISS, // the SYN+ACK goes out at ISS; write advances NXT past it.
			WND: advertisedWindow,
		},
		rcv: recvSpace{
			IRS: tf.Seq(),
			NXT: tcp.Add(tf.Seq(), 1),
			WND: tcp.Size(tf.WindowSize()),
		},
		log: log,
	}

	// Prototype TCP header: ports swapped, static for the life of the connection.
	proto, _ := tcp.NewFrame(c.tcpHeader[:])
	proto.SetSourcePort(tf.DestinationPort())
	proto.SetDestinationPort(tf.SourcePort())

	// Prototype IPv4 header: addresses swapped, TTL/protocol fixed.
	protoIP, _ := ipv4.NewFrame(c.ipHeader[:])
	protoIP.SetVersionAndIHL(4, 5)
	protoIP.SetTTL(64)
	protoIP.SetProtocol(wire.IPProtoTCP)
	*protoIP.SourceAddr() = *ipf.DestinationAddr()
	*protoIP.DestinationAddr() = *ipf.SourceAddr()

	internal.LogAttrs(log, slog.LevelDebug, "accept: syn received, sending syn-ack",
		slog.Uint64("seg.seq", uint64(tf.Seq())), slog.Uint64("seg.wnd", uint64(tf.WindowSize())))

	proto.SetOffsetAndFlags(5, tcp.FlagSYN|tcp.FlagACK)
	if _, err := c.write(dev, nil); err != nil {
		return nil, err
	}
	return c, nil
}

// OnPacket processes one inbound segment against the connection's current
// state, in the strict order described in SPEC_FULL.md §4.3: acceptability
// test, ACK requirement, handshake completion, ack processing, FIN-ACK
// detection, peer FIN. Each step may return early.
func (c *Connection) OnPacket(dev Device, tf tcp.Frame, payload []byte) error {
	_, flags := tf.OffsetAndFlags()
	seq := tf.Seq()

	// Step A — acceptability test (RFC 793 §3.3).
	seglen := tcp.Size(len(payload))
	if flags.Has(tcp.FlagFIN) {
		seglen++
	}
	if flags.Has(tcp.FlagACK) {
		seglen++ // preserved verbatim from the source; see DESIGN.md open question decision 7.
	}
	if !c.segmentAcceptable(seq, seglen) {
		internal.LogAttrs(c.log, slog.LevelDebug, "unacceptable segment, sending current ack",
			slog.Uint64("seg.seq", uint64(seq)), slog.Uint64("rcv.nxt", uint64(c.rcv.NXT)))
		_, err := c.write(dev, nil)
		return err
	}
	c.rcv.NXT = tcp.Add(seq, seglen)

	// Step B — require ACK.
	if !flags.Has(tcp.FlagACK) {
		return nil
	}
	ackn := tf.Ack()

	// Step C — handshake completion.
	if c.state == tcp.StateSynRcvd {
		if tcp.IsBetweenWrapped(tcp.Sub(c.snd.UNA, 1), ackn, tcp.Add(c.snd.NXT, 1)) {
			c.state = tcp.StateEstab
			internal.LogAttrs(c.log, slog.LevelInfo, "handshake complete", slog.String("state", c.state.String()))
		} else {
			// Should RST per RFC 793; not implemented. See SPEC_FULL.md §9 gap 3.
			return nil
		}
	}

	// Step D — ack processing in synchronized states.
	switch c.state {
	case tcp.StateEstab, tcp.StateFinWait1, tcp.StateFinWait2:
		if !tcp.IsBetweenWrapped(c.snd.UNA, ackn, tcp.Add(c.snd.NXT, 1)) {
			return nil // stale or future ack, ignore.
		}
		c.snd.UNA = ackn
		if len(payload) != 0 {
			return ErrDataNotSupported
		}
		if c.state == tcp.StateEstab {
			proto, _ := tcp.NewFrame(c.tcpHeader[:])
			_, curFlags := proto.OffsetAndFlags()
			proto.SetOffsetAndFlags(5, curFlags|tcp.FlagFIN)
			if _, err := c.write(dev, nil); err != nil {
				return err
			}
			c.state = tcp.StateFinWait1
		}
	}

	// Step E — detect our FIN got ACKed (our SYN+FIN both acknowledged).
	if c.state == tcp.StateFinWait1 && c.snd.UNA == tcp.Add(c.snd.ISS, 2) {
		c.state = tcp.StateFinWait2
	}

	// Step F — peer FIN.
	if flags.Has(tcp.FlagFIN) {
		switch c.state {
		case tcp.StateFinWait2:
			if _, err := c.write(dev, nil); err != nil {
				return err
			}
			c.state = tcp.StateTimeWait
		default:
			return errUnhandledTransition
		}
	}
	return nil
}

// segmentAcceptable implements the RFC 793 §3.3 acceptability table.
func (c *Connection) segmentAcceptable(seq tcp.Value, seglen tcp.Size) bool {
	wend := tcp.Add(c.rcv.NXT, c.rcv.WND)
	switch {
	case seglen == 0 && c.rcv.WND == 0:
		return seq == c.rcv.NXT
	case seglen == 0:
		return tcp.IsBetweenWrapped(tcp.Sub(c.rcv.NXT, 1), seq, wend)
	case c.rcv.WND == 0:
		return false
	default:
		return tcp.IsBetweenWrapped(tcp.Sub(c.rcv.NXT, 1), seq, wend) ||
			tcp.IsBetweenWrapped(tcp.Sub(c.rcv.NXT, 1), tcp.Add(seq, seglen-1), wend)
	}
}

// write transmits a single segment carrying payload, using the prototype
// headers' current flags (set by the caller before calling write). It
// returns the number of payload bytes actually placed on the wire.
func (c *Connection) write(dev Device, payload []byte) (int, error) {
	var buf [maxTransmitBuffer]byte

	tfrm, _ := tcp.NewFrame(c.tcpHeader[:])
	tfrm.SetSeq(c.snd.NXT)
	tfrm.SetAck(c.rcv.NXT)
	tfrm.SetWindowSize(uint16(c.snd.WND))

	ifrm, _ := ipv4.NewFrame(c.ipHeader[:])
	ihl := ifrm.HeaderLength()
	thl := tfrm.HeaderLength()
	size := min(len(buf), ihl+thl+len(payload))
	payloadLen := size - ihl - thl
	ifrm.SetTotalLength(uint16(size))
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	// Zero the TCP checksum field before folding the header into the sum:
	// tcpHeader is the connection's persistent prototype buffer, so it still
	// holds the checksum written by the previous call to write.
	tfrm.SetCRC(0)
	var crc wire.CRC791
	ifrm.CRCWriteTCPPseudo(&crc, uint16(thl+payloadLen))
	crc.Write(c.tcpHeader[:thl])
	crc.Write(payload[:payloadLen])
	tfrm.SetCRC(crc.Sum16())

	n := copy(buf[:], c.ipHeader[:ihl])
	n += copy(buf[n:], c.tcpHeader[:thl])
	n += copy(buf[n:], payload[:payloadLen])

	_, flags := tfrm.OffsetAndFlags()
	c.snd.NXT = tcp.Add(c.snd.NXT, tcp.Size(payloadLen))
	if flags.Has(tcp.FlagSYN) {
		c.snd.NXT = tcp.Add(c.snd.NXT, 1)
		tfrm.SetOffsetAndFlags(5, flags&^tcp.FlagSYN)
		_, flags = tfrm.OffsetAndFlags()
	}
	if flags.Has(tcp.FlagFIN) {
		c.snd.NXT = tcp.Add(c.snd.NXT, 1)
		tfrm.SetOffsetAndFlags(5, flags&^tcp.FlagFIN)
	}

	if _, err := dev.Send(buf[:n]); err != nil {
		return 0, err
	}
	return payloadLen, nil
}

// sendRST transmits a reset segment. See SPEC_FULL.md §9 gap 2: it zeroes
// the prototype's sequence/ack fields, but write then fills them from
// snd.NXT/rcv.NXT as for any segment, so the RST carries the connection's
// current numbers rather than the RFC-correct derivation from the offending
// segment; no caller currently invokes sendRST.
func (c *Connection) sendRST(dev Device) error {
	proto, _ := tcp.NewFrame(c.tcpHeader[:])
	proto.SetOffsetAndFlags(5, tcp.FlagRST)
	proto.SetSeq(0)
	proto.SetAck(0)
	_, err := c.write(dev, nil)
	return err
}

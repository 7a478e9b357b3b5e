package tcp

import (
	"math/bits"
)

// Value is a 32-bit TCP sequence number. Arithmetic on Value wraps modulo
// 2^32 per RFC 793 §3.3; comparisons must go through [IsBetweenWrapped]
// rather than Go's native operators, which would treat the sequence space
// as linear instead of circular.
type Value uint32

// Add returns v+delta under 32-bit wraparound.
func Add(v Value, delta Size) Value { return Value(uint32(v) + uint32(delta)) }

// Sub returns v-delta under 32-bit wraparound.
func Sub(v Value, delta Size) Value { return Value(uint32(v) - uint32(delta)) }

// Size is an unsigned length in the sequence-number space: a segment length
// (SEG.LEN) or an advertised window (SND.WND/RCV.WND).
type Size uint32

// IsBetweenWrapped reports whether x lies strictly between start and end on
// the circular 32-bit sequence-number space, with both endpoints exclusive.
// This is the sole primitive used for window containment; every sequence
// comparison in this package goes through it instead of comparing raw
// uint32s, which would be wrong across a wraparound boundary.
func IsBetweenWrapped(start, x, end Value) bool {
	if start == x {
		return false
	}
	if start < x {
		// X is between start and end unless start <= end <= x.
		return !(end >= start && end <= x)
	}
	// start > x: X is between start and end only if end < start && end > x.
	return end < start && end > x
}

// Flags is the 9-bit TCP control-flag field (RFC 793 plus later extensions).
// This endpoint only sets/reads SYN, ACK, FIN and RST; the rest are carried
// through unexamined.
type Flags uint16

const (
	FlagFIN Flags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
	FlagNS
)

const flagMask = 0x01ff

// Mask returns flags with any non-flag bits cleared.
func (f Flags) Mask() Flags { return f & flagMask }

// Has reports whether every bit in mask is set in f.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

func (f Flags) String() string {
	if f == 0 {
		return "[]"
	}
	const names = "FINSYNRSTPSHACKURGECECWRNS "
	const width = 3
	buf := make([]byte, 0, 2+4*bits.OnesCount16(uint16(f)))
	buf = append(buf, '[')
	first := true
	for f != 0 {
		i := bits.TrailingZeros16(uint16(f))
		if !first {
			buf = append(buf, ',')
		}
		first = false
		buf = append(buf, names[i*width:i*width+width]...)
		f &^= 1 << i
	}
	buf = append(buf, ']')
	return string(buf)
}

// State enumerates the subset of the RFC 793 state graph this endpoint
// implements. Listen, LastAck, Closing and Closed are reserved for a future,
// more complete state machine and must never be reached by the logic in
// package endpoint; a connection here is always born in SynRcvd (passive
// open only; there is no active-open/SynSent path) and ends in TimeWait.
type State uint8

const (
	StateClosed State = iota
	StateListen
	StateSynRcvd
	StateSynSent
	StateEstab
	StateFinWait1
	StateFinWait2
	StateClosing
	StateTimeWait
	StateCloseWait
	StateLastAck
)

var stateNames = [...]string{
	StateClosed:    "CLOSED",
	StateListen:    "LISTEN",
	StateSynRcvd:   "SYN-RCVD",
	StateSynSent:   "SYN-SENT",
	StateEstab:     "ESTABLISHED",
	StateFinWait1:  "FIN-WAIT-1",
	StateFinWait2:  "FIN-WAIT-2",
	StateClosing:   "CLOSING",
	StateTimeWait:  "TIME-WAIT",
	StateCloseWait: "CLOSE-WAIT",
	StateLastAck:   "LAST-ACK",
}

func (s State) String() string {
	if int(s) < len(stateNames) && stateNames[s] != "" {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// IsSynchronized reports whether both peers have confirmed their initial
// sequence numbers. True for every state except SynRcvd.
func (s State) IsSynchronized() bool { return s != StateSynRcvd }

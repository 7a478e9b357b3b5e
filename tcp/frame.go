// Package tcp treats a TCP segment as a slice-view over received bytes,
// mirroring the ipv4 package: [Frame] reads and writes header fields
// directly in the caller's buffer. It also carries the sequence-number
// arithmetic ([Value], [IsBetweenWrapped]) and the RFC 793 state subset
// ([State]) that the connection state machine in package endpoint is built
// on top of.
package tcp

import (
	"encoding/binary"
	"fmt"

	"github.com/Yok224/trust/wire"
)

const sizeHeader = 20

// NewFrame returns a Frame viewing buf. An error is returned if buf is
// shorter than the fixed 20-byte TCP header (options are not supported by
// this endpoint; see the Non-goals of SPEC_FULL.md).
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{}, wire.ErrShortBuffer
	}
	return Frame{buf: buf}, nil
}

// Frame is a view over the bytes of a single TCP segment, header and
// payload included.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the Frame was constructed with.
func (tfrm Frame) RawData() []byte { return tfrm.buf }

// SourcePort is the sending port.
func (tfrm Frame) SourcePort() uint16 { return binary.BigEndian.Uint16(tfrm.buf[0:2]) }

// SetSourcePort sets SourcePort. See [Frame.SourcePort].
func (tfrm Frame) SetSourcePort(p uint16) { binary.BigEndian.PutUint16(tfrm.buf[0:2], p) }

// DestinationPort is the receiving port.
func (tfrm Frame) DestinationPort() uint16 { return binary.BigEndian.Uint16(tfrm.buf[2:4]) }

// SetDestinationPort sets DestinationPort. See [Frame.DestinationPort].
func (tfrm Frame) SetDestinationPort(p uint16) { binary.BigEndian.PutUint16(tfrm.buf[2:4], p) }

// Seq is the sequence number of the first octet of this segment (the
// initial sequence number if SYN is set).
func (tfrm Frame) Seq() Value { return Value(binary.BigEndian.Uint32(tfrm.buf[4:8])) }

// SetSeq sets Seq. See [Frame.Seq].
func (tfrm Frame) SetSeq(v Value) { binary.BigEndian.PutUint32(tfrm.buf[4:8], uint32(v)) }

// Ack is the next sequence number the sender expects to receive, valid
// only when ACK is set.
func (tfrm Frame) Ack() Value { return Value(binary.BigEndian.Uint32(tfrm.buf[8:12])) }

// SetAck sets Ack. See [Frame.Ack].
func (tfrm Frame) SetAck(v Value) { binary.BigEndian.PutUint32(tfrm.buf[8:12], uint32(v)) }

// OffsetAndFlags returns the data offset (header length in 32-bit words)
// and control flags.
func (tfrm Frame) OffsetAndFlags() (offset uint8, flags Flags) {
	v := binary.BigEndian.Uint16(tfrm.buf[12:14])
	return uint8(v >> 12), Flags(v).Mask()
}

// SetOffsetAndFlags sets the data offset and control flags fields.
func (tfrm Frame) SetOffsetAndFlags(offset uint8, flags Flags) {
	binary.BigEndian.PutUint16(tfrm.buf[12:14], uint16(offset)<<12|uint16(flags.Mask()))
}

// HeaderLength returns the header length in bytes, as encoded by the offset field.
func (tfrm Frame) HeaderLength() int {
	offset, _ := tfrm.OffsetAndFlags()
	return 4 * int(offset)
}

// WindowSize is the advertised receive window of the segment's sender.
func (tfrm Frame) WindowSize() uint16 { return binary.BigEndian.Uint16(tfrm.buf[14:16]) }

// SetWindowSize sets WindowSize. See [Frame.WindowSize].
func (tfrm Frame) SetWindowSize(v uint16) { binary.BigEndian.PutUint16(tfrm.buf[14:16], v) }

// CRC returns the checksum field.
func (tfrm Frame) CRC() uint16 { return binary.BigEndian.Uint16(tfrm.buf[16:18]) }

// SetCRC sets the checksum field.
func (tfrm Frame) SetCRC(crc uint16) { binary.BigEndian.PutUint16(tfrm.buf[16:18], crc) }

// Payload returns the segment's data, excluding the header and any options.
// Call [Frame.ValidateSize] first to avoid a panic on a bogus offset field.
func (tfrm Frame) Payload() []byte { return tfrm.buf[tfrm.HeaderLength():] }

// ValidateSize checks the offset field against the buffer actually
// available and records any inconsistency in v.
func (tfrm Frame) ValidateSize(v *wire.Validator) {
	off := tfrm.HeaderLength()
	if off < sizeHeader {
		v.AddError(wire.ErrInvalidLengthField)
	}
	if off > len(tfrm.buf) {
		v.AddError(wire.ErrShortData)
	}
	if tfrm.DestinationPort() == 0 {
		v.AddError(wire.ErrZeroDestination)
	}
	if tfrm.SourcePort() == 0 {
		v.AddError(wire.ErrZeroSource)
	}
}

func (tfrm Frame) String() string {
	_, flags := tfrm.OffsetAndFlags()
	return fmt.Sprintf("TCP :%d -> :%d SEQ=%d ACK=%d WND=%d %s",
		tfrm.SourcePort(), tfrm.DestinationPort(), tfrm.Seq(), tfrm.Ack(), tfrm.WindowSize(), flags)
}

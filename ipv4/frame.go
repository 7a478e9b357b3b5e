// Package ipv4 treats an IPv4 datagram as a slice-view over received bytes:
// [Frame] reads and writes header fields directly in the caller's buffer
// instead of copying into a struct, the way github.com/soypat/lneto's frame
// packages do. Parsing and serialization live here so the TCP endpoint in
// package endpoint never has to know the wire layout.
package ipv4

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/Yok224/trust/wire"
)

// NewFrame returns a Frame viewing buf. An error is returned if buf is
// shorter than the fixed 20-byte IPv4 header. Callers should still call
// [Frame.ValidateSize] before touching Payload to avoid a panic
// on a header that lies about its own length.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{}, wire.ErrShortBuffer
	}
	return Frame{buf: buf}, nil
}

// Frame is a view over the bytes of a single IPv4 datagram, header and
// payload included. It holds no state of its own; every method reads or
// writes through to buf.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the Frame was constructed with.
func (ifrm Frame) RawData() []byte { return ifrm.buf }

func (ifrm Frame) ihl() uint8     { return ifrm.buf[0] & 0xf }
func (ifrm Frame) version() uint8 { return ifrm.buf[0] >> 4 }

// HeaderLength returns the IPv4 header length in bytes, options included.
func (ifrm Frame) HeaderLength() int { return int(ifrm.ihl()) * 4 }

// SetVersionAndIHL sets the version (normally 4) and IHL (header length in
// 32-bit words, minimum 5) fields.
func (ifrm Frame) SetVersionAndIHL(version, ihl uint8) {
	ifrm.buf[0] = version<<4 | ihl&0xf
}

// TotalLength is the entire datagram size in bytes, header and payload.
func (ifrm Frame) TotalLength() uint16 { return binary.BigEndian.Uint16(ifrm.buf[2:4]) }

// SetTotalLength sets TotalLength. See [Frame.TotalLength].
func (ifrm Frame) SetTotalLength(tl uint16) { binary.BigEndian.PutUint16(ifrm.buf[2:4], tl) }

// Flags returns the fragmentation flags/offset field.
func (ifrm Frame) Flags() Flags { return Flags(binary.BigEndian.Uint16(ifrm.buf[6:8])) }

// SetFlags sets the fragmentation flags/offset field.
func (ifrm Frame) SetFlags(f Flags) { binary.BigEndian.PutUint16(ifrm.buf[6:8], uint16(f)) }

// TTL is the time-to-live / hop-count field.
func (ifrm Frame) TTL() uint8 { return ifrm.buf[8] }

// SetTTL sets TTL. See [Frame.TTL].
func (ifrm Frame) SetTTL(ttl uint8) { ifrm.buf[8] = ttl }

// Protocol identifies the payload protocol; TCP is 6.
func (ifrm Frame) Protocol() wire.IPProto { return wire.IPProto(ifrm.buf[9]) }

// SetProtocol sets Protocol. See [Frame.Protocol].
func (ifrm Frame) SetProtocol(p wire.IPProto) { ifrm.buf[9] = uint8(p) }

// CRC returns the header checksum field.
func (ifrm Frame) CRC() uint16 { return binary.BigEndian.Uint16(ifrm.buf[10:12]) }

// SetCRC sets the header checksum field.
func (ifrm Frame) SetCRC(crc uint16) { binary.BigEndian.PutUint16(ifrm.buf[10:12], crc) }

// CalculateHeaderCRC computes the IPv4 header checksum over the current
// header bytes (CRC field excluded).
func (ifrm Frame) CalculateHeaderCRC() uint16 {
	var crc wire.CRC791
	crc.Write(ifrm.buf[0:10])
	crc.Write(ifrm.buf[12:20])
	return crc.Sum16()
}

// SourceAddr returns a pointer to the 4-byte source address in the header.
func (ifrm Frame) SourceAddr() *[4]byte { return (*[4]byte)(ifrm.buf[12:16]) }

// DestinationAddr returns a pointer to the 4-byte destination address in the header.
func (ifrm Frame) DestinationAddr() *[4]byte { return (*[4]byte)(ifrm.buf[16:20]) }

// CRCWriteTCPPseudo folds the IPv4 pseudo-header used in the TCP checksum
// (source addr, destination addr, protocol, TCP segment length) into crc.
// The caller writes the TCP header and payload separately.
func (ifrm Frame) CRCWriteTCPPseudo(crc *wire.CRC791, tcpLen uint16) {
	crc.Write(ifrm.SourceAddr()[:])
	crc.Write(ifrm.DestinationAddr()[:])
	crc.AddUint16(uint16(ifrm.Protocol()))
	crc.AddUint16(tcpLen)
}

// Payload returns the datagram's payload, everything after the header up to
// TotalLength. Call [Frame.ValidateSize] first to avoid a panic on a frame
// with an inconsistent TotalLength.
func (ifrm Frame) Payload() []byte {
	off := ifrm.HeaderLength()
	return ifrm.buf[off:ifrm.TotalLength()]
}

// ValidateSize checks the header's self-reported lengths against the
// buffer actually available and records any inconsistency in v.
func (ifrm Frame) ValidateSize(v *wire.Validator) {
	ihl := ifrm.ihl()
	tl := ifrm.TotalLength()
	if tl < sizeHeader {
		v.AddError(wire.ErrBadTotalLength)
	}
	if int(tl) > len(ifrm.buf) {
		v.AddError(wire.ErrShortData)
	}
	if ihl < 5 {
		v.AddError(wire.ErrBadIHL)
	}
	if ifrm.version() != 4 {
		v.AddError(wire.ErrBadVersion)
	}
}

func (ifrm Frame) String() string {
	src := netip.AddrFrom4(*ifrm.SourceAddr())
	dst := netip.AddrFrom4(*ifrm.DestinationAddr())
	return fmt.Sprintf("IP %s SRC=%s DST=%s LEN=%d TTL=%d", ifrm.Protocol(), src, dst, ifrm.TotalLength(), ifrm.TTL())
}

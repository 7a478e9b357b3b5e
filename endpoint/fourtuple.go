package endpoint

import (
	"fmt"
	"net/netip"
)

// fourTuple is the key identifying a single TCP flow: remote (peer)
// address/port paired with local address/port. Orientation is always from
// the peer's point of view — src is the remote endpoint, dst is us — so a
// dispatcher derives the same value from a segment regardless of which
// direction it travels.
//
// Both address fields are plain [4]byte so fourTuple is comparable and can
// be used directly as a map key, with no separate hash function required.
type fourTuple struct {
	srcIP   [4]byte
	srcPort uint16
	dstIP   [4]byte
	dstPort uint16
}

func (q fourTuple) String() string {
	src := netip.AddrPortFrom(netip.AddrFrom4(q.srcIP), q.srcPort)
	dst := netip.AddrPortFrom(netip.AddrFrom4(q.dstIP), q.dstPort)
	return fmt.Sprintf("%s -> %s", src, dst)
}

package ipv4

const (
	sizeHeader = 20
)

// Flags holds the fragmentation-control field of an IPv4 header. It is 16 bits long.
type Flags uint16

// DontFragment specifies whether the datagram can not be fragmented.
func (f Flags) DontFragment() bool { return f&0x4000 != 0 }

// MoreFragments is cleared for unfragmented packets.
func (f Flags) MoreFragments() bool { return f&0x2000 != 0 }

package wire

import "strconv"

// IPProto identifies the protocol carried in the payload of an IPv4 datagram.
// Only the values this endpoint cares about are named; others still format.
type IPProto uint8

const (
	IPProtoICMP IPProto = 1
	IPProtoTCP  IPProto = 6
	IPProtoUDP  IPProto = 17
)

func (p IPProto) String() string {
	switch p {
	case IPProtoICMP:
		return "ICMP"
	case IPProtoTCP:
		return "TCP"
	case IPProtoUDP:
		return "UDP"
	default:
		return "proto(" + strconv.Itoa(int(p)) + ")"
	}
}

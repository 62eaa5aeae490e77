// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// LinkHeader represents the L2 Ethernet header.
type LinkHeader struct {
	DstMAC    [6]byte
	SrcMAC    [6]byte
	EtherType uint16 // 0x0800=IPv4, 0x86DD=IPv6, 0 for 802.3 length-framed
	Length    uint16 // 802.3 length field, zero for Ethernet II
}

// NetworkLayer is one of *IPv4Header or *IPv6Header.
// The set is closed: only types in this package implement it.
type NetworkLayer interface {
	networkLayer()
}

// TransportLayer is one of *TCPHeader or *UDPHeader.
// The set is closed: only types in this package implement it.
type TransportLayer interface {
	transportLayer()
}

// IPv4Header represents the L3 IPv4 header.
type IPv4Header struct {
	SrcIP    netip.Addr
	DstIP    netip.Addr
	Protocol uint8 // TCP=6, UDP=17
	// Pass-through fields, not interpreted by the decoder.
	IHL        uint8
	TOS        uint8
	TotalLen   uint16
	ID         uint16
	Flags      uint8
	FragOffset uint16
	TTL        uint8
	Checksum   uint16
}

// IPv6Header represents the fixed L3 IPv6 header.
type IPv6Header struct {
	SrcIP      netip.Addr
	DstIP      netip.Addr
	NextHeader uint8 // TCP=6, UDP=17
	// Pass-through fields, not interpreted by the decoder.
	TrafficClass uint8
	FlowLabel    uint32
	PayloadLen   uint16
	HopLimit     uint8
}

// TCPFlags is the TCP control bit set.
type TCPFlags uint16

const (
	TCPFlagFIN TCPFlags = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
	TCPFlagNS
)

// Has reports whether all bits of f are set.
func (t TCPFlags) Has(f TCPFlags) bool { return t&f == f }

// TCPHeader represents the L4 TCP header.
type TCPHeader struct {
	SrcPort uint16
	DstPort uint16
	// Pass-through fields, not interpreted by the decoder.
	Seq        uint32
	Ack        uint32
	DataOffset uint8
	Flags      TCPFlags
	Window     uint16
	Checksum   uint16
	Urgent     uint16
}

// UDPHeader represents the L4 UDP header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}

func (*IPv4Header) networkLayer()  {}
func (*IPv6Header) networkLayer()  {}
func (*TCPHeader) transportLayer() {}
func (*UDPHeader) transportLayer() {}

// IP protocol numbers carried in the network header.
const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// NetworkEndpoints returns the addresses and upper-layer protocol of n.
// ok is false when n is nil.
func NetworkEndpoints(n NetworkLayer) (src, dst netip.Addr, proto uint8, ok bool) {
	switch h := n.(type) {
	case *IPv4Header:
		return h.SrcIP, h.DstIP, h.Protocol, true
	case *IPv6Header:
		return h.SrcIP, h.DstIP, h.NextHeader, true
	case nil:
		return netip.Addr{}, netip.Addr{}, 0, false
	default:
		panic("core: unknown network layer")
	}
}

// TransportEndpoints returns the protocol name and ports of t.
// ok is false when t is nil.
func TransportEndpoints(t TransportLayer) (name string, src, dst uint16, ok bool) {
	switch h := t.(type) {
	case *TCPHeader:
		return "TCP", h.SrcPort, h.DstPort, true
	case *UDPHeader:
		return "UDP", h.SrcPort, h.DstPort, true
	case nil:
		return "", 0, 0, false
	default:
		panic("core: unknown transport layer")
	}
}

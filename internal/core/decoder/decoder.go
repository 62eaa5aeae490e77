// Package decoder implements L2-L4 protocol stack decoding.
package decoder

import (
	"github.com/google/gopacket/layers"

	"firestige.xyz/wiretap/internal/core"
)

// Decoder decodes raw frames into structured records.
// Decode never fails: layers that cannot be identified are left absent.
type Decoder interface {
	Decode(raw core.RawFrame) core.CapturedRecord
}

// StandardDecoder decodes Ethernet, IPv4/IPv6 and TCP/UDP.
// It holds no mutable state, so one instance may be shared freely.
type StandardDecoder struct {
	linkType layers.LinkType
}

// NewStandardDecoder creates a StandardDecoder for Ethernet frames.
func NewStandardDecoder() *StandardDecoder {
	return NewDecoderFor(layers.LinkTypeEthernet)
}

// NewDecoderFor creates a StandardDecoder for frames of the given link type,
// as reported by the capture source. Frames of any link type other than
// Ethernet stop at StopLinkUnsupported.
func NewDecoderFor(linkType layers.LinkType) *StandardDecoder {
	return &StandardDecoder{linkType: linkType}
}

// Supports reports whether frames of linkType can be decoded past the link layer.
func Supports(linkType layers.LinkType) bool {
	return linkType == layers.LinkTypeEthernet
}

// Decode walks the frame top-down. Each step consumes the remainder left by
// the previous one and stops at the first layer it cannot positively identify.
func (d *StandardDecoder) Decode(raw core.RawFrame) core.CapturedRecord {
	rec := core.CapturedRecord{
		Timestamp:     raw.Timestamp,
		Length:        raw.Length,
		CaptureLength: raw.CaptureLength,
	}

	if !Supports(d.linkType) {
		rec.Stop = core.StopLinkUnsupported
		return rec
	}

	link, rest, err := parseLink(raw.Data)
	if err != nil {
		rec.Stop = core.StopLinkTruncated
		return rec
	}
	rec.Link = link

	network, rest, stop := decodeNetwork(link.EtherType, rest)
	if stop != core.StopNone {
		rec.Stop = stop
		return rec
	}
	rec.Network = network

	transport, stop := decodeTransport(network, rest)
	if stop != core.StopNone {
		rec.Stop = stop
		return rec
	}
	rec.Transport = transport

	return rec
}

func decodeNetwork(etherType uint16, data []byte) (core.NetworkLayer, []byte, core.StopReason) {
	switch layers.EthernetType(etherType) {
	case layers.EthernetTypeIPv4:
		h, rest, err := parseIPv4(data)
		if err != nil {
			return nil, nil, core.StopNetworkMalformed
		}
		return h, rest, core.StopNone
	case layers.EthernetTypeIPv6:
		h, rest, err := parseIPv6(data)
		if err != nil {
			return nil, nil, core.StopNetworkMalformed
		}
		return h, rest, core.StopNone
	default:
		// ARP, LLDP, VLAN-tagged, etc.
		return nil, nil, core.StopNetworkUnsupported
	}
}

func decodeTransport(network core.NetworkLayer, data []byte) (core.TransportLayer, core.StopReason) {
	// Only the first fragment carries the transport header.
	if h, ok := network.(*core.IPv4Header); ok && h.FragOffset != 0 {
		return nil, core.StopNonFirstFragment
	}

	_, _, proto, _ := core.NetworkEndpoints(network)

	switch proto {
	case core.ProtocolTCP:
		h, _, err := parseTCP(data)
		if err != nil {
			return nil, core.StopTransportMalformed
		}
		return h, core.StopNone
	case core.ProtocolUDP:
		h, _, err := parseUDP(data)
		if err != nil {
			return nil, core.StopTransportMalformed
		}
		return h, core.StopNone
	default:
		// ICMP, SCTP, IPv6 extension headers, etc.
		return nil, core.StopTransportUnsupported
	}
}

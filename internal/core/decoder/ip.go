// Package decoder implements protocol decoding.
package decoder

import (
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/wiretap/internal/core"
)

// parseIPv4 decodes an IPv4 header.
// Returns IPv4Header and the remaining payload.
func parseIPv4(data []byte) (*core.IPv4Header, []byte, error) {
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, err
	}
	if ip.Version != 4 {
		return nil, nil, fmt.Errorf("%w: IP version %d in IPv4 frame", core.ErrUnsupportedProto, ip.Version)
	}

	src, ok := netip.AddrFromSlice(ip.SrcIP)
	if !ok {
		return nil, nil, core.ErrFrameTooShort
	}
	dst, ok := netip.AddrFromSlice(ip.DstIP)
	if !ok {
		return nil, nil, core.ErrFrameTooShort
	}

	h := &core.IPv4Header{
		SrcIP:      src,
		DstIP:      dst,
		Protocol:   uint8(ip.Protocol),
		IHL:        ip.IHL,
		TOS:        ip.TOS,
		TotalLen:   ip.Length,
		ID:         ip.Id,
		Flags:      uint8(ip.Flags),
		FragOffset: ip.FragOffset,
		TTL:        ip.TTL,
		Checksum:   ip.Checksum,
	}
	return h, ip.Payload, nil
}

// parseIPv6 decodes the fixed IPv6 header.
// Extension headers are not walked; NextHeader names whatever follows.
func parseIPv6(data []byte) (*core.IPv6Header, []byte, error) {
	var ip layers.IPv6
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, err
	}
	if ip.Version != 6 {
		return nil, nil, fmt.Errorf("%w: IP version %d in IPv6 frame", core.ErrUnsupportedProto, ip.Version)
	}

	src, ok := netip.AddrFromSlice(ip.SrcIP)
	if !ok {
		return nil, nil, core.ErrFrameTooShort
	}
	dst, ok := netip.AddrFromSlice(ip.DstIP)
	if !ok {
		return nil, nil, core.ErrFrameTooShort
	}

	h := &core.IPv6Header{
		SrcIP:        src,
		DstIP:        dst,
		NextHeader:   uint8(ip.NextHeader),
		TrafficClass: ip.TrafficClass,
		FlowLabel:    ip.FlowLabel,
		PayloadLen:   ip.Length,
		HopLimit:     ip.HopLimit,
	}
	return h, ip.Payload, nil
}

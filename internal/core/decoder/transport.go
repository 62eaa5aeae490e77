// Package decoder implements protocol decoding.
package decoder

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/wiretap/internal/core"
)

// parseTCP decodes a TCP header including options.
// Returns TCPHeader and the remaining payload.
func parseTCP(data []byte) (*core.TCPHeader, []byte, error) {
	var tcp layers.TCP
	if err := tcp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, err
	}

	h := &core.TCPHeader{
		SrcPort:    uint16(tcp.SrcPort),
		DstPort:    uint16(tcp.DstPort),
		Seq:        tcp.Seq,
		Ack:        tcp.Ack,
		DataOffset: tcp.DataOffset,
		Flags:      tcpFlags(&tcp),
		Window:     tcp.Window,
		Checksum:   tcp.Checksum,
		Urgent:     tcp.Urgent,
	}
	return h, tcp.Payload, nil
}

func tcpFlags(tcp *layers.TCP) core.TCPFlags {
	var f core.TCPFlags
	set := func(on bool, bit core.TCPFlags) {
		if on {
			f |= bit
		}
	}
	set(tcp.FIN, core.TCPFlagFIN)
	set(tcp.SYN, core.TCPFlagSYN)
	set(tcp.RST, core.TCPFlagRST)
	set(tcp.PSH, core.TCPFlagPSH)
	set(tcp.ACK, core.TCPFlagACK)
	set(tcp.URG, core.TCPFlagURG)
	set(tcp.ECE, core.TCPFlagECE)
	set(tcp.CWR, core.TCPFlagCWR)
	set(tcp.NS, core.TCPFlagNS)
	return f
}

// parseUDP decodes a UDP header.
func parseUDP(data []byte) (*core.UDPHeader, []byte, error) {
	var udp layers.UDP
	if err := udp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, err
	}

	h := &core.UDPHeader{
		SrcPort:  uint16(udp.SrcPort),
		DstPort:  uint16(udp.DstPort),
		Length:   udp.Length,
		Checksum: udp.Checksum,
	}
	return h, udp.Payload, nil
}

// Package testutil builds frames and capture files for tests.
package testutil

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiretap/internal/core"
)

var (
	srcMAC = net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	dstMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
)

// Endpoint is one side of a flow.
type Endpoint struct {
	IP   string
	Port uint16
}

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out
}

func ethernet(t layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: t}
}

func ipv4(src, dst string, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Id:       0x1234,
		Protocol: proto,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
}

func ipv6(src, dst string, next layers.IPProtocol) *layers.IPv6 {
	return &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		FlowLabel:  0xBEEF,
		NextHeader: next,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
}

// TCPv4Frame builds an Ethernet/IPv4/TCP frame with an ACK|PSH segment.
func TCPv4Frame(t testing.TB, src, dst Endpoint, payload []byte) []byte {
	t.Helper()
	ip := ipv4(src.IP, dst.IP, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port),
		DstPort: layers.TCPPort(dst.Port),
		Seq:     1000,
		Ack:     2000,
		ACK:     true,
		PSH:     true,
		Window:  65535,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(payload))
}

// UDPv4Frame builds an Ethernet/IPv4/UDP frame.
func UDPv4Frame(t testing.TB, src, dst Endpoint, payload []byte) []byte {
	t.Helper()
	ip := ipv4(src.IP, dst.IP, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(src.Port), DstPort: layers.UDPPort(dst.Port)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, udp, gopacket.Payload(payload))
}

// TCPv6Frame builds an Ethernet/IPv6/TCP frame with a SYN segment.
func TCPv6Frame(t testing.TB, src, dst Endpoint) []byte {
	t.Helper()
	ip := ipv6(src.IP, dst.IP, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port),
		DstPort: layers.TCPPort(dst.Port),
		Seq:     42,
		SYN:     true,
		Window:  1024,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv6), ip, tcp)
}

// UDPv6Frame builds an Ethernet/IPv6/UDP frame.
func UDPv6Frame(t testing.TB, src, dst Endpoint, payload []byte) []byte {
	t.Helper()
	ip := ipv6(src.IP, dst.IP, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(src.Port), DstPort: layers.UDPPort(dst.Port)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv6), ip, udp, gopacket.Payload(payload))
}

// ICMPv4Frame builds an Ethernet/IPv4/ICMP echo request.
func ICMPv4Frame(t testing.TB, src, dst string) []byte {
	t.Helper()
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ipv4(src, dst, layers.IPProtocolICMPv4), icmp)
}

// ARPFrame builds an Ethernet/ARP request.
func ARPFrame(t testing.TB) []byte {
	t.Helper()
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: net.ParseIP("192.168.1.1").To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    net.ParseIP("192.168.1.2").To4(),
	}
	eth := ethernet(layers.EthernetTypeARP)
	eth.DstMAC = layers.EthernetBroadcast
	return serialize(t, eth, arp)
}

// IPv4FragmentFrame builds an Ethernet/IPv4 frame whose payload is carried
// verbatim. offset is in 8-byte units; moreFragments sets the MF flag.
func IPv4FragmentFrame(t testing.TB, src, dst string, proto layers.IPProtocol, offset uint16, moreFragments bool, payload []byte) []byte {
	ip := ipv4(src, dst, proto)
	ip.FragOffset = offset
	if moreFragments {
		ip.Flags = layers.IPv4MoreFragments
	}
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, gopacket.Payload(payload))
}

// RawFrame wraps data as a fully captured frame.
func RawFrame(data []byte, ts time.Time) core.RawFrame {
	return core.RawFrame{
		Data:          data,
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
}

// WritePcap writes frames to a classic pcap file with Ethernet link type.
func WritePcap(t testing.TB, path string, frames []core.RawFrame) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, fr := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     fr.Timestamp,
			CaptureLength: fr.CaptureLength,
			Length:        fr.Length,
		}
		require.NoError(t, w.WritePacket(ci, fr.Data))
	}
}

// WritePcapNg writes frames to a pcapng file with a single Ethernet interface.
func WritePcapNg(t testing.TB, path string, frames []core.RawFrame) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	require.NoError(t, err)
	for _, fr := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     fr.Timestamp,
			CaptureLength: fr.CaptureLength,
			Length:        fr.Length,
		}
		require.NoError(t, w.WritePacket(ci, fr.Data))
	}
	require.NoError(t, w.Flush())
}

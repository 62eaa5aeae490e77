package decoder

import (
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiretap/internal/core"
	"firestige.xyz/wiretap/internal/testutil"
)

var testTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Helper function to create a simple IPv4 UDP packet
func makeSimpleUDPPacket() []byte {
	packet := make([]byte, 42) // Ethernet + IPv4 + UDP headers

	// Ethernet header (14 bytes)
	// Dst MAC: 00:11:22:33:44:55
	packet[0], packet[1], packet[2] = 0x00, 0x11, 0x22
	packet[3], packet[4], packet[5] = 0x33, 0x44, 0x55
	// Src MAC: AA:BB:CC:DD:EE:FF
	packet[6], packet[7], packet[8] = 0xAA, 0xBB, 0xCC
	packet[9], packet[10], packet[11] = 0xDD, 0xEE, 0xFF
	// EtherType: IPv4 (0x0800)
	packet[12], packet[13] = 0x08, 0x00

	// IPv4 header (20 bytes)
	packet[14] = 0x45                   // Version 4, IHL 5
	packet[16], packet[17] = 0x00, 0x1C // Total Length: 28 bytes
	packet[22] = 0x40                   // TTL: 64
	packet[23] = 0x11                   // Protocol: UDP (17)
	// Src IP: 192.168.1.1
	packet[26], packet[27], packet[28], packet[29] = 192, 168, 1, 1
	// Dst IP: 192.168.1.2
	packet[30], packet[31], packet[32], packet[33] = 192, 168, 1, 2

	// UDP header (8 bytes)
	packet[34], packet[35] = 0x13, 0x88 // Src Port: 5000
	packet[36], packet[37] = 0x13, 0x89 // Dst Port: 5001
	packet[38], packet[39] = 0x00, 0x08 // Length: 8 bytes

	return packet
}

func TestStandardDecoderDecode(t *testing.T) {
	decoder := NewStandardDecoder()

	data := makeSimpleUDPPacket()
	rec := decoder.Decode(core.RawFrame{
		Data:          data,
		Timestamp:     testTime,
		CaptureLength: 42,
		Length:        60,
	})

	if !rec.Complete() {
		t.Fatalf("Expected complete record, stop=%s", rec.Stop)
	}
	if rec.Length != 60 || rec.CaptureLength != 42 {
		t.Errorf("Expected lengths 60/42, got %d/%d", rec.Length, rec.CaptureLength)
	}
	if !rec.Timestamp.Equal(testTime) {
		t.Errorf("Expected timestamp %v, got %v", testTime, rec.Timestamp)
	}
	if rec.Link.EtherType != 0x0800 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", rec.Link.EtherType)
	}

	ip, ok := rec.Network.(*core.IPv4Header)
	if !ok {
		t.Fatalf("Expected IPv4 network layer, got %T", rec.Network)
	}
	if ip.SrcIP != netip.MustParseAddr("192.168.1.1") {
		t.Errorf("Expected SrcIP 192.168.1.1, got %v", ip.SrcIP)
	}

	udp, ok := rec.Transport.(*core.UDPHeader)
	if !ok {
		t.Fatalf("Expected UDP transport layer, got %T", rec.Transport)
	}
	if udp.SrcPort != 5000 || udp.DstPort != 5001 {
		t.Errorf("Expected ports 5000->5001, got %d->%d", udp.SrcPort, udp.DstPort)
	}
}

func TestDecodeTCPv4(t *testing.T) {
	data := testutil.TCPv4Frame(t,
		testutil.Endpoint{IP: "10.0.0.1", Port: 443},
		testutil.Endpoint{IP: "10.0.0.2", Port: 51000},
		[]byte("hello"))

	rec := NewStandardDecoder().Decode(testutil.RawFrame(data, testTime))
	require.True(t, rec.Complete(), "stop=%s", rec.Stop)

	src, dst, proto, ok := core.NetworkEndpoints(rec.Network)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), src)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), dst)
	assert.Equal(t, core.ProtocolTCP, proto)

	tcp, ok := rec.Transport.(*core.TCPHeader)
	require.True(t, ok)
	assert.Equal(t, uint16(443), tcp.SrcPort)
	assert.Equal(t, uint16(51000), tcp.DstPort)
	assert.Equal(t, uint32(1000), tcp.Seq)
	assert.Equal(t, uint32(2000), tcp.Ack)
	assert.True(t, tcp.Flags.Has(core.TCPFlagACK|core.TCPFlagPSH))
	assert.False(t, tcp.Flags.Has(core.TCPFlagSYN))
}

func TestDecodeUDPv6(t *testing.T) {
	data := testutil.UDPv6Frame(t,
		testutil.Endpoint{IP: "2001:db8::1", Port: 5353},
		testutil.Endpoint{IP: "ff02::fb", Port: 5353},
		[]byte{0x00, 0x00})

	rec := NewStandardDecoder().Decode(testutil.RawFrame(data, testTime))
	require.True(t, rec.Complete(), "stop=%s", rec.Stop)

	ip, ok := rec.Network.(*core.IPv6Header)
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("2001:db8::1"), ip.SrcIP)
	assert.Equal(t, netip.MustParseAddr("ff02::fb"), ip.DstIP)
	assert.Equal(t, core.ProtocolUDP, ip.NextHeader)
	assert.Equal(t, uint32(0xBEEF), ip.FlowLabel)

	name, sport, dport, ok := core.TransportEndpoints(rec.Transport)
	require.True(t, ok)
	assert.Equal(t, "UDP", name)
	assert.Equal(t, uint16(5353), sport)
	assert.Equal(t, uint16(5353), dport)
}

func TestDecodeTCPv6SYN(t *testing.T) {
	data := testutil.TCPv6Frame(t,
		testutil.Endpoint{IP: "fe80::1", Port: 40000},
		testutil.Endpoint{IP: "fe80::2", Port: 22})

	rec := NewStandardDecoder().Decode(testutil.RawFrame(data, testTime))
	require.True(t, rec.Complete(), "stop=%s", rec.Stop)

	tcp := rec.Transport.(*core.TCPHeader)
	assert.Equal(t, core.TCPFlagSYN, tcp.Flags)
	assert.Equal(t, uint32(42), tcp.Seq)
}

func TestDecodeIncompleteFrames(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantLink    bool
		wantNetwork bool
		wantStop    core.StopReason
	}{
		{
			name:     "empty frame",
			data:     []byte{},
			wantStop: core.StopLinkTruncated,
		},
		{
			name:     "shorter than ethernet header",
			data:     make([]byte, 13),
			wantStop: core.StopLinkTruncated,
		},
		{
			name:     "all-zero ethernet header",
			data:     make([]byte, 14),
			wantLink: true,
			wantStop: core.StopNetworkUnsupported,
		},
		{
			name:     "ARP",
			data:     testutil.ARPFrame(t),
			wantLink: true,
			wantStop: core.StopNetworkUnsupported,
		},
		{
			name:        "ICMP",
			data:        testutil.ICMPv4Frame(t, "10.0.0.1", "10.0.0.2"),
			wantLink:    true,
			wantNetwork: true,
			wantStop:    core.StopTransportUnsupported,
		},
		{
			name: "IPv4 ethertype with version 6 header",
			data: append([]byte{
				0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
				0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
				0x08, 0x00,
				// Version 6, IHL 5, Total Length 20
				0x65, 0x00, 0x00, 0x14,
			}, make([]byte, 16)...),
			wantLink: true,
			wantStop: core.StopNetworkMalformed,
		},
		{
			name: "IPv4 header cut short",
			data: []byte{
				0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
				0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
				0x08, 0x00,
				0x45, 0x00, 0x00, 0x28,
			},
			wantLink: true,
			wantStop: core.StopNetworkMalformed,
		},
	}

	decoder := NewStandardDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := decoder.Decode(testutil.RawFrame(tt.data, testTime))

			assert.False(t, rec.Complete())
			assert.Equal(t, tt.wantStop, rec.Stop)
			assert.Equal(t, tt.wantLink, rec.Link != nil)
			assert.Equal(t, tt.wantNetwork, rec.Network != nil)
			assert.Nil(t, rec.Transport)
			assert.Equal(t, len(tt.data), rec.Length)
		})
	}
}

func TestDecodeNonFirstFragment(t *testing.T) {
	// Mid-datagram bytes that would read as ports 18516 -> 21584 if taken for a TCP header.
	payload := []byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
	data := testutil.IPv4FragmentFrame(t, "192.168.1.1", "192.168.1.2", layers.IPProtocolTCP, 185, false, payload)

	rec := NewStandardDecoder().Decode(testutil.RawFrame(data, testTime))

	assert.False(t, rec.Complete())
	assert.Equal(t, core.StopNonFirstFragment, rec.Stop)
	assert.Nil(t, rec.Transport)
	ip, ok := rec.Network.(*core.IPv4Header)
	require.True(t, ok)
	assert.Equal(t, uint16(185), ip.FragOffset)
	assert.Equal(t, core.ProtocolTCP, ip.Protocol)
}

func TestDecodeFirstFragment(t *testing.T) {
	// The first fragment starts with the real UDP header.
	udp := []byte{0x00, 0x35, 0x9C, 0x40, 0x00, 0x10, 0x00, 0x00, 1, 2, 3, 4, 5, 6, 7, 8}
	data := testutil.IPv4FragmentFrame(t, "192.0.2.1", "192.0.2.2", layers.IPProtocolUDP, 0, true, udp)

	rec := NewStandardDecoder().Decode(testutil.RawFrame(data, testTime))

	require.True(t, rec.Complete(), "stop=%s", rec.Stop)
	_, sport, dport, _ := core.TransportEndpoints(rec.Transport)
	assert.Equal(t, uint16(53), sport)
	assert.Equal(t, uint16(40000), dport)
}

func TestDecodeUnsupportedLinkType(t *testing.T) {
	data := testutil.UDPv4Frame(t,
		testutil.Endpoint{IP: "192.0.2.1", Port: 53},
		testutil.Endpoint{IP: "192.0.2.2", Port: 40000},
		nil)

	for _, lt := range []layers.LinkType{layers.LinkTypeLinuxSLL, layers.LinkTypeNull, layers.LinkTypeRaw} {
		t.Run(lt.String(), func(t *testing.T) {
			assert.False(t, Supports(lt))
			rec := NewDecoderFor(lt).Decode(testutil.RawFrame(data, testTime))
			assert.Equal(t, core.StopLinkUnsupported, rec.Stop)
			assert.Nil(t, rec.Link)
			assert.Nil(t, rec.Network)
			assert.Equal(t, len(data), rec.Length)
		})
	}

	assert.True(t, Supports(layers.LinkTypeEthernet))
	assert.True(t, NewDecoderFor(layers.LinkTypeEthernet).Decode(testutil.RawFrame(data, testTime)).Complete())
}

func TestDecodeTruncatedTCP(t *testing.T) {
	data := testutil.TCPv4Frame(t,
		testutil.Endpoint{IP: "10.0.0.1", Port: 443},
		testutil.Endpoint{IP: "10.0.0.2", Port: 51000},
		nil)
	// Ethernet + IPv4 + 10 bytes of TCP; Total Length still claims 40
	cut := data[:14+20+10]

	rec := NewStandardDecoder().Decode(core.RawFrame{
		Data:          cut,
		Timestamp:     testTime,
		CaptureLength: len(cut),
		Length:        len(data),
	})

	require.NotNil(t, rec.Network)
	assert.Nil(t, rec.Transport)
	assert.Equal(t, core.StopTransportMalformed, rec.Stop)
	assert.Equal(t, len(data), rec.Length)
	assert.Equal(t, len(cut), rec.CaptureLength)
}

func TestDecodeIsIdempotent(t *testing.T) {
	data := testutil.UDPv4Frame(t,
		testutil.Endpoint{IP: "192.0.2.1", Port: 53},
		testutil.Endpoint{IP: "192.0.2.2", Port: 33000},
		[]byte("answer"))
	raw := testutil.RawFrame(data, testTime)

	decoder := NewStandardDecoder()
	first := decoder.Decode(raw)
	second := decoder.Decode(raw)

	assert.Equal(t, first, second)
}

func TestDecodeDoesNotRetainFrameBuffer(t *testing.T) {
	data := testutil.TCPv4Frame(t,
		testutil.Endpoint{IP: "10.0.0.1", Port: 443},
		testutil.Endpoint{IP: "10.0.0.2", Port: 51000},
		nil)

	rec := NewStandardDecoder().Decode(testutil.RawFrame(data, testTime))
	require.True(t, rec.Complete())

	for i := range data {
		data[i] = 0
	}

	src, dst, _, _ := core.NetworkEndpoints(rec.Network)
	assert.Equal(t, "10.0.0.1", src.String())
	assert.Equal(t, "10.0.0.2", dst.String())
	assert.Equal(t, [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, rec.Link.SrcMAC)
	assert.Equal(t, uint16(443), rec.Transport.(*core.TCPHeader).SrcPort)
}

func BenchmarkStandardDecoderDecode(b *testing.B) {
	decoder := NewStandardDecoder()
	raw := core.RawFrame{
		Data:          makeSimpleUDPPacket(),
		Timestamp:     testTime,
		CaptureLength: 42,
		Length:        42,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = decoder.Decode(raw)
	}
}

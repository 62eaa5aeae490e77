// Package decoder implements protocol decoding.
package decoder

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/wiretap/internal/core"
)

// ethernetHeaderLen is the minimal Ethernet II header size.
const ethernetHeaderLen = 14

// parseLink decodes the Ethernet header.
// Returns LinkHeader and the remaining payload.
func parseLink(data []byte) (*core.LinkHeader, []byte, error) {
	if len(data) < ethernetHeaderLen {
		return nil, nil, core.ErrFrameTooShort
	}

	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrFrameTooShort, err)
	}

	link := &core.LinkHeader{
		EtherType: uint16(eth.EthernetType),
		Length:    eth.Length,
	}
	// MACs alias the frame buffer, copy them out
	copy(link.DstMAC[:], eth.DstMAC)
	copy(link.SrcMAC[:], eth.SrcMAC)

	return link, eth.Payload, nil
}

package afpacket

import (
	"fmt"
)

const (
	tpacketAlignment = 16 // TPACKET_ALIGNMENT
	tpacketHdrLen    = 52 // TPACKET3_HDRLEN, rounded
)

// ringLayout is the PACKET_MMAP ring geometry handed to the kernel.
//
// frameSize must be a multiple of TPACKET_ALIGNMENT and blockSize a multiple
// of both the page size and frameSize.
type ringLayout struct {
	frameSize int
	blockSize int
	numBlocks int
}

// newRingLayout fits a ring for snapLen-sized frames into roughly bufferMB
// megabytes.
func newRingLayout(bufferMB, snapLen, pageSize int) (ringLayout, error) {
	if bufferMB <= 0 {
		return ringLayout{}, fmt.Errorf("buffer size must be positive, got %d MB", bufferMB)
	}
	if snapLen <= 0 {
		return ringLayout{}, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return ringLayout{}, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	var l ringLayout
	l.frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	// The smallest block satisfying both constraints. It can exceed the
	// whole budget for large snap lengths, in which case one block is used.
	l.blockSize = lcm(pageSize, l.frameSize)

	l.numBlocks = (bufferMB << 20) / l.blockSize
	if l.numBlocks < 1 {
		l.numBlocks = 1
	}
	return l, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

package afpacket

import (
	"testing"
)

func TestNewRingLayout(t *testing.T) {
	tests := []struct {
		name     string
		bufferMB int
		snapLen  int
		pageSize int
	}{
		{"default snaplen", 8, 65536, 4096},
		{"small snaplen", 8, 128, 4096},
		{"tiny buffer", 1, 65536, 4096},
		{"large pages", 64, 1514, 65536},
		{"odd snaplen", 4, 1500, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := newRingLayout(tt.bufferMB, tt.snapLen, tt.pageSize)
			if err != nil {
				t.Fatalf("newRingLayout failed: %v", err)
			}

			if l.frameSize%tpacketAlignment != 0 {
				t.Errorf("frameSize %d not aligned to %d", l.frameSize, tpacketAlignment)
			}
			if l.frameSize < tt.snapLen+tpacketHdrLen {
				t.Errorf("frameSize %d cannot hold snapLen %d", l.frameSize, tt.snapLen)
			}
			if l.blockSize%tt.pageSize != 0 {
				t.Errorf("blockSize %d not a multiple of page size %d", l.blockSize, tt.pageSize)
			}
			if l.blockSize%l.frameSize != 0 {
				t.Errorf("blockSize %d not a multiple of frameSize %d", l.blockSize, l.frameSize)
			}
			if l.numBlocks < 1 {
				t.Errorf("Expected at least one block, got %d", l.numBlocks)
			}
		})
	}
}

func TestNewRingLayoutFillsBudget(t *testing.T) {
	l, err := newRingLayout(8, 128, 4096)
	if err != nil {
		t.Fatalf("newRingLayout failed: %v", err)
	}
	// 128+52 aligns to 192; lcm(4096, 192) = 12288
	if l.frameSize != 192 {
		t.Errorf("Expected frameSize 192, got %d", l.frameSize)
	}
	if l.blockSize != 12288 {
		t.Errorf("Expected blockSize 12288, got %d", l.blockSize)
	}
	if l.numBlocks != (8<<20)/12288 {
		t.Errorf("Expected %d blocks, got %d", (8<<20)/12288, l.numBlocks)
	}
}

func TestNewRingLayoutInvalid(t *testing.T) {
	tests := []struct {
		name     string
		bufferMB int
		snapLen  int
		pageSize int
	}{
		{"zero buffer", 0, 65536, 4096},
		{"negative snaplen", 8, -1, 4096},
		{"zero page", 8, 65536, 0},
		{"unaligned page", 8, 65536, 4100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newRingLayout(tt.bufferMB, tt.snapLen, tt.pageSize); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

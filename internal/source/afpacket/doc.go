// Package afpacket is the Linux AF_PACKET (TPACKET_V3) live capture engine.
// It registers itself only on Linux builds.
package afpacket

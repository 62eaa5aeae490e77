package kafka

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiretap/internal/config"
	"firestige.xyz/wiretap/internal/core"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func tcpRecord() core.CapturedRecord {
	return core.CapturedRecord{
		Timestamp: time.Unix(1700000000, 42),
		Length:    60,
		Network: &core.IPv4Header{
			SrcIP:    netip.MustParseAddr("10.0.0.1"),
			DstIP:    netip.MustParseAddr("10.0.0.2"),
			Protocol: core.ProtocolTCP,
		},
		Transport: &core.TCPHeader{SrcPort: 443, DstPort: 51000},
	}
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	m := newMirror(w)

	m.Publish(context.Background(), tcpRecord(), "60 1700000000 10.0.0.1 10.0.0.2 TCP 443 -> 51000")

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "10.0.0.1:443-10.0.0.2:51000", string(msg.Key))
	assert.Equal(t, "60 1700000000 10.0.0.1 10.0.0.2 TCP 443 -> 51000", string(msg.Value))
	assert.True(t, msg.Time.Equal(time.Unix(1700000000, 42)))
	assert.Equal(t, []kafka.Header{{Key: "proto", Value: []byte("TCP")}}, msg.Headers)
	assert.Equal(t, uint64(1), m.Published())
	assert.Zero(t, m.Failed())
}

func TestPublishIgnoresIncomplete(t *testing.T) {
	w := &fakeWriter{}
	m := newMirror(w)

	rec := tcpRecord()
	rec.Transport = nil
	m.Publish(context.Background(), rec, "")

	assert.Empty(t, w.msgs)
	assert.Zero(t, m.Published())
}

func TestPublishErrorIsCounted(t *testing.T) {
	m := newMirror(&fakeWriter{err: errors.New("broker down")})

	m.Publish(context.Background(), tcpRecord(), "line")
	m.Publish(context.Background(), tcpRecord(), "line")

	assert.Equal(t, uint64(2), m.Failed())
	assert.Zero(t, m.Published())
}

func TestComplete(t *testing.T) {
	m := newMirror(&fakeWriter{})
	batch := make([]kafka.Message, 3)

	m.complete(batch, nil)
	m.complete(batch[:2], errors.New("leader not available"))

	assert.Equal(t, uint64(3), m.Published())
	assert.Equal(t, uint64(2), m.Failed())
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newMirror(w).Close())
	assert.True(t, w.closed)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name string
		want compress.Compression
	}{
		{"none", 0},
		{"", 0},
		{"gzip", compress.Gzip},
		{"snappy", compress.Snappy},
		{"lz4", compress.Lz4},
		{"zstd", compress.Zstd},
	}
	for _, tt := range tests {
		got, err := parseCompression(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := parseCompression("brotli")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestNew(t *testing.T) {
	m, err := New(config.KafkaConfig{
		Brokers:      []string{"127.0.0.1:9092"},
		Topic:        "wiretap.summary",
		BatchTimeout: 10 * time.Millisecond,
		Compression:  "snappy",
	})
	require.NoError(t, err)

	w, ok := m.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "wiretap.summary", w.Topic)
	assert.True(t, w.Async)
	assert.Equal(t, compress.Snappy, w.Compression)
	require.NoError(t, m.Close())

	_, err = New(config.KafkaConfig{Topic: "t"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	_, err = New(config.KafkaConfig{Brokers: []string{"b:9092"}})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

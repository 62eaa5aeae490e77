// Package kafka mirrors summary lines to a Kafka topic.
// Delivery is best effort: failures are logged and counted, never returned
// to the capture loop.
package kafka

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/wiretap/internal/config"
	"firestige.xyz/wiretap/internal/core"
	"firestige.xyz/wiretap/internal/log"
	"firestige.xyz/wiretap/internal/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Mirror publishes one message per summary line. The key is the flow
// "src:sport-dst:dport" so a flow stays on one partition.
type Mirror struct {
	writer messageWriter
	logger log.Logger
	async  bool // delivery is reported through complete

	published atomic.Uint64
	failed    atomic.Uint64
}

// New creates an asynchronous mirror for cfg. No connection is made until
// the first batch is flushed.
func New(cfg config.KafkaConfig) (*Mirror, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka brokers are required", core.ErrConfigInvalid)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: kafka topic is required", core.ErrConfigInvalid)
	}
	codec, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	m := &Mirror{logger: log.GetLogger().WithField("topic", cfg.Topic), async: true}
	m.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		Compression:  codec,
		Async:        true,
		Completion:   m.complete,
	}
	return m, nil
}

func newMirror(w messageWriter) *Mirror {
	return &Mirror{writer: w, logger: log.GetLogger()}
}

func parseCompression(name string) (compress.Compression, error) {
	switch name {
	case "none", "":
		return 0, nil
	case "gzip":
		return compress.Gzip, nil
	case "snappy":
		return compress.Snappy, nil
	case "lz4":
		return compress.Lz4, nil
	case "zstd":
		return compress.Zstd, nil
	default:
		return 0, fmt.Errorf("%w: invalid compression type: %s", core.ErrConfigInvalid, name)
	}
}

// Publish queues line for rec. Incomplete records are ignored.
func (m *Mirror) Publish(ctx context.Context, rec core.CapturedRecord, line string) {
	msg, ok := message(rec, line)
	if !ok {
		return
	}
	if err := m.writer.WriteMessages(ctx, msg); err != nil {
		m.fail(1, err)
		return
	}
	if !m.async {
		m.published.Add(1)
	}
}

func message(rec core.CapturedRecord, line string) (kafka.Message, bool) {
	src, dst, _, ok := core.NetworkEndpoints(rec.Network)
	if !ok {
		return kafka.Message{}, false
	}
	proto, sport, dport, ok := core.TransportEndpoints(rec.Transport)
	if !ok {
		return kafka.Message{}, false
	}
	return kafka.Message{
		Key:     []byte(fmt.Sprintf("%s:%d-%s:%d", src, sport, dst, dport)),
		Value:   []byte(line),
		Time:    rec.Timestamp,
		Headers: []kafka.Header{{Key: "proto", Value: []byte(proto)}},
	}, true
}

func (m *Mirror) complete(msgs []kafka.Message, err error) {
	if err != nil {
		m.fail(len(msgs), err)
		return
	}
	m.published.Add(uint64(len(msgs)))
}

func (m *Mirror) fail(n int, err error) {
	m.failed.Add(uint64(n))
	metrics.MirrorErrorsTotal.Add(float64(n))
	m.logger.WithError(err).WithField("messages", n).Warn("kafka mirror delivery failed")
}

// Published returns the number of delivered lines.
func (m *Mirror) Published() uint64 { return m.published.Load() }

// Failed returns the number of lines that could not be delivered.
func (m *Mirror) Failed() uint64 { return m.failed.Load() }

// Close flushes pending batches and closes the writer.
func (m *Mirror) Close() error {
	if err := m.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

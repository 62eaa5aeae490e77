// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal counts frames read, by source kind (pcap, afpacket, file)
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiretap_frames_total",
			Help: "Total number of frames read from the source",
		},
		[]string{"source"},
	)

	// FrameBytesTotal counts captured bytes, by source kind
	FrameBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiretap_frame_bytes_total",
			Help: "Total number of captured bytes read from the source",
		},
		[]string{"source"},
	)

	// DecodeStopsTotal counts frames whose decode stopped before the transport layer
	DecodeStopsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiretap_decode_stops_total",
			Help: "Total number of incompletely decoded frames by stop reason",
		},
		[]string{"reason"},
	)

	// ReportedTotal counts summary lines written
	ReportedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wiretap_reported_total",
			Help: "Total number of summary lines reported",
		},
	)

	// RecordedTotal counts frames written to the output capture file
	RecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wiretap_recorded_total",
			Help: "Total number of frames recorded to the output file",
		},
	)

	// MirrorErrorsTotal counts summary lines the Kafka mirror failed to deliver
	MirrorErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wiretap_mirror_errors_total",
			Help: "Total number of summary lines not delivered to Kafka",
		},
	)

	// FrameProcessSeconds measures decode, report and record time per frame
	FrameProcessSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wiretap_frame_process_seconds",
			Help:    "Time spent decoding, reporting and recording one frame",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1us to ~1s
		},
	)
)

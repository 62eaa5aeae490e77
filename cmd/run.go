package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"firestige.xyz/wiretap/internal/config"
	"firestige.xyz/wiretap/internal/core/decoder"
	"firestige.xyz/wiretap/internal/log"
	"firestige.xyz/wiretap/internal/metrics"
	"firestige.xyz/wiretap/internal/pipeline"
	"firestige.xyz/wiretap/internal/sink/console"
	"firestige.xyz/wiretap/internal/sink/kafka"
	"firestige.xyz/wiretap/internal/sink/pcapfile"
	"firestige.xyz/wiretap/internal/source"
)

const shutdownTimeout = 5 * time.Second

// errOpenInput marks failures to open the capture input, as opposed to
// failures while reading it.
var errOpenInput = errors.New("open input")

// outputs holds the optional sinks so their totals can be logged on close.
type outputs struct {
	recorder *pcapfile.Recorder
	mirror   *kafka.Mirror
}

func (o outputs) fields() map[string]interface{} {
	f := map[string]interface{}{}
	if o.recorder != nil {
		f["written"] = o.recorder.Written()
	}
	if o.mirror != nil {
		f["mirror_published"] = o.mirror.Published()
		f["mirror_failed"] = o.mirror.Failed()
	}
	return f
}

func runCapture(cmd *cobra.Command, configFile string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return capture(ctx, cfg, cmd.OutOrStdout())
}

// capture runs one session from cfg, writing report lines to out.
func capture(ctx context.Context, cfg *config.Config, out io.Writer) (err error) {
	logger := log.GetLogger().WithField("run_id", uuid.NewString())

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				logger.WithError(err).Warn("metrics server stop failed")
			}
		}()
	}

	session, outs, err := newSession(cfg, out, logger)
	if err != nil {
		return err
	}
	defer func() {
		cerr := session.Close()
		// Mirror totals are final only once Close has flushed pending batches.
		if f := outs.fields(); len(f) > 0 {
			logger.WithFields(f).Info("outputs closed")
		}
		if cerr != nil {
			if err == nil {
				err = cerr
			} else {
				logger.WithError(cerr).Warn("session close failed")
			}
		}
	}()

	// A live read blocks until a frame arrives, so cancellation has to
	// close the source to wake it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			logger.Info("shutdown requested, closing source")
			if err := session.CloseSource(); err != nil {
				logger.WithError(err).Warn("close source failed")
			}
		case <-done:
		}
	}()

	logger.WithFields(map[string]interface{}{
		"interface": cfg.Input.Interface,
		"file":      cfg.Input.File,
		"output":    cfg.Output.File,
		"engine":    cfg.Capture.Engine,
	}).Info("capture started")

	stats, err := pipeline.Run(ctx, session)

	logger.WithFields(map[string]interface{}{
		"frames":     stats.Frames,
		"reported":   stats.Reported,
		"recorded":   stats.Recorded,
		"incomplete": stats.Incomplete(),
	}).Info("capture finished")

	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}

// newSession opens the source and the optional sinks. On error everything
// opened so far is closed.
func newSession(cfg *config.Config, out io.Writer, logger log.Logger) (*pipeline.Session, outputs, error) {
	opts := source.Options{
		Interface:    cfg.Input.Interface,
		File:         cfg.Input.File,
		Engine:       cfg.Capture.Engine,
		SnapLen:      cfg.Capture.SnapLen,
		Promiscuous:  cfg.Capture.Promiscuous,
		Timeout:      cfg.Capture.Timeout,
		BufferSizeMB: cfg.Capture.BufferSizeMB,
	}
	var outs outputs
	src, err := source.Open(opts)
	if err != nil {
		return nil, outs, fmt.Errorf("%w: %w", errOpenInput, err)
	}

	if lt := src.LinkType(); !decoder.Supports(lt) {
		logger.WithField("link_type", lt.String()).
			Warn("link type is not Ethernet, frames will be recorded but not reported")
	}

	b := pipeline.NewBuilder().
		WithSource(src, source.Name(opts)).
		WithDecoder(decoder.NewDecoderFor(src.LinkType())).
		WithReporter(console.NewReporter(out)).
		WithLogger(logger)

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
		_ = src.Close()
	}

	if cfg.Output.File != "" {
		rec, err := pcapfile.Open(cfg.Output.File, cfg.Capture.SnapLen, src.LinkType())
		if err != nil {
			closeAll()
			return nil, outs, err
		}
		closers = append(closers, rec)
		outs.recorder = rec
		b.WithRecorder(rec)
	}

	if cfg.Output.Kafka.Enabled {
		m, err := kafka.New(cfg.Output.Kafka)
		if err != nil {
			closeAll()
			return nil, outs, err
		}
		closers = append(closers, m)
		outs.mirror = m
		b.WithMirror(m)
	}

	session, err := b.Build()
	if err != nil {
		closeAll()
		return nil, outs, err
	}
	return session, outs, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RenatoCabral2022/pcmtap/internal/capture"
	"github.com/RenatoCabral2022/pcmtap/internal/config"
	"github.com/RenatoCabral2022/pcmtap/internal/device"
	"github.com/RenatoCabral2022/pcmtap/internal/logging"
	"github.com/RenatoCabral2022/pcmtap/internal/statusapi"
	"github.com/RenatoCabral2022/pcmtap/internal/wavfile"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := config.Load()

	logger, err := logging.New(logging.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pcmtap: build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		logger.Sync()
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("pcmtap failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// source is an opened device plus what the binary needs to shut it down.
type source struct {
	dev   capture.Device
	ended <-chan struct{}
	err   func() error
	close func() error
}

func openSource(cfg *config.Config, logger *zap.Logger) (*source, error) {
	switch cfg.Source {
	case config.SourceTone:
		tone, err := device.NewTone(cfg.SampleRate, cfg.Channels, cfg.ToneFreq, 0, device.DefaultPeriod)
		if err != nil {
			return nil, err
		}
		return &source{dev: tone}, nil
	case config.SourceFFmpeg:
		ff, err := device.NewFFmpeg(device.FFmpegConfig{
			Input:      cfg.Input,
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &source{dev: ff, ended: ff.Ended(), err: ff.Err}, nil
	default:
		m, err := device.NewMalgo(cfg.SampleRate, cfg.Channels, nil, logger)
		if err != nil {
			return nil, err
		}
		return &source{dev: m, close: m.Close}, nil
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	src, err := openSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s source: %w", cfg.Source, err)
	}
	if src.close != nil {
		defer func() {
			if cerr := src.close(); cerr != nil {
				logger.Warn("close source", zap.Error(cerr))
			}
		}()
	}

	sink, err := wavfile.Create(cfg.Output, cfg.SampleRate, cfg.EffectiveOutputChannels())
	if err != nil {
		return err
	}

	sess, err := capture.NewSession(src.dev, sink, capture.Config{
		OutputChannels: cfg.EffectiveOutputChannels(),
		DrainInterval:  cfg.DrainInterval,
		BufferDuration: cfg.BufferDuration,
		HighWater:      cfg.HighWater,
	}, logger)
	if err != nil {
		_ = sink.Finalize()
		return err
	}

	logger.Info("pcmtap starting",
		zap.String("session", sess.ID()),
		zap.String("source", src.dev.Name()),
		zap.String("output", sink.Path()),
		zap.Duration("duration", cfg.Duration),
		zap.String("statusAddr", cfg.StatusAddr),
	)

	if err := sess.Start(); err != nil {
		// Stop on an idle session still finalizes the file.
		return errors.Join(err, sess.Stop())
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}
	ctx, stopCapture := context.WithCancel(ctx)
	defer stopCapture()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.StatusAddr != "" {
		srv := statusapi.NewServer(cfg.StatusAddr,
			statusapi.NewHandlers(sess, stopCapture, logger.Named("http")).Router())
		g.Go(func() error {
			logger.Info("status API listening", zap.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-src.ended:
				logger.Info("input ended")
				stopCapture()
				return nil
			case err, ok := <-sess.Errors():
				if !ok {
					return nil
				}
				// Audio is being discarded from here on; stop rather than
				// record a truncated file for the rest of the run.
				logger.Error("capture failed while streaming", zap.Error(err))
				stopCapture()
				return nil
			}
		}
	})

	<-gctx.Done()
	logger.Info("shutting down", zap.NamedError("cause", context.Cause(gctx)))

	stopErr := sess.Stop()
	waitErr := g.Wait()

	st := sess.Stats()
	logger.Info("capture summary",
		zap.String("output", sink.Path()),
		zap.Int64("dataBytes", sink.DataBytes()),
		zap.Uint64("droppedBytes", st.BytesDropped),
		zap.Uint64("warnings", st.Warnings),
	)

	var srcErr error
	if src.err != nil {
		srcErr = src.err()
	}
	return errors.Join(stopErr, waitErr, srcErr)
}

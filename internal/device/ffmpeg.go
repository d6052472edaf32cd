package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/pcmtap/internal/audio"
)

// FFmpegConfig configures an FFmpeg device.
type FFmpegConfig struct {
	// Input is a file path or an http(s) URL.
	Input string

	SampleRate int
	Channels   int

	// Period is the delivery chunk duration. Zero selects DefaultPeriod.
	Period time.Duration

	// NoPacing delivers as fast as ffmpeg decodes instead of at real time.
	NoPacing bool

	// Binary is the ffmpeg executable. Empty means "ffmpeg" on PATH.
	Binary string
}

// FFmpeg decodes a file or URL to interleaved float32 with an ffmpeg child
// process and delivers it in fixed-size chunks at real time, as a hardware
// device would.
type FFmpeg struct {
	cfg    FFmpegConfig
	format audio.Format
	frames int
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	ended     chan struct{}
	endedOnce sync.Once
	errMu     sync.Mutex
	err       error

	bytesRead atomic.Int64
}

// NewFFmpeg validates the input and returns an unregistered device. URL
// inputs must pass ValidateURL.
func NewFFmpeg(cfg FFmpegConfig, logger *zap.Logger) (*FFmpeg, error) {
	format := audio.Float32Format(cfg.SampleRate, cfg.Channels)
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if cfg.Input == "" {
		return nil, errors.New("ffmpeg input is required")
	}
	if isURL(cfg.Input) {
		if err := ValidateURL(cfg.Input); err != nil {
			return nil, fmt.Errorf("ffmpeg input: %w", err)
		}
	}
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	return &FFmpeg{
		cfg:    cfg,
		format: format,
		frames: periodFrames(cfg.SampleRate, cfg.Period),
		logger: logger.With(zap.String("input", cfg.Input)),
		ended:  make(chan struct{}),
	}, nil
}

// Name identifies the input, e.g. "ffmpeg:/path/in.mp3".
func (f *FFmpeg) Name() string { return "ffmpeg:" + f.cfg.Input }

// Format returns the float32 format ffmpeg is asked to emit.
func (f *FFmpeg) Format() audio.Format { return f.format }

// Ended is closed when the input is exhausted or ffmpeg fails. It is not
// closed by Unregister.
func (f *FFmpeg) Ended() <-chan struct{} { return f.ended }

// Err returns the decode failure that ended the input, if any.
func (f *FFmpeg) Err() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

// BytesRead returns the number of float32 bytes delivered.
func (f *FFmpeg) BytesRead() int64 { return f.bytesRead.Load() }

// Args returns the ffmpeg command line arguments.
func (f *FFmpeg) Args() []string {
	args := []string{
		"-nostdin",
		"-hide_banner", "-loglevel", "error",
	}
	if isURL(f.cfg.Input) {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
		)
	}
	return append(args,
		"-i", f.cfg.Input,
		"-vn",
		"-ac", strconv.Itoa(f.format.Channels),
		"-ar", strconv.Itoa(f.format.SampleRate),
		"-f", "f32le",
		"pipe:1",
	)
}

// Register starts ffmpeg and the reader goroutine that feeds cb.
func (f *FFmpeg) Register(cb func([]byte)) error {
	if cb == nil {
		return ErrNilCallback
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return ErrAlreadyRegistered
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, f.cfg.Binary, f.Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	f.cancel = cancel
	f.done = make(chan struct{})
	f.logger.Info("ffmpeg source started", zap.Stringer("format", f.format))
	go f.run(ctx, cmd, stdout, &stderr, cb, f.done)
	return nil
}

// Unregister kills ffmpeg and waits for the reader goroutine to exit.
func (f *FFmpeg) Unregister() error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (f *FFmpeg) run(ctx context.Context, cmd *exec.Cmd, r io.Reader, stderr *bytes.Buffer,
	cb func([]byte), done chan<- struct{}) {

	defer close(done)

	readErr := f.readLoop(ctx, r, cb)
	if readErr != nil {
		// Nobody reads stdout any more; don't let ffmpeg block on it.
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		f.logger.Info("ffmpeg source stopped", zap.Int64("bytesRead", f.bytesRead.Load()))
		return
	}

	var err error
	switch {
	case readErr != nil:
		err = fmt.Errorf("read ffmpeg output: %w", readErr)
	case waitErr != nil:
		msg := strings.TrimSpace(stderr.String())
		err = fmt.Errorf("ffmpeg exited: %w: %s", waitErr, msg)
	}
	if err != nil {
		f.errMu.Lock()
		f.err = err
		f.errMu.Unlock()
		f.logger.Warn("ffmpeg source failed", zap.Error(err))
	} else {
		f.logger.Info("ffmpeg source completed", zap.Int64("bytesRead", f.bytesRead.Load()))
	}
	f.endedOnce.Do(func() { close(f.ended) })
}

func (f *FFmpeg) readLoop(ctx context.Context, r io.Reader, cb func([]byte)) error {
	frameBytes := f.format.FrameBytes()
	buf := make([]byte, f.frames*frameBytes)
	p := newPacer(f.format.SampleRate)

	for {
		n, err := io.ReadFull(r, buf)
		whole := n - n%frameBytes
		if whole > 0 {
			cb(buf[:whole])
			f.bytesRead.Add(int64(whole))
			if !f.cfg.NoPacing && !p.wait(ctx, whole/frameBytes) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Package capture moves raw float32 frames from a real-time device callback
// through a lock-free ring buffer into a PCM sink.
//
// The device callback is the only producer and the drain loop the only
// consumer. The callback never blocks, allocates or logs; when the consumer
// falls behind, the callback drops whole frames and the overflow monitor
// reports it on the consumer side.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/pcmtap/internal/audio"
	"github.com/RenatoCabral2022/pcmtap/internal/metrics"
	"github.com/RenatoCabral2022/pcmtap/internal/overflow"
	"github.com/RenatoCabral2022/pcmtap/internal/ringbuffer"
)

const (
	DefaultDrainInterval  = 10 * time.Millisecond
	DefaultBufferDuration = 500 * time.Millisecond
	DefaultChunkFrames    = 4096

	errChanSize = 8
)

// State is a session lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config tunes a session. Zero values select the defaults.
type Config struct {
	// OutputChannels is the sink channel count. Zero keeps the device's.
	OutputChannels int

	// DrainInterval is the period of the drain loop.
	DrainInterval time.Duration

	// BufferDuration sizes the ring buffer in audio time at the device format.
	BufferDuration time.Duration

	// ChunkFrames is the number of frames converted per sink append.
	ChunkFrames int

	// HighWater is the overflow warning threshold as a fraction of capacity.
	HighWater float64
}

// Stats is a point-in-time view of a session.
type Stats struct {
	ID             string `json:"id"`
	Device         string `json:"device"`
	State          string `json:"state"`
	Format         string `json:"format"`
	OutputChannels int    `json:"outputChannels"`
	CapacityBytes  int    `json:"capacityBytes"`
	OccupancyBytes int    `json:"occupancyBytes"`
	BytesWritten   uint64 `json:"bytesWritten"`
	BytesConsumed  uint64 `json:"bytesConsumed"`
	BytesDropped   uint64 `json:"bytesDropped"`
	PCMBytes       uint64 `json:"pcmBytes"`
	Ticks          uint64 `json:"ticks"`
	Warnings       uint64 `json:"warnings"`
	LastError      string `json:"lastError,omitempty"`
}

// Session owns a ring buffer, a device registration and a drain loop.
type Session struct {
	id       string
	dev      Device
	sink     Sink
	format   audio.Format
	mapping  audio.ChannelMapping
	interval time.Duration
	logger   *zap.Logger

	rb         *ringbuffer.RingBuffer
	frameBytes int

	// Producer side.
	dropped atomic.Uint64

	// Consumer side, guarded by drainMu.
	drainMu         sync.Mutex
	scratch         []byte
	pcm             []byte
	monitor         overflow.Monitor
	sinkErr         error
	droppedReported uint64

	// Snapshots for Stats.
	pcmBytes atomic.Uint64
	ticks    atomic.Uint64
	warnings atomic.Uint64

	// Lifecycle, guarded by mu.
	mu       sync.Mutex
	state    atomic.Int32
	quit     chan struct{}
	loopDone chan struct{}
	stopErr  error

	errs     chan error
	errMu    sync.Mutex
	firstErr error
}

// NewSession validates the device format and channel mapping and allocates
// every buffer the session will use. Configuration errors surface here,
// before any audio flows.
func NewSession(dev Device, sink Sink, cfg Config, logger *zap.Logger) (*Session, error) {
	format := dev.Format()
	if err := format.Validate(); err != nil {
		return nil, err
	}

	outCh := cfg.OutputChannels
	if outCh == 0 {
		outCh = format.Channels
	}
	mapping, err := audio.NewChannelMapping(format.Channels, outCh)
	if err != nil {
		return nil, err
	}

	interval := cfg.DrainInterval
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	bufDur := cfg.BufferDuration
	if bufDur <= 0 {
		bufDur = DefaultBufferDuration
	}
	chunkFrames := cfg.ChunkFrames
	if chunkFrames <= 0 {
		chunkFrames = DefaultChunkFrames
	}

	id := uuid.New().String()
	s := &Session{
		id:         id,
		dev:        dev,
		sink:       sink,
		format:     format,
		mapping:    mapping,
		interval:   interval,
		logger:     logger.With(zap.String("session", id), zap.String("device", dev.Name())),
		rb:         ringbuffer.New(ringbuffer.SizeFor(bufDur, format.SampleRate, format.Channels, format.SampleWidth)),
		frameBytes: format.FrameBytes(),
		scratch:    make([]byte, chunkFrames*format.FrameBytes()),
		pcm:        make([]byte, chunkFrames*mapping.DstFrameBytes()),
		errs:       make(chan error, errChanSize),
	}
	s.monitor = overflow.Monitor{
		HighWater: cfg.HighWater,
		OnWarning: s.onOverflowWarning,
	}
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Start registers the producer callback and starts the drain loop. A
// registration failure leaves the session idle and is returned wrapped in
// ErrRegistration; retrying is the caller's decision.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	}

	if err := s.dev.Register(s.produce); err != nil {
		metrics.RegistrationFailuresTotal.Inc()
		s.logger.Error("device registration failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	s.quit = make(chan struct{})
	s.loopDone = make(chan struct{})
	s.state.Store(int32(StateRunning))
	go s.drainLoop(s.quit, s.loopDone)

	metrics.SessionsStartedTotal.Inc()
	metrics.ActiveSessions.Inc()
	s.logger.Info("capture started",
		zap.Stringer("format", s.format),
		zap.Int("outputChannels", s.mapping.Dst()),
		zap.Int("ringBytes", s.rb.Cap()),
		zap.Duration("drainInterval", s.interval),
	)
	return nil
}

// Stop unregisters the callback, stops the drain loop, drains what is left
// and finalizes the sink exactly once. It is idempotent and may be called
// from any goroutine; every call returns the same error.
//
// Stop on a session that was never started moves it from idle straight to
// stopped: there is nothing to unregister or drain, but the sink is still
// finalized so the file is left complete.
//
// The returned error joins any streaming sink failure, a final drain
// failure, a finalize failure and an unregister failure. The session is
// stopped regardless.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateStopped {
		return s.stopErr
	}

	var errs []error
	if s.State() == StateRunning {
		// No producer writes happen after this returns.
		if err := s.dev.Unregister(); err != nil {
			s.logger.Error("device unregister failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("unregister device: %w", err))
		}
		close(s.quit)
		<-s.loopDone
		metrics.ActiveSessions.Dec()
	}

	// Bounded by the occupancy observed now.
	s.drainOnce()
	if err := s.Err(); err != nil {
		errs = append(errs, err)
	}

	if err := s.sink.Finalize(); err != nil {
		metrics.SinkErrorsTotal.WithLabelValues("finalize").Inc()
		s.logger.Error("sink finalize failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("%w: finalize: %w", ErrSink, err))
	}

	s.stopErr = errors.Join(errs...)
	s.state.Store(int32(StateStopped))
	close(s.errs)

	st := s.Stats()
	s.logger.Info("capture stopped",
		zap.Uint64("bytesConsumed", st.BytesConsumed),
		zap.Uint64("bytesDropped", st.BytesDropped),
		zap.Uint64("pcmBytes", st.PCMBytes),
		zap.Uint64("warnings", st.Warnings),
		zap.Error(s.stopErr),
	)
	return s.stopErr
}

// Errors delivers failures that happen while streaming. It is buffered and
// never blocks the drain loop; if the reader falls behind, later errors are
// only available through Err. The channel is closed when Stop completes.
func (s *Session) Errors() <-chan error {
	return s.errs
}

// Err returns the first streaming failure, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.firstErr
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	st := Stats{
		ID:             s.id,
		Device:         s.dev.Name(),
		State:          s.State().String(),
		Format:         s.format.String(),
		OutputChannels: s.mapping.Dst(),
		CapacityBytes:  s.rb.Cap(),
		OccupancyBytes: s.rb.Available(),
		BytesWritten:   s.rb.Written(),
		BytesConsumed:  s.rb.Consumed(),
		BytesDropped:   s.dropped.Load(),
		PCMBytes:       s.pcmBytes.Load(),
		Ticks:          s.ticks.Load(),
		Warnings:       s.warnings.Load(),
	}
	if err := s.Err(); err != nil {
		st.LastError = err.Error()
	}
	return st
}

func (s *Session) reportErr(err error) {
	s.errMu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.errMu.Unlock()

	select {
	case s.errs <- err:
	default:
	}
}

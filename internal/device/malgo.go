package device

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/pcmtap/internal/audio"
)

// Malgo captures from the system's default input device through miniaudio.
// miniaudio converts whatever the hardware produces to the requested float32
// format, so Format is exactly what was asked for.
type Malgo struct {
	format audio.Format
	logger *zap.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMalgo initializes a miniaudio context. backends may be nil to let
// miniaudio pick the platform default. Close releases the context.
func NewMalgo(sampleRate, channels int, backends []malgo.Backend, logger *zap.Logger) (*Malgo, error) {
	format := audio.Float32Format(sampleRate, channels)
	if err := format.Validate(); err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, func(msg string) {
		logger.Debug("miniaudio", zap.String("msg", strings.TrimSpace(msg)))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Malgo{format: format, logger: logger, ctx: ctx}, nil
}

// Name identifies the default capture device.
func (m *Malgo) Name() string { return "malgo:default" }

// Format returns the requested capture format.
func (m *Malgo) Format() audio.Format { return m.format }

// Register opens the default capture device with cb as its data callback
// and starts it.
func (m *Malgo) Register(cb func([]byte)) error {
	if cb == nil {
		return ErrNilCallback
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return fmt.Errorf("audio context closed")
	}
	if m.device != nil {
		return ErrAlreadyRegistered
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(m.format.Channels)
	cfg.SampleRate = uint32(m.format.SampleRate)

	dev, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			cb(input)
		},
	})
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start capture device: %w", err)
	}

	m.device = dev
	m.logger.Info("capture device started",
		zap.Stringer("format", m.format),
		zap.Uint32("deviceChannels", dev.CaptureChannels()),
		zap.Uint32("deviceRate", dev.SampleRate()),
	)
	return nil
}

// Unregister stops and releases the capture device. miniaudio joins its
// worker thread before returning, so no data callback outlives it.
func (m *Malgo) Unregister() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return nil
	}
	err := m.device.Stop()
	m.device.Uninit()
	m.device = nil
	if err != nil {
		return fmt.Errorf("stop capture device: %w", err)
	}
	return nil
}

// Close unregisters any callback and releases the audio context.
func (m *Malgo) Close() error {
	err := m.Unregister()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return err
	}
	if uerr := m.ctx.Uninit(); uerr != nil && err == nil {
		err = fmt.Errorf("uninit audio context: %w", uerr)
	}
	m.ctx.Free()
	m.ctx = nil
	return err
}

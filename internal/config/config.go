package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/RenatoCabral2022/pcmtap/internal/audio"
	"github.com/RenatoCabral2022/pcmtap/internal/ringbuffer"
)

// Sources accepted in PCMTAP_SOURCE.
const (
	SourceDevice = "device"
	SourceTone   = "tone"
	SourceFFmpeg = "ffmpeg"
)

// minBufferIntervals is how many drain intervals the ring must hold.
const minBufferIntervals = 4

type Config struct {
	Output string
	Source string
	Input  string

	SampleRate     int
	Channels       int
	OutputChannels int

	DrainInterval  time.Duration
	BufferDuration time.Duration
	HighWater      float64

	// Duration stops the capture after this long. Zero runs until signalled.
	Duration time.Duration

	// StatusAddr enables the status API when non-empty.
	StatusAddr string

	ToneFreq float64

	Verbose bool
	LogJSON bool

	parseErrs []error
}

// Load reads the configuration from PCMTAP_* environment variables. Values
// that fail to parse are reported by Validate.
func Load() *Config {
	return load(os.Getenv)
}

func load(getenv func(string) string) *Config {
	e := env{get: getenv}
	cfg := &Config{
		Output:         e.getEnv("PCMTAP_OUTPUT", "capture.wav"),
		Source:         strings.ToLower(e.getEnv("PCMTAP_SOURCE", SourceDevice)),
		Input:          e.getEnv("PCMTAP_INPUT", ""),
		SampleRate:     e.getInt("PCMTAP_SAMPLE_RATE", 48000),
		Channels:       e.getInt("PCMTAP_CHANNELS", 2),
		OutputChannels: e.getInt("PCMTAP_OUTPUT_CHANNELS", 0),
		DrainInterval:  e.getDuration("PCMTAP_DRAIN_INTERVAL", 10*time.Millisecond),
		BufferDuration: e.getDuration("PCMTAP_BUFFER", 500*time.Millisecond),
		HighWater:      e.getFloat("PCMTAP_HIGH_WATER", 0.75),
		Duration:       e.getDuration("PCMTAP_DURATION", 0),
		StatusAddr:     e.getEnv("PCMTAP_STATUS_ADDR", ""),
		ToneFreq:       e.getFloat("PCMTAP_TONE_FREQ", 440),
		Verbose:        e.getBool("PCMTAP_VERBOSE", false),
		LogJSON:        e.getBool("PCMTAP_LOG_JSON", false),
	}
	cfg.parseErrs = e.errs
	return cfg
}

// EffectiveOutputChannels returns the sink channel count.
func (c *Config) EffectiveOutputChannels() int {
	if c.OutputChannels == 0 {
		return c.Channels
	}
	return c.OutputChannels
}

// Validate rejects configurations that cannot produce a session.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)

	switch c.Source {
	case SourceDevice, SourceTone:
	case SourceFFmpeg:
		if c.Input == "" {
			errs = append(errs, errors.New("PCMTAP_INPUT is required for the ffmpeg source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("PCMTAP_OUTPUT is required"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}

	if _, err := audio.NewChannelMapping(c.Channels, c.EffectiveOutputChannels()); err != nil {
		errs = append(errs, err)
	}

	if c.DrainInterval <= 0 {
		errs = append(errs, fmt.Errorf("drain interval must be positive, got %s", c.DrainInterval))
	}
	if floor := minBufferIntervals * c.DrainInterval; c.DrainInterval > 0 && c.BufferDuration < floor {
		errs = append(errs, fmt.Errorf("buffer %s must hold at least %s (%d drain intervals)",
			c.BufferDuration, floor, minBufferIntervals))
	}
	if c.BufferDuration > ringbuffer.MaxDuration {
		errs = append(errs, fmt.Errorf("buffer %s exceeds the %s maximum", c.BufferDuration, ringbuffer.MaxDuration))
	}
	// Occupancy never exceeds capacity, so a mark of 1 would never warn.
	if c.HighWater <= 0 || c.HighWater >= 1 {
		errs = append(errs, fmt.Errorf("high-water mark must be in (0, 1), got %g", c.HighWater))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", c.Duration))
	}
	if c.Source == SourceTone && c.ToneFreq <= 0 {
		errs = append(errs, fmt.Errorf("tone frequency must be positive, got %g", c.ToneFreq))
	}
	return errors.Join(errs...)
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) getEnv(key, fallback string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return fallback
}

func (e *env) getInt(key string, fallback int) int {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (e *env) getFloat(key string, fallback float64) float64 {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func (e *env) getBool(key string, fallback bool) bool {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (e *env) getDuration(key string, fallback time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

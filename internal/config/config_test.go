package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RenatoCabral2022/pcmtap/internal/audio"
	"github.com/RenatoCabral2022/pcmtap/internal/ringbuffer"
)

func fromMap(m map[string]string) *Config {
	return load(func(k string) string { return m[k] })
}

func TestLoad_Defaults(t *testing.T) {
	cfg := fromMap(nil)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "capture.wav", cfg.Output)
	assert.Equal(t, SourceDevice, cfg.Source)
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, 2, cfg.Channels)
	assert.Equal(t, 2, cfg.EffectiveOutputChannels())
	assert.Equal(t, 10*time.Millisecond, cfg.DrainInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.BufferDuration)
	assert.Equal(t, 0.75, cfg.HighWater)
	assert.Zero(t, cfg.Duration)
	assert.Empty(t, cfg.StatusAddr)
	assert.False(t, cfg.Verbose)
}

func TestLoad_Overrides(t *testing.T) {
	cfg := fromMap(map[string]string{
		"PCMTAP_OUTPUT":          "/tmp/out.wav",
		"PCMTAP_SOURCE":          "FFmpeg",
		"PCMTAP_INPUT":           "in.mp3",
		"PCMTAP_SAMPLE_RATE":     "16000",
		"PCMTAP_CHANNELS":        "2",
		"PCMTAP_OUTPUT_CHANNELS": "1",
		"PCMTAP_DRAIN_INTERVAL":  "20ms",
		"PCMTAP_BUFFER":          "2s",
		"PCMTAP_HIGH_WATER":      "0.9",
		"PCMTAP_DURATION":        "1m",
		"PCMTAP_STATUS_ADDR":     ":9090",
		"PCMTAP_VERBOSE":         "true",
		"PCMTAP_LOG_JSON":        "1",
	})
	require.NoError(t, cfg.Validate())

	assert.Equal(t, SourceFFmpeg, cfg.Source)
	assert.Equal(t, 16000, cfg.SampleRate)
	assert.Equal(t, 1, cfg.EffectiveOutputChannels())
	assert.Equal(t, 20*time.Millisecond, cfg.DrainInterval)
	assert.Equal(t, 2*time.Second, cfg.BufferDuration)
	assert.Equal(t, 0.9, cfg.HighWater)
	assert.Equal(t, time.Minute, cfg.Duration)
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.LogJSON)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unparsable int", map[string]string{"PCMTAP_SAMPLE_RATE": "fast"}, "PCMTAP_SAMPLE_RATE"},
		{"unparsable duration", map[string]string{"PCMTAP_DRAIN_INTERVAL": "10"}, "PCMTAP_DRAIN_INTERVAL"},
		{"unparsable bool", map[string]string{"PCMTAP_VERBOSE": "loud"}, "PCMTAP_VERBOSE"},
		{"unknown source", map[string]string{"PCMTAP_SOURCE": "network"}, "unknown source"},
		{"ffmpeg without input", map[string]string{"PCMTAP_SOURCE": "ffmpeg"}, "PCMTAP_INPUT"},
		{"mono to stereo", map[string]string{"PCMTAP_CHANNELS": "1", "PCMTAP_OUTPUT_CHANNELS": "2"}, "unsupported channel mapping: 1→2"},
		{"surround", map[string]string{"PCMTAP_CHANNELS": "6"}, "unsupported channel mapping: 6→6"},
		{"zero rate", map[string]string{"PCMTAP_SAMPLE_RATE": "0"}, "sample rate"},
		{"negative interval", map[string]string{"PCMTAP_DRAIN_INTERVAL": "-1ms"}, "drain interval"},
		{"buffer too small", map[string]string{"PCMTAP_DRAIN_INTERVAL": "50ms", "PCMTAP_BUFFER": "100ms"}, "drain intervals"},
		{"buffer too large", map[string]string{"PCMTAP_BUFFER": "100h"}, "exceeds the 10s maximum"},
		{"buffer just over maximum", map[string]string{"PCMTAP_BUFFER": "10.5s"}, "exceeds"},
		{"high water", map[string]string{"PCMTAP_HIGH_WATER": "1.5"}, "high-water"},
		{"high water at capacity", map[string]string{"PCMTAP_HIGH_WATER": "1"}, "high-water"},
		{"negative duration", map[string]string{"PCMTAP_DURATION": "-1s"}, "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fromMap(tt.env).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ChannelMappingSentinel(t *testing.T) {
	err := fromMap(map[string]string{"PCMTAP_CHANNELS": "1", "PCMTAP_OUTPUT_CHANNELS": "2"}).Validate()
	assert.ErrorIs(t, err, audio.ErrUnsupportedMapping)

	cfg := fromMap(map[string]string{"PCMTAP_OUTPUT_CHANNELS": "1"})
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BufferAtMaximum(t *testing.T) {
	cfg := fromMap(map[string]string{"PCMTAP_BUFFER": ringbuffer.MaxDuration.String()})
	assert.NoError(t, cfg.Validate())
}

package audio

import (
	"errors"
	"fmt"
)

// Float32Width is the byte width of one raw sample delivered by a device.
const Float32Width = 4

// PCM16Width is the byte width of one converted output sample.
const PCM16Width = 2

// ErrUnsupportedFormat is returned for device formats the converter cannot take.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format describes the raw frames a device delivers: interleaved samples,
// one per channel, each SampleWidth bytes wide.
type Format struct {
	SampleRate  int
	Channels    int
	SampleWidth int
}

// Float32Format returns the format of interleaved float32 frames.
func Float32Format(sampleRate, channels int) Format {
	return Format{SampleRate: sampleRate, Channels: channels, SampleWidth: Float32Width}
}

// FrameBytes returns the size of one frame in bytes.
func (f Format) FrameBytes() int {
	return f.Channels * f.SampleWidth
}

// Validate checks that f describes float32 frames with a usable rate and
// channel count.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	if f.SampleWidth != Float32Width {
		return fmt.Errorf("%w: %d-byte samples, want float32", ErrUnsupportedFormat, f.SampleWidth)
	}
	return nil
}

// String returns e.g. "48000Hz stereo f32".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s %dbit", f.SampleRate, ch, f.SampleWidth*8)
}

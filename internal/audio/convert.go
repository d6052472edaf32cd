package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedMapping is returned for channel combinations the converter
// does not define.
var ErrUnsupportedMapping = errors.New("unsupported channel mapping")

// ChannelMapping is a validated source/target channel pair. The only valid
// pairs are 1→1, 2→2 and 2→1 (downmix).
type ChannelMapping struct {
	src int
	dst int
}

// NewChannelMapping validates a source/target channel pair.
func NewChannelMapping(src, dst int) (ChannelMapping, error) {
	switch {
	case src == dst && (src == 1 || src == 2):
	case src == 2 && dst == 1:
	default:
		return ChannelMapping{}, fmt.Errorf("%w: %d→%d channels", ErrUnsupportedMapping, src, dst)
	}
	return ChannelMapping{src: src, dst: dst}, nil
}

// Src returns the source channel count.
func (m ChannelMapping) Src() int { return m.src }

// Dst returns the target channel count.
func (m ChannelMapping) Dst() int { return m.dst }

// Downmix reports whether the mapping averages stereo to mono.
func (m ChannelMapping) Downmix() bool { return m.src == 2 && m.dst == 1 }

// SrcFrameBytes is the size of one float32 source frame.
func (m ChannelMapping) SrcFrameBytes() int { return m.src * Float32Width }

// DstFrameBytes is the size of one int16 output frame.
func (m ChannelMapping) DstFrameBytes() int { return m.dst * PCM16Width }

// OutputSize returns the number of PCM bytes ConvertFloat32 produces for
// srcBytes of input. Trailing partial frames are not counted.
func (m ChannelMapping) OutputSize(srcBytes int) int {
	return srcBytes / m.SrcFrameBytes() * m.DstFrameBytes()
}

// ConvertFloat32 converts interleaved little-endian float32 frames in src to
// interleaved little-endian signed 16-bit frames in dst and returns the number
// of bytes written. dst must hold at least m.OutputSize(len(src)) bytes.
// A trailing partial frame in src is ignored. ConvertFloat32 does not allocate.
//
// Samples are clamped to [-1, 1], scaled by 32767 and truncated toward zero.
// Downmixed samples are averaged before clamping.
func ConvertFloat32(dst, src []byte, m ChannelMapping) int {
	frames := len(src) / m.SrcFrameBytes()
	out := 0

	if m.Downmix() {
		for i := 0; i < frames; i++ {
			l := readFloat32(src[i*8:])
			r := readFloat32(src[i*8+4:])
			putPCM16(dst[out:], (l+r)/2)
			out += PCM16Width
		}
		return out
	}

	samples := frames * m.src
	for i := 0; i < samples; i++ {
		putPCM16(dst[out:], readFloat32(src[i*Float32Width:]))
		out += PCM16Width
	}
	return out
}

// ToPCM16 applies the clamp-and-truncate rule to a single sample.
func ToPCM16(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	} else if v != v {
		// NaN
		v = 0
	}
	return int16(v * math.MaxInt16)
}

func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putPCM16(b []byte, v float32) {
	binary.LittleEndian.PutUint16(b, uint16(ToPCM16(v)))
}

package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelMapping(t *testing.T) {
	tests := []struct {
		src, dst int
		wantErr  bool
	}{
		{1, 1, false},
		{2, 2, false},
		{2, 1, false},
		{1, 2, true},
		{3, 3, true},
		{6, 2, true},
		{0, 0, true},
	}
	for _, tt := range tests {
		_, err := NewChannelMapping(tt.src, tt.dst)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedMapping, "%d→%d", tt.src, tt.dst)
		} else {
			assert.NoError(t, err, "%d→%d", tt.src, tt.dst)
		}
	}
}

func TestToPCM16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{1.5, 32767},
		{-2, -32767},
		{0.5, 16383},   // 16383.5 truncated
		{-0.5, -16383}, // truncated toward zero
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToPCM16(tt.in), "input %v", tt.in)
	}
}

func TestConvertFloat32Passthrough(t *testing.T) {
	m, err := NewChannelMapping(2, 2)
	require.NoError(t, err)

	src := Float32sToBytes([]float32{0.25, -0.25, 1.2, -1.2})
	dst := make([]byte, m.OutputSize(len(src)))
	n := ConvertFloat32(dst, src, m)

	require.Equal(t, 8, n)
	assert.Equal(t, []int16{8191, -8191, 32767, -32767}, BytesToInt16(dst[:n]))
}

func TestConvertFloat32Downmix(t *testing.T) {
	m, err := NewChannelMapping(2, 1)
	require.NoError(t, err)

	src := Float32sToBytes([]float32{
		1.0, -1.0, // cancels to silence
		0.5, 0.5,
		1.0, 1.0,
		-0.8, -1.0,
	})
	dst := make([]byte, m.OutputSize(len(src)))
	n := ConvertFloat32(dst, src, m)

	require.Equal(t, 8, n)
	assert.Equal(t, []int16{0, 16383, 32767, -29490}, BytesToInt16(dst[:n]))
}

func TestConvertFloat32IgnoresPartialFrame(t *testing.T) {
	m, err := NewChannelMapping(2, 2)
	require.NoError(t, err)

	src := Float32sToBytes([]float32{0.1, 0.2, 0.3})
	assert.Equal(t, 4, m.OutputSize(len(src)))

	dst := make([]byte, 8)
	n := ConvertFloat32(dst, src, m)
	assert.Equal(t, 4, n)
}

func TestConvertFloat32SineWithinOneLSB(t *testing.T) {
	m, err := NewChannelMapping(1, 1)
	require.NoError(t, err)

	sine := GenerateSineWave(480, 48000, 100, 1.0) // one full cycle
	src := Float32sToBytes(sine)
	dst := make([]byte, m.OutputSize(len(src)))
	ConvertFloat32(dst, src, m)

	got := BytesToInt16(dst)
	require.Len(t, got, len(sine))
	for i, s := range sine {
		want := float64(s * 32767)
		assert.InDelta(t, want, float64(got[i]), 1.0, "sample %d", i)
	}
}

func TestConvertFloat32DoesNotAllocate(t *testing.T) {
	m, err := NewChannelMapping(2, 1)
	require.NoError(t, err)

	src := Float32sToBytes(Interleave(GenerateSineWave(256, 48000, 440, 0.5), 2))
	dst := make([]byte, m.OutputSize(len(src)))
	allocs := testing.AllocsPerRun(50, func() {
		ConvertFloat32(dst, src, m)
	})
	assert.Zero(t, allocs)
}

func TestFormatValidate(t *testing.T) {
	assert.NoError(t, Float32Format(48000, 2).Validate())
	assert.ErrorIs(t, Format{SampleRate: 48000, Channels: 2, SampleWidth: 2}.Validate(), ErrUnsupportedFormat)
	assert.ErrorIs(t, Float32Format(0, 2).Validate(), ErrUnsupportedFormat)
	assert.ErrorIs(t, Float32Format(48000, 0).Validate(), ErrUnsupportedFormat)
	assert.Equal(t, 8, Float32Format(48000, 2).FrameBytes())
	assert.Equal(t, "48000Hz stereo 32bit", Float32Format(48000, 2).String())
}

func TestToneFillIsPhaseContinuous(t *testing.T) {
	tone := &Tone{Frequency: 1000, Amplitude: 1, SampleRate: 48000, Channels: 2}
	a := make([]float32, 96)
	b := make([]float32, 96)
	tone.Fill(a)
	tone.Fill(b)

	ref := GenerateSineWave(96, 48000, 1000, 1)
	for i := 0; i < 48; i++ {
		assert.InDelta(t, ref[i], a[i*2], 1e-5)
		assert.Equal(t, a[i*2], a[i*2+1])
		assert.InDelta(t, ref[48+i], b[i*2], 1e-4)
	}
}

func TestPCM16ToIntsInto(t *testing.T) {
	pcm := []byte{0xFF, 0x7F, 0x01, 0x80, 0x00, 0x00}
	buf := make([]int, 0, 1)
	got := PCM16ToIntsInto(buf, pcm)
	assert.Equal(t, []int{32767, -32767, 0}, got)

	reused := PCM16ToIntsInto(got, pcm[:2])
	assert.Equal(t, []int{32767}, reused)
}

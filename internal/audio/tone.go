package audio

import "math"

const (
	ToneFrequency = 440.0
	ToneAmplitude = 0.5
)

// Tone is a phase-continuous sine oscillator producing interleaved float32
// frames with the same value on every channel.
type Tone struct {
	Frequency  float64
	Amplitude  float64
	SampleRate int
	Channels   int

	phase float64
}

// Fill writes len(dst)/Channels frames into dst and advances the phase.
func (t *Tone) Fill(dst []float32) {
	step := 2 * math.Pi * t.Frequency / float64(t.SampleRate)
	frames := len(dst) / t.Channels
	for i := 0; i < frames; i++ {
		v := float32(t.Amplitude * math.Sin(t.phase))
		for c := 0; c < t.Channels; c++ {
			dst[i*t.Channels+c] = v
		}
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
}

// GenerateSineWave produces one channel of a sine wave at the given frequency
// and amplitude, numFrames long.
func GenerateSineWave(numFrames, sampleRate int, frequency, amplitude float64) []float32 {
	samples := make([]float32, numFrames)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return samples
}

// Interleave repeats mono samples across channels.
func Interleave(mono []float32, channels int) []float32 {
	out := make([]float32, len(mono)*channels)
	for i, s := range mono {
		for c := 0; c < channels; c++ {
			out[i*channels+c] = s
		}
	}
	return out
}

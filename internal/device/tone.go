package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RenatoCabral2022/pcmtap/internal/audio"
)

// Tone is a synthetic device that delivers a sine wave every Period on its
// own goroutine, at the pace of the audio clock.
type Tone struct {
	format audio.Format
	frames int

	mu     sync.Mutex
	osc    audio.Tone
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTone returns a tone device. Zero frequency or amplitude select the
// defaults; a zero period selects DefaultPeriod.
func NewTone(sampleRate, channels int, frequency, amplitude float64, period time.Duration) (*Tone, error) {
	format := audio.Float32Format(sampleRate, channels)
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frequency <= 0 {
		frequency = audio.ToneFrequency
	}
	if amplitude <= 0 {
		amplitude = audio.ToneAmplitude
	}
	return &Tone{
		format: format,
		frames: periodFrames(sampleRate, period),
		osc: audio.Tone{
			Frequency:  frequency,
			Amplitude:  amplitude,
			SampleRate: sampleRate,
			Channels:   channels,
		},
	}, nil
}

// Name reports the tone frequency, e.g. "tone:440Hz".
func (t *Tone) Name() string {
	return fmt.Sprintf("tone:%gHz", t.osc.Frequency)
}

// Format returns the float32 format the generator produces.
func (t *Tone) Format() audio.Format { return t.format }

// Register starts the generator goroutine.
func (t *Tone) Register(cb func([]byte)) error {
	if cb == nil {
		return ErrNilCallback
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return ErrAlreadyRegistered
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, cb, t.done)
	return nil
}

// Unregister stops the generator and waits for it to exit.
func (t *Tone) Unregister() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (t *Tone) run(ctx context.Context, cb func([]byte), done chan<- struct{}) {
	defer close(done)

	samples := make([]float32, t.frames*t.format.Channels)
	buf := make([]byte, len(samples)*audio.Float32Width)
	p := newPacer(t.format.SampleRate)
	for {
		// The oscillator is only touched here; mu guards registration.
		t.osc.Fill(samples)
		cb(audio.PutFloat32s(buf, samples))
		if !p.wait(ctx, t.frames) {
			return
		}
	}
}

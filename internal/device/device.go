// Package device provides capture.Device implementations: a synthetic tone,
// the platform capture device through miniaudio, and an ffmpeg-decoded file
// or URL paced at real time.
//
// Every device delivers whole float32 frames and guarantees that no callback
// starts or is still running once Unregister returns.
package device

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyRegistered is returned by Register while a callback is attached.
	ErrAlreadyRegistered = errors.New("device callback already registered")

	// ErrNilCallback is returned by Register when cb is nil.
	ErrNilCallback = errors.New("nil device callback")
)

// DefaultPeriod is the delivery period of the paced devices.
const DefaultPeriod = 10 * time.Millisecond

// pacer holds a goroutine to the audio clock: after delivering n frames in
// total it sleeps until n/rate has elapsed since start.
type pacer struct {
	rate   int
	start  time.Time
	frames int64
	timer  *time.Timer
}

func newPacer(rate int) *pacer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &pacer{rate: rate, start: time.Now(), timer: t}
}

// wait accounts for frames just delivered and blocks until they are due.
// It returns false if ctx is done first.
func (p *pacer) wait(ctx context.Context, frames int) bool {
	p.frames += int64(frames)
	due := p.start.Add(time.Duration(p.frames * int64(time.Second) / int64(p.rate)))
	d := time.Until(due)
	if d <= 0 {
		return ctx.Err() == nil
	}
	p.timer.Reset(d)
	select {
	case <-ctx.Done():
		if !p.timer.Stop() {
			<-p.timer.C
		}
		return false
	case <-p.timer.C:
		return true
	}
}

func periodFrames(rate int, period time.Duration) int {
	if period <= 0 {
		period = DefaultPeriod
	}
	n := int(int64(rate) * int64(period) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return n
}

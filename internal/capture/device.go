package capture

import "github.com/RenatoCabral2022/pcmtap/internal/audio"

// Device is the platform audio subsystem as seen by a session: a source of
// raw interleaved float32 frames delivered through a callback.
type Device interface {
	// Name identifies the device in logs.
	Name() string

	// Format describes the frames passed to the callback.
	Format() audio.Format

	// Register attaches cb and begins delivery. cb is invoked on the
	// device's own thread with whole frames; it must not retain data.
	Register(cb func(data []byte)) error

	// Unregister detaches the callback. No invocation of cb may start or
	// still be running once Unregister returns.
	Unregister() error
}

// Sink receives converted 16-bit PCM.
type Sink interface {
	// Append writes interleaved little-endian int16 samples. The slice is
	// reused by the caller after Append returns.
	Append(pcm []byte) error

	// Finalize completes the container and releases the resource.
	Finalize() error
}

package capture

import "errors"

var (
	// ErrRegistration wraps failures to attach the producer callback.
	ErrRegistration = errors.New("device registration failed")

	// ErrAlreadyStarted is returned by Start on a running session.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrStopped is returned by Start on a stopped session. Sessions are not
	// restartable.
	ErrStopped = errors.New("session stopped")

	// ErrSink wraps append and finalize failures of the PCM sink.
	ErrSink = errors.New("pcm sink failed")
)

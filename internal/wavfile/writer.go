// Package wavfile is the PCM sink: an uncompressed 16-bit WAV file whose
// size fields are backfilled when the writer is finalized.
package wavfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	pcm "github.com/RenatoCabral2022/pcmtap/internal/audio"
)

const (
	bitDepth       = 16
	wavFormatPCM   = 1
	maxDataBytes   = 1<<32 - 1 - 36
	createDirPerms = 0o755
)

// ErrFinalized is returned by Append and Finalize after Finalize.
var ErrFinalized = errors.New("wav writer already finalized")

// ErrTooLarge is returned when an append would overflow the 32-bit RIFF size fields.
var ErrTooLarge = errors.New("wav data exceeds 4 GiB")

// Writer streams interleaved s16le PCM into a WAV file.
type Writer struct {
	path   string
	file   *os.File
	enc    *wav.Encoder
	format *audio.Format

	mu        sync.Mutex
	ints      []int
	buf       audio.IntBuffer
	dataBytes int64
	finalized bool
}

// Create creates (or truncates) path, creating parent directories as
// needed, and prepares a 16-bit PCM WAV writer.
func Create(path string, sampleRate, channels int) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid wav format: %d Hz, %d channels", sampleRate, channels)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, createDirPerms); err != nil {
			return nil, fmt.Errorf("create directories: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}

	format := &audio.Format{SampleRate: sampleRate, NumChannels: channels}
	w := &Writer{
		path:   path,
		file:   f,
		enc:    wav.NewEncoder(f, sampleRate, bitDepth, channels, wavFormatPCM),
		format: format,
	}
	w.buf = audio.IntBuffer{Format: format, SourceBitDepth: bitDepth}
	return w, nil
}

// Path returns the file path.
func (w *Writer) Path() string { return w.path }

// DataBytes returns the number of PCM bytes appended so far.
func (w *Writer) DataBytes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dataBytes
}

// Append writes interleaved s16le samples. Bytes past the last whole frame
// are ignored.
func (w *Writer) Append(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return ErrFinalized
	}
	if len(data) == 0 {
		return nil
	}
	if w.dataBytes+int64(len(data)) > maxDataBytes {
		return ErrTooLarge
	}

	w.ints = pcm.PCM16ToIntsInto(w.ints, data)
	w.buf.Data = w.ints
	if err := w.enc.Write(&w.buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	frames := len(w.ints) / w.format.NumChannels
	w.dataBytes += int64(frames * w.format.NumChannels * 2)
	return nil
}

// Finalize patches the RIFF and data chunk sizes and closes the file. Only
// the first call does any work.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return ErrFinalized
	}
	w.finalized = true

	var errs []error
	if w.dataBytes == 0 {
		// The encoder only emits its header on the first write.
		w.buf.Data = w.ints[:0]
		if err := w.enc.Write(&w.buf); err != nil {
			errs = append(errs, fmt.Errorf("write wav header: %w", err))
		}
	}
	if err := w.enc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("finalize wav header: %w", err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close wav file: %w", err))
	}
	return errors.Join(errs...)
}

package audiocache

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrReleased indicates use of a handle after Release.
var ErrReleased = errors.New("audio handle released")

// Handle is synthesized audio kept as a WAV file on disk until released.
type Handle struct {
	mu       sync.Mutex
	path     string
	released bool
}

// WriteHandle writes samples to a new WAV file in dir. An empty dir means
// the system temp directory.
func WriteHandle(dir string, sampleRate int, samples []float32) (*Handle, error) {
	file, err := os.CreateTemp(dir, "segment-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}

	writer := bufio.NewWriter(file)

	err = EncodeWAV(writer, sampleRate, samples)
	if err == nil {
		err = writer.Flush()
	}

	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(file.Name())

		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	return &Handle{path: file.Name()}, nil
}

// Path returns the WAV file location.
func (h *Handle) Path() string {
	return h.path
}

// Samples reads the audio back.
func (h *Handle) Samples() ([]float32, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, 0, ErrReleased
	}

	data, err := os.ReadFile(h.path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read audio file: %w", err)
	}

	return DecodeWAV(data)
}

// CopyTo writes the WAV file to path.
func (h *Handle) CopyTo(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return ErrReleased
	}

	source, err := os.Open(h.path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer source.Close()

	target, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", path, err)
	}

	_, err = io.Copy(target, source)
	closeErr := target.Close()

	if err != nil {
		return fmt.Errorf("failed to copy audio to '%s': %w", path, err)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close '%s': %w", path, closeErr)
	}

	return nil
}

// Release removes the file. Releasing twice is a no-op.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}

	h.released = true

	err := os.Remove(h.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove audio file: %w", err)
	}

	return nil
}

// Released reports whether Release was called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.released
}

package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Spool writes delivered clips to a cycling set of audio<N>.wav files so an
// external player that only consumes files can follow the stream. The
// pacing ring itself stays in-memory; the spool is an optional sink.
type Spool struct {
	dir      string
	capacity int
	next     int
	mu       sync.Mutex
}

// NewSpool creates the spool directory if needed and returns a spool cycling
// over capacity files.
func NewSpool(dir string, capacity int) (*Spool, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory %s: %w", dir, err)
	}
	return &Spool{dir: dir, capacity: capacity}, nil
}

// WriteClip writes an encoded clip to the next file in the cycle and
// returns its path.
func (s *Spool) WriteClip(clip []byte) (string, error) {
	s.mu.Lock()
	index := s.next
	s.next = (s.next + 1) % s.capacity
	s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("audio%d.wav", index))
	if err := os.WriteFile(path, clip, 0o644); err != nil {
		return "", fmt.Errorf("failed to write clip %s: %w", path, err)
	}
	return path, nil
}

// Cleanup removes the spool files. Missing files are not an error.
func (s *Spool) Cleanup() error {
	var firstErr error
	for i := 0; i < s.capacity; i++ {
		path := filepath.Join(s.dir, fmt.Sprintf("audio%d.wav", i))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return firstErr
}

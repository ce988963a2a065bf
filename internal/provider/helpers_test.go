package provider

import (
	"sync"

	"codeberg.org/mutker/hostlink/internal/frame"
)

type recordingSender struct {
	mu     sync.Mutex
	frames []frame.Frame
	err    error
	panics bool
}

func (s *recordingSender) Send(f frame.Frame) error {
	if s.panics {
		panic("sender exploded")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, f)

	return nil
}

func (s *recordingSender) Frames() []frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]frame.Frame(nil), s.frames...)
}

func (s *recordingSender) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// sequence replays readings, repeating the last one once exhausted
type sequence[T any] struct {
	mu     sync.Mutex
	values []T
	errs   map[int]error
	reads  int
}

func (s *sequence[T]) Read() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.reads
	s.reads++
	if err, ok := s.errs[i]; ok {
		var zero T
		return zero, err
	}
	if i >= len(s.values) {
		i = len(s.values) - 1
	}

	return s.values[i], nil
}

func (s *sequence[T]) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reads
}

// Package transport delivers frames from the outbound channel to the device.
package transport

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
)

// Stdout selects the hex sink on standard output
const Stdout = "-"

// Sink consumes frames. Write is only called from one goroutine.
type Sink interface {
	Write(f frame.Frame) error
	Close() error
}

// Open picks a sink for target: "" or "-" prints hex lines to stdout,
// ws:// and wss:// URLs dial a WebSocket, other URLs are rejected and
// anything else is opened as a device or file that receives raw frames.
func Open(ctx context.Context, target string) (Sink, error) {
	switch {
	case target == "" || target == Stdout:
		return NewHexSink(os.Stdout), nil
	case strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://"):
		return DialWebSocket(ctx, target)
	case strings.Contains(target, "://"):
		return nil, errors.New().WithData(errors.ErrInvalidArgument, target)
	default:
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
		if err != nil {
			return nil, errors.New().Wrap(errors.ErrTransportDial, err)
		}
		return NewWriterSink(f), nil
	}
}

// WriterSink writes raw frames back to back
type WriterSink struct {
	w io.Writer
}

// NewWriterSink wraps w. If w is an io.Closer, Close closes it.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(f frame.Frame) error {
	if _, err := s.w.Write(f); err != nil {
		return errors.New().Wrap(errors.ErrTransportWrite, err)
	}

	return nil
}

func (s *WriterSink) Close() error {
	if c, ok := s.w.(io.Closer); ok && c != os.Stdout {
		return c.Close()
	}

	return nil
}

// HexSink writes one line per frame, e.g. "volume 25"
type HexSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewHexSink(w io.Writer) *HexSink {
	return &HexSink{w: bufio.NewWriter(w)}
}

func (s *HexSink) Write(f frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.WriteString(f.String() + "\n"); err != nil {
		return errors.New().Wrap(errors.ErrTransportWrite, err)
	}
	if err := s.w.Flush(); err != nil {
		return errors.New().Wrap(errors.ErrTransportWrite, err)
	}

	return nil
}

func (s *HexSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.w.Flush()
}

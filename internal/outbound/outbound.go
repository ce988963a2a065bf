// Package outbound is the bounded many-producer, single-consumer channel
// that carries encoded frames from providers to the transport.
package outbound

import (
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/logger"
)

// Policy decides what Send does when the channel is full
type Policy string

const (
	// DropNewest discards the frame being sent
	DropNewest Policy = "drop"
	// BlockWithTimeout waits up to the configured timeout, then drops
	BlockWithTimeout Policy = "block"
)

// IsValid reports whether p is a known policy
func (p Policy) IsValid() bool {
	return p == DropNewest || p == BlockWithTimeout
}

// Sender is the producer side handed to providers. Implementations must be
// safe for concurrent use, including from OS callback threads.
type Sender interface {
	Send(f frame.Frame) error
}

// Stats counts channel traffic
type Stats struct {
	Sent    uint64
	Dropped uint64
}

// Channel is a bounded frame queue
type Channel struct {
	frames  chan frame.Frame
	policy  Policy
	timeout time.Duration

	mu     sync.RWMutex
	closed bool

	sent    atomic.Uint64
	dropped atomic.Uint64
	log     logger.Logger
}

// New creates a channel holding up to size frames
func New(size int, policy Policy, timeout time.Duration) *Channel {
	if size < 1 {
		size = 1
	}
	if !policy.IsValid() {
		policy = DropNewest
	}

	return &Channel{
		frames:  make(chan frame.Frame, size),
		policy:  policy,
		timeout: timeout,
		log:     logger.With("outbound"),
	}
}

// Send enqueues f without blocking (DropNewest) or for at most the
// configured timeout (BlockWithTimeout). A full channel yields
// ErrBackpressure and the frame is dropped; a closed channel yields
// ErrChannelClosed.
func (c *Channel) Send(f frame.Frame) error {
	errFactory := errors.New()

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errFactory.New(errors.ErrChannelClosed)
	}

	select {
	case c.frames <- f:
		c.sent.Add(1)
		return nil
	default:
	}

	if c.policy == BlockWithTimeout && c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()

		select {
		case c.frames <- f:
			c.sent.Add(1)
			return nil
		case <-timer.C:
		}
	}

	c.dropped.Add(1)
	c.log.Warn().
		Str("type", f.Type().String()).
		Str("policy", string(c.policy)).
		Msg("Outbound channel full, dropping frame")

	return errFactory.WithData(errors.ErrBackpressure, f.Type())
}

// Frames is the consumer side. It is closed by Close.
func (c *Channel) Frames() <-chan frame.Frame {
	return c.frames
}

// Close stops accepting frames and closes Frames once any in-flight Send
// returns. Frames already queued stay readable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.frames)
}

// Stats returns a snapshot of the traffic counters
func (c *Channel) Stats() Stats {
	return Stats{
		Sent:    c.sent.Load(),
		Dropped: c.dropped.Load(),
	}
}

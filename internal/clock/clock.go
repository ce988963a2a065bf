// Package clock reports the local wall-clock time to the device with minute
// resolution.
package clock

import (
	"time"

	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"codeberg.org/mutker/hostlink/internal/provider"
)

const (
	Name            = "clock"
	DefaultInterval = time.Second
)

// Reading is an hour and minute of the local day
type Reading struct {
	Hour   uint8
	Minute uint8
}

// unset seeds the change detector. No clock reads 255:255, so midnight is
// sent on the first poll like any other time.
var unset = Reading{Hour: 0xFF, Minute: 0xFF}

// Source reads the local time
type Source struct {
	now func() time.Time
}

// NewSource returns a source backed by the system clock
func NewSource() *Source {
	return &Source{now: time.Now}
}

// Read returns the current local hour and minute
func (s *Source) Read() (Reading, error) {
	t := s.now().Local()
	return Reading{Hour: uint8(t.Hour()), Minute: uint8(t.Minute())}, nil
}

// Encode builds the clock frame for r
func Encode(r Reading) frame.Frame {
	return frame.EncodeClock(r.Hour, r.Minute)
}

// New returns the clock provider
func New(src *Source, interval time.Duration, out outbound.Sender, signal *link.Signal) provider.Provider {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return provider.NewPolling(provider.PollingConfig[Reading]{
		Name:     Name,
		Interval: interval,
		Sentinel: unset,
		Read:     src.Read,
		Encode:   Encode,
	}, out, signal)
}

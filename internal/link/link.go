// Package link carries the device connection state to every provider.
//
// The signal is one-shot: it starts Active and moves once to a terminal
// state, either Disconnected (the link went down) or Closed (the owner
// dropped the signal). Both terminal states mean "stop".
package link

import (
	"sync"
	"sync/atomic"
)

// State is the connection state seen by subscribers
type State int32

const (
	Active State = iota
	Disconnected
	Closed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Disconnected:
		return "disconnected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s means the link is gone for good
func (s State) Terminal() bool {
	return s != Active
}

// Signal is a single-writer, many-reader connection state broadcast
type Signal struct {
	state       atomic.Int32
	once        sync.Once
	done        chan struct{}
	subscribers atomic.Int32
}

// New returns an active signal
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Set publishes a connection state. Setting true on an active signal is a
// no-op; setting false moves it to Disconnected. Once terminal the signal
// never becomes active again and further calls are ignored.
func (s *Signal) Set(active bool) {
	if active {
		return
	}
	s.finish(Disconnected)
}

// Disconnect is Set(false)
func (s *Signal) Disconnect() {
	s.finish(Disconnected)
}

// Close drops the signal. Subscribers observe Closed.
func (s *Signal) Close() {
	s.finish(Closed)
}

func (s *Signal) finish(state State) {
	s.once.Do(func() {
		s.state.Store(int32(state))
		close(s.done)
	})
}

// State returns the current state
func (s *Signal) State() State {
	return State(s.state.Load())
}

// Subscribe returns a new subscription handle
func (s *Signal) Subscribe() *Subscription {
	s.subscribers.Add(1)
	return &Subscription{signal: s}
}

// Subscribers returns the number of live subscriptions
func (s *Signal) Subscribers() int {
	return int(s.subscribers.Load())
}

// Subscription is one reader's view of a Signal
type Subscription struct {
	signal   *Signal
	released atomic.Bool
}

// State returns the signal state without blocking. A released
// subscription reads as Closed.
func (sub *Subscription) State() State {
	if sub.released.Load() {
		return Closed
	}

	return sub.signal.State()
}

// Active reports, without blocking, whether the link is still up
func (sub *Subscription) Active() bool {
	return sub.State() == Active
}

// Done is closed once the signal reaches a terminal state
func (sub *Subscription) Done() <-chan struct{} {
	return sub.signal.done
}

// Release drops the subscription
func (sub *Subscription) Release() {
	if sub.released.CompareAndSwap(false, true) {
		sub.signal.subscribers.Add(-1)
	}
}

// Package provider runs the state watchers that feed the outbound channel.
//
// Every provider monitors one metric on a goroutine locked to its own OS
// thread and stops when the connection signal turns terminal, when its Run
// is stopped, or when the outbound channel is closed. Failures stay local
// to the provider that hit them.
package provider

import (
	"context"

	"codeberg.org/mutker/hostlink/internal/errors"
)

// Provider is an autonomous monitor for one metric
type Provider interface {
	// Name identifies the provider in logs and configuration
	Name() string
	// Start begins monitoring and returns without waiting for it. It is
	// called once per provider.
	Start(ctx context.Context) *Run
}

// Run is the handle to a started provider
type Run struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newRun(parent context.Context, name string) (*Run, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Run{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}, ctx
}

func (r *Run) finish(err error) {
	r.err = err
	r.cancel()
	close(r.done)
}

// Name returns the provider name
func (r *Run) Name() string {
	return r.name
}

// Stop asks the provider to stop. It does not wait; use Done or Wait.
func (r *Run) Stop() {
	r.cancel()
}

// Done is closed after the provider has stopped and released every OS
// resource it acquired.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Err returns the provider-fatal error that ended the run, if any. It is
// only meaningful once Done is closed.
func (r *Run) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the run is done or ctx expires
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return errors.New().WithData(errors.ErrShutdownFailed, struct {
			Provider string
			Error    string
		}{
			Provider: r.name,
			Error:    ctx.Err().Error(),
		})
	}
}

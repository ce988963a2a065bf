package provider

import (
	"context"
	"runtime"
	"time"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/logger"
	"codeberg.org/mutker/hostlink/internal/outbound"
)

// PollingConfig describes a metric sampled at a fixed interval
type PollingConfig[T comparable] struct {
	Name     string
	Interval time.Duration
	// Sentinel seeds the last sent value. It must lie outside the range of
	// legitimate readings: a reading equal to it is never sent.
	Sentinel T
	Read     func() (T, error)
	Encode   func(T) frame.Frame
	// Release, when set, runs once as the worker exits
	Release func() error
}

// Polling samples a value and sends a frame whenever it changes
type Polling[T comparable] struct {
	cfg PollingConfig[T]
	out outbound.Sender
	sub *link.Subscription
	log logger.Logger
}

// NewPolling creates a polling provider subscribed to signal
func NewPolling[T comparable](cfg PollingConfig[T], out outbound.Sender, signal *link.Signal) *Polling[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	return &Polling[T]{
		cfg: cfg,
		out: out,
		sub: signal.Subscribe(),
		log: logger.With("provider", "provider", cfg.Name),
	}
}

func (p *Polling[T]) Name() string {
	return p.cfg.Name
}

func (p *Polling[T]) Start(ctx context.Context) *Run {
	run, ctx := newRun(ctx, p.cfg.Name)

	p.log.Info().Dur("interval", p.cfg.Interval).Msg("Provider started")

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		run.finish(p.loop(ctx))
	}()

	return run
}

func (p *Polling[T]) loop(ctx context.Context) error {
	defer p.sub.Release()
	defer p.release()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	last := p.cfg.Sentinel
	for {
		if !p.sub.Active() || ctx.Err() != nil {
			p.log.Info().Str("link", p.sub.State().String()).Msg("Provider stopped")
			return nil
		}

		var err error
		if last, err = p.poll(last); err != nil {
			p.log.Error().Err(err).Msg("Provider stopped on error")
			return err
		}

		select {
		case <-ticker.C:
		case <-p.sub.Done():
		case <-ctx.Done():
		}
	}
}

// poll reads once and sends on change. It returns the new last sent value
// and only provider-fatal errors; transient ones are logged and absorbed.
func (p *Polling[T]) poll(last T) (T, error) {
	value, err := p.cfg.Read()
	if err != nil {
		if isFatal(err) {
			return last, err
		}
		p.log.Warn().Err(err).Msg("Read failed, retrying next cycle")
		return last, nil
	}

	if value == last {
		return last, nil
	}

	if err := p.out.Send(p.cfg.Encode(value)); err != nil {
		if isFatal(err) {
			return last, err
		}
		// keep last so the value is retried next cycle
		p.log.Debug().Err(err).Msg("Frame not sent")
		return last, nil
	}

	return value, nil
}

func (p *Polling[T]) release() {
	if p.cfg.Release == nil {
		return
	}
	if err := p.cfg.Release(); err != nil {
		p.log.Warn().Err(err).Msg("Failed to release metric source")
	}
}

// isFatal reports whether err must stop the provider. Uncoded errors from
// OS bindings are treated as transient.
func isFatal(err error) bool {
	if errors.CodeOf(err) == "" {
		return false
	}

	return errors.KindOf(err) != errors.KindTransient
}

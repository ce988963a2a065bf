package provider

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/logger"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"github.com/sourcegraph/conc/panics"
)

// DefaultNotificationInterval is how often a notification provider checks
// the link while it waits for callbacks.
const DefaultNotificationInterval = 50 * time.Millisecond

// Notifier receives raw values pushed by the OS. Notify may run on any
// thread.
type Notifier[T any] interface {
	Notify(value T)
}

// Registration is a registered change callback
type Registration interface {
	// Unregister removes the callback. No Notify call starts after it
	// returns.
	Unregister() error
}

// Source is an OS metric that can push changes
type Source[T any] interface {
	// Current reads the value synchronously
	Current() (T, error)
	// Watch acquires the metric source and registers n for changes. It is
	// called on the provider's locked OS thread, and Unregister is called
	// on that same thread.
	Watch(n Notifier[T]) (Registration, error)
}

// NotificationConfig describes a metric reported by OS callbacks
type NotificationConfig[T any] struct {
	Name     string
	Interval time.Duration
	Source   Source[T]
	Encode   func(T) frame.Frame
}

// Notification sends the current value once, then one frame per OS change
// notification.
type Notification[T any] struct {
	cfg NotificationConfig[T]
	out outbound.Sender
	sub *link.Subscription
	log logger.Logger
}

// NewNotification creates a notification provider subscribed to signal
func NewNotification[T any](cfg NotificationConfig[T], out outbound.Sender, signal *link.Signal) *Notification[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultNotificationInterval
	}

	return &Notification[T]{
		cfg: cfg,
		out: out,
		sub: signal.Subscribe(),
		log: logger.With("provider", "provider", cfg.Name),
	}
}

func (n *Notification[T]) Name() string {
	return n.cfg.Name
}

// Start reads and sends the current value before returning, so the consumer
// has a value before the first change. A failing read is a setup failure:
// the returned Run is already done and carries the error.
func (n *Notification[T]) Start(ctx context.Context) *Run {
	errFactory := errors.New()
	run, ctx := newRun(ctx, n.cfg.Name)

	value, err := n.cfg.Source.Current()
	if err != nil {
		if errors.CodeOf(err) == "" {
			err = errFactory.Wrap(errors.ErrSourceUnavailable, err)
		}
		n.log.Error().Err(err).Msg("Metric source unavailable, provider not started")
		n.sub.Release()
		run.finish(err)
		return run
	}

	if err := n.out.Send(n.cfg.Encode(value)); err != nil && isFatal(err) {
		n.log.Error().Err(err).Msg("Failed to send initial value")
		n.sub.Release()
		run.finish(err)
		return run
	}

	n.log.Info().Dur("interval", n.cfg.Interval).Msg("Provider started")

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		run.finish(n.watch(ctx))
	}()

	return run
}

func (n *Notification[T]) watch(ctx context.Context) error {
	errFactory := errors.New()
	defer n.sub.Release()

	cb := newCallback(n.out, n.cfg.Encode, n.log)

	reg, err := n.cfg.Source.Watch(cb)
	if err != nil {
		if errors.CodeOf(err) == "" {
			err = errFactory.Wrap(errors.ErrRegisterFailed, err)
		}
		n.log.Error().Err(err).Msg("Failed to register change callback")
		return err
	}

	ticker := time.NewTicker(n.cfg.Interval)
	defer ticker.Stop()

	for n.sub.Active() && ctx.Err() == nil && !cb.channelClosed() {
		select {
		case <-ticker.C:
		case <-n.sub.Done():
		case <-ctx.Done():
		}
	}

	cb.disable()
	if err := reg.Unregister(); err != nil {
		n.log.Warn().Err(errFactory.Wrap(errors.ErrUnregisterFailed, err)).Msg("Failed to unregister change callback")
	}

	if cb.channelClosed() {
		n.log.Error().Msg("Provider stopped, outbound channel closed")
		return errFactory.New(errors.ErrChannelClosed)
	}

	n.log.Info().Str("link", n.sub.State().String()).Msg("Provider stopped")

	return nil
}

// callback is the capability object handed to the OS. Its only job is
// encode-and-send; nothing escapes Notify.
type callback[T any] struct {
	out    outbound.Sender
	encode func(T) frame.Frame
	log    logger.Logger
	closed atomic.Bool

	// held for reading while a notification is delivered
	mu   sync.RWMutex
	live bool
}

func newCallback[T any](out outbound.Sender, encode func(T) frame.Frame, log logger.Logger) *callback[T] {
	cb := &callback[T]{
		out:    out,
		encode: encode,
		log:    log,
		live:   true,
	}

	return cb
}

func (c *callback[T]) Notify(value T) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.live {
		return
	}

	var pc panics.Catcher
	pc.Try(func() { c.deliver(value) })

	if r := pc.Recovered(); r != nil {
		c.log.ErrorWithCode(errors.New().Wrap(errors.ErrCallbackFailed, r.AsError())).
			Msg("Recovered from failure in change callback")
	}
}

func (c *callback[T]) deliver(value T) {
	err := c.out.Send(c.encode(value))
	if err == nil {
		return
	}

	if errors.HasCode(err, errors.ErrChannelClosed) {
		c.closed.Store(true)
	}
	c.log.Debug().Err(err).Msg("Frame not sent from change callback")
}

// disable waits for in-flight notifications and drops later ones
func (c *callback[T]) disable() {
	c.mu.Lock()
	c.live = false
	c.mu.Unlock()
}

func (c *callback[T]) channelClosed() bool {
	return c.closed.Load()
}

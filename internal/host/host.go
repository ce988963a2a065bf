// Package host wires the enabled providers to the outbound channel and the
// transport, and tears everything down when the link goes away.
package host

import (
	"context"
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/hostlink/internal/config"
	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/logger"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"codeberg.org/mutker/hostlink/internal/provider"
	"codeberg.org/mutker/hostlink/internal/transport"
	"github.com/sourcegraph/conc"
)

// Host owns the connection signal, the outbound channel and every
// provider run
type Host struct {
	cfg      config.Provider
	sink     transport.Sink
	registry Registry

	signal *link.Signal
	sub    *link.Subscription
	out    *outbound.Channel
	log    logger.Logger

	started   atomic.Bool
	runs      []*provider.Run
	live      atomic.Int32
	failed    atomic.Int32
	exhausted atomic.Bool
	wg       conc.WaitGroup
	pumpDone chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a host. Nothing runs until Start.
func New(cfg config.Provider, sink transport.Sink, registry Registry) *Host {
	signal := link.New()

	return &Host{
		cfg:      cfg,
		sink:     sink,
		registry: registry,
		signal:   signal,
		sub:      signal.Subscribe(),
		out: outbound.New(
			cfg.GetQueueSize(),
			outbound.Policy(cfg.GetBackpressure()),
			cfg.GetBlockTimeout(),
		),
		log:      logger.With("host"),
		pumpDone: make(chan struct{}),
	}
}

// Start builds and starts every enabled provider. Providers that cannot be
// built or fail to set up are logged and skipped; ErrNoProviders is
// returned when none is left running.
func (h *Host) Start(ctx context.Context) error {
	errFactory := errors.New()

	if !h.started.CompareAndSwap(false, true) {
		return errFactory.WithData(errors.ErrAlreadyRunning, "host already started")
	}

	go h.pump()

	for _, name := range h.cfg.GetProviders() {
		run, err := h.startProvider(ctx, name)
		if err != nil {
			h.logFailure(name, err, "Provider not started")
			continue
		}
		h.runs = append(h.runs, run)
	}

	if len(h.runs) == 0 {
		h.signal.Close()
		h.out.Close()
		<-h.pumpDone
		return errFactory.New(errors.ErrNoProviders)
	}

	h.live.Store(int32(len(h.runs)))
	for _, run := range h.runs {
		run := run
		h.wg.Go(func() {
			<-run.Done()
			if err := run.Err(); err != nil {
				h.failed.Add(1)
				h.logFailure(run.Name(), err, "Provider stopped")
			}
			if h.live.Add(-1) == 0 {
				h.lastStopped()
			}
		})
	}

	h.log.Info().Int("providers", len(h.runs)).Msg("Host started")

	return nil
}

// lastStopped closes the link once no provider is left. If every provider
// died on an error the host reports ErrNoProviders from Err.
func (h *Host) lastStopped() {
	if int(h.failed.Load()) == len(h.runs) {
		h.exhausted.Store(true)
		h.log.Error().Msg("Every provider stopped on an error, closing link")
	}
	h.signal.Close()
}

// Err returns ErrNoProviders once every provider has died on an error
func (h *Host) Err() error {
	if h.exhausted.Load() {
		return errors.New().New(errors.ErrNoProviders)
	}

	return nil
}

func (h *Host) startProvider(ctx context.Context, name string) (*provider.Run, error) {
	factory, ok := h.registry[name]
	if !ok {
		return nil, errors.New().WithData(errors.ErrUnknownProvider, name)
	}

	p, err := factory(h.cfg, h.out, h.signal)
	if err != nil {
		return nil, err
	}

	run := p.Start(ctx)

	// Setup failures finish the run before Start returns
	select {
	case <-run.Done():
		if err := run.Err(); err != nil {
			return nil, err
		}
	default:
	}

	return run, nil
}

func (h *Host) logFailure(name string, err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		h.log.ErrorWithCode(appErr).Str("provider", name).Msg(msg)
		return
	}

	h.log.Error().Err(err).Str("provider", name).Msg(msg)
}

// pump drains the channel into the sink. A write failure disconnects the
// link; frames still queued afterwards are discarded.
func (h *Host) pump() {
	defer close(h.pumpDone)

	failed := false
	for f := range h.out.Frames() {
		if failed {
			continue
		}
		if err := h.sink.Write(f); err != nil {
			h.logFailure("transport", err, "Sink write failed, disconnecting")
			failed = true
			h.signal.Disconnect()
		}
	}
}

// Disconnect moves the link to Disconnected. Providers notice within one
// interval.
func (h *Host) Disconnect() {
	h.signal.Disconnect()
}

// Done is closed once the link is terminal
func (h *Host) Done() <-chan struct{} {
	return h.sub.Done()
}

// State returns the link state
func (h *Host) State() link.State {
	return h.signal.State()
}

// Runs returns the handles of the running providers
func (h *Host) Runs() []*provider.Run {
	return h.runs
}

// Stats returns the outbound channel counters
func (h *Host) Stats() outbound.Stats {
	return h.out.Stats()
}

// Shutdown disconnects the link, waits for every provider and the pump to
// finish and closes the sink. ctx bounds the wait. Calling it again returns
// the first result.
func (h *Host) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.shutdownErr = h.shutdown(ctx)
	})

	return h.shutdownErr
}

func (h *Host) shutdown(ctx context.Context) error {
	errFactory := errors.New()
	var result error

	h.signal.Disconnect()

	if h.started.Load() {
		providersDone := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(providersDone)
		}()

		select {
		case <-providersDone:
		case <-ctx.Done():
			result = errFactory.WithData(errors.ErrShutdownFailed, h.pending())
		}

		h.out.Close()

		select {
		case <-h.pumpDone:
		case <-ctx.Done():
			if result == nil {
				result = errFactory.WithData(errors.ErrShutdownFailed, "transport")
			}
		}
	} else {
		h.out.Close()
	}

	if err := h.sink.Close(); err != nil && result == nil {
		result = errFactory.Wrap(errors.ErrShutdownFailed, err)
	}
	h.sub.Release()

	stats := h.out.Stats()
	h.log.Info().
		Uint64("sent", stats.Sent).
		Uint64("dropped", stats.Dropped).
		Msg("Host stopped")

	return result
}

// pending names the providers still running
func (h *Host) pending() []string {
	var names []string
	for _, run := range h.runs {
		select {
		case <-run.Done():
		default:
			names = append(names, run.Name())
		}
	}

	return names
}

package volume_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"codeberg.org/mutker/hostlink/internal/provider"
	"codeberg.org/mutker/hostlink/internal/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type endpoint struct {
	level    float32
	notifier chan provider.Notifier[float32]
	removed  chan struct{}
}

func (e *endpoint) Current() (float32, error) { return e.level, nil }

func (e *endpoint) Watch(n provider.Notifier[float32]) (provider.Registration, error) {
	e.notifier <- n
	return e, nil
}

func (e *endpoint) Unregister() error {
	close(e.removed)
	return nil
}

func TestVolumeChangeProducesOneFrame(t *testing.T) {
	ep := &endpoint{
		level:    0.10,
		notifier: make(chan provider.Notifier[float32], 1),
		removed:  make(chan struct{}),
	}
	out := outbound.New(8, outbound.DropNewest, 0)
	signal := link.New()

	run := volume.New(ep, 10*time.Millisecond, out, signal).Start(context.Background())
	assert.Equal(t, frame.Frame{byte(frame.Volume), 10}, <-out.Frames())

	n := <-ep.notifier
	ep.level = 0.37
	n.Notify(ep.level)
	assert.Equal(t, frame.Frame{byte(frame.Volume), 37}, <-out.Frames())

	signal.Disconnect()
	<-run.Done()
	require.NoError(t, run.Err())
	<-ep.removed

	out.Close()
	_, more := <-out.Frames()
	assert.False(t, more, "exactly one frame per change")
}

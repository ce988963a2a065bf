package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRegistration struct {
	mock.Mock
}

func (m *mockRegistration) Unregister() error {
	return m.Called().Error(0)
}

// fakeVolume stands in for an OS audio endpoint
type fakeVolume struct {
	current    float32
	currentErr error
	watchErr   error
	reg        Registration

	mu       sync.Mutex
	notifier Notifier[float32]
	watched  chan struct{}
}

func newFakeVolume(current float32, reg Registration) *fakeVolume {
	return &fakeVolume{current: current, reg: reg, watched: make(chan struct{})}
}

func (f *fakeVolume) Current() (float32, error) {
	return f.current, f.currentErr
}

func (f *fakeVolume) Watch(n Notifier[float32]) (Registration, error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	f.mu.Lock()
	f.notifier = n
	f.mu.Unlock()
	close(f.watched)

	return f.reg, nil
}

// change simulates the OS invoking the callback from a foreign thread
func (f *fakeVolume) change(v float32) {
	f.mu.Lock()
	n := f.notifier
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Notify(v)
	}()
	<-done
}

func newVolumeLike(src Source[float32], out *recordingSender) (*Notification[float32], *link.Signal) {
	signal := link.New()
	n := NewNotification(NotificationConfig[float32]{
		Name:     "volume",
		Interval: 5 * time.Millisecond,
		Source:   src,
		Encode:   frame.EncodeVolume,
	}, out, signal)

	return n, signal
}

func TestNotificationSendsInitialValueBeforeReturning(t *testing.T) {
	reg := &mockRegistration{}
	reg.On("Unregister").Return(nil).Once()
	src := newFakeVolume(0.10, reg)
	out := &recordingSender{}
	n, signal := newVolumeLike(src, out)

	run := n.Start(context.Background())
	assert.Equal(t, []frame.Frame{{byte(frame.Volume), 10}}, out.Frames())

	<-src.watched
	src.change(0.37)
	assert.Equal(t, []frame.Frame{{byte(frame.Volume), 10}, {byte(frame.Volume), 37}}, out.Frames())

	signal.Disconnect()
	require.NoError(t, run.Wait(contextWithTimeout(t, time.Second)))
	reg.AssertExpectations(t)
}

func TestNotificationUnregistersBeforeDone(t *testing.T) {
	var unregistered atomic.Bool
	unregisterDelay := 10 * time.Millisecond
	reg := &mockRegistration{}
	reg.On("Unregister").Run(func(mock.Arguments) {
		time.Sleep(unregisterDelay)
		unregistered.Store(true)
	}).Return(nil).Once()

	src := newFakeVolume(0.5, reg)
	out := &recordingSender{}
	n, signal := newVolumeLike(src, out)

	run := n.Start(context.Background())
	<-src.watched

	signal.Close()
	select {
	case <-run.Done():
	case <-time.After(n.cfg.Interval + unregisterDelay + schedulingSlack):
		t.Fatal("provider did not stop within one polling interval")
	}
	assert.True(t, unregistered.Load(), "callback must be unregistered before the run is done")

	// a late OS notification after teardown is dropped
	before := len(out.Frames())
	src.change(0.9)
	assert.Len(t, out.Frames(), before)
	assert.Equal(t, 0, signal.Subscribers())
}

func TestNotificationSendsEveryCallback(t *testing.T) {
	reg := &mockRegistration{}
	reg.On("Unregister").Return(nil)
	src := newFakeVolume(0.2, reg)
	out := &recordingSender{}
	n, signal := newVolumeLike(src, out)

	run := n.Start(context.Background())
	<-src.watched
	src.change(0.3)
	src.change(0.3)
	signal.Disconnect()
	<-run.Done()

	assert.Equal(t, []frame.Frame{
		frame.EncodeVolume(0.2),
		frame.EncodeVolume(0.3),
		frame.EncodeVolume(0.3),
	}, out.Frames())
}

func TestNotificationSetupFailureEmitsNothing(t *testing.T) {
	src := newFakeVolume(0, nil)
	src.currentErr = fmt.Errorf("no audio endpoint")
	out := &recordingSender{}
	n, signal := newVolumeLike(src, out)

	run := n.Start(context.Background())
	select {
	case <-run.Done():
	default:
		t.Fatal("run of a failed provider must already be done")
	}

	assert.True(t, errors.HasCode(run.Err(), errors.ErrSourceUnavailable))
	assert.Empty(t, out.Frames())
	assert.Equal(t, link.Active, signal.State())
	assert.Equal(t, 0, signal.Subscribers())
}

func TestNotificationRegisterFailure(t *testing.T) {
	src := newFakeVolume(0.4, nil)
	src.watchErr = fmt.Errorf("E_NOINTERFACE")
	out := &recordingSender{}
	n, _ := newVolumeLike(src, out)

	run := n.Start(context.Background())
	err := run.Wait(contextWithTimeout(t, time.Second))

	assert.True(t, errors.HasCode(err, errors.ErrRegisterFailed))
	assert.Equal(t, []frame.Frame{frame.EncodeVolume(0.4)}, out.Frames())
}

func TestNotificationStopsWhenChannelCloses(t *testing.T) {
	reg := &mockRegistration{}
	reg.On("Unregister").Return(fmt.Errorf("already gone")).Once()
	src := newFakeVolume(0.4, reg)
	out := &recordingSender{}
	n, _ := newVolumeLike(src, out)

	run := n.Start(context.Background())
	<-src.watched

	out.setErr(errors.New().New(errors.ErrChannelClosed))
	src.change(0.5)

	err := run.Wait(contextWithTimeout(t, time.Second))
	assert.True(t, errors.HasCode(err, errors.ErrChannelClosed))
	reg.AssertExpectations(t)
}

func TestCallbackSwallowsPanics(t *testing.T) {
	cb := newCallback(&recordingSender{panics: true}, frame.EncodeVolume, logger.With("test"))

	assert.NotPanics(t, func() { cb.Notify(0.5) })
}

func TestCallbackSwallowsSendErrors(t *testing.T) {
	out := &recordingSender{err: errors.New().New(errors.ErrBackpressure)}
	cb := newCallback(out, frame.EncodeVolume, logger.With("test"))

	assert.NotPanics(t, func() { cb.Notify(0.5) })
	assert.False(t, cb.channelClosed())
}

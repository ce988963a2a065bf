package gpu

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu       sync.Mutex
	temps    []Temperature
	reads    int
	shutdown int
}

func (f *fakeReader) Name() string { return "fake" }

func (f *fakeReader) Temperature() (Temperature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := min(f.reads, len(f.temps)-1)
	f.reads++

	return f.temps[i], nil
}

func (f *fakeReader) FanSpeed() (FanSpeed, error) {
	return 0, errors.New().New(ErrNoFans)
}

func (f *fakeReader) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown++

	return nil
}

func (f *fakeReader) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.reads, f.shutdown
}

func TestTemperatureProviderReleasesDevice(t *testing.T) {
	r := &fakeReader{temps: []Temperature{0, 0, 64, 64, 65}}
	out := outbound.New(8, outbound.DropNewest, 0)
	signal := link.New()

	run := newTemperature(r, time.Millisecond, out, signal).Start(context.Background())
	require.Eventually(t, func() bool { reads, _ := r.counts(); return reads > 5 }, time.Second, time.Millisecond)

	signal.Disconnect()
	<-run.Done()
	out.Close()

	var got []frame.Frame
	for f := range out.Frames() {
		got = append(got, f)
	}
	assert.Equal(t, []frame.Frame{
		{byte(frame.GPUTemperature), 0},
		{byte(frame.GPUTemperature), 64},
		{byte(frame.GPUTemperature), 65},
	}, got)

	_, shutdown := r.counts()
	assert.Equal(t, 1, shutdown)
}

func TestFanProviderWithoutFansStops(t *testing.T) {
	r := &fakeReader{}
	run := newFanSpeed(r, time.Millisecond, outbound.New(1, outbound.DropNewest, 0), link.New()).
		Start(context.Background())

	<-run.Done()
	assert.True(t, errors.HasCode(run.Err(), ErrNoFans))
	_, shutdown := r.counts()
	assert.Equal(t, 1, shutdown)
}

func TestEncoders(t *testing.T) {
	assert.Equal(t, frame.Frame{byte(frame.GPUFanSpeed), 100}, EncodeFanSpeed(140))
	assert.Equal(t, frame.Frame{byte(frame.GPUTemperature), 83}, EncodeTemperature(83))
}

type fakeNVML struct {
	count    int
	initErr  error
	released int
}

func (f *fakeNVML) acquire() error { return f.initErr }
func (f *fakeNVML) release() error { f.released++; return nil }
func (f *fakeNVML) device(index int) (nvml.Device, error) {
	return nil, deviceNotFound(index, f.count)
}

func TestOpenWithoutDevicesIsSetupFailure(t *testing.T) {
	lib := &fakeNVML{count: 0}

	_, err := open(lib, 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSourceUnavailable))
	assert.True(t, errors.HasCode(err, ErrDeviceNotFound))
	assert.Equal(t, 1, lib.released, "NVML reference released on failure")
}

func TestOpenWithoutDriverIsSetupFailure(t *testing.T) {
	lib := &fakeNVML{initErr: errors.New().New(ErrInitFailed)}

	_, err := open(lib, 0)
	assert.True(t, errors.HasCode(err, errors.ErrSourceUnavailable))
	assert.Equal(t, 0, lib.released)
}

func TestDriverWithoutReference(t *testing.T) {
	d := &driver{}

	_, err := d.device(0)
	assert.True(t, errors.HasCode(err, ErrNotInitialized))
	assert.NoError(t, d.release(), "releasing an unheld reference is a no-op")
}

func TestDeviceNotFoundCarriesIndex(t *testing.T) {
	err := deviceNotFound(2, 1)
	assert.True(t, errors.HasCode(err, ErrDeviceNotFound))
	assert.Contains(t, err.Error(), "{2 1}")
}

package gpu

import (
	"codeberg.org/mutker/hostlink/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// library is the part of NVML a GPU needs. NVML counts Init and Shutdown
// calls, so every acquire is paired with exactly one release.
type library interface {
	acquire() error
	release() error
	device(index int) (nvml.Device, error)
}

// driver is the NVML shared library. held is true while this handle owns
// an Init reference.
type driver struct {
	held bool
}

func (d *driver) acquire() error {
	if d.held {
		return nil
	}
	if ret := nvml.Init(); !IsNVMLSuccess(ret) {
		return errors.New().Wrap(ErrInitFailed, newNVMLError(ret))
	}
	d.held = true

	return nil
}

func (d *driver) release() error {
	if !d.held {
		return nil
	}
	d.held = false

	if ret := nvml.Shutdown(); !IsNVMLSuccess(ret) {
		return errors.New().Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	return nil
}

// device resolves index after checking it against the device count
func (d *driver) device(index int) (nvml.Device, error) {
	errFactory := errors.New()
	if !d.held {
		return nil, errFactory.New(ErrNotInitialized)
	}

	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceCountFailed, newNVMLError(ret))
	}
	if index < 0 || index >= count {
		return nil, deviceNotFound(index, count)
	}

	dev, ret := nvml.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	return dev, nil
}

func deviceNotFound(index, count int) error {
	return errors.New().WithData(ErrDeviceNotFound, struct {
		Index int
		Count int
	}{
		Index: index,
		Count: count,
	})
}

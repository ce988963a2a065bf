package gpu

import (
	"time"

	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"codeberg.org/mutker/hostlink/internal/provider"
)

const (
	TemperatureName = "gpu-temperature"
	FanSpeedName    = "gpu-fan"
	DefaultInterval = 2 * time.Second
)

// NVML reports unsigned readings, so -1 never matches a real one
const unsetReading = -1

// NewTemperature opens the GPU at index and returns its temperature
// provider. The provider releases the device when it stops.
func NewTemperature(index int, interval time.Duration, out outbound.Sender, signal *link.Signal) (provider.Provider, error) {
	g, err := Open(index)
	if err != nil {
		return nil, err
	}

	return newTemperature(g, interval, out, signal), nil
}

// NewFanSpeed opens the GPU at index and returns its fan speed provider
func NewFanSpeed(index int, interval time.Duration, out outbound.Sender, signal *link.Signal) (provider.Provider, error) {
	g, err := Open(index)
	if err != nil {
		return nil, err
	}

	return newFanSpeed(g, interval, out, signal), nil
}

func newTemperature(r Reader, interval time.Duration, out outbound.Sender, signal *link.Signal) *provider.Polling[Temperature] {
	return provider.NewPolling(provider.PollingConfig[Temperature]{
		Name:     TemperatureName,
		Interval: orDefault(interval),
		Sentinel: unsetReading,
		Read:     r.Temperature,
		Encode:   EncodeTemperature,
		Release:  r.Shutdown,
	}, out, signal)
}

func newFanSpeed(r Reader, interval time.Duration, out outbound.Sender, signal *link.Signal) *provider.Polling[FanSpeed] {
	return provider.NewPolling(provider.PollingConfig[FanSpeed]{
		Name:     FanSpeedName,
		Interval: orDefault(interval),
		Sentinel: unsetReading,
		Read:     r.FanSpeed,
		Encode:   EncodeFanSpeed,
		Release:  r.Shutdown,
	}, out, signal)
}

// EncodeTemperature builds a GPU temperature frame
func EncodeTemperature(t Temperature) frame.Frame {
	return frame.EncodeCelsius(frame.GPUTemperature, int(t))
}

// EncodeFanSpeed builds a GPU fan speed frame
func EncodeFanSpeed(s FanSpeed) frame.Frame {
	return frame.EncodePercent(frame.GPUFanSpeed, float64(s))
}

func orDefault(interval time.Duration) time.Duration {
	if interval <= 0 {
		return DefaultInterval
	}

	return interval
}

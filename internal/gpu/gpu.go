// Package gpu reads NVIDIA GPU temperature and fan speed through NVML.
package gpu

import (
	"sync"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// GPU is a read-only view of one NVML device
type GPU struct {
	lib      library
	device   nvml.Device
	name     string
	fanCount int
	mu       sync.Mutex
}

// Open initializes NVML and opens the device at index. Any failure here is
// a setup failure for the provider that asked.
func Open(index int) (*GPU, error) {
	return open(&driver{}, index)
}

func open(lib library, index int) (*GPU, error) {
	errFactory := errors.New()

	if err := lib.acquire(); err != nil {
		return nil, errFactory.Wrap(errors.ErrSourceUnavailable, err)
	}

	device, err := lib.device(index)
	if err != nil {
		if releaseErr := lib.release(); releaseErr != nil {
			logger.Warn().Err(releaseErr).Msg("Failed to shut down NVML")
		}
		return nil, errFactory.Wrap(errors.ErrSourceUnavailable, err)
	}
	g := &GPU{lib: lib, device: device}

	if name, ret := g.device.GetName(); IsNVMLSuccess(ret) {
		g.name = name
		logger.Info().Msgf("Detected GPU: %v", name)
	} else {
		logger.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	if count, ret := g.device.GetNumFans(); IsNVMLSuccess(ret) {
		g.fanCount = count
		logger.Debug().Msgf("Detected fans: %d", count)
	} else {
		logger.Debug().Msgf("Failed to get GPU fan count: %v", nvml.ErrorString(ret))
	}

	return g, nil
}

func (g *GPU) Name() string {
	return g.name
}

// Temperature returns the core temperature in degrees Celsius
func (g *GPU) Temperature() (Temperature, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	temp, ret := g.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return 0, errors.New().Wrap(errors.ErrReadFailed, newNVMLError(ret))
	}

	return Temperature(temp), nil
}

// FanSpeed returns the fastest fan's speed as a percentage of its maximum
func (g *GPU) FanSpeed() (FanSpeed, error) {
	errFactory := errors.New()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fanCount == 0 {
		return 0, errFactory.New(ErrNoFans)
	}

	var fastest FanSpeed
	for i := 0; i < g.fanCount; i++ {
		speed, ret := g.device.GetFanSpeed_v2(i)
		if !IsNVMLSuccess(ret) {
			return 0, errFactory.Wrap(errors.ErrReadFailed, newNVMLError(ret))
		}
		fastest = max(fastest, FanSpeed(speed))
	}

	return fastest, nil
}

// Shutdown releases this GPU's NVML reference
func (g *GPU) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.lib.release()
}

//go:build !windows

package volume

import (
	"runtime"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/provider"
)

type unavailable struct{}

// NewSource returns the platform volume source. Only Windows Core Audio is
// supported; elsewhere the provider fails setup and stays idle.
func NewSource() Source {
	return unavailable{}
}

func (unavailable) Current() (float32, error) {
	return 0, errors.New().WithData(errors.ErrSourceUnavailable, "no volume binding for "+runtime.GOOS)
}

func (unavailable) Watch(provider.Notifier[float32]) (provider.Registration, error) {
	return nil, errors.New().WithData(errors.ErrSourceUnavailable, "no volume binding for "+runtime.GOOS)
}

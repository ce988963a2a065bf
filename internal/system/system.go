// Package system reports host CPU load and memory usage via gopsutil.
package system

import (
	"math"
	"time"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"codeberg.org/mutker/hostlink/internal/provider"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	CPUName         = "cpu"
	MemoryName      = "memory"
	DefaultInterval = 2 * time.Second
)

// Percent is a whole-number utilisation in [0, 100]
type Percent int

// unset is outside [0, 100] so the first reading is always sent
const unset Percent = -1

// Reader samples host utilisation
type Reader interface {
	CPU() (Percent, error)
	Memory() (Percent, error)
}

type gopsutilReader struct{}

// NewReader returns a Reader backed by gopsutil
func NewReader() Reader {
	return gopsutilReader{}
}

// CPU returns the load across all cores since the previous call
func (gopsutilReader) CPU() (Percent, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrReadFailed, err)
	}
	if len(percents) == 0 {
		return 0, errors.New().WithData(errors.ErrReadFailed, "no cpu samples")
	}

	return toPercent(percents[0]), nil
}

// Memory returns the share of physical memory in use
func (gopsutilReader) Memory() (Percent, error) {
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrReadFailed, err)
	}

	return toPercent(vmem.UsedPercent), nil
}

func toPercent(v float64) Percent {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return Percent(v)
	}
}

// NewCPU returns the CPU load provider
func NewCPU(r Reader, interval time.Duration, out outbound.Sender, signal *link.Signal) provider.Provider {
	return newPercentProvider(CPUName, frame.CPULoad, r.CPU, interval, out, signal)
}

// NewMemory returns the memory usage provider
func NewMemory(r Reader, interval time.Duration, out outbound.Sender, signal *link.Signal) provider.Provider {
	return newPercentProvider(MemoryName, frame.MemoryUsage, r.Memory, interval, out, signal)
}

func newPercentProvider(
	name string, t frame.DataType, read func() (Percent, error),
	interval time.Duration, out outbound.Sender, signal *link.Signal,
) provider.Provider {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return provider.NewPolling(provider.PollingConfig[Percent]{
		Name:     name,
		Interval: interval,
		Sentinel: unset,
		Read:     read,
		Encode: func(p Percent) frame.Frame {
			return frame.EncodePercent(t, float64(p))
		},
	}, out, signal)
}

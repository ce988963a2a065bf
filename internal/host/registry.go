package host

import (
	"sort"

	"codeberg.org/mutker/hostlink/internal/clock"
	"codeberg.org/mutker/hostlink/internal/config"
	"codeberg.org/mutker/hostlink/internal/gpu"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"codeberg.org/mutker/hostlink/internal/provider"
	"codeberg.org/mutker/hostlink/internal/system"
	"codeberg.org/mutker/hostlink/internal/volume"
)

// Factory builds one provider. It is called at most once per Host.
type Factory func(cfg config.Provider, out outbound.Sender, signal *link.Signal) (provider.Provider, error)

// Registry maps provider names onto their factories
type Registry map[string]Factory

// DefaultRegistry returns every provider hostlink ships with
func DefaultRegistry() Registry {
	sys := system.NewReader()

	return Registry{
		clock.Name: func(cfg config.Provider, out outbound.Sender, signal *link.Signal) (provider.Provider, error) {
			return clock.New(clock.NewSource(), cfg.GetInterval(clock.Name), out, signal), nil
		},
		volume.Name: func(cfg config.Provider, out outbound.Sender, signal *link.Signal) (provider.Provider, error) {
			return volume.New(volume.NewSource(), cfg.GetInterval(volume.Name), out, signal), nil
		},
		system.CPUName: func(cfg config.Provider, out outbound.Sender, signal *link.Signal) (provider.Provider, error) {
			return system.NewCPU(sys, cfg.GetInterval(system.CPUName), out, signal), nil
		},
		system.MemoryName: func(cfg config.Provider, out outbound.Sender, signal *link.Signal) (provider.Provider, error) {
			return system.NewMemory(sys, cfg.GetInterval(system.MemoryName), out, signal), nil
		},
		gpu.TemperatureName: func(cfg config.Provider, out outbound.Sender, signal *link.Signal) (provider.Provider, error) {
			return gpu.NewTemperature(0, cfg.GetInterval(gpu.TemperatureName), out, signal)
		},
		gpu.FanSpeedName: func(cfg config.Provider, out outbound.Sender, signal *link.Signal) (provider.Provider, error) {
			return gpu.NewFanSpeed(0, cfg.GetInterval(gpu.FanSpeedName), out, signal)
		},
	}
}

// Register adds or replaces a factory
func (r Registry) Register(name string, f Factory) {
	r[name] = f
}

// Names returns the registered names in order
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

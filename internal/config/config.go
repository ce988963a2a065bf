// Package config loads hostlink settings from flags, the environment and a
// TOML file, in that order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/hostlink/internal/clock"
	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/gpu"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"codeberg.org/mutker/hostlink/internal/system"
	"codeberg.org/mutker/hostlink/internal/volume"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath     = "/etc/hostlink/hostlink.toml"
	DefaultEnvPrefix      = "HOSTLINK"
	DefaultLogLevel       = LogLevelInfo
	DefaultQueueSize      = 64
	DefaultBackpressure   = string(outbound.DropNewest)
	DefaultBlockTimeout   = 100 * time.Millisecond
	DefaultClockInterval  = time.Second
	DefaultVolumeInterval = 50 * time.Millisecond
	DefaultSystemInterval = 2 * time.Second
	DefaultGPUInterval    = 2 * time.Second
	DefaultTransport      = "-"

	maxQueueSize = 4096
)

// Provider names as they appear in the providers list
const (
	ProviderClock          = clock.Name
	ProviderVolume         = volume.Name
	ProviderCPU            = system.CPUName
	ProviderMemory         = system.MemoryName
	ProviderGPUTemperature = gpu.TemperatureName
	ProviderGPUFan         = gpu.FanSpeedName
)

// DefaultProviders are enabled when nothing else is configured
var DefaultProviders = []string{ProviderClock, ProviderVolume}

// intervalKeys maps each provider onto the setting holding its interval
var intervalKeys = map[string]string{
	ProviderClock:          "clock_interval",
	ProviderVolume:         "volume_interval",
	ProviderCPU:            "system_interval",
	ProviderMemory:         "system_interval",
	ProviderGPUTemperature: "gpu_interval",
	ProviderGPUFan:         "gpu_interval",
}

// Config holds the validated settings
type Config struct {
	LogLevel       LogLevel      `mapstructure:"log_level"`
	Providers      []string      `mapstructure:"providers"`
	QueueSize      int           `mapstructure:"queue_size"`
	Backpressure   string        `mapstructure:"backpressure"`
	BlockTimeout   time.Duration `mapstructure:"block_timeout"`
	ClockInterval  time.Duration `mapstructure:"clock_interval"`
	VolumeInterval time.Duration `mapstructure:"volume_interval"`
	SystemInterval time.Duration `mapstructure:"system_interval"`
	GPUInterval    time.Duration `mapstructure:"gpu_interval"`
	Transport      string        `mapstructure:"transport"`
	PIDFile        string        `mapstructure:"pid_file"`
}

// flagKeys lists the flag name bound to every setting
var flagKeys = map[string]string{
	"log-level":       "log_level",
	"providers":       "providers",
	"queue-size":      "queue_size",
	"backpressure":    "backpressure",
	"block-timeout":   "block_timeout",
	"clock-interval":  "clock_interval",
	"volume-interval": "volume_interval",
	"system-interval": "system_interval",
	"gpu-interval":    "gpu_interval",
	"transport":       "transport",
	"pid-file":        "pid_file",
}

// RegisterFlags adds every setting, plus --config, to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to the TOML configuration file")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.StringSlice("providers", DefaultProviders, "Providers to start")
	fs.Int("queue-size", DefaultQueueSize, "Outbound channel capacity in frames")
	fs.String("backpressure", DefaultBackpressure, "Full channel policy (drop, block)")
	fs.Duration("block-timeout", DefaultBlockTimeout, "Longest wait for a blocking send")
	fs.Duration("clock-interval", DefaultClockInterval, "Clock poll interval")
	fs.Duration("volume-interval", DefaultVolumeInterval, "Volume link check interval")
	fs.Duration("system-interval", DefaultSystemInterval, "CPU and memory poll interval")
	fs.Duration("gpu-interval", DefaultGPUInterval, "GPU poll interval")
	fs.String("transport", DefaultTransport, "Frame sink: - for hex on stdout, a ws:// URL or a device path")
	fs.String("pid-file", "", "PID file guarding against a second instance")
}

// Load reads the configuration. flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
	}

	if err := readConfigFile(v, configPath(flags, o)); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("providers", DefaultProviders)
	v.SetDefault("queue_size", DefaultQueueSize)
	v.SetDefault("backpressure", DefaultBackpressure)
	v.SetDefault("block_timeout", DefaultBlockTimeout)
	v.SetDefault("clock_interval", DefaultClockInterval)
	v.SetDefault("volume_interval", DefaultVolumeInterval)
	v.SetDefault("system_interval", DefaultSystemInterval)
	v.SetDefault("gpu_interval", DefaultGPUInterval)
	v.SetDefault("transport", DefaultTransport)
	v.SetDefault("pid_file", "")
}

// configPath returns the file to read. An explicit empty path disables the
// file.
func configPath(flags *pflag.FlagSet, o *options) string {
	if o.configPath != "" {
		return o.configPath
	}
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			return f.Value.String()
		}
	}
	if path, ok := os.LookupEnv(o.envPrefix + "_CONFIG"); ok {
		return path
	}

	return DefaultConfigPath
}

func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if path == DefaultConfigPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return errors.New().Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

func (c *Config) normalize() {
	providers := make([]string, 0, len(c.Providers))
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		providers = append(providers, p)
	}
	c.Providers = providers
	c.LogLevel = LogLevel(strings.ToLower(string(c.LogLevel)))
	c.Backpressure = strings.ToLower(c.Backpressure)
}

// Validate checks every setting and returns the first violation
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.QueueSize < 1 || c.QueueSize > maxQueueSize {
		return errFactory.WithData(errors.ErrInvalidQueueSize, c.QueueSize)
	}

	if !outbound.Policy(c.Backpressure).IsValid() {
		return errFactory.WithData(errors.ErrInvalidPolicy, c.Backpressure)
	}

	if outbound.Policy(c.Backpressure) == outbound.BlockWithTimeout && c.BlockTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "block_timeout must be positive")
	}

	for key, d := range map[string]time.Duration{
		"clock_interval":  c.ClockInterval,
		"volume_interval": c.VolumeInterval,
		"system_interval": c.SystemInterval,
		"gpu_interval":    c.GPUInterval,
	} {
		if d <= 0 {
			return errFactory.WithData(errors.ErrInvalidInterval, key)
		}
	}

	if len(c.Providers) == 0 {
		return errFactory.New(errors.ErrNoProviders)
	}
	for _, p := range c.Providers {
		if _, ok := intervalKeys[p]; !ok {
			return errFactory.WithData(errors.ErrUnknownProvider, p)
		}
	}

	return nil
}

func (c *Config) GetLogLevel() LogLevel {
	return c.LogLevel
}

func (c *Config) GetProviders() []string {
	return c.Providers
}

func (c *Config) GetQueueSize() int {
	return c.QueueSize
}

func (c *Config) GetBackpressure() string {
	return c.Backpressure
}

func (c *Config) GetBlockTimeout() time.Duration {
	return c.BlockTimeout
}

// GetInterval returns the interval for provider, or zero when the name is
// unknown
func (c *Config) GetInterval(provider string) time.Duration {
	switch intervalKeys[provider] {
	case "clock_interval":
		return c.ClockInterval
	case "volume_interval":
		return c.VolumeInterval
	case "system_interval":
		return c.SystemInterval
	case "gpu_interval":
		return c.GPUInterval
	default:
		return 0
	}
}

func (c *Config) GetTransport() string {
	return c.Transport
}

func (c *Config) GetPIDFile() string {
	return c.PIDFile
}

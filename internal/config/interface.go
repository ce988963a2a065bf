package config

import "time"

// Provider gives read access to the loaded configuration. Values are
// immutable after Load.
type Provider interface {
	// GetLogLevel returns the configured logging level
	GetLogLevel() LogLevel

	// GetProviders returns the names of the enabled providers
	GetProviders() []string

	// GetQueueSize returns the outbound channel capacity in frames
	GetQueueSize() int

	// GetBackpressure returns the policy applied when the channel is full
	GetBackpressure() string

	// GetBlockTimeout returns how long a blocking send may wait
	GetBlockTimeout() time.Duration

	// GetInterval returns the poll interval for the named provider
	GetInterval(provider string) time.Duration

	// GetTransport returns the sink target
	GetTransport() string

	// GetPIDFile returns the PID file path; empty disables it
	GetPIDFile() string
}

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

type options struct {
	configPath string
	envPrefix  string
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "HOSTLINK"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig    ErrorCode = "invalid_configuration"
	ErrBindFlags        ErrorCode = "bind_flags_failed"
	ErrReadConfig       ErrorCode = "read_config_failed"
	ErrInvalidInterval  ErrorCode = "invalid_interval"
	ErrInvalidLogLevel  ErrorCode = "invalid_log_level"
	ErrInvalidQueueSize ErrorCode = "invalid_queue_size"
	ErrInvalidPolicy    ErrorCode = "invalid_backpressure_policy"
	ErrUnknownProvider  ErrorCode = "unknown_provider"

	// Process lifecycle errors
	ErrAlreadyRunning ErrorCode = "already_running"
	ErrNoProviders    ErrorCode = "no_providers_started"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Metric source errors
	ErrReadFailed        ErrorCode = "source_read_failed"
	ErrSourceUnavailable ErrorCode = "source_unavailable"
	ErrRegisterFailed    ErrorCode = "callback_register_failed"
	ErrUnregisterFailed  ErrorCode = "callback_unregister_failed"
	ErrCallbackFailed    ErrorCode = "callback_failed"

	// Outbound channel errors
	ErrBackpressure  ErrorCode = "outbound_backpressure"
	ErrChannelClosed ErrorCode = "outbound_closed"

	// Frame errors
	ErrUnknownTag ErrorCode = "frame_unknown_tag"
	ErrShortFrame ErrorCode = "frame_short"

	// Transport errors
	ErrTransportWrite ErrorCode = "transport_write_failed"
	ErrTransportDial  ErrorCode = "transport_dial_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrInvalidConfig:     "Invalid configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInvalidQueueSize:  "Invalid queue size",
	ErrInvalidPolicy:     "Invalid backpressure policy",
	ErrUnknownProvider:   "Unknown provider",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrNoProviders:       "No provider could be started",
	ErrShutdownFailed:    "Shutdown failed",
	ErrReadFailed:        "Failed to read metric",
	ErrSourceUnavailable: "Metric source unavailable",
	ErrRegisterFailed:    "Failed to register change callback",
	ErrUnregisterFailed:  "Failed to unregister change callback",
	ErrCallbackFailed:    "Change callback failed",
	ErrBackpressure:      "Outbound channel full, frame dropped",
	ErrChannelClosed:     "Outbound channel closed",
	ErrUnknownTag:        "Unknown frame tag",
	ErrShortFrame:        "Truncated frame",
	ErrTransportWrite:    "Failed to write frame to transport",
	ErrTransportDial:     "Failed to connect transport",
}

// Anything not listed is provider-fatal.
var errorKinds = map[ErrorCode]Kind{
	ErrReadFailed:       KindTransient,
	ErrUnregisterFailed: KindTransient,
	ErrCallbackFailed:   KindTransient,
	ErrBackpressure:     KindTransient,
	ErrTransportWrite:   KindTransient,

	ErrInvalidConfig:    KindProcess,
	ErrBindFlags:        KindProcess,
	ErrReadConfig:       KindProcess,
	ErrInvalidInterval:  KindProcess,
	ErrInvalidLogLevel:  KindProcess,
	ErrInvalidQueueSize: KindProcess,
	ErrInvalidPolicy:    KindProcess,
	ErrUnknownProvider:  KindProcess,
	ErrAlreadyRunning:   KindProcess,
	ErrNoProviders:      KindProcess,
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}

// GetKind returns the failure kind for a given error code
func GetKind(code ErrorCode) Kind {
	if kind, ok := errorKinds[code]; ok {
		return kind
	}

	return KindProvider
}

package errors

// ErrorCode represents a unique identifier for each error type
type ErrorCode string

// Kind classifies how far a failure is allowed to propagate
type Kind int

const (
	// KindTransient failures are logged and retried on the next cycle
	KindTransient Kind = iota
	// KindProvider failures stop the provider that hit them and nothing else
	KindProvider
	// KindProcess failures stop the whole process
	KindProcess
)

// Error represents a domain-specific error with context
type Error interface {
	error
	Code() ErrorCode
	Kind() Kind
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory defines methods for creating domain errors
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}

// Package ftserrors provides the structured error taxonomy used across the
// engine: schema violations, data corruption, indexer invariant failures,
// lock conflicts and cancellation. Every exported error wraps a baseError so
// callers can use errors.Is/errors.As uniformly while still reaching
// domain-specific context (field name, segment id, term bytes, ...).
package ftserrors

// baseError is the common foundation every domain error embeds. It carries
// a wrapped cause, a human message, a programmatic code, and a lazily
// allocated details bag for structured logging.
type baseError struct {
	cause   error
	message string
	code    ErrorCode
	details map[string]any
}

func newBaseError(cause error, code ErrorCode, message string) baseError {
	return baseError{cause: cause, code: code, message: message}
}

func (b *baseError) Error() string {
	if b.cause != nil {
		return b.message + ": " + b.cause.Error()
	}
	return b.message
}

func (b *baseError) Unwrap() error {
	return b.cause
}

func (b *baseError) Code() ErrorCode {
	return b.code
}

func (b *baseError) Details() map[string]any {
	return b.details
}

func (b *baseError) withDetail(key string, value any) {
	if b.details == nil {
		b.details = make(map[string]any)
	}
	b.details[key] = value
}

package ftserrors

import stdErrors "errors"

// ErrLockConflict is returned when a writer attempts to open a directory
// already locked by another live writer.
var ErrLockConflict = NewBaseSentinel(ErrorCodeLockConflict, "another writer holds the index lock")

// ErrCancelled is returned by in-flight operations aborted by rollback or
// by a merge abort.
var ErrCancelled = NewBaseSentinel(ErrorCodeCancelled, "operation cancelled")

// sentinelError is a baseError with no cause and no mutable context,
// suitable for package-level `var Err... = ...` declarations compared with
// errors.Is.
type sentinelError struct {
	baseError
}

// NewBaseSentinel builds a comparable, causeless error carrying a fixed
// code and message.
func NewBaseSentinel(code ErrorCode, message string) error {
	return &sentinelError{baseError: newBaseError(nil, code, message)}
}

// IsCancelled reports whether err is, or wraps, ErrCancelled.
func IsCancelled(err error) bool {
	return stdErrors.Is(err, ErrCancelled)
}

// IsLockConflict reports whether err is, or wraps, ErrLockConflict.
func IsLockConflict(err error) bool {
	return stdErrors.Is(err, ErrLockConflict)
}

package ftserrors

import stdErrors "errors"

// IsSchemaError reports whether err is, or wraps, a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return stdErrors.As(err, &se)
}

// IsDataError reports whether err is, or wraps, a *DataError.
func IsDataError(err error) bool {
	var de *DataError
	return stdErrors.As(err, &de)
}

// IsIndexerError reports whether err is, or wraps, an *IndexerError.
func IsIndexerError(err error) bool {
	var ie *IndexerError
	return stdErrors.As(err, &ie)
}

// AsSchemaError extracts a *SchemaError from err's chain, if present.
func AsSchemaError(err error) (*SchemaError, bool) {
	var se *SchemaError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsDataError extracts a *DataError from err's chain, if present.
func AsDataError(err error) (*DataError, bool) {
	var de *DataError
	if stdErrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// AsIndexerError extracts an *IndexerError from err's chain, if present.
func AsIndexerError(err error) (*IndexerError, bool) {
	var ie *IndexerError
	if stdErrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// GetErrorCode extracts the ErrorCode from any error produced by this
// package, defaulting to ErrorCodeInternal for anything else. Useful for
// metrics/monitoring that branch on code rather than parsing messages.
func GetErrorCode(err error) ErrorCode {
	if se, ok := AsSchemaError(err); ok {
		return se.Code()
	}
	if de, ok := AsDataError(err); ok {
		return de.Code()
	}
	if ie, ok := AsIndexerError(err); ok {
		return ie.Code()
	}
	var sentinel *sentinelError
	if stdErrors.As(err, &sentinel) {
		return sentinel.Code()
	}
	return ErrorCodeInternal
}

// GetErrorDetails extracts the structured detail map from any error
// produced by this package, or an empty map for anything else.
func GetErrorDetails(err error) map[string]any {
	if se, ok := AsSchemaError(err); ok {
		if d := se.Details(); d != nil {
			return d
		}
	}
	if de, ok := AsDataError(err); ok {
		if d := de.Details(); d != nil {
			return d
		}
	}
	if ie, ok := AsIndexerError(err); ok {
		if d := ie.Details(); d != nil {
			return d
		}
	}
	return make(map[string]any)
}

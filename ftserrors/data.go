package ftserrors

// DataError reports corruption or format problems discovered while reading
// persisted segment files: a bad checksum, an unrecognized format version,
// or an unknown type code in a term/column.
type DataError struct {
	baseError
	segmentID string
	fileName  string
	offset    int64
}

// NewDataError builds a DataError with the given code and message.
func NewDataError(cause error, code ErrorCode, message string) *DataError {
	return &DataError{baseError: newBaseError(cause, code, message)}
}

// WithSegment records which segment the corrupted data belongs to.
func (e *DataError) WithSegment(id string) *DataError {
	e.segmentID = id
	e.withDetail("segmentId", id)
	return e
}

// WithFileName records the file within the segment that failed to parse.
func (e *DataError) WithFileName(name string) *DataError {
	e.fileName = name
	e.withDetail("fileName", name)
	return e
}

// WithOffset records the byte offset at which the corruption was detected.
func (e *DataError) WithOffset(offset int64) *DataError {
	e.offset = offset
	e.withDetail("offset", offset)
	return e
}

// SegmentID returns the segment the error concerns, if recorded.
func (e *DataError) SegmentID() string { return e.segmentID }

// FileName returns the file the error concerns, if recorded.
func (e *DataError) FileName() string { return e.fileName }

// Offset returns the byte offset the error concerns.
func (e *DataError) Offset() int64 { return e.offset }

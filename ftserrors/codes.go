package ftserrors

// ErrorCode standardizes error categorization across the engine so callers
// can branch on failure class without parsing messages.
type ErrorCode string

const (
	// Base codes, applicable anywhere in the stack.
	ErrorCodeIO       ErrorCode = "IO_ERROR"
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"

	// SchemaError codes.
	ErrorCodeFieldNotFound   ErrorCode = "FIELD_NOT_FOUND"
	ErrorCodeFieldTypeWrong  ErrorCode = "FIELD_TYPE_MISMATCH"
	ErrorCodeFieldDuplicated ErrorCode = "FIELD_DUPLICATED"

	// DataError codes.
	ErrorCodeChecksumMismatch   ErrorCode = "CHECKSUM_MISMATCH"
	ErrorCodeUnknownFormat      ErrorCode = "UNKNOWN_FORMAT_VERSION"
	ErrorCodeUnknownTypeCode    ErrorCode = "UNKNOWN_TYPE_CODE"
	ErrorCodeSegmentCorrupted   ErrorCode = "SEGMENT_CORRUPTED"
	ErrorCodePermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrorCodeDiskFull           ErrorCode = "DISK_FULL"
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"

	// IndexerError codes.
	ErrorCodePositionNonIncreasing ErrorCode = "POSITION_NON_INCREASING"
	ErrorCodeDocIDNonIncreasing    ErrorCode = "DOC_ID_NON_INCREASING"
	ErrorCodeRanksNotSorted        ErrorCode = "RANKS_NOT_SORTED"
	ErrorCodeRankBeforeRowStart    ErrorCode = "RANK_BEFORE_ROW_START"

	// Lifecycle codes.
	ErrorCodeLockConflict ErrorCode = "LOCK_CONFLICT"
	ErrorCodeCancelled    ErrorCode = "CANCELLED"
)

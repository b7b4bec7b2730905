package ftserrors

// SchemaError reports a mismatch between a requested operation and the
// declared field schema: a missing field name, a wrong logical type for
// the operation attempted, or an attempt to declare a field twice.
type SchemaError struct {
	baseError
	field string
	rule  string
}

// NewSchemaError builds a SchemaError with the given code and message.
func NewSchemaError(cause error, code ErrorCode, message string) *SchemaError {
	return &SchemaError{baseError: newBaseError(cause, code, message)}
}

// WithField records which field name the error concerns.
func (e *SchemaError) WithField(field string) *SchemaError {
	e.field = field
	e.withDetail("field", field)
	return e
}

// WithRule records which schema rule was violated (e.g. "must-be-indexed").
func (e *SchemaError) WithRule(rule string) *SchemaError {
	e.rule = rule
	e.withDetail("rule", rule)
	return e
}

// Field returns the offending field name, if recorded.
func (e *SchemaError) Field() string { return e.field }

// Rule returns the violated rule name, if recorded.
func (e *SchemaError) Rule() string { return e.rule }

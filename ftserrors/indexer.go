package ftserrors

// IndexerError reports a fatal-for-this-document invariant violation raised
// by the indexing pipeline: non-increasing positions within a (doc, term)
// entry, non-increasing doc ids within a posting list, or an out-of-order
// rank passed to select_batch_in_place. The writer rejects the offending
// document without corrupting any previously accumulated state.
type IndexerError struct {
	baseError
	term string
	doc  uint32
	op   string
}

// NewIndexerError builds an IndexerError with the given code and message.
func NewIndexerError(cause error, code ErrorCode, message string) *IndexerError {
	return &IndexerError{baseError: newBaseError(cause, code, message)}
}

// WithTerm records the term bytes (rendered) being accumulated.
func (e *IndexerError) WithTerm(term string) *IndexerError {
	e.term = term
	e.withDetail("term", term)
	return e
}

// WithDoc records the doc id being processed.
func (e *IndexerError) WithDoc(doc uint32) *IndexerError {
	e.doc = doc
	e.withDetail("doc", doc)
	return e
}

// WithOperation records which indexer operation raised the error.
func (e *IndexerError) WithOperation(op string) *IndexerError {
	e.op = op
	e.withDetail("operation", op)
	return e
}

// Term returns the term the error concerns, if recorded.
func (e *IndexerError) Term() string { return e.term }

// DocID returns the doc id the error concerns.
func (e *IndexerError) DocID() uint32 { return e.doc }

// Operation returns the indexer operation name, if recorded.
func (e *IndexerError) Operation() string { return e.op }

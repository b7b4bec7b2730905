// Package query implements the Query/Weight two-stage query API:
// a Query is index-independent and carries no per-segment state; calling
// Weight against an index-wide Searcher binds statistics (doc frequency,
// total docs) once, and the resulting Weight can then be asked for a
// Scorer against any number of individual segments cheaply.
package query

import (
	"go.uber.org/zap"

	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/search"
)

// Searcher exposes the index-wide statistics a Weight needs to compute a
// stable IDF across all segments.
type Searcher interface {
	TotalDocs() uint64
	DocFreq(fieldID uint32, term []byte) (uint64, error)
	Logger() *zap.SugaredLogger
}

// SegmentReader is the subset of *segment.Reader a Weight needs to build a
// Scorer over one segment. *segment.Reader satisfies this structurally.
type SegmentReader interface {
	InvertedIndex(fieldID uint32) (*segment.InvertedIndexReader, bool, error)
	FieldNorms(fieldID uint32) (segment.FieldNorms, bool)
	MaxDoc() uint32
	IsDeleted(doc uint32) bool
}

// Query is an index-independent description of what to search for. Weight binds it against a specific index's collection statistics.
type Query interface {
	Weight(searcher Searcher, scoringEnabled bool) (Weight, error)
}

// Weight is a Query bound to collection-wide statistics, reusable across
// every segment of an index.
type Weight interface {
	// Scorer builds a per-segment Scorer, or (nil, nil) if the query
	// matches nothing in this segment (e.g. the term is absent).
	Scorer(seg SegmentReader, boost float32) (search.Scorer, error)
	// Explain builds a score explanation for one specific doc, recomputing
	// from scratch rather than reusing a live Scorer.
	Explain(seg SegmentReader, doc search.DocID) (*search.Explanation, error)
}

func isDeletedFunc(seg SegmentReader) search.IsDeletedFunc {
	return func(doc search.DocID) bool { return seg.IsDeleted(doc) }
}

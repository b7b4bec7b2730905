// Package search implements the query execution core: the DocSet iterator
// contract, BM25-scoring term scorers, boolean combinators (intersection,
// union, required/optional, must-not), phrase matching over positions, and
// the Block-WAND top-K short-circuit. The forward-iterator DocSet model is
// deliberate: random-access cursors would defeat skip lists.
package search

import "math"

// DocID is a segment-local document identifier.
type DocID = uint32

// Terminated is the sentinel doc id returned by DocSet methods once
// iteration is exhausted.
const Terminated DocID = math.MaxUint32

// DocSet is a forward-only iterator over doc ids.
type DocSet interface {
	// Doc returns the current position, Terminated before the first
	// Advance/Seek call and after exhaustion.
	Doc() DocID

	// Advance steps to the next doc id, returning Terminated at end.
	Advance() DocID

	// Seek advances to the first doc id >= target, returning Terminated
	// if none remains. The default behavior (repeated Advance) is
	// provided by SeekDefault for DocSets without a specialized skip
	// list; term/intersection/union scorers override it.
	Seek(target DocID) DocID

	// SizeHint is an upper bound on the number of docs remaining, used
	// for cost-based query planning (e.g. ordering an intersection's
	// children by rarity).
	SizeHint() uint32
}

// SeekDefault implements DocSet.Seek generically by repeated Advance, for
// DocSets with no skip structure of their own.
func SeekDefault(ds DocSet, target DocID) DocID {
	doc := ds.Doc()
	for doc != Terminated && doc < target {
		doc = ds.Advance()
	}
	return doc
}

// Scorer is a DocSet that can additionally produce a relevance score for
// its current doc.
type Scorer interface {
	DocSet
	// Score returns the score for the current doc.
	Score() float32
	// Explain builds an Explanation tree for the current doc's score.
	Explain() *Explanation
}

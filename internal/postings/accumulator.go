// Package postings implements the per-field posting-list accumulator that
// absorbs (doc, term, position) triples during indexing before a segment
// flush drains it into the on-disk postings format.
package postings

import (
	"sort"

	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/arena"
)

// PerTermState is the arena-resident record a term's bucket in the
// accumulator's hash map points to: three chunked varint streams plus the
// cached state needed to delta-encode the next occurrence without
// rereading what was already written.
type PerTermState struct {
	Docs      chunkedList
	TFs       chunkedList
	Positions chunkedList

	LastDoc      uint32
	CurrentTF    uint32
	LastPosition uint32
	DocFreq      uint32
	Finalized    bool
	_            [3]byte // pad to a stable, unsafe.Sizeof-friendly layout
}

// Accumulator holds every field's term -> PerTermState accumulation for one
// segment build. Term bytes are hashed into a dense table by
// arena.HashMap; the chunked varint streams themselves live in a separate
// Arena so the hash map's own bucket table never has to grow to
// accommodate posting data.
type Accumulator struct {
	terms *arena.HashMap[PerTermState]
	data  *arena.Arena
}

// NewAccumulator creates an empty accumulator whose term table starts
// sized for tableSize buckets (rounded down to a power of two).
func NewAccumulator(tableSize int) *Accumulator {
	return &Accumulator{
		terms: arena.NewHashMap[PerTermState](tableSize),
		data:  arena.New(),
	}
}

// Record absorbs one occurrence of term at doc, position. A term's first
// occurrence in a new doc appends a doc-id delta and seeds tf=1 (flushing
// the previous doc's tf first, if any); a subsequent occurrence in the
// same doc increments tf and appends a position delta, which must be
// non-decreasing.
func (acc *Accumulator) Record(doc uint32, term []byte, position uint32) error {
	var recordErr error
	acc.terms.MutateOrCreate(term, func(prev PerTermState, found bool) PerTermState {
		if !found {
			state := PerTermState{}
			state.Docs = appendVarint(acc.data, state.Docs, uint64(doc))
			state.Positions = appendVarint(acc.data, state.Positions, uint64(position))
			state.CurrentTF = 1
			state.LastPosition = position
			state.LastDoc = doc
			state.DocFreq = 1
			return state
		}

		state := prev
		if state.LastDoc != doc {
			state.TFs = appendVarint(acc.data, state.TFs, uint64(state.CurrentTF))
			delta := doc - state.LastDoc
			state.Docs = appendVarint(acc.data, state.Docs, uint64(delta))
			state.Positions = appendVarint(acc.data, state.Positions, uint64(position))
			state.CurrentTF = 1
			state.LastPosition = position
			state.LastDoc = doc
			state.DocFreq++
			return state
		}

		if position < state.LastPosition {
			recordErr = ftserrors.NewIndexerError(nil, ftserrors.ErrorCodePositionNonIncreasing,
				"position must not decrease within a document").
				WithTerm(string(term)).
				WithDoc(doc).
				WithOperation("record")
			return prev
		}

		state.Positions = appendVarint(acc.data, state.Positions, uint64(position-state.LastPosition))
		state.CurrentTF++
		state.LastPosition = position
		return state
	})
	return recordErr
}

// Finalize flushes the still-open last document's term frequency for
// every term that has been recorded, which Record only does lazily when a
// *new* doc starts. It must be called once, after the last document of a
// segment has been added and before Drain.
func (acc *Accumulator) Finalize() {
	for _, e := range acc.terms.Iter() {
		key := e.Key
		acc.terms.MutateOrCreate(key, func(prev PerTermState, found bool) PerTermState {
			if !found || prev.Finalized {
				return prev
			}
			state := prev
			state.TFs = appendVarint(acc.data, state.TFs, uint64(state.CurrentTF))
			state.Finalized = true
			return state
		})
	}
}

// DrainedTerm is one term's fully decoded posting lists, ready for the
// segment writer to re-encode in the on-disk block format.
type DrainedTerm struct {
	Term      []byte
	DocFreq   uint32
	DocDeltas []uint64
	TFs       []uint64
	Positions []uint64
}

// Drain returns every recorded term's postings in sorted key order. Finalize must be called first or the last open document's tf
// for each term will be missing.
func (acc *Accumulator) Drain() []DrainedTerm {
	entries := acc.terms.Iter()
	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].Key) < string(entries[j].Key)
	})

	out := make([]DrainedTerm, 0, len(entries))
	for _, e := range entries {
		out = append(out, DrainedTerm{
			Term:      append([]byte(nil), e.Key...),
			DocFreq:   e.Value.DocFreq,
			DocDeltas: readVarints(acc.data, e.Value.Docs),
			TFs:       readVarints(acc.data, e.Value.TFs),
			Positions: readVarints(acc.data, e.Value.Positions),
		})
	}
	return out
}

// MemUsage reports the accumulator's approximate memory footprint, for
// the writer's memory-budget accounting.
func (acc *Accumulator) MemUsage() int {
	return acc.terms.MemUsage() + acc.data.Len()
}

// DocsForTerm decodes and returns the absolute doc ids currently recorded
// for term, without requiring Finalize/Drain first. Used by delete-by-term
// to match against a still-open, in-progress segment builder.
func (acc *Accumulator) DocsForTerm(term []byte) []uint32 {
	state, ok := acc.terms.Get(term)
	if !ok {
		return nil
	}
	deltas := readVarints(acc.data, state.Docs)
	docs := make([]uint32, len(deltas))
	var cum uint64
	for i, d := range deltas {
		cum += d
		docs[i] = uint32(cum)
	}
	return docs
}

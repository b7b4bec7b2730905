package fastfield

import (
	"github.com/nutmeg-labs/ember/ftserrors"
)

// OffsetIndex is the multi-valued column's offset index: offsets[d] is the
// first value-row index belonging to doc d, offsets[max_doc] = total value
// count. It is itself stored as an ordinary Column, reusing the u64 codec
// machinery.
type OffsetIndex struct {
	offsets *Column
}

// NewOffsetIndex wraps a column of length max_doc+1 that the caller
// guarantees is monotonically non-decreasing; it performs no check itself.
// (BuildOffsetIndex produces such offsets by construction, as running sums
// of per-doc value counts.)
func NewOffsetIndex(offsets *Column) *OffsetIndex {
	return &OffsetIndex{offsets: offsets}
}

// BuildOffsetIndex turns a per-doc value count slice into a cumulative
// offsets column, bit-packed like any other column.
func BuildOffsetIndex(valueCounts []uint32) *OffsetIndex {
	offsets := make([]uint64, len(valueCounts)+1)
	var running uint64
	for i, n := range valueCounts {
		offsets[i] = running
		running += uint64(n)
	}
	offsets[len(valueCounts)] = running
	return &OffsetIndex{offsets: BuildBitpacked(offsets)}
}

// MaxDoc returns the number of documents the index covers.
func (idx *OffsetIndex) MaxDoc() uint32 {
	if idx.offsets.NumVals() == 0 {
		return 0
	}
	return idx.offsets.NumVals() - 1
}

// TotalValues returns offsets[max_doc], the flat values column's length.
func (idx *OffsetIndex) TotalValues() uint64 {
	return idx.offsets.GetVal(idx.MaxDoc())
}

// Range returns [start, end), the half-open value-row range doc owns.
func (idx *OffsetIndex) Range(doc uint32) (start, end uint64) {
	return idx.offsets.GetVal(doc), idx.offsets.GetVal(doc + 1)
}

// SelectBatchInPlace converts a sorted list of value ranks (positions in
// the flat values column) into the doc ids that own them, deduplicating
// consecutive owners: a cursor cur_doc advances; for each rank, step
// cur_doc forward while offsets[cur_doc+1] <= rank, emit cur_doc,
// suppress consecutive duplicates.
//
// Preconditions, checked: ranks must be sorted ascending, and
// ranks[0] >= offsets[docStart].
func (idx *OffsetIndex) SelectBatchInPlace(docStart uint32, ranks []uint32) ([]uint32, error) {
	if len(ranks) == 0 {
		return ranks[:0], nil
	}
	for i := 1; i < len(ranks); i++ {
		if ranks[i] < ranks[i-1] {
			return nil, ftserrors.NewIndexerError(nil, ftserrors.ErrorCodeRanksNotSorted,
				"select_batch_in_place requires ranks sorted ascending").WithOperation("select_batch_in_place")
		}
	}
	rowStart, _ := idx.Range(docStart)
	if uint64(ranks[0]) < rowStart {
		return nil, ftserrors.NewIndexerError(nil, ftserrors.ErrorCodeRankBeforeRowStart,
			"select_batch_in_place requires ranks[0] >= offsets[doc_start]").WithOperation("select_batch_in_place")
	}

	curDoc := docStart
	out := ranks[:0]
	for _, rank := range ranks {
		for idx.offsets.GetVal(curDoc+1) <= uint64(rank) {
			curDoc++
		}
		if len(out) == 0 || out[len(out)-1] != curDoc {
			out = append(out, curDoc)
		}
	}
	return out, nil
}

package fastfield

import (
	"testing"

	"github.com/nutmeg-labs/ember/ftserrors"
)

// Fixture from the multivalued index's select semantics: offsets
// [0,10,12,15,22,23], ranks [10,11,15,20,21,22] resolve to docs [1,3,4].
func TestSelectBatchInPlace(t *testing.T) {
	idx := offsetIndexFromOffsets(t, []uint64{0, 10, 12, 15, 22, 23})

	ranks := []uint32{10, 11, 15, 20, 21, 22}
	out, err := idx.SelectBatchInPlace(0, ranks)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	want := []uint32{1, 3, 4}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
}

func TestSelectBatchInPlaceEmptyRanks(t *testing.T) {
	idx := offsetIndexFromOffsets(t, []uint64{0, 1})
	out, err := idx.SelectBatchInPlace(0, nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("got %v, %v", out, err)
	}
}

func TestSelectBatchInPlaceRejectsUnsortedRanks(t *testing.T) {
	idx := offsetIndexFromOffsets(t, []uint64{0, 10, 12})
	_, err := idx.SelectBatchInPlace(0, []uint32{5, 3})
	if ftserrors.GetErrorCode(err) != ftserrors.ErrorCodeRanksNotSorted {
		t.Fatalf("expected ErrorCodeRanksNotSorted, got %v", err)
	}
}

func TestSelectBatchInPlaceRejectsRankBeforeRowStart(t *testing.T) {
	idx := offsetIndexFromOffsets(t, []uint64{0, 10, 12})
	_, err := idx.SelectBatchInPlace(1, []uint32{5})
	if ftserrors.GetErrorCode(err) != ftserrors.ErrorCodeRankBeforeRowStart {
		t.Fatalf("expected ErrorCodeRankBeforeRowStart, got %v", err)
	}
}

func TestBuildOffsetIndexFromCounts(t *testing.T) {
	idx := BuildOffsetIndex([]uint32{10, 2, 3, 7, 1})
	if idx.MaxDoc() != 5 {
		t.Fatalf("max doc: got %d", idx.MaxDoc())
	}
	if idx.TotalValues() != 23 {
		t.Fatalf("total values: got %d", idx.TotalValues())
	}
	start, end := idx.Range(3)
	if start != 15 || end != 22 {
		t.Fatalf("range(3): got [%d, %d)", start, end)
	}

	// Offsets must be non-decreasing and end at the value count.
	var prev uint64
	for d := uint32(0); d <= idx.MaxDoc(); d++ {
		v := idx.offsets.GetVal(d)
		if v < prev {
			t.Fatalf("offsets decreased at row %d: %d < %d", d, v, prev)
		}
		prev = v
	}
}

func offsetIndexFromOffsets(t *testing.T, offsets []uint64) *OffsetIndex {
	t.Helper()
	return NewOffsetIndex(BuildBitpacked(offsets))
}

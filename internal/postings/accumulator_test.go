package postings

import (
	"testing"

	"github.com/nutmeg-labs/ember/ftserrors"
)

func TestAccumulatorRecordSingleTermSingleDoc(t *testing.T) {
	acc := NewAccumulator(16)
	term := []byte("hello")

	if err := acc.Record(0, term, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := acc.Record(0, term, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acc.Finalize()

	drained := acc.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected 1 term, got %d", len(drained))
	}
	dt := drained[0]
	if dt.DocFreq != 1 {
		t.Fatalf("expected doc freq 1, got %d", dt.DocFreq)
	}
	if got := dt.DocDeltas; len(got) != 1 || got[0] != 0 {
		t.Fatalf("expected doc deltas [0], got %v", got)
	}
	if got := dt.TFs; len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected tfs [2], got %v", got)
	}
	if got := dt.Positions; len(got) != 2 || got[0] != 0 || got[1] != 3 {
		t.Fatalf("expected positions [0 3], got %v", got)
	}
}

func TestAccumulatorRecordAcrossMultipleDocs(t *testing.T) {
	acc := NewAccumulator(16)
	term := []byte("go")

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	must(acc.Record(1, term, 0))
	must(acc.Record(1, term, 5))
	must(acc.Record(4, term, 1))
	acc.Finalize()

	drained := acc.Drain()
	dt := drained[0]
	if dt.DocFreq != 2 {
		t.Fatalf("expected doc freq 2, got %d", dt.DocFreq)
	}
	if got := dt.DocDeltas; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected doc deltas [1 3] (doc1-0, doc4-doc1), got %v", got)
	}
	if got := dt.TFs; len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Fatalf("expected tfs [2 1], got %v", got)
	}
	if got := dt.Positions; len(got) != 3 || got[0] != 0 || got[1] != 5 || got[2] != 1 {
		t.Fatalf("expected positions [0 5 1], got %v", got)
	}
}

func TestAccumulatorRejectsNonIncreasingPosition(t *testing.T) {
	acc := NewAccumulator(16)
	term := []byte("x")

	if err := acc.Record(0, term, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := acc.Record(0, term, 2)
	if err == nil {
		t.Fatalf("expected PositionNonIncreasing error")
	}
	if ftserrors.GetErrorCode(err) != ftserrors.ErrorCodePositionNonIncreasing {
		t.Fatalf("expected ErrorCodePositionNonIncreasing, got %v", ftserrors.GetErrorCode(err))
	}
}

func TestAccumulatorDrainSortsKeys(t *testing.T) {
	acc := NewAccumulator(16)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	must(acc.Record(0, []byte("zebra"), 0))
	must(acc.Record(0, []byte("apple"), 0))
	must(acc.Record(0, []byte("mango"), 0))
	acc.Finalize()

	drained := acc.Drain()
	var keys []string
	for _, dt := range drained {
		keys = append(keys, string(dt.Term))
	}
	want := []string{"apple", "mango", "zebra"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("expected sorted keys %v, got %v", want, keys)
		}
	}
}

func TestAccumulatorManyTermsForcesChunkGrowth(t *testing.T) {
	acc := NewAccumulator(4)
	const numDocs = 200
	for doc := uint32(0); doc < numDocs; doc++ {
		for pos := uint32(0); pos < 5; pos++ {
			if err := acc.Record(doc, []byte("common"), pos); err != nil {
				t.Fatalf("doc %d pos %d: %v", doc, pos, err)
			}
		}
	}
	acc.Finalize()

	drained := acc.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected 1 term, got %d", len(drained))
	}
	dt := drained[0]
	if dt.DocFreq != numDocs {
		t.Fatalf("expected doc freq %d, got %d", numDocs, dt.DocFreq)
	}
	if len(dt.TFs) != numDocs {
		t.Fatalf("expected %d tf entries, got %d", numDocs, len(dt.TFs))
	}
	for _, tf := range dt.TFs {
		if tf != 5 {
			t.Fatalf("expected every doc's tf to be 5, got %d", tf)
		}
	}
	if len(dt.Positions) != numDocs*5 {
		t.Fatalf("expected %d position entries, got %d", numDocs*5, len(dt.Positions))
	}
}

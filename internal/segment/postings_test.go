package segment

import (
	"testing"

	"github.com/nutmeg-labs/ember/internal/postings"
)

// buildDrained assembles a DrainedTerm the way the accumulator emits one:
// doc deltas (first absolute), per-doc tfs, and a flat position-delta
// stream resetting to a from-zero basis at each doc.
func buildDrained(term string, docs []uint32, positions [][]uint32) postings.DrainedTerm {
	dt := postings.DrainedTerm{Term: []byte(term), DocFreq: uint32(len(docs))}
	var lastDoc uint32
	for i, doc := range docs {
		dt.DocDeltas = append(dt.DocDeltas, uint64(doc-lastDoc))
		lastDoc = doc
		dt.TFs = append(dt.TFs, uint64(len(positions[i])))
		var lastPos uint32
		for _, p := range positions[i] {
			dt.Positions = append(dt.Positions, uint64(p-lastPos))
			lastPos = p
		}
	}
	return dt
}

func TestEncodeTermRoundTripSmall(t *testing.T) {
	docs := []uint32{0, 3, 7}
	positions := [][]uint32{{0, 2}, {1}, {4, 5, 9}}

	var posFile []byte
	record := EncodeTerm(buildDrained("hello", docs, positions), &posFile)

	et, err := decodeEncodedTerm(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if et.docFreq != 3 {
		t.Fatalf("doc freq: got %d", et.docFreq)
	}

	deltas := et.DocDeltas()
	var cum uint64
	var gotDocs []uint32
	for _, d := range deltas {
		cum += d
		gotDocs = append(gotDocs, uint32(cum))
	}
	assertU32s(t, "docs", gotDocs, docs)

	tfs := et.TFs()
	perDoc := et.Positions(posFile, tfs)
	for i := range docs {
		assertU32s(t, "positions", perDoc[i], positions[i])
	}
}

func TestEncodeTermRoundTripAcrossBlockBoundary(t *testing.T) {
	// 300 docs: two full 128-doc bit-packed blocks plus a 44-doc varint
	// tail, exercising the skip list and both codec paths.
	const n = 300
	docs := make([]uint32, n)
	positions := make([][]uint32, n)
	for i := range docs {
		docs[i] = uint32(i*3 + 1)
		positions[i] = []uint32{uint32(i % 7), uint32(i%7 + 2)}
	}

	var posFile []byte
	record := EncodeTerm(buildDrained("dense", docs, positions), &posFile)

	et, err := decodeEncodedTerm(record)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(et.skipList) != 2 {
		t.Fatalf("expected 2 full blocks, got %d", len(et.skipList))
	}
	if et.skipList[0].lastDoc != docs[127] {
		t.Fatalf("skip entry 0 last doc: got %d, want %d", et.skipList[0].lastDoc, docs[127])
	}
	if et.skipList[1].lastDoc != docs[255] {
		t.Fatalf("skip entry 1 last doc: got %d, want %d", et.skipList[1].lastDoc, docs[255])
	}
	if et.tailCount != n-2*blockSize {
		t.Fatalf("tail count: got %d", et.tailCount)
	}

	deltas := et.DocDeltas()
	if len(deltas) != n {
		t.Fatalf("decoded %d deltas", len(deltas))
	}
	var cum uint64
	prev := int64(-1)
	for i, d := range deltas {
		cum += d
		if int64(cum) <= prev {
			t.Fatalf("doc ids not strictly increasing at %d", i)
		}
		prev = int64(cum)
		if uint32(cum) != docs[i] {
			t.Fatalf("doc %d: got %d, want %d", i, cum, docs[i])
		}
	}

	perDoc := et.Positions(posFile, et.TFs())
	for i := range docs {
		assertU32s(t, "positions", perDoc[i], positions[i])
	}
}

func TestReadPostingsThroughDictionary(t *testing.T) {
	var posFile []byte
	var postingsFile []byte

	terms := []postings.DrainedTerm{
		buildDrained("alpha", []uint32{1, 2}, [][]uint32{{0}, {3}}),
		buildDrained("beta", []uint32{0, 2, 5}, [][]uint32{{1}, {0, 4}, {2}}),
	}

	dict := map[string]TermInfo{}
	for _, dt := range terms {
		offset := uint64(len(postingsFile))
		postingsFile = append(postingsFile, EncodeTerm(dt, &posFile)...)
		dict[string(dt.Term)] = TermInfo{PostingsOffset: offset}
	}

	info := dict["beta"]
	et, err := decodeEncodedTerm(postingsFile[info.PostingsOffset:])
	if err != nil {
		t.Fatalf("decode beta: %v", err)
	}
	if et.docFreq != 3 {
		t.Fatalf("beta doc freq: got %d", et.docFreq)
	}
	perDoc := et.Positions(posFile, et.TFs())
	assertU32s(t, "beta doc 1 positions", perDoc[1], []uint32{0, 4})
}

func TestFooterRoundTripAndCorruption(t *testing.T) {
	payload := []byte("some segment payload")
	data := AppendFooter(payload)

	got, err := ValidateChecksum(data)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: %q", got)
	}

	corrupted := append([]byte(nil), data...)
	corrupted[3] ^= 0xff
	if _, err := ValidateChecksum(corrupted); err == nil {
		t.Fatalf("expected checksum mismatch")
	}

	if _, err := ValidateChecksum([]byte{0x01}); err == nil {
		t.Fatalf("expected too-small error")
	}
}

func TestFieldNormQuantization(t *testing.T) {
	if EncodeFieldNorm(0) != 0 || DecodeFieldNorm(0) != 0 {
		t.Fatalf("zero token count must round-trip to zero")
	}

	// The quantization is lossy but must be monotonic and within a small
	// relative error of the true count.
	prev := uint32(0)
	for _, count := range []uint32{1, 2, 5, 10, 100, 1000, 100000} {
		norm := EncodeFieldNorm(count)
		approx := DecodeFieldNorm(norm)
		if approx < prev {
			t.Fatalf("decoded norms must be non-decreasing, got %d after %d", approx, prev)
		}
		prev = approx
		lo, hi := float64(count)*0.9, float64(count)*1.1
		if float64(approx) < lo || float64(approx) > hi {
			t.Fatalf("count %d decoded to %d, outside 10%% band", count, approx)
		}
	}
}

func TestSegmentIDParse(t *testing.T) {
	id := NewID()
	parsed, ok := ParseID(id.String())
	if !ok || parsed != id {
		t.Fatalf("round trip failed for %s", id)
	}
	if _, ok := ParseID("nope"); ok {
		t.Fatalf("expected parse failure")
	}
}

func assertU32s(t *testing.T, label string, got, want []uint32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", label, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: got %v, want %v", label, got, want)
		}
	}
}

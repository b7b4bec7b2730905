package fastfield

import (
	"math/rand"
	"testing"
)

func TestColumnRoundTripSmallRange(t *testing.T) {
	values := []uint64{100, 103, 100, 107, 101, 100}
	col := BuildBitpacked(values)
	assertColumn(t, col, values)
}

func TestColumnRoundTripLinearFriendly(t *testing.T) {
	// A near-arithmetic sequence: the linear codec should win, and either
	// way decoding must be exact.
	values := make([]uint64, 500)
	for i := range values {
		values[i] = 1000 + uint64(i)*7
	}
	values[250] += 3
	col := BuildBitpacked(values)
	if col.codec != CodecLinear {
		t.Fatalf("expected linear codec for arithmetic sequence, got %v", col.codec)
	}
	assertColumn(t, col, values)
}

func TestColumnRoundTripConstant(t *testing.T) {
	values := []uint64{42, 42, 42, 42}
	col := BuildBitpacked(values)
	assertColumn(t, col, values)
}

func TestColumnRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	values := make([]uint64, 777)
	for i := range values {
		values[i] = rng.Uint64() >> uint(rng.Intn(60))
	}
	col := BuildBitpacked(values)
	assertColumn(t, col, values)
}

func TestColumnSerializeRoundTrip(t *testing.T) {
	values := []uint64{5, 900, 3, 77, 12}
	col := BuildBitpacked(values)
	parsed, err := DeserializeColumn(col.Serialize())
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	assertColumn(t, parsed, values)
}

func TestColumnGetRange(t *testing.T) {
	values := []uint64{10, 20, 30, 40, 50}
	col := BuildBitpacked(values)
	out := make([]uint64, 3)
	col.GetRange(1, out)
	if out[0] != 20 || out[1] != 30 || out[2] != 40 {
		t.Fatalf("got %v", out)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	b := NewBuilder(3)
	single := []uint64{7, 8, 9}
	b.AddColumn("price", 1, BuildBitpacked(single))

	multi := []uint64{1, 2, 3, 4, 5}
	counts := []uint32{2, 0, 3}
	b.AddOffsetIndex("tags", 2, BuildOffsetIndex(counts))
	b.AddColumn("tags", 2, BuildBitpacked(multi))

	data, err := b.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	r, err := OpenReader(data)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if r.NumRows() != 3 {
		t.Fatalf("num rows: got %d", r.NumRows())
	}

	price, ok, err := r.Column("price", 1)
	if err != nil || !ok {
		t.Fatalf("price column: %v ok=%v", err, ok)
	}
	assertColumn(t, price, single)

	tags, ok, err := r.Column("tags", 2)
	if err != nil || !ok {
		t.Fatalf("tags column: %v ok=%v", err, ok)
	}
	assertColumn(t, tags, multi)

	idx, ok, err := r.OffsetIndex("tags", 2)
	if err != nil || !ok {
		t.Fatalf("tags offset index: %v ok=%v", err, ok)
	}
	if start, end := idx.Range(2); start != 2 || end != 5 {
		t.Fatalf("range(2): got [%d, %d)", start, end)
	}

	if _, ok, _ := r.Column("missing", 1); ok {
		t.Fatalf("expected missing column to report absent")
	}

	codes, err := r.ColumnNames("tags")
	if err != nil {
		t.Fatalf("column names: %v", err)
	}
	if len(codes) == 0 || codes[0] != 2 {
		t.Fatalf("got type codes %v", codes)
	}
}

func assertColumn(t *testing.T, col *Column, want []uint64) {
	t.Helper()
	if col.NumVals() != uint32(len(want)) {
		t.Fatalf("num vals: got %d, want %d", col.NumVals(), len(want))
	}
	for i, w := range want {
		if got := col.GetVal(uint32(i)); got != w {
			t.Fatalf("row %d: got %d, want %d", i, got, w)
		}
	}
}

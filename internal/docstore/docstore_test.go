package docstore

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/nutmeg-labs/ember/schema"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	docs := [][]StoredValue{
		{
			{FieldID: 0, Type: schema.TypeStr, Value: []byte("hello world")},
			{FieldID: 1, Type: schema.TypeU64, Value: []byte{0, 0, 0, 0, 0, 0, 0, 42}},
		},
		nil, // a doc with no stored fields still occupies a slot
		{
			{FieldID: 0, Type: schema.TypeStr, Value: []byte("second")},
		},
	}
	for _, d := range docs {
		if err := w.AddDocument(d); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	r, err := OpenReader(w.Finish())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if r.NumDocs() != 3 {
		t.Fatalf("num docs: got %d", r.NumDocs())
	}

	for i, want := range docs {
		got, err := r.Document(uint32(i))
		if err != nil {
			t.Fatalf("doc %d: %v", i, err)
		}
		if len(got) != len(want) {
			t.Fatalf("doc %d: got %d values, want %d", i, len(got), len(want))
		}
		for j := range want {
			if got[j].FieldID != want[j].FieldID || got[j].Type != want[j].Type ||
				!bytes.Equal(got[j].Value, want[j].Value) {
				t.Fatalf("doc %d value %d: got %+v, want %+v", i, j, got[j], want[j])
			}
		}
	}

	if _, err := r.Document(3); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestWriterRotatesBlocks(t *testing.T) {
	w := NewWriter()
	// Large values force multiple 16 kB blocks; every doc must still be
	// retrievable with its own contents.
	const numDocs = 40
	payload := bytes.Repeat([]byte("x"), 2048)
	for i := 0; i < numDocs; i++ {
		value := append([]byte(fmt.Sprintf("doc-%03d:", i)), payload...)
		if err := w.AddDocument([]StoredValue{{FieldID: 0, Type: schema.TypeBytes, Value: value}}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	r, err := OpenReader(w.Finish())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(r.blockOffsets) < 2 {
		t.Fatalf("expected multiple compressed blocks, got %d", len(r.blockOffsets))
	}
	for i := 0; i < numDocs; i++ {
		values, err := r.Document(uint32(i))
		if err != nil {
			t.Fatalf("doc %d: %v", i, err)
		}
		prefix := fmt.Sprintf("doc-%03d:", i)
		if !bytes.HasPrefix(values[0].Value, []byte(prefix)) {
			t.Fatalf("doc %d came back with wrong contents", i)
		}
	}
}

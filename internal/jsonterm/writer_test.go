package jsonterm

import (
	"testing"

	"github.com/nutmeg-labs/ember/schema"
)

func TestWriterStringPathAndSiblings(t *testing.T) {
	w := Wrap(1, false)
	w.PushPathSegment("attributes")
	w.PushPathSegment("color")
	w.SetStrLeaf("red")
	if got := string(w.Term().ValueBytes()); got != "attributes\x01color\x00"+string(schema.TypeStr.Code())+"red" {
		t.Fatalf("unexpected term after first leaf: %q", got)
	}
	w.SetStrLeaf("blue")
	if got := string(w.Term().ValueBytes()); got != "attributes\x01color\x00"+string(schema.TypeStr.Code())+"blue" {
		t.Fatalf("unexpected term after overwritten leaf: %q", got)
	}

	w.PopPathSegment()
	w.PushPathSegment("dimensions")
	w.PushPathSegment("width")
	w.SetU64Leaf(schema.TypeI64, schema.I64ToOrdered(400))
	wantPrefix := "attributes\x01dimensions\x01width\x00" + string(schema.TypeI64.Code())
	if got := string(w.Term().ValueBytes()); got[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("unexpected path for width leaf: %q", got)
	}

	w.PopPathSegment()
	w.PushPathSegment("height")
	w.SetU64Leaf(schema.TypeI64, schema.I64ToOrdered(300))
	wantPrefix = "attributes\x01dimensions\x01height\x00" + string(schema.TypeI64.Code())
	if got := string(w.Term().ValueBytes()); got[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("unexpected path for height leaf: %q", got)
	}
}

func TestWriterPushAfterLeafRepairsSeparator(t *testing.T) {
	w := Wrap(1, false)
	w.PushPathSegment("attribute")
	w.SetStrLeaf("something")
	w.PushPathSegment("color")
	w.SetStrLeaf("red")

	want := "attribute\x01color\x00" + string(schema.TypeStr.Code()) + "red"
	if got := string(w.Term().ValueBytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriterExpandDots(t *testing.T) {
	w := Wrap(1, true)
	w.PushPathSegment("k8s.node")
	w.SetStrLeaf("x")
	want := "k8s\x01node\x00" + string(schema.TypeStr.Code()) + "x"
	if got := string(w.Term().ValueBytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriterNoExpandDotsKeepsLiteralDot(t *testing.T) {
	w := Wrap(1, false)
	w.PushPathSegment("k8s.node")
	w.SetStrLeaf("x")
	want := "k8s.node\x00" + string(schema.TypeStr.Code()) + "x"
	if got := string(w.Term().ValueBytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriterU64TermBytes(t *testing.T) {
	w := Wrap(1, false)
	w.PushPathSegment("color")
	w.SetU64Leaf(schema.TypeU64, schema.U64ToOrdered(4))
	want := "color\x00" + string(schema.TypeU64.Code()) + "\x00\x00\x00\x00\x00\x00\x00\x04"
	if got := string(w.Term().ValueBytes()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriterI64TermOrderedEncoding(t *testing.T) {
	w := Wrap(1, false)
	w.PushPathSegment("color")
	w.SetU64Leaf(schema.TypeI64, schema.I64ToOrdered(-4))
	value := w.Term().ValueBytes()
	leafStart := len("color\x00") + 1
	decoded := schema.OrderedToI64(beUint64(value[leafStart:]))
	if decoded != -4 {
		t.Fatalf("got %d, want -4", decoded)
	}
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b[:8] {
		v = v<<8 | uint64(c)
	}
	return v
}

// Package jsonterm implements the JSON dynamic-field term encoding: flattening arbitrary JSON paths and typed leaves into a single
// field's term space so they can share one inverted index.
package jsonterm

import (
	"encoding/binary"
	"strings"

	"github.com/nutmeg-labs/ember/schema"
)

// Writer incrementally builds a JSON term by pushing and popping path
// segments, the way a recursive JSON-tree walk does, and finally closing
// the path with a leaf type + value: a term buffer plus a path stack of
// byte offsets recording each enclosing segment's end.
type Writer struct {
	term       schema.Term
	pathStack  []int
	expandDots bool

	// leafBase is the value-byte length right after the most recent
	// ClosePathAndSetType, or -1 if the current path position has not been
	// closed into a leaf yet. SetStrLeaf uses it to overwrite a
	// multi-token string leaf's previous token rather than appending to
	// it.
	leafBase int
}

// Wrap creates a Writer over a fresh term for fieldID, ready to have path
// segments pushed onto it.
func Wrap(fieldID uint32, expandDots bool) *Writer {
	return &Writer{
		term:       schema.NewTerm(fieldID, schema.TypeJson),
		pathStack:  []int{0},
		expandDots: expandDots,
		leafBase:   -1,
	}
}

func (w *Writer) trimToEndOfPath() {
	end := w.pathStack[len(w.pathStack)-1]
	w.term = w.term.TruncateValue(end)
	w.leafBase = -1
}

// PushPathSegment descends into a JSON object key, appending it (with the
// path separator) to the term buffer. It must be paired with a later
// PopPathSegment.
func (w *Writer) PushPathSegment(segment string) {
	w.trimToEndOfPath()

	if len(w.pathStack) > 1 {
		// The previous sibling may have left JSONEndOfPath as the last
		// byte (written by ClosePathAndSetType); restore it to the path
		// separator before extending the path.
		value := w.term.ValueBytes()
		value[len(value)-1] = schema.JSONPathSegmentSep
	}

	if w.expandDots && strings.ContainsRune(segment, '.') {
		start := len(w.term)
		w.term = w.term.AppendBytes([]byte(segment))
		rewritten := w.term[start:]
		for i, b := range rewritten {
			if b == '.' {
				rewritten[i] = schema.JSONPathSegmentSep
			}
		}
	} else {
		w.term = w.term.AppendBytes([]byte(segment))
	}

	w.term = w.term.AppendBytes([]byte{schema.JSONPathSegmentSep})
	w.pathStack = append(w.pathStack, len(w.term.ValueBytes()))
}

// PopPathSegment ascends back out of the JSON object key most recently
// pushed, discarding everything written since.
func (w *Writer) PopPathSegment() {
	w.pathStack = w.pathStack[:len(w.pathStack)-1]
	w.trimToEndOfPath()
}

// ClosePathAndSetType closes the path (overwriting the trailing path
// separator with the end-of-path marker) and appends the leaf's type
// code, leaving the writer ready to have the leaf value bytes appended.
func (w *Writer) ClosePathAndSetType(typ schema.Type) {
	w.trimToEndOfPath()
	value := w.term.ValueBytes()
	value[len(value)-1] = schema.JSONEndOfPath
	w.term = w.term.AppendBytes([]byte{typ.Code()})
	w.leafBase = len(w.term.ValueBytes())
}

// Term returns the term as currently built. The returned slice aliases the
// writer's internal buffer and is invalidated by the next Push/Pop/Close
// call; callers that need to keep it must copy.
func (w *Writer) Term() schema.Term {
	return w.term
}

// AppendValueBytes appends the leaf's value bytes after ClosePathAndSetType.
func (w *Writer) AppendValueBytes(b []byte) {
	w.term = w.term.AppendBytes(b)
}

// SetU64Leaf closes the path as typ and appends the order-preserving u64
// encoding of an already-projected leaf value, e.g. for a JSON number, bool, or truncated date leaf.
func (w *Writer) SetU64Leaf(typ schema.Type, ordered uint64) {
	w.ClosePathAndSetType(typ)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], ordered)
	w.AppendValueBytes(buf[:])
}

// SetStrLeaf closes the path as Str (on its first call for the current
// path position) and appends the given token text, truncating back to the
// post-close length on every subsequent call so that repeated calls (once
// per token emitted by the tokenizer) each produce a fresh term sharing
// the same path prefix instead of concatenating tokens together.
func (w *Writer) SetStrLeaf(tokenText string) {
	if w.leafBase < 0 {
		w.ClosePathAndSetType(schema.TypeStr)
	} else {
		w.term = w.term.TruncateValue(w.leafBase)
	}
	w.AppendValueBytes([]byte(tokenText))
}

// PathKey returns the term's bytes as closed by the most recent
// ClosePathAndSetType (path + type code, no leaf value bytes), suitable as
// a stable key for a per-path position tracker (see jsonterm.PathPositions)
// across the several terms a multi-token string leaf produces.
func (w *Writer) PathKey() []byte {
	return append([]byte(nil), w.term[:len(w.term)-len(w.term.ValueBytes())+w.leafBase]...)
}

// Clone returns an independent copy of the term currently built, safe to
// retain past further Writer mutation (used once a leaf term is complete
// and about to be recorded against a posting list).
func (w *Writer) Clone() schema.Term {
	return append(schema.Term(nil), w.term...)
}

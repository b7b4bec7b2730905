// Package sstable implements the sorted-string table that backs both the
// inverted index's term dictionary and the columnar "field_name || 0x00 ||
// type_code" column dictionary, realized as a vellum FST: sorted keys get
// point lookup and range iteration from the FST itself, values are byte
// offsets into a companion data file.
package sstable

import (
	"bytes"

	"github.com/couchbase/vellum"

	"github.com/nutmeg-labs/ember/ftserrors"
)

// Writer builds an FST-backed sorted-string table. Keys must be inserted in
// strictly increasing lexicographic order, matching the order the segment
// writer drains its accumulators in.
type Writer struct {
	builder *vellum.Builder
	buf     *bytes.Buffer
}

// NewWriter creates a Writer that accumulates its FST bytes in memory; the
// caller retrieves them with Close and writes them to the directory-backed
// term-dictionary file.
func NewWriter() (*Writer, error) {
	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, ftserrors.NewDataError(err, ftserrors.ErrorCodeIO, "failed to initialize term dictionary builder")
	}
	return &Writer{builder: builder, buf: &buf}, nil
}

// Insert adds one (term, value) pair. value is the byte offset into the
// companion data file (postings file for the inverted-index dictionary,
// column payload file for the columnar dictionary) where the self-describing
// record for this key begins.
func (w *Writer) Insert(key []byte, value uint64) error {
	if err := w.builder.Insert(key, value); err != nil {
		return ftserrors.NewDataError(err, ftserrors.ErrorCodeIO, "failed to insert term dictionary key")
	}
	return nil
}

// Close finalizes the FST and returns its serialized bytes.
func (w *Writer) Close() ([]byte, error) {
	if err := w.builder.Close(); err != nil {
		return nil, ftserrors.NewDataError(err, ftserrors.ErrorCodeIO, "failed to finalize term dictionary")
	}
	return w.buf.Bytes(), nil
}

// Reader opens a previously built FST for point lookup and range scans.
// Reader wraps an immutable, possibly memory-mapped byte slice; it performs
// no copies beyond what vellum itself does for navigation state.
type Reader struct {
	fst *vellum.FST
}

// OpenReader parses data (typically a directory.OpenRead of a term-dict
// file section) as an FST.
func OpenReader(data []byte) (*Reader, error) {
	fst, err := vellum.Load(data)
	if err != nil {
		return nil, ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "failed to load term dictionary")
	}
	return &Reader{fst: fst}, nil
}

// Get performs a point lookup, returning the stored offset and whether the
// key was present.
func (r *Reader) Get(key []byte) (uint64, bool, error) {
	val, exists, err := r.fst.Get(key)
	if err != nil {
		return 0, false, ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "term dictionary lookup failed")
	}
	return val, exists, nil
}

// Entry is one (key, value) pair yielded by a range scan.
type Entry struct {
	Key   []byte
	Value uint64
}

// RangeIterator is a forward cursor over a half-open key range.
type RangeIterator struct {
	it  *vellum.FSTIterator
	cur Entry
	err error
	ok  bool
}

// Range returns a stream of (term_bytes, value) pairs for keys in
// [lo, hi), either bound may be nil for an open end.
func (r *Reader) Range(lo, hi []byte) (*RangeIterator, error) {
	it, err := r.fst.Iterator(lo, hi)
	if err != nil && err != vellum.ErrIteratorDone {
		return nil, ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "term dictionary range scan failed")
	}
	ri := &RangeIterator{it: it}
	if err == vellum.ErrIteratorDone {
		ri.ok = false
		return ri, nil
	}
	ri.fill()
	return ri, nil
}

// RangePrefix is a convenience for the common case of a single-prefix scan
// (used e.g. by facet prefix queries and by the columnar dictionary's
// "list columns for a name" scan over [name||0x00, name||0x01)).
func (r *Reader) RangePrefix(prefix []byte) (*RangeIterator, error) {
	return r.Range(prefix, incrementBytes(prefix))
}

func incrementBytes(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	// all 0xff: no finite upper bound, caller should use a nil hi instead.
	return nil
}

func (it *RangeIterator) fill() {
	if it.it == nil {
		it.ok = false
		return
	}
	key, val := it.it.Current()
	it.cur = Entry{Key: append([]byte(nil), key...), Value: val}
	it.ok = true
}

// Next advances the iterator, returning false when exhausted.
func (it *RangeIterator) Next() bool {
	if !it.ok {
		return false
	}
	err := it.it.Next()
	if err == vellum.ErrIteratorDone {
		it.ok = false
		return false
	}
	if err != nil {
		it.err = ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "term dictionary range scan failed")
		it.ok = false
		return false
	}
	it.fill()
	return true
}

// Valid reports whether the iterator currently sits on an entry (false
// immediately after Range on an empty range, or once Next returns false).
func (it *RangeIterator) Valid() bool { return it.ok }

// Entry returns the iterator's current position. Valid only when Valid()
// is true.
func (it *RangeIterator) Entry() Entry { return it.cur }

// Err returns any error encountered during iteration.
func (it *RangeIterator) Err() error { return it.err }

// ColumnDictKey composes the columnar dictionary key for a named, typed
// fast field.
func ColumnDictKey(name string, typeCode byte) []byte {
	key := make([]byte, 0, len(name)+2)
	key = append(key, name...)
	key = append(key, 0x00, typeCode)
	return key
}

// ColumnDictNamePrefix returns the [lo, hi) bounds for listing every column
// registered under name, regardless of type code.
func ColumnDictNamePrefix(name string) (lo, hi []byte) {
	lo = append([]byte(name), 0x00)
	hi = append([]byte(name), 0x01)
	return lo, hi
}

package fastfield

import (
	"encoding/binary"

	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/sstable"
)

// formatVersion is the fast-field file format tag written into every
// columnar footer.
const formatVersion uint32 = 1

// Builder accumulates one or more named, typed columns for a segment build
// and serializes them into the columnar file payload plus its SSTable
// dictionary.
type Builder struct {
	payload []byte
	entries []dictEntry
	numRows uint32
}

type dictEntry struct {
	key    []byte
	offset uint64
}

// NewBuilder creates an empty columnar store builder for a segment with
// numRows documents.
func NewBuilder(numRows uint32) *Builder {
	return &Builder{numRows: numRows}
}

// AddColumn serializes col under name/typeCode. Multiple columns may share
// a name iff their type codes differ.
func (b *Builder) AddColumn(name string, typeCode byte, col *Column) {
	offset := uint64(len(b.payload))
	b.payload = append(b.payload, col.Serialize()...)
	b.entries = append(b.entries, dictEntry{key: sstable.ColumnDictKey(name, typeCode), offset: offset})
}

// AddOffsetIndex serializes a multi-valued column's offset index under
// name/typeCode with a reserved suffix so it never collides with the
// values column itself (both share the declared field type code).
func (b *Builder) AddOffsetIndex(name string, typeCode byte, idx *OffsetIndex) {
	offset := uint64(len(b.payload))
	b.payload = append(b.payload, idx.offsets.Serialize()...)
	key := append(sstable.ColumnDictKey(name, typeCode), 0x02) // 0x02: offset-index suffix
	b.entries = append(b.entries, dictEntry{key: key, offset: offset})
}

// Finish writes the SSTable dictionary over the accumulated entries and
// returns the complete columnar file contents:
// `[columns_payload | sstable | sstable_len:u64 LE | num_rows:u32 LE |
// version_footer]`.
func (b *Builder) Finish() ([]byte, error) {
	w, err := sstable.NewWriter()
	if err != nil {
		return nil, err
	}
	// vellum requires keys in sorted order; entries were appended in
	// field-declaration order, so sort defensively.
	sortDictEntries(b.entries)
	for _, e := range b.entries {
		if err := w.Insert(e.key, e.offset); err != nil {
			return nil, err
		}
	}
	fstBytes, err := w.Close()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(b.payload)+len(fstBytes)+8+4+4)
	out = append(out, b.payload...)
	out = append(out, fstBytes...)

	var trailer [16]byte
	binary.LittleEndian.PutUint64(trailer[0:8], uint64(len(fstBytes)))
	binary.LittleEndian.PutUint32(trailer[8:12], b.numRows)
	binary.LittleEndian.PutUint32(trailer[12:16], formatVersion)
	out = append(out, trailer[:]...)
	return out, nil
}

func sortDictEntries(entries []dictEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && string(entries[j-1].key) > string(entries[j].key); j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

// Reader opens a previously built columnar file for lookup, parsing from
// the end backward.
type Reader struct {
	payload []byte
	dict    *sstable.Reader
	numRows uint32
}

// OpenReader parses data (the full contents of a segment's .fast file).
func OpenReader(data []byte) (*Reader, error) {
	if len(data) < 16 {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "fast field file truncated")
	}
	trailer := data[len(data)-16:]
	fstLen := binary.LittleEndian.Uint64(trailer[0:8])
	numRows := binary.LittleEndian.Uint32(trailer[8:12])
	version := binary.LittleEndian.Uint32(trailer[12:16])
	if version != formatVersion {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeUnknownFormat, "unknown fast field format version")
	}
	body := data[:len(data)-16]
	if uint64(len(body)) < fstLen {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "fast field file truncated")
	}
	split := uint64(len(body)) - fstLen
	payload, fstBytes := body[:split], body[split:]
	dict, err := sstable.OpenReader(fstBytes)
	if err != nil {
		return nil, err
	}
	return &Reader{payload: payload, dict: dict, numRows: numRows}, nil
}

// NumRows returns max_doc for single-valued columns.
func (r *Reader) NumRows() uint32 { return r.numRows }

// Column looks up and decodes a named, typed column.
func (r *Reader) Column(name string, typeCode byte) (*Column, bool, error) {
	offset, ok, err := r.dict.Get(sstable.ColumnDictKey(name, typeCode))
	if err != nil || !ok {
		return nil, ok, err
	}
	col, err := DeserializeColumn(r.payload[offset:])
	return col, true, err
}

// OffsetIndex looks up and decodes a multi-valued column's offset index.
func (r *Reader) OffsetIndex(name string, typeCode byte) (*OffsetIndex, bool, error) {
	key := append(sstable.ColumnDictKey(name, typeCode), 0x02)
	offset, ok, err := r.dict.Get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	col, err := DeserializeColumn(r.payload[offset:])
	if err != nil {
		return nil, false, err
	}
	return NewOffsetIndex(col), true, nil
}

// ColumnNames lists every distinct type code registered for name.
func (r *Reader) ColumnNames(name string) ([]byte, error) {
	lo, hi := sstable.ColumnDictNamePrefix(name)
	it, err := r.dict.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	var codes []byte
	for it.Valid() {
		e := it.Entry()
		if len(e.Key) == len(name)+2 {
			codes = append(codes, e.Key[len(name)+1])
		}
		it.Next()
	}
	return codes, it.Err()
}

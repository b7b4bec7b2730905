package segment

import (
	"encoding/binary"

	"github.com/RoaringBitmap/roaring"

	"github.com/nutmeg-labs/ember/directory"
	"github.com/nutmeg-labs/ember/internal/docstore"
	"github.com/nutmeg-labs/ember/internal/fastfield"
	"github.com/nutmeg-labs/ember/ftserrors"
)

// Reader opens every component file of one segment and exposes readers
// for each.
type Reader struct {
	dir directory.Directory
	id  ID

	maxDoc uint32

	fieldDicts   map[uint32][]byte // per-field term dictionary FST bytes
	postingsData []byte
	posFileData  []byte

	fastFields *fastfield.Reader
	fieldNorms map[uint32]FieldNorms
	store      *docstore.Reader
	deletes    *roaring.Bitmap
}

// Open loads every present component file for id, verifying each one's
// checksum. Missing optional files (fast fields, stored
// documents, deletes) are simply absent from the Reader.
func Open(dir directory.Directory, id ID, maxDoc uint32) (*Reader, error) {
	r := &Reader{dir: dir, id: id, maxDoc: maxDoc, fieldDicts: make(map[uint32][]byte)}

	if data, ok, err := readOptional(dir, FileName(id, ExtTermDict)); err != nil {
		return nil, err
	} else if ok {
		if err := r.parseTermDict(data); err != nil {
			return nil, err
		}
		postingsRaw, ok, err := readOptional(dir, FileName(id, ExtPostings))
		if err != nil {
			return nil, err
		}
		if ok {
			r.postingsData = postingsRaw
		}
		posRaw, ok, err := readOptional(dir, FileName(id, ExtPositions))
		if err != nil {
			return nil, err
		}
		if ok {
			r.posFileData = posRaw
		}
	}

	if data, ok, err := readOptional(dir, FileName(id, ExtFast)); err != nil {
		return nil, err
	} else if ok {
		ff, err := fastfield.OpenReader(data)
		if err != nil {
			return nil, err
		}
		r.fastFields = ff
	}

	if data, ok, err := readOptional(dir, FileName(id, ExtFieldNorm)); err != nil {
		return nil, err
	} else if ok {
		if err := r.parseFieldNorms(data); err != nil {
			return nil, err
		}
	}

	if data, ok, err := readOptional(dir, FileName(id, ExtStore)); err != nil {
		return nil, err
	} else if ok {
		store, err := docstore.OpenReader(data)
		if err != nil {
			return nil, err
		}
		r.store = store
	}

	if err := r.reloadDeletes(); err != nil {
		return nil, err
	}

	return r, nil
}

// reloadDeletes re-reads the segment's {uuid}.del file, if present. Its
// only caller is Open; a commit that writes new deletes opens fresh Readers
// rather than reloading existing ones.
func (r *Reader) reloadDeletes() error {
	data, ok, err := readOptional(r.dir, FileName(r.id, ExtDeletes))
	if err != nil {
		return err
	}
	if !ok {
		r.deletes = nil
		return nil
	}
	bm := roaring.NewBitmap()
	if _, err := bm.FromBuffer(data); err != nil {
		return ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "failed to parse deletes bitmap")
	}
	r.deletes = bm
	return nil
}

// IsDeleted reports whether doc has been marked deleted.
func (r *Reader) IsDeleted(doc uint32) bool {
	return r.deletes != nil && r.deletes.Contains(doc)
}

// ID returns the segment's identity, for callers (the index's delete-by-term
// commit path) that need to key a new deletes file to this segment.
func (r *Reader) ID() ID { return r.id }

// Deletes returns a mutable copy of the segment's current delete bitmap, or
// nil if it has none, so a writer can fold in newly matched deletes without
// disturbing the bitmap a live reader is using for IsDeleted checks.
func (r *Reader) Deletes() *roaring.Bitmap {
	if r.deletes == nil {
		return nil
	}
	return r.deletes.Clone()
}

// MaxDoc returns the segment's doc id upper bound.
func (r *Reader) MaxDoc() uint32 { return r.maxDoc }

// NumDeleted returns the count of currently deleted docs.
func (r *Reader) NumDeleted() uint64 {
	if r.deletes == nil {
		return 0
	}
	return r.deletes.GetCardinality()
}

func readOptional(dir directory.Directory, name string) ([]byte, bool, error) {
	exists, err := dir.Exists(name)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}
	raw, err := dir.OpenRead(name)
	if err != nil {
		return nil, false, err
	}
	payload, err := ValidateChecksum(raw)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (r *Reader) parseTermDict(data []byte) error {
	pos := 0
	numFields, n := binary.Uvarint(data[pos:])
	pos += n
	for i := uint64(0); i < numFields; i++ {
		fieldID, n := binary.Uvarint(data[pos:])
		pos += n
		dictLen, n := binary.Uvarint(data[pos:])
		pos += n
		if pos+int(dictLen) > len(data) {
			return ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "term dictionary section truncated")
		}
		r.fieldDicts[uint32(fieldID)] = data[pos : pos+int(dictLen)]
		pos += int(dictLen)
	}
	return nil
}

func (r *Reader) parseFieldNorms(data []byte) error {
	r.fieldNorms = make(map[uint32]FieldNorms)
	pos := 0
	numFields, n := binary.Uvarint(data[pos:])
	pos += n
	for i := uint64(0); i < numFields; i++ {
		fieldID, n := binary.Uvarint(data[pos:])
		pos += n
		normLen, n := binary.Uvarint(data[pos:])
		pos += n
		if pos+int(normLen) > len(data) {
			return ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "fieldnorms section truncated")
		}
		r.fieldNorms[uint32(fieldID)] = FieldNorms(data[pos : pos+int(normLen)])
		pos += int(normLen)
	}
	return nil
}

// InvertedIndex opens the inverted-index reader for a field, if the field
// was indexed in this segment.
func (r *Reader) InvertedIndex(fieldID uint32) (*InvertedIndexReader, bool, error) {
	dictBytes, ok := r.fieldDicts[fieldID]
	if !ok {
		return nil, false, nil
	}
	idx, err := OpenInvertedIndexReader(dictBytes, r.postingsData, r.posFileData)
	if err != nil {
		return nil, false, err
	}
	return idx, true, nil
}

// FieldNorms returns a field's per-doc length array, if recorded.
func (r *Reader) FieldNorms(fieldID uint32) (FieldNorms, bool) {
	fn, ok := r.fieldNorms[fieldID]
	return fn, ok
}

// FastFields returns the segment's columnar store reader, if any field is
// fast in this segment.
func (r *Reader) FastFields() *fastfield.Reader { return r.fastFields }

// Store returns the segment's stored-document reader, if any field is
// stored in this segment.
func (r *Reader) Store() *docstore.Reader { return r.store }

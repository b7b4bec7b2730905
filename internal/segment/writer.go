package segment

import (
	"encoding/binary"

	"github.com/nutmeg-labs/ember/directory"
	"github.com/nutmeg-labs/ember/internal/docstore"
	"github.com/nutmeg-labs/ember/internal/fastfield"
	"github.com/nutmeg-labs/ember/internal/postings"
	"github.com/nutmeg-labs/ember/internal/sstable"
)

// FieldPostings is one indexed field's fully drained accumulator, ready
// for on-disk encoding.
type FieldPostings struct {
	FieldID uint32
	Terms   []postings.DrainedTerm
}

// FieldFastValues is one fast field's accumulated column values for the
// segment being flushed. Exactly one of (SingleValued) or
// (MultiValues, MultiCounts) is populated.
type FieldFastValues struct {
	Name         string
	TypeCode     byte
	SingleValued []uint64
	MultiValues  []uint64
	MultiCounts  []uint32 // per-doc value count, len == MaxDoc
}

// FieldNormsBuild is one indexed field's per-doc token-count array.
type FieldNormsBuild struct {
	FieldID uint32
	Norms   []byte
}

// BuildResult is the fully drained, in-memory state of one segment build,
// the handoff between the indexing pipeline (arena accumulators, fast
// field collection, stored document buffering) and on-disk serialization.
type BuildResult struct {
	MaxDoc     uint32
	Postings   []FieldPostings
	FastFields []FieldFastValues
	FieldNorms []FieldNormsBuild
	Stored     [][]docstore.StoredValue // len == MaxDoc; docstore.Writer consumes these in doc order
}

// Write serializes result to dir under id's component files. Files with
// no data for this segment are omitted.
func Write(dir directory.Directory, id ID, result *BuildResult) error {
	if err := writeTermDictAndPostings(dir, id, result); err != nil {
		return err
	}
	if err := writeFastFields(dir, id, result); err != nil {
		return err
	}
	if err := writeFieldNorms(dir, id, result); err != nil {
		return err
	}
	if err := writeStore(dir, id, result); err != nil {
		return err
	}
	return nil
}

func writeTermDictAndPostings(dir directory.Directory, id ID, result *BuildResult) error {
	if len(result.Postings) == 0 {
		return nil
	}

	var postingsFile []byte
	var posFile []byte

	type fieldDict struct {
		fieldID uint32
		bytes   []byte
	}
	var dicts []fieldDict

	for _, fp := range result.Postings {
		w, err := sstable.NewWriter()
		if err != nil {
			return err
		}
		for _, term := range fp.Terms {
			offset := uint64(len(postingsFile))
			record := EncodeTerm(term, &posFile)
			postingsFile = append(postingsFile, record...)
			if err := w.Insert(term.Term, offset); err != nil {
				return err
			}
		}
		dictBytes, err := w.Close()
		if err != nil {
			return err
		}
		dicts = append(dicts, fieldDict{fieldID: fp.FieldID, bytes: dictBytes})
	}

	var termDictFile []byte
	var numFields [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(numFields[:], uint64(len(dicts)))
	termDictFile = append(termDictFile, numFields[:n]...)
	for _, d := range dicts {
		var hdr [binary.MaxVarintLen64 * 2]byte
		k := binary.PutUvarint(hdr[:], uint64(d.fieldID))
		k += binary.PutUvarint(hdr[k:], uint64(len(d.bytes)))
		termDictFile = append(termDictFile, hdr[:k]...)
		termDictFile = append(termDictFile, d.bytes...)
	}

	if err := writeFile(dir, FileName(id, ExtTermDict), termDictFile); err != nil {
		return err
	}
	if err := writeFile(dir, FileName(id, ExtPostings), postingsFile); err != nil {
		return err
	}
	if len(posFile) > 0 {
		if err := writeFile(dir, FileName(id, ExtPositions), posFile); err != nil {
			return err
		}
	}
	return nil
}

func writeFastFields(dir directory.Directory, id ID, result *BuildResult) error {
	if len(result.FastFields) == 0 {
		return nil
	}
	b := fastfield.NewBuilder(result.MaxDoc)
	for _, ff := range result.FastFields {
		if ff.MultiCounts != nil {
			idx := fastfield.BuildOffsetIndex(ff.MultiCounts)
			b.AddOffsetIndex(ff.Name, ff.TypeCode, idx)
			b.AddColumn(ff.Name, ff.TypeCode, fastfield.BuildBitpacked(ff.MultiValues))
		} else {
			b.AddColumn(ff.Name, ff.TypeCode, fastfield.BuildBitpacked(ff.SingleValued))
		}
	}
	data, err := b.Finish()
	if err != nil {
		return err
	}
	return writeFile(dir, FileName(id, ExtFast), data)
}

func writeFieldNorms(dir directory.Directory, id ID, result *BuildResult) error {
	if len(result.FieldNorms) == 0 {
		return nil
	}
	var out []byte
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(result.FieldNorms)))
	out = append(out, hdr[:n]...)
	for _, fn := range result.FieldNorms {
		var fhdr [binary.MaxVarintLen64 * 2]byte
		k := binary.PutUvarint(fhdr[:], uint64(fn.FieldID))
		k += binary.PutUvarint(fhdr[k:], uint64(len(fn.Norms)))
		out = append(out, fhdr[:k]...)
		out = append(out, fn.Norms...)
	}
	return writeFile(dir, FileName(id, ExtFieldNorm), out)
}

func writeStore(dir directory.Directory, id ID, result *BuildResult) error {
	if len(result.Stored) == 0 {
		return nil
	}
	w := docstore.NewWriter()
	for _, doc := range result.Stored {
		if err := w.AddDocument(doc); err != nil {
			return err
		}
	}
	return writeFile(dir, FileName(id, ExtStore), w.Finish())
}

func writeFile(dir directory.Directory, name string, payload []byte) error {
	wc, err := dir.OpenWrite(name)
	if err != nil {
		return err
	}
	data := AppendFooter(payload)
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Sync(); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

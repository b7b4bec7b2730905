// Package zap implements the segment merge operation: a k-way merge of
// each field's term dictionary enumerators, remapping doc ids past
// dropped (deleted) documents and re-encoding postings, fast fields,
// fieldnorms, and stored documents into one fresh segment. When to merge
// is the caller's policy; this package only performs the operation.
package zap

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/nutmeg-labs/ember/internal/docstore"
	"github.com/nutmeg-labs/ember/internal/postings"
	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/schema"
)

// Input is one segment participating in a merge, paired with the bitmap
// of its docs to drop.
type Input struct {
	Reader *segment.Reader
	Drops  *roaring.Bitmap
}

// computeNewDocCount returns the total live (non-dropped) doc count
// across all inputs, which becomes the merged segment's MaxDoc.
func computeNewDocCount(inputs []Input) uint32 {
	var total uint32
	for _, in := range inputs {
		dropped := uint32(0)
		if in.Drops != nil {
			dropped = uint32(in.Drops.GetCardinality())
		}
		total += in.Reader.MaxDoc() - dropped
	}
	return total
}

// remapTable computes, for one input segment, the new doc id for each of
// its live docs (math.MaxUint32 for dropped docs), and the running base
// offset the next segment's remap continues from.
func remapTable(r *segment.Reader, drops *roaring.Bitmap, base uint32) (remap []uint32, nextBase uint32) {
	remap = make([]uint32, r.MaxDoc())
	next := base
	for doc := uint32(0); doc < r.MaxDoc(); doc++ {
		if drops != nil && drops.Contains(doc) {
			remap[doc] = ^uint32(0)
			continue
		}
		remap[doc] = next
		next++
	}
	return remap, next
}

// Merge combines inputs into a single BuildResult for the fields declared
// in sch, remapping doc ids to close the gaps left by dropped documents.
func Merge(sch *schema.Schema, inputs []Input) (*segment.BuildResult, error) {
	newMaxDoc := computeNewDocCount(inputs)

	remaps := make([][]uint32, len(inputs))
	var base uint32
	for i, in := range inputs {
		remaps[i], base = remapTable(in.Reader, in.Drops, base)
	}

	result := &segment.BuildResult{MaxDoc: newMaxDoc}

	for _, f := range sch.Fields() {
		if f.Options.Indexed {
			fp, fn, err := mergeField(f, inputs, remaps, newMaxDoc)
			if err != nil {
				return nil, err
			}
			result.Postings = append(result.Postings, fp)
			result.FieldNorms = append(result.FieldNorms, fn)
		}
	}

	for _, f := range sch.Fields() {
		if f.Options.Fast {
			ff, err := mergeFastField(f, inputs, remaps, newMaxDoc)
			if err != nil {
				return nil, err
			}
			if ff != nil {
				result.FastFields = append(result.FastFields, *ff)
			}
		}
	}

	stored, err := mergeStore(inputs, remaps, newMaxDoc)
	if err != nil {
		return nil, err
	}
	result.Stored = stored

	return result, nil
}

// mergeFastField re-flattens one fast field's columnar values across every
// input segment that carries it into a single always-multi-valued column
// pair (values + per-doc counts), remapped past dropped docs the same way
// mergeField remaps postings. Segments that never declared this fast field
// contribute a zero-value count for their live docs.
func mergeFastField(f schema.Field, inputs []Input, remaps [][]uint32, newMaxDoc uint32) (*segment.FieldFastValues, error) {
	counts := make([]uint32, newMaxDoc)
	values := make([][]uint64, newMaxDoc)
	found := false

	for i, in := range inputs {
		ff := in.Reader.FastFields()
		if ff == nil {
			continue
		}
		col, ok, err := ff.Column(f.Name, f.Type.Code())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		found = true
		offsets, ok, err := ff.OffsetIndex(f.Name, f.Type.Code())
		if err != nil {
			return nil, err
		}
		remap := remaps[i]
		if ok {
			for oldDoc := uint32(0); oldDoc < in.Reader.MaxDoc(); oldDoc++ {
				newDoc := remap[oldDoc]
				if newDoc == ^uint32(0) {
					continue
				}
				start, end := offsets.Range(oldDoc)
				for row := start; row < end; row++ {
					values[newDoc] = append(values[newDoc], col.GetVal(uint32(row)))
				}
				counts[newDoc] = uint32(end - start)
			}
		} else {
			for oldDoc := uint32(0); oldDoc < col.NumVals(); oldDoc++ {
				newDoc := remap[oldDoc]
				if newDoc == ^uint32(0) {
					continue
				}
				values[newDoc] = append(values[newDoc], col.GetVal(oldDoc))
				counts[newDoc] = 1
			}
		}
	}

	if !found {
		return nil, nil
	}

	flat := make([]uint64, 0, len(values))
	for _, vs := range values {
		flat = append(flat, vs...)
	}

	return &segment.FieldFastValues{
		Name:        f.Name,
		TypeCode:    f.Type.Code(),
		MultiValues: flat,
		MultiCounts: counts,
	}, nil
}

// mergeField performs the k-way merge of one field's term dictionary
// across every input segment that has it, accumulating combined postings
// through a fresh in-memory accumulator keyed by the remapped doc ids.
func mergeField(f schema.Field, inputs []Input, remaps [][]uint32, newMaxDoc uint32) (segment.FieldPostings, segment.FieldNormsBuild, error) {
	type src struct {
		idx    *segment.InvertedIndexReader
		reader *segment.Reader
		remap  []uint32
		norms  segment.FieldNorms
	}
	var sources []src
	for i, in := range inputs {
		idx, ok, err := in.Reader.InvertedIndex(f.ID)
		if err != nil {
			return segment.FieldPostings{}, segment.FieldNormsBuild{}, err
		}
		if !ok {
			continue
		}
		norms, _ := in.Reader.FieldNorms(f.ID)
		sources = append(sources, src{idx: idx, reader: in.Reader, remap: remaps[i], norms: norms})
	}

	acc := postings.NewAccumulator(1024)
	newNorms := make([]byte, newMaxDoc)

	for _, s := range sources {
		it, err := s.idx.Range(nil, nil)
		if err != nil {
			return segment.FieldPostings{}, segment.FieldNormsBuild{}, err
		}
		for it.Valid() {
			e := it.Entry()
			pl, err := s.idx.ReadPostings(segment.TermInfo{PostingsOffset: e.Value}, segment.WithFreqsAndPositions)
			if err != nil {
				return segment.FieldPostings{}, segment.FieldNormsBuild{}, err
			}
			for i, oldDoc := range pl.DocIDs {
				newDoc := s.remap[oldDoc]
				if newDoc == ^uint32(0) {
					continue
				}
				if len(s.norms) > 0 {
					newNorms[newDoc] = s.norms.Get(oldDoc)
				}
				positions := pl.Positions[i]
				for _, p := range positions {
					if err := acc.Record(newDoc, e.Key, p); err != nil {
						return segment.FieldPostings{}, segment.FieldNormsBuild{}, err
					}
				}
			}
			it.Next()
		}
		if err := it.Err(); err != nil {
			return segment.FieldPostings{}, segment.FieldNormsBuild{}, err
		}
	}

	acc.Finalize()
	return segment.FieldPostings{FieldID: f.ID, Terms: acc.Drain()},
		segment.FieldNormsBuild{FieldID: f.ID, Norms: newNorms}, nil
}

func mergeStore(inputs []Input, remaps [][]uint32, newMaxDoc uint32) ([][]docstore.StoredValue, error) {
	out := make([][]docstore.StoredValue, newMaxDoc)
	any := false
	for i, in := range inputs {
		store := in.Reader.Store()
		if store == nil {
			continue
		}
		any = true
		for oldDoc := uint32(0); oldDoc < in.Reader.MaxDoc(); oldDoc++ {
			newDoc := remaps[i][oldDoc]
			if newDoc == ^uint32(0) {
				continue
			}
			values, err := store.Document(oldDoc)
			if err != nil {
				return nil, err
			}
			out[newDoc] = values
		}
	}
	if !any {
		return nil, nil
	}
	return out, nil
}

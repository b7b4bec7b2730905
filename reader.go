package ember

import (
	"sort"

	"go.uber.org/zap"

	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/meta"
	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/schema"
	"github.com/nutmeg-labs/ember/search"
	"github.com/nutmeg-labs/ember/search/query"
)

// Reader is an immutable, point-in-time view over an index's live segments.
// It implements
// query.Searcher so it can bind a query.Query's collection-wide statistics
// directly, and additionally drives the per-segment scorer fan-out and
// stored-document reconstruction a standalone query API needs.
type Reader struct {
	schema   *schema.Schema
	log      *zap.SugaredLogger
	segments []*segment.Reader
	meta     *meta.Meta
}

// DocAddress locates one document within a Reader's segment list: a
// Reader-local segment index plus that segment's local doc id.
type DocAddress struct {
	Segment int
	Doc     search.DocID
}

// TotalDocs implements query.Searcher: the live (non-deleted) document
// count across every segment in the snapshot.
func (r *Reader) TotalDocs() uint64 {
	var total uint64
	for _, seg := range r.segments {
		total += uint64(seg.MaxDoc()) - seg.NumDeleted()
	}
	return total
}

// DocFreq implements query.Searcher: the number of live documents
// containing term in fieldID, summed across every segment.
func (r *Reader) DocFreq(fieldID uint32, term []byte) (uint64, error) {
	var total uint64
	for _, seg := range r.segments {
		idx, ok, err := seg.InvertedIndex(fieldID)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		info, found, err := idx.Get(term)
		if err != nil {
			return 0, err
		}
		if !found {
			continue
		}
		pl, err := idx.ReadPostings(info, segment.Basic)
		if err != nil {
			return 0, err
		}
		for _, doc := range pl.DocIDs {
			if !seg.IsDeleted(doc) {
				total++
			}
		}
	}
	return total, nil
}

// Logger implements query.Searcher.
func (r *Reader) Logger() *zap.SugaredLogger { return r.log }

// NumSegments returns the number of segments in this snapshot.
func (r *Reader) NumSegments() int { return len(r.segments) }

// Search runs q against every live segment, collecting each segment's
// top-k independently and merging them into one reader-wide top-k list.
func (r *Reader) Search(q query.Query, k int, scoringEnabled bool) ([]ScoredAddress, error) {
	weight, err := q.Weight(r, scoringEnabled)
	if err != nil {
		return nil, err
	}

	var merged []ScoredAddress
	for segIdx, seg := range r.segments {
		scorer, err := weight.Scorer(seg, 1.0)
		if err != nil {
			return nil, err
		}
		if scorer == nil {
			continue
		}
		for _, sd := range query.RunTopK(scorer, k) {
			merged = append(merged, ScoredAddress{
				Address: DocAddress{Segment: segIdx, Doc: sd.Doc},
				Score:   sd.Score,
			})
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// ScoredAddress pairs a reader-wide DocAddress with its score, the unit
// Reader.Search returns.
type ScoredAddress struct {
	Address DocAddress
	Score   float32
}

// FastValues reads a document's columnar values for a declared fast field,
// in the order-preserving u64 projection the column stores. A doc
// that never set the field yields an empty slice.
func (r *Reader) FastValues(addr DocAddress, fieldName string) ([]uint64, error) {
	field, err := r.schema.FieldByName(fieldName)
	if err != nil {
		return nil, err
	}
	if err := schema.RequireFast(field); err != nil {
		return nil, err
	}
	if addr.Segment < 0 || addr.Segment >= len(r.segments) {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeIO, "document address out of range")
	}
	ff := r.segments[addr.Segment].FastFields()
	if ff == nil {
		return nil, nil
	}
	col, ok, err := ff.Column(field.Name, field.Type.Code())
	if err != nil || !ok {
		return nil, err
	}
	offsets, hasOffsets, err := ff.OffsetIndex(field.Name, field.Type.Code())
	if err != nil {
		return nil, err
	}
	if !hasOffsets {
		return []uint64{col.GetVal(addr.Doc)}, nil
	}
	start, end := offsets.Range(addr.Doc)
	values := make([]uint64, 0, end-start)
	for row := start; row < end; row++ {
		values = append(values, col.GetVal(uint32(row)))
	}
	return values, nil
}

// Doc reconstructs a document's stored fields from addr.
func (r *Reader) Doc(addr DocAddress) (map[string]any, error) {
	if addr.Segment < 0 || addr.Segment >= len(r.segments) {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeIO, "document address out of range")
	}
	seg := r.segments[addr.Segment]
	store := seg.Store()
	if store == nil {
		return map[string]any{}, nil
	}
	values, err := store.Document(addr.Doc)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(values))
	for _, v := range values {
		field, ok := r.schema.FieldByID(v.FieldID)
		if !ok {
			continue
		}
		decoded, err := decodeStored(field, v.Value)
		if err != nil {
			return nil, err
		}
		out[field.Name] = decoded
	}
	return out, nil
}

func decodeStored(field schema.Field, raw []byte) (any, error) {
	if field.Type == schema.TypeJson {
		var v any
		if err := jsonUnmarshalStored(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}

	term := schema.NewTerm(field.ID, field.Type).AppendBytes(raw)
	decoded, err := schema.Decode(term)
	if err != nil {
		return nil, err
	}
	switch decoded.Type {
	case schema.TypeStr:
		return decoded.Str, nil
	case schema.TypeU64:
		return decoded.U64, nil
	case schema.TypeI64:
		return decoded.I64, nil
	case schema.TypeF64:
		return decoded.F64, nil
	case schema.TypeBool:
		return decoded.Bool, nil
	case schema.TypeDate:
		return decoded.Date, nil
	case schema.TypeBytes:
		return decoded.Bytes, nil
	case schema.TypeIpAddr:
		return decoded.IPAddr, nil
	default:
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeUnknownTypeCode, "stored field has no decodable type")
	}
}

package query

import (
	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/search"
)

// RangeQuery matches documents whose field value falls within [Low, High]
// (bounds inclusive per IncludeLow/IncludeHigh). The term encoding's
// order-preserving numeric projections make a lexicographic dictionary
// range scan double as a numeric range scan.
type RangeQuery struct {
	FieldID                 uint32
	Low, High                []byte
	IncludeLow, IncludeHigh bool
}

func NewRangeQuery(fieldID uint32, low, high []byte, includeLow, includeHigh bool) *RangeQuery {
	return &RangeQuery{FieldID: fieldID, Low: low, High: high, IncludeLow: includeLow, IncludeHigh: includeHigh}
}

func (q *RangeQuery) Weight(searcher Searcher, scoringEnabled bool) (Weight, error) {
	return &rangeWeight{q: q}, nil
}

type rangeWeight struct {
	q *RangeQuery
}

// matchingDocSets scans the field's term dictionary for every term in
// range and opens a (unscored) DocSet for each.
func (w *rangeWeight) matchingDocSets(seg SegmentReader) ([]search.DocSet, error) {
	idx, ok, err := seg.InvertedIndex(w.q.FieldID)
	if err != nil || !ok {
		return nil, err
	}
	// Range is half-open [lo, hi): an exclusive Low bound pushes lo one
	// byte past Low, an inclusive High bound pushes hi one byte past High.
	lo := w.q.Low
	if !w.q.IncludeLow {
		lo = append(append([]byte{}, lo...), 0x00)
	}
	hi := w.q.High
	if w.q.IncludeHigh {
		hi = append(append([]byte{}, hi...), 0x00)
	}
	it, err := idx.Range(lo, hi)
	if err != nil {
		return nil, err
	}
	var sets []search.DocSet
	for it.Valid() {
		e := it.Entry()
		pl, err := idx.ReadPostings(segment.TermInfo{PostingsOffset: e.Value}, segment.Basic)
		if err != nil {
			return nil, err
		}
		sets = append(sets, &docIDSet{ids: pl.DocIDs, isDeleted: isDeletedFunc(seg), pos: -1})
		it.Next()
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return sets, nil
}

func (w *rangeWeight) Scorer(seg SegmentReader, boost float32) (search.Scorer, error) {
	sets, err := w.matchingDocSets(seg)
	if err != nil || len(sets) == 0 {
		return nil, err
	}
	return search.NewConstantScorer(search.NewUnion(sets), boost), nil
}

func (w *rangeWeight) Explain(seg SegmentReader, doc search.DocID) (*search.Explanation, error) {
	sets, err := w.matchingDocSets(seg)
	if err != nil || len(sets) == 0 {
		return search.Explain(0, "no terms in range"), nil
	}
	u := search.NewUnion(sets)
	if d := u.Seek(doc); d == doc {
		return search.Explain(1, "doc value within range"), nil
	}
	return search.Explain(0, "doc value outside range"), nil
}

// docIDSet is a plain DocSet over a fully decoded, sorted doc id slice,
// used by RangeQuery where only matching (not scoring) is required.
type docIDSet struct {
	ids       []uint32
	isDeleted search.IsDeletedFunc
	pos       int
}

func (d *docIDSet) Doc() search.DocID {
	if d.pos < 0 || d.pos >= len(d.ids) {
		return search.Terminated
	}
	return d.ids[d.pos]
}

func (d *docIDSet) Advance() search.DocID {
	for {
		d.pos++
		if d.pos >= len(d.ids) {
			return search.Terminated
		}
		if d.isDeleted == nil || !d.isDeleted(d.ids[d.pos]) {
			return d.Doc()
		}
	}
}

func (d *docIDSet) Seek(target search.DocID) search.DocID {
	if d.pos >= 0 && d.pos < len(d.ids) && d.ids[d.pos] >= target {
		return d.ids[d.pos]
	}
	lo, hi := d.pos+1, len(d.ids)
	if lo < 0 {
		lo = 0
	}
	for lo < hi {
		mid := (lo + hi) / 2
		if d.ids[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	d.pos = lo
	for d.pos < len(d.ids) && d.isDeleted != nil && d.isDeleted(d.ids[d.pos]) {
		d.pos++
	}
	return d.Doc()
}

func (d *docIDSet) SizeHint() uint32 {
	if d.pos >= len(d.ids) {
		return 0
	}
	return uint32(len(d.ids) - d.pos - 1)
}

package query

import (
	"go.uber.org/zap"

	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/search"
)

// TermQuery matches documents containing one exact term in one field.
type TermQuery struct {
	FieldID uint32
	Term    []byte
}

func NewTermQuery(fieldID uint32, term []byte) *TermQuery {
	return &TermQuery{FieldID: fieldID, Term: term}
}

// Weight binds the term's collection-wide document frequency into a BM25
// idf.
func (q *TermQuery) Weight(searcher Searcher, scoringEnabled bool) (Weight, error) {
	docFreq, err := searcher.DocFreq(q.FieldID, q.Term)
	if err != nil {
		return nil, err
	}
	params := search.DefaultBM25Params()
	return &termWeight{
		fieldID:   q.FieldID,
		term:      q.Term,
		totalDocs: searcher.TotalDocs(),
		docFreq:   docFreq,
		params:    params,
		scoring:   scoringEnabled,
		log:       searcher.Logger(),
	}, nil
}

type termWeight struct {
	fieldID   uint32
	term      []byte
	totalDocs uint64
	docFreq   uint64
	params    search.BM25Params
	scoring   bool
	log       *zap.SugaredLogger
}

func (w *termWeight) lookup(seg SegmentReader) (*segment.InvertedIndexReader, segment.TermInfo, bool, error) {
	idx, ok, err := seg.InvertedIndex(w.fieldID)
	if err != nil || !ok {
		return nil, segment.TermInfo{}, false, err
	}
	info, found, err := idx.Get(w.term)
	if err != nil || !found {
		return idx, segment.TermInfo{}, false, err
	}
	return idx, info, true, nil
}

func (w *termWeight) scorer(seg SegmentReader, opt segment.Option) (*search.TermScorer, error) {
	idx, info, found, err := w.lookup(seg)
	if err != nil || !found {
		return nil, err
	}
	pl, err := idx.ReadPostings(info, opt)
	if err != nil {
		return nil, err
	}
	norms, _ := seg.FieldNorms(w.fieldID)
	avgdl := float32(segment.AvgFieldLength(norms))
	return search.NewTermScorer(pl, norms, w.totalDocs, w.docFreq, avgdl, w.params, isDeletedFunc(seg), w.log), nil
}

// Scorer implements Weight.
func (w *termWeight) Scorer(seg SegmentReader, boost float32) (search.Scorer, error) {
	ts, err := w.scorer(seg, segment.WithFreqs)
	if err != nil || ts == nil {
		return nil, err
	}
	if !w.scoring {
		return search.NewConstantScorer(ts, boost), nil
	}
	return search.NewBoostScorer(ts, boost), nil
}

// Explain implements Weight.
func (w *termWeight) Explain(seg SegmentReader, doc search.DocID) (*search.Explanation, error) {
	ts, err := w.scorer(seg, segment.WithFreqs)
	if err != nil || ts == nil {
		return search.Explain(0, "term %q not present", w.term), nil
	}
	if d := ts.Seek(doc); d != doc {
		return search.Explain(0, "term %q not present in doc", w.term), nil
	}
	return ts.Explain(), nil
}

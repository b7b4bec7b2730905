package query

import (
	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/search"
)

// PhraseQuery matches documents where Terms occur consecutively, in
// order, within one field.
type PhraseQuery struct {
	FieldID uint32
	Terms   [][]byte
}

func NewPhraseQuery(fieldID uint32, terms [][]byte) *PhraseQuery {
	return &PhraseQuery{FieldID: fieldID, Terms: terms}
}

func (q *PhraseQuery) Weight(searcher Searcher, scoringEnabled bool) (Weight, error) {
	termWeights := make([]*termWeight, len(q.Terms))
	params := search.DefaultBM25Params()
	for i, t := range q.Terms {
		df, err := searcher.DocFreq(q.FieldID, t)
		if err != nil {
			return nil, err
		}
		termWeights[i] = &termWeight{
			fieldID: q.FieldID, term: t, totalDocs: searcher.TotalDocs(),
			docFreq: df, params: params, scoring: scoringEnabled, log: searcher.Logger(),
		}
	}
	return &phraseWeight{terms: termWeights}, nil
}

type phraseWeight struct {
	terms []*termWeight
}

func (w *phraseWeight) buildTermScorers(seg SegmentReader) ([]*search.TermScorer, error) {
	scorers := make([]*search.TermScorer, len(w.terms))
	for i, tw := range w.terms {
		ts, err := tw.scorer(seg, segment.WithFreqsAndPositions)
		if err != nil {
			return nil, err
		}
		if ts == nil {
			return nil, nil
		}
		scorers[i] = ts
	}
	return scorers, nil
}

func (w *phraseWeight) Scorer(seg SegmentReader, boost float32) (search.Scorer, error) {
	scorers, err := w.buildTermScorers(seg)
	if err != nil || scorers == nil {
		return nil, err
	}
	ps := search.NewPhraseScorer(scorers)
	return search.NewBoostScorer(ps, boost), nil
}

func (w *phraseWeight) Explain(seg SegmentReader, doc search.DocID) (*search.Explanation, error) {
	scorers, err := w.buildTermScorers(seg)
	if err != nil || scorers == nil {
		return search.Explain(0, "phrase term missing"), nil
	}
	ps := search.NewPhraseScorer(scorers)
	if d := ps.Seek(doc); d != doc {
		return search.Explain(0, "phrase not present in doc"), nil
	}
	return ps.Explain(), nil
}

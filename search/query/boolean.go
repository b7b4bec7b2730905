package query

import "github.com/nutmeg-labs/ember/search"

// Occur classifies a BooleanQuery clause.
type Occur int

const (
	Must Occur = iota
	Should
	MustNot
)

// Clause pairs a sub-query with how it participates in the boolean
// combination.
type Clause struct {
	Occur Occur
	Query Query
}

// BooleanQuery combines clauses: MUST clauses intersect, SHOULD clauses
// union (optionally contributing extra score to docs that also satisfy
// MUST), MUST_NOT clauses exclude.
type BooleanQuery struct {
	Clauses []Clause
}

func NewBooleanQuery(clauses ...Clause) *BooleanQuery {
	return &BooleanQuery{Clauses: clauses}
}

func (q *BooleanQuery) Weight(searcher Searcher, scoringEnabled bool) (Weight, error) {
	w := &booleanWeight{}
	for _, c := range q.Clauses {
		cw, err := c.Query.Weight(searcher, scoringEnabled)
		if err != nil {
			return nil, err
		}
		switch c.Occur {
		case Must:
			w.must = append(w.must, cw)
		case Should:
			w.should = append(w.should, cw)
		case MustNot:
			w.mustNot = append(w.mustNot, cw)
		}
	}
	return w, nil
}

type booleanWeight struct {
	must, should, mustNot []Weight
}

func (w *booleanWeight) buildScorers(seg SegmentReader, weights []Weight, boost float32) ([]search.Scorer, error) {
	var out []search.Scorer
	for _, cw := range weights {
		s, err := cw.Scorer(seg, boost)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

// Scorer implements Weight, combining MUST (intersection), SHOULD (union,
// additive when also required), and MUST_NOT (exclusion).
// A BooleanQuery with only SHOULD clauses becomes a pure union: at least
// one must match. A BooleanQuery with MUST clauses requires all of them;
// SHOULD clauses then only add to the score of docs already matching.
func (w *booleanWeight) Scorer(seg SegmentReader, boost float32) (search.Scorer, error) {
	mustScorers, err := w.buildScorers(seg, w.must, boost)
	if err != nil {
		return nil, err
	}
	if len(w.must) > 0 && len(mustScorers) < len(w.must) {
		// One MUST clause matched nothing in this segment: the whole
		// intersection is empty.
		return nil, nil
	}
	shouldScorers, err := w.buildScorers(seg, w.should, boost)
	if err != nil {
		return nil, err
	}

	var core search.Scorer
	switch {
	case len(mustScorers) > 0 && len(shouldScorers) > 0:
		must := search.NewIntersectionScorer(mustScorers)
		should := search.NewUnionScorer(shouldScorers)
		core = search.NewRequiredOptionalScorer(must, should)
	case len(mustScorers) > 0:
		core = search.NewIntersectionScorer(mustScorers)
	case len(shouldScorers) > 0:
		core = search.NewUnionScorer(shouldScorers)
	default:
		return nil, nil
	}

	if len(w.mustNot) == 0 {
		return core, nil
	}
	excludeScorers, err := w.buildScorers(seg, w.mustNot, 1)
	if err != nil {
		return nil, err
	}
	if len(excludeScorers) == 0 {
		return core, nil
	}
	excludeDocSets := make([]search.DocSet, len(excludeScorers))
	for i, s := range excludeScorers {
		excludeDocSets[i] = s
	}
	excludeSet := search.NewUnion(excludeDocSets)
	return &mustNotScorer{Scorer: core, filtered: search.NewMustNot(core, excludeSet)}, nil
}

// mustNotScorer threads iteration through a MustNotDocSet (for
// Doc/Advance/Seek, which in turn drives the wrapped core Scorer's
// position) while keeping core as the scoring source, since MustNotDocSet
// itself carries no scoring logic.
type mustNotScorer struct {
	search.Scorer
	filtered *search.MustNotDocSet
}

func (m *mustNotScorer) Doc() search.DocID              { return m.filtered.Doc() }
func (m *mustNotScorer) Advance() search.DocID          { return m.filtered.Advance() }
func (m *mustNotScorer) Seek(t search.DocID) search.DocID { return m.filtered.Seek(t) }
func (m *mustNotScorer) SizeHint() uint32               { return m.filtered.SizeHint() }

func (w *booleanWeight) Explain(seg SegmentReader, doc search.DocID) (*search.Explanation, error) {
	var children []*search.Explanation
	for _, cw := range w.must {
		e, err := cw.Explain(seg, doc)
		if err != nil {
			return nil, err
		}
		children = append(children, e)
	}
	for _, cw := range w.should {
		e, err := cw.Explain(seg, doc)
		if err != nil {
			return nil, err
		}
		if e.Value > 0 {
			children = append(children, e)
		}
	}
	return search.ExplainSum("boolean combination", children...), nil
}

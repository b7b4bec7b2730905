package search

// ConstantScorer wraps a DocSet to produce a fixed score for every
// matching doc, used when a query is evaluated with scoring disabled.
type ConstantScorer struct {
	DocSet
	score float32
}

func NewConstantScorer(ds DocSet, score float32) *ConstantScorer {
	return &ConstantScorer{DocSet: ds, score: score}
}

func (c *ConstantScorer) Score() float32 { return c.score }

func (c *ConstantScorer) Explain() *Explanation {
	return Explain(c.score, "constant score (scoring disabled)")
}

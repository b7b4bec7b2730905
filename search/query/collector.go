package query

import "github.com/nutmeg-labs/ember/search"

// Collector consumes (doc, score) pairs produced while driving a Scorer
// over a segment.
type Collector interface {
	Collect(doc search.DocID, score float32)
}

// CountCollector just counts matches, for match-count-only queries.
type CountCollector struct {
	count uint64
}

func (c *CountCollector) Collect(search.DocID, float32) { c.count++ }
func (c *CountCollector) Count() uint64                 { return c.count }

// TopDocsCollector adapts search.TopKCollector to the Collector interface.
type TopDocsCollector struct {
	inner *search.TopKCollector
}

func NewTopDocsCollector(k int) *TopDocsCollector {
	return &TopDocsCollector{inner: search.NewTopKCollector(k)}
}

func (c *TopDocsCollector) Collect(doc search.DocID, score float32) {
	c.inner.Collect(doc, score)
}

func (c *TopDocsCollector) Results() []search.ScoredDoc { return c.inner.Results() }

// RunQuery drives scorer's full iteration into collector, the simple path
// used when a segment has too few candidates to benefit from Block-WAND,
// or for a MUST-only/phrase query with no top-K short circuit available.
func RunQuery(scorer search.Scorer, collector Collector) {
	for d := scorer.Advance(); d != search.Terminated; d = scorer.Advance() {
		collector.Collect(d, scorer.Score())
	}
}

// multiScorer is implemented by UnionScorer, letting RunTopK drive its
// children individually through Block-WAND rather than through the
// union's own merged iteration.
type multiScorer interface {
	Scorers() []search.Scorer
}

// RunTopK drives scorer into a TopDocsCollector, using Block-WAND's
// pruning when scorer is itself a union of block-max-capable scorers or a
// single block-max-capable scorer, falling back to plain iteration
// otherwise (a union wrapped in another scorer takes the plain path).
func RunTopK(scorer search.Scorer, k int) []search.ScoredDoc {
	collector := NewTopDocsCollector(k)
	if ms, ok := scorer.(multiScorer); ok {
		if bms, ok := allBlockMax(ms.Scorers()); ok {
			search.RunBlockWAND(bms, collector.inner)
			return collector.Results()
		}
	}
	if bm, ok := scorer.(search.BlockMaxScorer); ok {
		search.RunBlockWAND([]search.BlockMaxScorer{bm}, collector.inner)
		return collector.Results()
	}
	RunQuery(scorer, collector)
	return collector.Results()
}

func allBlockMax(scorers []search.Scorer) ([]search.BlockMaxScorer, bool) {
	out := make([]search.BlockMaxScorer, len(scorers))
	for i, s := range scorers {
		bm, ok := s.(search.BlockMaxScorer)
		if !ok {
			return nil, false
		}
		out[i] = bm
	}
	return out, true
}

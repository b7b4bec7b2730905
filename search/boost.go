package search

// BoostScorer wraps a Scorer, multiplying its score by a constant factor.
type BoostScorer struct {
	Scorer
	boost float32
}

// NewBoostScorer returns s unchanged if boost is 1, otherwise wraps it.
func NewBoostScorer(s Scorer, boost float32) Scorer {
	if boost == 1 {
		return s
	}
	return &BoostScorer{Scorer: s, boost: boost}
}

func (b *BoostScorer) Score() float32 {
	return clampScore(b.Scorer.Score() * b.boost)
}

func (b *BoostScorer) Explain() *Explanation {
	inner := b.Scorer.Explain()
	return &Explanation{Value: b.Score(), Description: "boost", Children: []*Explanation{inner}}
}

// BlockMaxScore forwards to the wrapped Scorer's bound, scaled by boost,
// if it implements BlockMaxScorer.
func (b *BoostScorer) BlockMaxScore() float32 {
	if bm, ok := b.Scorer.(BlockMaxScorer); ok {
		return clampScore(bm.BlockMaxScore() * b.boost)
	}
	return 0
}

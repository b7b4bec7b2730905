package search

import "sort"

// BlockMaxScorer is a Scorer that can additionally report an upper bound
// on the score it can produce within its current skip block, the
// primitive Block-WAND's pivot selection needs.
type BlockMaxScorer interface {
	Scorer
	BlockMaxScore() float32
}

// ScoredDoc pairs a doc id with its score, the unit TopKCollector and
// query.TopDocs operate on.
type ScoredDoc struct {
	Doc   DocID
	Score float32
}

// TopKCollector keeps the k highest-scoring docs seen, smallest-score-first
// so the weakest candidate can be evicted in O(log k).
type TopKCollector struct {
	k   int
	min []ScoredDoc // min-heap by Score
}

func NewTopKCollector(k int) *TopKCollector {
	return &TopKCollector{k: k}
}

func (c *TopKCollector) less(i, j int) bool { return c.min[i].Score < c.min[j].Score }

func (c *TopKCollector) Collect(doc DocID, score float32) {
	if c.k <= 0 {
		return
	}
	if len(c.min) < c.k {
		c.min = append(c.min, ScoredDoc{Doc: doc, Score: score})
		c.siftUp(len(c.min) - 1)
		return
	}
	if score <= c.min[0].Score {
		return
	}
	c.min[0] = ScoredDoc{Doc: doc, Score: score}
	c.siftDown(0)
}

// Threshold returns the score a new candidate must exceed to make the
// current top-K, or 0 if fewer than k results have been collected yet.
// This is Block-WAND's driving theta.
func (c *TopKCollector) Threshold() float32 {
	if len(c.min) < c.k {
		return 0
	}
	return c.min[0].Score
}

// Results drains the collected docs, highest score first.
func (c *TopKCollector) Results() []ScoredDoc {
	out := make([]ScoredDoc, len(c.min))
	copy(out, c.min)
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (c *TopKCollector) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if c.less(i, parent) {
			c.min[i], c.min[parent] = c.min[parent], c.min[i]
			i = parent
		} else {
			break
		}
	}
}

func (c *TopKCollector) siftDown(i int) {
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < len(c.min) && c.less(left, smallest) {
			smallest = left
		}
		if right < len(c.min) && c.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			return
		}
		c.min[i], c.min[smallest] = c.min[smallest], c.min[i]
		i = smallest
	}
}

// RunBlockWAND executes the Block-WAND top-K algorithm over a set of SHOULD
// scorers: at each step it picks the pivot scorer whose
// cumulative block-max upper bound first crosses the collector's current
// threshold, aligns every preceding scorer to the pivot's doc, and only
// fully scores docs that survive the bound check. A single scorer short
// circuits to runSingleScorer's block-skipping loop.
func RunBlockWAND(scorers []BlockMaxScorer, collector *TopKCollector) {
	if len(scorers) == 0 {
		return
	}
	if len(scorers) == 1 {
		runSingleScorer(scorers[0], collector)
		return
	}

	live := make([]BlockMaxScorer, len(scorers))
	copy(live, scorers)
	// Position every scorer at its first doc.
	for _, s := range live {
		s.Advance()
	}

	for {
		live = dropExhausted(live)
		if len(live) == 0 {
			return
		}
		sort.Slice(live, func(i, j int) bool { return live[i].Doc() < live[j].Doc() })

		theta := collector.Threshold()
		var cumulative float32
		pivotIdx := -1
		for i, s := range live {
			cumulative += s.BlockMaxScore()
			if cumulative > theta {
				pivotIdx = i
				break
			}
		}
		if pivotIdx == -1 {
			return
		}
		pivotDoc := live[pivotIdx].Doc()

		if live[0].Doc() == pivotDoc {
			// Every scorer up to the pivot already sits on pivotDoc: align
			// the rest to it and score whichever scorers land on it (a
			// SHOULD union, not a MUST intersection), then step every
			// matching scorer past it.
			for i := 1; i < len(live); i++ {
				live[i].Seek(pivotDoc)
			}
			var total float32
			for _, s := range live {
				if s.Doc() == pivotDoc {
					total += s.Score()
				}
			}
			collector.Collect(pivotDoc, total)
			for _, s := range live {
				if s.Doc() == pivotDoc {
					s.Advance()
				}
			}
			continue
		}

		// Advance every scorer before the pivot up to pivotDoc; this
		// tightens the bound for the next iteration. live[0] sits strictly
		// below pivotDoc, so the seek always makes progress.
		for i := 0; i < pivotIdx; i++ {
			live[i].Seek(pivotDoc)
		}
	}
}

// blockSkipper is the optional extension a scorer implements when it can
// jump past its current skip block wholesale instead of advancing doc by
// doc (TermScorer does).
type blockSkipper interface {
	SkipBlock() DocID
}

// runSingleScorer is the single-SHOULD fast path: once the collector is
// full, whole blocks whose upper bound cannot beat the threshold are
// skipped without scoring a single doc in them.
func runSingleScorer(s BlockMaxScorer, collector *TopKCollector) {
	skipper, canSkip := s.(blockSkipper)
	d := s.Advance()
	for d != Terminated {
		if theta := collector.Threshold(); canSkip && theta > 0 && s.BlockMaxScore() <= theta {
			d = skipper.SkipBlock()
			continue
		}
		collector.Collect(d, s.Score())
		d = s.Advance()
	}
}

func dropExhausted(scorers []BlockMaxScorer) []BlockMaxScorer {
	out := scorers[:0]
	for _, s := range scorers {
		if s.Doc() != Terminated {
			out = append(out, s)
		}
	}
	return out
}

package search

import (
	"math/rand"
	"sort"
	"testing"
)

func TestTopKCollector(t *testing.T) {
	c := NewTopKCollector(3)
	if c.Threshold() != 0 {
		t.Fatalf("empty collector threshold: got %g", c.Threshold())
	}
	c.Collect(1, 0.5)
	c.Collect(2, 2.0)
	c.Collect(3, 1.0)
	c.Collect(4, 0.1) // below all three, must be rejected
	c.Collect(5, 3.0) // evicts 0.5

	results := c.Results()
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	wantDocs := []DocID{5, 2, 3}
	for i, r := range results {
		if r.Doc != wantDocs[i] {
			t.Fatalf("rank %d: got doc %d, want %d", i, r.Doc, wantDocs[i])
		}
	}
	if c.Threshold() != 1.0 {
		t.Fatalf("threshold: got %g", c.Threshold())
	}
}

// Block-WAND must produce the same top-K set as exhaustively scoring the
// union of its scorers.
func TestBlockWANDMatchesExhaustive(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		makeScorers := func() []BlockMaxScorer {
			rngLocal := rand.New(rand.NewSource(int64(trial)))
			numScorers := 2 + rngLocal.Intn(4)
			scorers := make([]BlockMaxScorer, numScorers)
			for i := range scorers {
				numDocs := 1 + rngLocal.Intn(30)
				docSet := map[DocID]struct{}{}
				for len(docSet) < numDocs {
					docSet[DocID(rngLocal.Intn(100))] = struct{}{}
				}
				docs := make([]DocID, 0, numDocs)
				for d := range docSet {
					docs = append(docs, d)
				}
				sort.Slice(docs, func(a, b int) bool { return docs[a] < docs[b] })
				scorers[i] = newStub(float32(1+rngLocal.Intn(5)), docs...)
			}
			return scorers
		}

		const k = 5

		// Exhaustive: drive the union and collect every doc's summed score.
		exhaustive := map[DocID]float32{}
		{
			bms := makeScorers()
			plain := make([]Scorer, len(bms))
			for i, s := range bms {
				plain[i] = s
			}
			u := NewUnionScorer(plain)
			for d := u.Advance(); d != Terminated; d = u.Advance() {
				exhaustive[d] = u.Score()
			}
		}
		var all []ScoredDoc
		for d, s := range exhaustive {
			all = append(all, ScoredDoc{Doc: d, Score: s})
		}
		sort.Slice(all, func(a, b int) bool {
			if all[a].Score != all[b].Score {
				return all[a].Score > all[b].Score
			}
			return all[a].Doc < all[b].Doc
		})
		if len(all) > k {
			all = all[:k]
		}

		// Block-WAND over fresh scorers.
		collector := NewTopKCollector(k)
		RunBlockWAND(makeScorers(), collector)
		got := collector.Results()

		if len(got) != len(all) {
			t.Fatalf("trial %d: got %d results, want %d", trial, len(got), len(all))
		}
		// Scores at each rank must agree (docs may differ on ties).
		for i := range all {
			if got[i].Score != all[i].Score {
				t.Fatalf("trial %d rank %d: got score %g, want %g", trial, i, got[i].Score, all[i].Score)
			}
			if want, ok := exhaustive[got[i].Doc]; !ok || want != got[i].Score {
				t.Fatalf("trial %d: doc %d scored %g, exhaustive says %g", trial, got[i].Doc, got[i].Score, want)
			}
		}
	}
}

func TestBlockWANDSingleScorerFastPath(t *testing.T) {
	collector := NewTopKCollector(2)
	RunBlockWAND([]BlockMaxScorer{newStub(1.0, 3, 8, 9)}, collector)
	results := collector.Results()
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
}

// The single-scorer path may skip whole blocks, but must still return the
// same top-K a full scan produces.
func TestBlockWANDSingleTermScorerSkipsBlocks(t *testing.T) {
	const n = 400
	docs := make([]DocID, n)
	positions := make([][]uint32, n)
	for i := range docs {
		docs[i] = DocID(i)
		// A handful of high-tf docs scattered across blocks; everything
		// else matches once.
		tf := 1
		if i%97 == 0 {
			tf = 6
		}
		pos := make([]uint32, tf)
		for j := range pos {
			pos[j] = uint32(j)
		}
		positions[i] = pos
	}

	exhaustive := NewTopKCollector(3)
	s := termScorerOver(docs, positions, n)
	for d := s.Advance(); d != Terminated; d = s.Advance() {
		exhaustive.Collect(d, s.Score())
	}

	wand := NewTopKCollector(3)
	RunBlockWAND([]BlockMaxScorer{termScorerOver(docs, positions, n)}, wand)

	want := exhaustive.Results()
	got := wand.Results()
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Score != want[i].Score {
			t.Fatalf("rank %d: got score %g, want %g", i, got[i].Score, want[i].Score)
		}
	}
}

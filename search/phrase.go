package search

import "strconv"

// PhraseScorer matches an ordered sequence of terms occurring at
// consecutive positions within the same field. It drives a term
// intersection and, for each candidate doc, verifies that the terms'
// recorded positions line up at consecutive offsets.
type PhraseScorer struct {
	terms   []*TermScorer
	inter   *IntersectionDocSet
	matches int
}

// NewPhraseScorer builds a scorer for terms occurring in the given order
// (terms[i] must be found at position terms[0]'s position + i).
func NewPhraseScorer(terms []*TermScorer) *PhraseScorer {
	children := make([]DocSet, len(terms))
	for i, t := range terms {
		children[i] = t
	}
	return &PhraseScorer{terms: terms, inter: NewIntersection(children)}
}

func (s *PhraseScorer) Doc() DocID { return s.inter.Doc() }

func (s *PhraseScorer) Advance() DocID {
	return s.settle(s.inter.Advance())
}

func (s *PhraseScorer) Seek(target DocID) DocID {
	return s.settle(s.inter.Seek(target))
}

// settle advances the intersection past any candidate whose term
// positions don't actually line up into the phrase, landing on the next
// doc that both contains every term and satisfies position adjacency.
func (s *PhraseScorer) settle(doc DocID) DocID {
	for doc != Terminated {
		if n := s.countMatches(); n > 0 {
			s.matches = n
			return doc
		}
		doc = s.inter.Advance()
	}
	s.matches = 0
	return Terminated
}

// countMatches counts position runs where terms[i]'s position equals
// terms[0]'s position + i for every i, using the fact that each term's
// per-doc position list is recorded in non-decreasing order.
func (s *PhraseScorer) countMatches() int {
	if len(s.terms) == 0 {
		return 0
	}
	base := s.terms[0].Positions()
	if len(base) == 0 {
		return 0
	}
	cursors := make([]int, len(s.terms))
	for i := 1; i < len(s.terms); i++ {
		cursors[i] = 0
	}
	count := 0
	for _, p0 := range base {
		ok := true
		for i := 1; i < len(s.terms); i++ {
			want := p0 + uint32(i)
			positions := s.terms[i].Positions()
			c := cursors[i]
			for c < len(positions) && positions[c] < want {
				c++
			}
			cursors[i] = c
			if c >= len(positions) || positions[c] != want {
				ok = false
				break
			}
		}
		if ok {
			count++
		}
	}
	return count
}

func (s *PhraseScorer) SizeHint() uint32 { return s.inter.SizeHint() }

// Score combines the rarest term's BM25 score with a phrase-frequency
// factor, the rarest term chosen since it bounds the phrase's maximum
// possible frequency.
func (s *PhraseScorer) Score() float32 {
	rarest := s.rarestTerm()
	if rarest == nil {
		return 0
	}
	return clampScore(rarest.Score() * float32(s.matches))
}

func (s *PhraseScorer) rarestTerm() *TermScorer {
	if len(s.terms) == 0 {
		return nil
	}
	rarest := s.terms[0]
	for _, t := range s.terms[1:] {
		if t.DocFreq() < rarest.DocFreq() {
			rarest = t
		}
	}
	return rarest
}

func (s *PhraseScorer) Explain() *Explanation {
	rarest := s.rarestTerm()
	var base *Explanation
	if rarest != nil {
		base = rarest.Explain()
	}
	return &Explanation{
		Value:       s.Score(),
		Description: "phrase(phraseFreq=" + strconv.Itoa(s.matches) + ") * rarest term bm25",
		Children:    []*Explanation{base},
	}
}

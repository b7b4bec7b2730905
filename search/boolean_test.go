package search

import "testing"

// stubScorer is a fixed-docs, fixed-score Scorer for combinator tests.
type stubScorer struct {
	docs  []DocID
	score float32
	pos   int
}

func newStub(score float32, docs ...DocID) *stubScorer {
	return &stubScorer{docs: docs, score: score, pos: -1}
}

func (s *stubScorer) Doc() DocID {
	if s.pos < 0 || s.pos >= len(s.docs) {
		return Terminated
	}
	return s.docs[s.pos]
}

func (s *stubScorer) Advance() DocID {
	s.pos++
	return s.Doc()
}

func (s *stubScorer) Seek(target DocID) DocID {
	if s.pos >= 0 && s.pos < len(s.docs) && s.docs[s.pos] >= target {
		return s.docs[s.pos]
	}
	for s.Advance() != Terminated && s.Doc() < target {
	}
	return s.Doc()
}

func (s *stubScorer) SizeHint() uint32 {
	if s.pos >= len(s.docs) {
		return 0
	}
	return uint32(len(s.docs) - s.pos - 1)
}

func (s *stubScorer) Score() float32       { return s.score }
func (s *stubScorer) Explain() *Explanation { return Explain(s.score, "stub") }

func (s *stubScorer) BlockMaxScore() float32 { return s.score }

func drain(ds DocSet) []DocID {
	var out []DocID
	for d := ds.Advance(); d != Terminated; d = ds.Advance() {
		out = append(out, d)
	}
	return out
}

func assertDocs(t *testing.T, got, want []DocID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIntersectionIncludesFirstDoc(t *testing.T) {
	a := newStub(1, 0, 2, 4, 6)
	b := newStub(1, 0, 3, 4, 7)
	inter := NewIntersection([]DocSet{a, b})
	assertDocs(t, drain(inter), []DocID{0, 4})
}

func TestUnionIncludesFirstDocAndDedups(t *testing.T) {
	a := newStub(1, 1, 3, 5)
	b := newStub(1, 1, 2, 5, 9)
	u := NewUnion([]DocSet{a, b})
	assertDocs(t, drain(u), []DocID{1, 2, 3, 5, 9})
}

// Boolean algebra on match sets (scores ignored): q AND q = q, q OR q = q,
// q AND NOT q is empty, empty OR q = q.
func TestBooleanAlgebra(t *testing.T) {
	docs := []DocID{2, 5, 8, 13}

	inter := NewIntersection([]DocSet{newStub(1, docs...), newStub(1, docs...)})
	assertDocs(t, drain(inter), docs)

	u := NewUnion([]DocSet{newStub(1, docs...), newStub(1, docs...)})
	assertDocs(t, drain(u), docs)

	mustNot := NewMustNot(newStub(1, docs...), newStub(1, docs...))
	assertDocs(t, drain(mustNot), nil)

	withEmpty := NewUnion([]DocSet{newStub(1), newStub(1, docs...)})
	assertDocs(t, drain(withEmpty), docs)
}

func TestIntersectionResync(t *testing.T) {
	a := newStub(1, 1, 4, 9, 20)
	b := newStub(1, 2, 4, 10, 20)
	c := newStub(1, 4, 15, 20)
	inter := NewIntersection([]DocSet{a, b, c})
	assertDocs(t, drain(inter), []DocID{4, 20})
}

func TestSeekDoesNotMovePastSatisfiedTarget(t *testing.T) {
	a := newStub(1, 3, 7, 11)
	if d := a.Advance(); d != 3 {
		t.Fatalf("got %d", d)
	}
	if d := a.Seek(2); d != 3 {
		t.Fatalf("seek below current must stay, got %d", d)
	}
	if d := a.Seek(3); d != 3 {
		t.Fatalf("seek at current must stay, got %d", d)
	}
	if d := a.Seek(8); d != 11 {
		t.Fatalf("got %d", d)
	}
}

func TestUnionSeek(t *testing.T) {
	u := NewUnion([]DocSet{newStub(1, 1, 6, 9), newStub(1, 2, 6, 14)})
	if d := u.Seek(5); d != 6 {
		t.Fatalf("got %d", d)
	}
	if d := u.Seek(10); d != 14 {
		t.Fatalf("got %d", d)
	}
	if d := u.Seek(20); d != Terminated {
		t.Fatalf("got %d", d)
	}
}

func TestIntersectionScoreSumsChildren(t *testing.T) {
	a := newStub(1.5, 4)
	b := newStub(2.0, 4)
	s := NewIntersectionScorer([]Scorer{a, b})
	if d := s.Advance(); d != 4 {
		t.Fatalf("got %d", d)
	}
	if got := s.Score(); got != 3.5 {
		t.Fatalf("score: got %g", got)
	}
}

func TestUnionScoreSumsMatchingChildren(t *testing.T) {
	a := newStub(1.0, 1, 3)
	b := newStub(2.0, 3)
	s := NewUnionScorer([]Scorer{a, b})

	if d := s.Advance(); d != 1 {
		t.Fatalf("got %d", d)
	}
	if got := s.Score(); got != 1.0 {
		t.Fatalf("doc 1 score: got %g", got)
	}
	if d := s.Advance(); d != 3 {
		t.Fatalf("got %d", d)
	}
	if got := s.Score(); got != 3.0 {
		t.Fatalf("doc 3 score: got %g", got)
	}
}

func TestRequiredOptional(t *testing.T) {
	required := newStub(1.0, 1, 5, 9)
	optional := newStub(2.0, 5, 7)
	s := NewRequiredOptionalScorer(required, optional)

	assertDocs(t, []DocID{s.Advance(), s.Advance(), s.Advance()}, []DocID{1, 5, 9})

	// Re-run to check scores at each doc.
	required = newStub(1.0, 1, 5, 9)
	optional = newStub(2.0, 5, 7)
	s = NewRequiredOptionalScorer(required, optional)
	wantScores := map[DocID]float32{1: 1.0, 5: 3.0, 9: 1.0}
	for d := s.Advance(); d != Terminated; d = s.Advance() {
		if got := s.Score(); got != wantScores[d] {
			t.Fatalf("doc %d: got score %g, want %g", d, got, wantScores[d])
		}
	}
}

func TestRequiredOptionalFirstDocOptionalMatch(t *testing.T) {
	// The optional child matching the required child's very first doc must
	// contribute, even though neither has been advanced yet.
	s := NewRequiredOptionalScorer(newStub(1.0, 2, 4), newStub(2.0, 2))
	if d := s.Advance(); d != 2 {
		t.Fatalf("got %d", d)
	}
	if got := s.Score(); got != 3.0 {
		t.Fatalf("got score %g", got)
	}
}

func TestMustNotFilters(t *testing.T) {
	inner := newStub(1, 1, 2, 3, 4, 5)
	exclude := newStub(1, 2, 4)
	assertDocs(t, drain(NewMustNot(inner, exclude)), []DocID{1, 3, 5})
}

func TestConstantAndBoost(t *testing.T) {
	c := NewConstantScorer(newStub(9.0, 1, 2), 1.0)
	c.Advance()
	if c.Score() != 1.0 {
		t.Fatalf("constant score: got %g", c.Score())
	}

	b := NewBoostScorer(newStub(2.0, 1), 3.0)
	b.Advance()
	if b.Score() != 6.0 {
		t.Fatalf("boost score: got %g", b.Score())
	}
	if same := NewBoostScorer(c, 1.0); same != Scorer(c) {
		t.Fatalf("boost of 1 must return the scorer unchanged")
	}
}

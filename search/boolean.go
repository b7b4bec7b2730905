package search

// IntersectionDocSet iterates the logical AND of its children: the rarest
// child (smallest SizeHint) drives iteration, the others are resynced via
// Seek.
type IntersectionDocSet struct {
	children []DocSet
	lead     int
	doc      DocID
}

// NewIntersection builds an intersection over children, ordering the
// driving child by the smallest SizeHint so Seek calls on the remaining
// children do the least work.
func NewIntersection(children []DocSet) *IntersectionDocSet {
	lead := 0
	for i := 1; i < len(children); i++ {
		if children[i].SizeHint() < children[lead].SizeHint() {
			lead = i
		}
	}
	return &IntersectionDocSet{children: children, lead: lead, doc: Terminated}
}

func (s *IntersectionDocSet) Doc() DocID { return s.doc }

func (s *IntersectionDocSet) Advance() DocID {
	if len(s.children) == 0 {
		s.doc = Terminated
		return s.doc
	}
	candidate := s.children[s.lead].Advance()
	return s.align(candidate)
}

func (s *IntersectionDocSet) Seek(target DocID) DocID {
	if len(s.children) == 0 {
		s.doc = Terminated
		return s.doc
	}
	if s.doc != Terminated && s.doc >= target {
		return s.doc
	}
	candidate := s.children[s.lead].Seek(target)
	return s.align(candidate)
}

// align resyncs every non-lead child to candidate, advancing the lead
// further whenever a child jumps past it, until all children agree.
func (s *IntersectionDocSet) align(candidate DocID) DocID {
	for candidate != Terminated {
		agree := true
		for i, c := range s.children {
			if i == s.lead {
				continue
			}
			d := c.Seek(candidate)
			if d != candidate {
				agree = false
				if d == Terminated {
					s.doc = Terminated
					return s.doc
				}
				candidate = s.children[s.lead].Seek(d)
				break
			}
		}
		if agree {
			s.doc = candidate
			return s.doc
		}
	}
	s.doc = Terminated
	return s.doc
}

func (s *IntersectionDocSet) SizeHint() uint32 {
	if len(s.children) == 0 {
		return 0
	}
	min := s.children[0].SizeHint()
	for _, c := range s.children[1:] {
		if h := c.SizeHint(); h < min {
			min = h
		}
	}
	return min
}

// IntersectionScorer is an IntersectionDocSet whose Score sums its
// children's current scores.
type IntersectionScorer struct {
	*IntersectionDocSet
	scorers []Scorer
}

func NewIntersectionScorer(scorers []Scorer) *IntersectionScorer {
	children := make([]DocSet, len(scorers))
	for i, s := range scorers {
		children[i] = s
	}
	return &IntersectionScorer{IntersectionDocSet: NewIntersection(children), scorers: scorers}
}

func (s *IntersectionScorer) Score() float32 {
	var sum float32
	for _, c := range s.scorers {
		sum += c.Score()
	}
	return sum
}

func (s *IntersectionScorer) Explain() *Explanation {
	children := make([]*Explanation, len(s.scorers))
	for i, c := range s.scorers {
		children[i] = c.Explain()
	}
	return ExplainSum("sum of:", children...)
}

// docHeap is a minimal binary min-heap of (doc, index) pairs used by
// UnionDocSet to drive the child with the smallest current doc id.
type docHeapEntry struct {
	doc DocID
	idx int
}

type docHeap []docHeapEntry

func (h docHeap) less(i, j int) bool { return h[i].doc < h[j].doc }

func (h *docHeap) push(e docHeapEntry) {
	*h = append(*h, e)
	i := len(*h) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if (*h).less(i, parent) {
			(*h)[i], (*h)[parent] = (*h)[parent], (*h)[i]
			i = parent
		} else {
			break
		}
	}
}

func (h *docHeap) pop() docHeapEntry {
	top := (*h)[0]
	last := len(*h) - 1
	(*h)[0] = (*h)[last]
	*h = (*h)[:last]
	i := 0
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < len(*h) && (*h).less(left, smallest) {
			smallest = left
		}
		if right < len(*h) && (*h).less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		(*h)[i], (*h)[smallest] = (*h)[smallest], (*h)[i]
		i = smallest
	}
	return top
}

// UnionDocSet iterates the logical OR of its children using a min-heap
// keyed by each child's current doc id.
type UnionDocSet struct {
	children []DocSet
	heap     docHeap
	doc      DocID
	started  bool
}

func NewUnion(children []DocSet) *UnionDocSet {
	return &UnionDocSet{children: children, doc: Terminated}
}

// ensureStarted advances every child to its first doc and seeds the heap,
// reporting whether this call performed the initial start. Children obey
// the DocSet contract (Terminated-valued until their own first Advance),
// so the union must not read Doc() before advancing them.
func (s *UnionDocSet) ensureStarted() bool {
	if s.started {
		return false
	}
	s.started = true
	for i, c := range s.children {
		if d := c.Advance(); d != Terminated {
			s.heap.push(docHeapEntry{doc: d, idx: i})
		}
	}
	return true
}

func (s *UnionDocSet) Doc() DocID { return s.doc }

func (s *UnionDocSet) Advance() DocID {
	if s.ensureStarted() {
		// The first Advance lands on the smallest first doc, it does not
		// step past it.
		if len(s.heap) == 0 {
			s.doc = Terminated
			return s.doc
		}
		s.doc = s.heap[0].doc
		return s.doc
	}
	if len(s.heap) == 0 {
		s.doc = Terminated
		return s.doc
	}
	cur := s.heap[0].doc
	// Drain and re-push every child currently sitting on cur.
	for len(s.heap) > 0 && s.heap[0].doc == cur {
		e := s.heap.pop()
		if d := s.children[e.idx].Advance(); d != Terminated {
			s.heap.push(docHeapEntry{doc: d, idx: e.idx})
		}
	}
	if len(s.heap) == 0 {
		s.doc = Terminated
		return s.doc
	}
	s.doc = s.heap[0].doc
	return s.doc
}

func (s *UnionDocSet) Seek(target DocID) DocID {
	s.ensureStarted()
	for len(s.heap) > 0 && s.heap[0].doc < target {
		e := s.heap.pop()
		if d := s.children[e.idx].Seek(target); d != Terminated {
			s.heap.push(docHeapEntry{doc: d, idx: e.idx})
		}
	}
	if len(s.heap) == 0 {
		s.doc = Terminated
		return s.doc
	}
	s.doc = s.heap[0].doc
	return s.doc
}

func (s *UnionDocSet) SizeHint() uint32 {
	var sum uint32
	for _, c := range s.children {
		sum += c.SizeHint()
	}
	return sum
}

// matchingChildren returns the current doc's contributing child indices
// (those sitting exactly on s.doc), used by UnionScorer.Score/Explain.
func (s *UnionDocSet) matchingChildren() []int {
	var idxs []int
	for i, c := range s.children {
		if c.Doc() == s.doc {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// UnionScorer is a UnionDocSet whose Score sums the scores of whichever
// children currently match the union's doc.
type UnionScorer struct {
	*UnionDocSet
	scorers []Scorer
}

func NewUnionScorer(scorers []Scorer) *UnionScorer {
	children := make([]DocSet, len(scorers))
	for i, s := range scorers {
		children[i] = s
	}
	return &UnionScorer{UnionDocSet: NewUnion(children), scorers: scorers}
}

func (s *UnionScorer) Score() float32 {
	var sum float32
	for _, i := range s.matchingChildren() {
		sum += s.scorers[i].Score()
	}
	return sum
}

// Scorers exposes the union's children, letting a caller drive them
// directly through Block-WAND instead of through the union's own
// min-heap iteration.
func (s *UnionScorer) Scorers() []Scorer { return s.scorers }

func (s *UnionScorer) Explain() *Explanation {
	idxs := s.matchingChildren()
	children := make([]*Explanation, len(idxs))
	for j, i := range idxs {
		children[j] = s.scorers[i].Explain()
	}
	return ExplainSum("sum of:", children...)
}

// RequiredOptionalScorer drives iteration from a required scorer (MUST)
// and probes an optional scorer (SHOULD) at each doc via Seek, adding its
// score when it also matches, without requiring it to.
type RequiredOptionalScorer struct {
	required   Scorer
	optional   Scorer
	optDoc     DocID
	optStarted bool
}

func NewRequiredOptionalScorer(required, optional Scorer) *RequiredOptionalScorer {
	return &RequiredOptionalScorer{required: required, optional: optional, optDoc: Terminated}
}

func (s *RequiredOptionalScorer) Doc() DocID { return s.required.Doc() }

func (s *RequiredOptionalScorer) Advance() DocID {
	d := s.required.Advance()
	s.syncOptional(d)
	return d
}

func (s *RequiredOptionalScorer) Seek(target DocID) DocID {
	d := s.required.Seek(target)
	s.syncOptional(d)
	return d
}

func (s *RequiredOptionalScorer) syncOptional(d DocID) {
	if d == Terminated {
		s.optDoc = Terminated
		return
	}
	if !s.optStarted || s.optDoc < d {
		s.optStarted = true
		s.optDoc = s.optional.Seek(d)
	}
}

func (s *RequiredOptionalScorer) SizeHint() uint32 { return s.required.SizeHint() }

func (s *RequiredOptionalScorer) Score() float32 {
	score := s.required.Score()
	if s.optDoc == s.required.Doc() {
		score += s.optional.Score()
	}
	return score
}

func (s *RequiredOptionalScorer) Explain() *Explanation {
	children := []*Explanation{s.required.Explain()}
	if s.optDoc == s.required.Doc() {
		children = append(children, s.optional.Explain())
	}
	return ExplainSum("sum of:", children...)
}

// MustNotDocSet filters an underlying DocSet, skipping any doc the
// exclude set contains.
type MustNotDocSet struct {
	inner   DocSet
	exclude DocSet
	doc     DocID
}

func NewMustNot(inner, exclude DocSet) *MustNotDocSet {
	return &MustNotDocSet{inner: inner, exclude: exclude, doc: Terminated}
}

func (s *MustNotDocSet) Doc() DocID { return s.doc }

func (s *MustNotDocSet) Advance() DocID {
	d := s.inner.Advance()
	return s.skipExcluded(d)
}

func (s *MustNotDocSet) Seek(target DocID) DocID {
	d := s.inner.Seek(target)
	return s.skipExcluded(d)
}

func (s *MustNotDocSet) skipExcluded(d DocID) DocID {
	for d != Terminated {
		e := s.exclude.Seek(d)
		if e != d {
			s.doc = d
			return d
		}
		d = s.inner.Advance()
	}
	s.doc = Terminated
	return s.doc
}

func (s *MustNotDocSet) SizeHint() uint32 { return s.inner.SizeHint() }

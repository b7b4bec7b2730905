package jsonterm

import "github.com/nutmeg-labs/ember/internal/arena"

// PositionGap is the number of positions left between successive JSON
// values that share the same leaf path, so that a phrase
// query spanning the gap never matches tokens drawn from two different
// objects in a repeated array (e.g. two "band_name" leaves under
// "bands").
const PositionGap = 2

// PathPositions tracks, per JSON leaf path, the next free token position
// to assign within the document currently being indexed. It is rebuilt
// per document; paths are identified by the murmur hash of the term's
// path+type prefix (the same hash family the arena hash map uses)
// because path strings are not known ahead of time and a Go map keyed by
// a 4-byte hash is far cheaper to reset per document than one keyed by
// the path bytes themselves.
type PathPositions struct {
	next map[uint32]int
}

// NewPathPositions returns a tracker with no paths seen yet, ready to be
// reused across documents by calling Reset.
func NewPathPositions() *PathPositions {
	return &PathPositions{next: make(map[uint32]int)}
}

// Reset clears all recorded paths, for reuse at the start of a new
// document.
func (p *PathPositions) Reset() {
	for k := range p.next {
		delete(p.next, k)
	}
}

// Reserve returns the starting position a text value at pathKey (the
// closed path+type prefix of the term, before any leaf value bytes are
// appended) should be indexed at, and advances the tracker past the
// numTokens just consumed plus PositionGap.
func (p *PathPositions) Reserve(pathKey []byte, numTokens int) int {
	hash := arena.HashKey(pathKey)
	start := p.next[hash]
	p.next[hash] = start + numTokens + PositionGap
	return start
}

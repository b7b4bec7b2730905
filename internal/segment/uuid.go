// Package segment implements the on-disk segment: the binary layout and
// access contracts for the inverted index (term dictionary + postings),
// the field-norm store, and the glue that ties those to the columnar fast
// field store (internal/fastfield) and the stored-document store
// (internal/docstore). Segments are immutable once written; only a
// sidecar deletes file may be added later.
package segment

import (
	"crypto/rand"
	"encoding/hex"
)

// ID is a segment's 128-bit identifier.
type ID [16]byte

// NewID generates a fresh random segment id.
func NewID() ID {
	var id ID
	_, _ = rand.Read(id[:])
	return id
}

// String renders the id as hex, used to compose the per-segment file
// names `{uuid}.{ext}`.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseID parses a hex-encoded id previously produced by String.
func ParseID(s string) (ID, bool) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		return ID{}, false
	}
	copy(id[:], b)
	return id, true
}

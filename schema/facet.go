package schema

import "strings"

// facetSep separates hierarchy segments in an encoded Facet path, and also
// prefixes the root so that a facet's encoded form always starts with the
// separator.
const facetSep = "\x00"

// Facet is a hierarchical tag, e.g. "/electronics/laptops". It is encoded
// as a reserved-separator byte string so that a prefix range scan over the
// term dictionary enumerates a whole subtree.
type Facet struct {
	segments []string
}

// NewFacet parses a "/"-delimited facet path into its segments. A leading
// "/" is optional; "/a/b" and "a/b" are equivalent.
func NewFacet(path string) Facet {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return Facet{}
	}
	return Facet{segments: strings.Split(path, "/")}
}

// Encoded returns the facet's canonical on-disk string: the reserved
// separator before every segment, so the empty (root) facet encodes to the
// empty string and every non-root facet starts with facetSep.
func (f Facet) Encoded() string {
	var sb strings.Builder
	for _, seg := range f.segments {
		sb.WriteString(facetSep)
		sb.WriteString(seg)
	}
	return sb.String()
}

// IsPrefixOf reports whether f is an ancestor of (or equal to) other,
// by comparing the encoded path as a byte prefix that ends on a segment
// boundary.
func (f Facet) IsPrefixOf(other Facet) bool {
	fe, oe := f.Encoded(), other.Encoded()
	return oe == fe || strings.HasPrefix(oe, fe+facetSep)
}

// FromFieldFacet builds a term for a declared Facet field.
func FromFieldFacet(fieldID uint32, f Facet) Term {
	return NewTerm(fieldID, TypeFacet).AppendBytes([]byte(f.Encoded()))
}

// FacetRangeBounds returns the half-open [lo, hi) byte range of a prefix
// scan over the term dictionary that enumerates every facet at or below f,
// for use with the inverted-index reader's range(lo, hi).
func FacetRangeBounds(fieldID uint32, f Facet) (lo, hi Term) {
	lo = FromFieldFacet(fieldID, f)
	hi = append(Term(nil), lo...)
	// 0x01 is the byte right after facetSep, so only f itself and terms
	// continuing with facetSep (its descendants) sort below hi.
	hi = append(hi, 0x01)
	return lo, hi
}

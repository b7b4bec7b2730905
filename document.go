// Package ember is the embeddable full-text search engine core: it ties
// together the indexing pipeline (internal/postings, internal/segment),
// the query execution core (search, search/query), and the index
// lifecycle (internal/meta) behind one facade.
package ember

import (
	"net"
	"time"

	"github.com/nutmeg-labs/ember/schema"
)

// Document is an ordered sequence of (field, value) entries; a field may
// repeat for multi-valued fields.
type Document struct {
	items []docEntry
}

type docEntry struct {
	field string
	value any
}

// NewDocument returns an empty, mutable document.
func NewDocument() *Document {
	return &Document{}
}

func (d *Document) add(field string, value any) *Document {
	d.items = append(d.items, docEntry{field: field, value: value})
	return d
}

// AddText adds a Str field value, tokenized at index time.
func (d *Document) AddText(field, text string) *Document { return d.add(field, text) }

// AddU64 adds a U64 field value.
func (d *Document) AddU64(field string, v uint64) *Document { return d.add(field, v) }

// AddI64 adds an I64 field value.
func (d *Document) AddI64(field string, v int64) *Document { return d.add(field, v) }

// AddF64 adds an F64 field value.
func (d *Document) AddF64(field string, v float64) *Document { return d.add(field, v) }

// AddBool adds a Bool field value.
func (d *Document) AddBool(field string, v bool) *Document { return d.add(field, v) }

// AddDate adds a Date field value, truncated to microsecond precision at
// encoding time.
func (d *Document) AddDate(field string, t time.Time) *Document { return d.add(field, t) }

// AddBytes adds a Bytes field value.
func (d *Document) AddBytes(field string, b []byte) *Document {
	return d.add(field, append([]byte(nil), b...))
}

// AddIPAddr adds an IpAddr field value.
func (d *Document) AddIPAddr(field string, ip net.IP) *Document { return d.add(field, ip) }

// AddFacet adds a Facet field value.
func (d *Document) AddFacet(field string, f schema.Facet) *Document { return d.add(field, f) }

// AddJSON adds a Json field value: any combination of map[string]any,
// []any, string, float64, int64, uint64, bool, or nil leaves.
func (d *Document) AddJSON(field string, v any) *Document { return d.add(field, v) }

// entries returns the document's (field, value) pairs in add order, for
// the indexing pipeline's own use.
func (d *Document) entries() []docEntry { return d.items }

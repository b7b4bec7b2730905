package ember

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/docstore"
	"github.com/nutmeg-labs/ember/internal/jsonterm"
	"github.com/nutmeg-labs/ember/internal/postings"
	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/schema"
)

// jsonMarshalStored encodes a stored Json field's value as its canonical
// JSON text, the raw bytes internal/docstore keeps for a Json
// StoredValue (schema.Decode has no Json case, so reconstruction goes
// through encoding/json instead, unlike every other stored field type
// which reuses its schema.Term value-byte layout).
func jsonMarshalStored(v any) ([]byte, error) {
	return json.Marshal(v)
}

// jsonUnmarshalStored inverts jsonMarshalStored when a stored document is
// reconstructed.
func jsonUnmarshalStored(raw []byte, v *any) error {
	return json.Unmarshal(raw, v)
}

// fastFieldAccum collects one fast field's raw u64 values across the
// segment build as a flat, always-multi-valued stream:
// a value column plus a per-doc count the writer turns into an offset
// index at flush. Always emitting the multi-valued shape, even for
// fields that happen to carry exactly one value per doc, keeps the
// accumulation path uniform regardless of how many times a document sets
// the field.
type fastFieldAccum struct {
	name     string
	typeCode byte
	values   []uint64
	counts   []uint32 // len == maxDoc seen so far
}

// segBuilder accumulates one in-memory segment's worth of documents: a
// posting accumulator per indexed field, fast-field collectors, fieldnorm
// token counts, and buffered stored values, draining into a
// segment.BuildResult at flush.
type segBuilder struct {
	sch       *schema.Schema
	tokenizer Tokenizer
	expandDots bool

	maxDoc uint32

	postingsByField map[uint32]*postings.Accumulator
	fastByField     map[uint32]*fastFieldAccum
	normCounts      map[uint32][]uint32 // per-doc token count, len == maxDoc
	stored          [][]docstore.StoredValue

	// addOpstamp records the opstamp each doc was added under, so a later
	// delete-by-term at a higher opstamp can be scoped to docs added
	// before it.
	addOpstamp []uint64

	// deletes accumulates docs matched by a delete-by-term applied against
	// this still-open builder. Written out as the flushed
	// segment's .del file alongside its other component files, rather than
	// threaded through BuildResult, since no other build path produces one.
	deletes *roaring.Bitmap

	pathPos *jsonterm.PathPositions
}

func newSegBuilder(sch *schema.Schema, tokenizer Tokenizer, expandDots bool) *segBuilder {
	return &segBuilder{
		sch:             sch,
		tokenizer:       tokenizer,
		expandDots:      expandDots,
		postingsByField: make(map[uint32]*postings.Accumulator),
		fastByField:     make(map[uint32]*fastFieldAccum),
		normCounts:      make(map[uint32][]uint32),
		pathPos:         jsonterm.NewPathPositions(),
	}
}

func (b *segBuilder) accumulatorFor(fieldID uint32) *postings.Accumulator {
	acc, ok := b.postingsByField[fieldID]
	if !ok {
		acc = postings.NewAccumulator(1024)
		b.postingsByField[fieldID] = acc
	}
	return acc
}

func (b *segBuilder) fastAccumFor(f schema.Field) *fastFieldAccum {
	fa, ok := b.fastByField[f.ID]
	if !ok {
		fa = &fastFieldAccum{name: f.Name, typeCode: f.Type.Code()}
		b.fastByField[f.ID] = fa
	}
	return fa
}

// AddDocument absorbs one document's field values into the in-progress
// segment and returns its dense doc id.
func (b *segBuilder) AddDocument(doc *Document, opstamp uint64) (uint32, error) {
	docID := b.maxDoc
	b.maxDoc++
	b.addOpstamp = append(b.addOpstamp, opstamp)
	b.stored = append(b.stored, nil)
	b.pathPos.Reset()

	fieldOccurrence := make(map[uint32]uint32)
	fastOccurrence := make(map[uint32]uint32)

	for _, e := range doc.entries() {
		field, err := b.sch.FieldByName(e.field)
		if err != nil {
			return 0, err
		}
		if err := b.addValue(docID, field, e.value, fieldOccurrence, fastOccurrence); err != nil {
			return 0, err
		}
	}

	for _, fa := range b.fastByField {
		for uint32(len(fa.counts)) < b.maxDoc {
			fa.counts = append(fa.counts, 0)
		}
	}
	for fieldID, counts := range b.normCounts {
		for uint32(len(counts)) < b.maxDoc {
			counts = append(counts, 0)
		}
		b.normCounts[fieldID] = counts
	}

	return docID, nil
}

func (b *segBuilder) addValue(doc uint32, field schema.Field, value any,
	fieldOccurrence, fastOccurrence map[uint32]uint32) error {

	if field.Type == schema.TypeJson {
		if field.Options.Indexed {
			if err := schema.RequireType(field, schema.TypeJson); err != nil {
				return err
			}
			w := jsonterm.Wrap(field.ID, b.expandDots)
			acc := b.accumulatorFor(field.ID)
			if err := indexJSONValue(acc, b.tokenizer, b.pathPos, w, doc, value); err != nil {
				return err
			}
			b.bumpNorm(field.ID, doc, 1)
		}
		if field.Options.Stored {
			raw, err := jsonMarshalStored(value)
			if err != nil {
				return err
			}
			b.addStored(doc, field.ID, field.Type, raw)
		}
		return nil
	}

	if field.Type == schema.TypeStr && field.Options.Indexed {
		text, ok := value.(string)
		if !ok {
			return ftserrors.NewSchemaError(nil, ftserrors.ErrorCodeFieldTypeWrong,
				fmt.Sprintf("field %q expects a string value", field.Name)).WithField(field.Name)
		}
		tokens := b.tokenizer.Tokenize(text)
		acc := b.accumulatorFor(field.ID)
		base := fieldOccurrence[field.ID]
		for _, t := range tokens {
			term := schema.FromFieldText(field.ID, t.Text)
			if err := acc.Record(doc, term, base+t.Position); err != nil {
				return err
			}
		}
		fieldOccurrence[field.ID] = base + uint32(len(tokens)) + jsonterm.PositionGap
		b.bumpNorm(field.ID, doc, len(tokens))
	}

	term, err := encodeTerm(field, value)
	if err != nil {
		return err
	}
	if field.Type != schema.TypeStr && field.Options.Indexed {
		acc := b.accumulatorFor(field.ID)
		pos := fastOccurrence[field.ID]
		fastOccurrence[field.ID] = pos + 1
		if err := acc.Record(doc, term, pos); err != nil {
			return err
		}
		b.bumpNorm(field.ID, doc, 1)
	}

	if field.Options.Fast {
		ordered, err := orderedU64(field, value)
		if err != nil {
			return err
		}
		fa := b.fastAccumFor(field)
		for uint32(len(fa.counts)) <= doc {
			fa.counts = append(fa.counts, 0)
		}
		fa.counts[doc]++
		fa.values = append(fa.values, ordered)
	}

	if field.Options.Stored {
		b.addStored(doc, field.ID, field.Type, term.ValueBytes())
	}
	return nil
}

func (b *segBuilder) addStored(doc, fieldID uint32, typ schema.Type, raw []byte) {
	b.stored[doc] = append(b.stored[doc], docstore.StoredValue{
		FieldID: fieldID,
		Type:    typ,
		Value:   append([]byte(nil), raw...),
	})
}

func (b *segBuilder) bumpNorm(fieldID, doc uint32, tokens int) {
	counts, ok := b.normCounts[fieldID]
	if !ok {
		counts = make([]uint32, 0, doc+1)
	}
	for uint32(len(counts)) <= doc {
		counts = append(counts, 0)
	}
	counts[doc] += uint32(tokens)
	b.normCounts[fieldID] = counts
}

// encodeTerm builds the canonical term for a non-JSON field value, rejecting a value whose Go type does not match the field's
// declared schema type.
func encodeTerm(field schema.Field, value any) (schema.Term, error) {
	mismatch := func() error {
		return ftserrors.NewSchemaError(nil, ftserrors.ErrorCodeFieldTypeWrong,
			fmt.Sprintf("value for field %q does not match declared type %s", field.Name, field.Type)).
			WithField(field.Name)
	}
	switch field.Type {
	case schema.TypeStr:
		v, ok := value.(string)
		if !ok {
			return nil, mismatch()
		}
		return schema.FromFieldText(field.ID, v), nil
	case schema.TypeU64:
		v, ok := value.(uint64)
		if !ok {
			return nil, mismatch()
		}
		return schema.FromFieldU64(field.ID, v), nil
	case schema.TypeI64:
		v, ok := value.(int64)
		if !ok {
			return nil, mismatch()
		}
		return schema.FromFieldI64(field.ID, v), nil
	case schema.TypeF64:
		v, ok := value.(float64)
		if !ok {
			return nil, mismatch()
		}
		return schema.FromFieldF64(field.ID, v), nil
	case schema.TypeBool:
		v, ok := value.(bool)
		if !ok {
			return nil, mismatch()
		}
		return schema.FromFieldBool(field.ID, v), nil
	case schema.TypeDate:
		v, ok := value.(time.Time)
		if !ok {
			return nil, mismatch()
		}
		return schema.FromFieldDate(field.ID, v.UnixMicro()), nil
	case schema.TypeBytes:
		v, ok := value.([]byte)
		if !ok {
			return nil, mismatch()
		}
		return schema.FromFieldBytes(field.ID, v), nil
	case schema.TypeIpAddr:
		v, ok := value.(net.IP)
		if !ok {
			return nil, mismatch()
		}
		return schema.FromFieldIPAddr(field.ID, v), nil
	case schema.TypeFacet:
		v, ok := value.(schema.Facet)
		if !ok {
			return nil, mismatch()
		}
		return schema.FromFieldFacet(field.ID, v), nil
	default:
		return nil, mismatch()
	}
}

// orderedU64 projects value the same way a fast field column stores it:
// the order-preserving u64 an equality/range comparison over the raw
// column bytes needs. Only types with a defined numeric
// projection may be declared Fast.
func orderedU64(field schema.Field, value any) (uint64, error) {
	switch field.Type {
	case schema.TypeU64:
		v, ok := value.(uint64)
		if !ok {
			return 0, fastFieldTypeErr(field)
		}
		return schema.U64ToOrdered(v), nil
	case schema.TypeI64:
		v, ok := value.(int64)
		if !ok {
			return 0, fastFieldTypeErr(field)
		}
		return schema.I64ToOrdered(v), nil
	case schema.TypeF64:
		v, ok := value.(float64)
		if !ok {
			return 0, fastFieldTypeErr(field)
		}
		return schema.F64ToOrdered(v), nil
	case schema.TypeBool:
		v, ok := value.(bool)
		if !ok {
			return 0, fastFieldTypeErr(field)
		}
		return schema.BoolToOrdered(v), nil
	case schema.TypeDate:
		v, ok := value.(time.Time)
		if !ok {
			return 0, fastFieldTypeErr(field)
		}
		return schema.DateToOrdered(v.UnixMicro()), nil
	default:
		return 0, ftserrors.NewSchemaError(nil, ftserrors.ErrorCodeFieldTypeWrong,
			fmt.Sprintf("field %q has type %s, which has no fast-field projection", field.Name, field.Type)).
			WithField(field.Name)
	}
}

func fastFieldTypeErr(field schema.Field) error {
	return ftserrors.NewSchemaError(nil, ftserrors.ErrorCodeFieldTypeWrong,
		fmt.Sprintf("value for fast field %q does not match declared type %s", field.Name, field.Type)).
		WithField(field.Name)
}

// MaxOpstamp returns the highest opstamp recorded for any doc added so far,
// used to tag a just-flushed segment's snapshot opstamp.
func (b *segBuilder) MaxOpstamp() uint64 {
	if len(b.addOpstamp) == 0 {
		return 0
	}
	return b.addOpstamp[len(b.addOpstamp)-1]
}

// ApplyDelete marks as deleted every doc currently in this builder that
// carries a posting for term in fieldID and was added at an opstamp
// strictly before deleteOp. Docs
// added after deleteOp in this same still-open segment are left untouched,
// even if they repeat the deleted term.
func (b *segBuilder) ApplyDelete(fieldID uint32, term schema.Term, deleteOp uint64) {
	acc, ok := b.postingsByField[fieldID]
	if !ok {
		return
	}
	for _, doc := range acc.DocsForTerm(term) {
		if int(doc) >= len(b.addOpstamp) || b.addOpstamp[doc] >= deleteOp {
			continue
		}
		if b.deletes == nil {
			b.deletes = roaring.New()
		}
		b.deletes.Add(doc)
	}
}

// MemUsage approximates the builder's memory footprint for the writer's
// per-worker flush threshold.
func (b *segBuilder) MemUsage() int {
	total := 0
	for _, acc := range b.postingsByField {
		total += acc.MemUsage()
	}
	for _, fa := range b.fastByField {
		total += len(fa.values)*8 + len(fa.counts)*4
	}
	for _, doc := range b.stored {
		for _, sv := range doc {
			total += len(sv.Value) + 16
		}
	}
	return total
}

// Flush finalizes every posting accumulator and drains the builder into a
// segment.BuildResult ready for internal/segment.Write.
func (b *segBuilder) Flush() *segment.BuildResult {
	result := &segment.BuildResult{MaxDoc: b.maxDoc}

	for _, f := range b.sch.Fields() {
		acc, ok := b.postingsByField[f.ID]
		if !ok {
			continue
		}
		acc.Finalize()
		result.Postings = append(result.Postings, segment.FieldPostings{FieldID: f.ID, Terms: acc.Drain()})

		counts := b.normCounts[f.ID]
		norms := make([]byte, b.maxDoc)
		for doc := uint32(0); doc < b.maxDoc && int(doc) < len(counts); doc++ {
			norms[doc] = segment.EncodeFieldNorm(counts[doc])
		}
		result.FieldNorms = append(result.FieldNorms, segment.FieldNormsBuild{FieldID: f.ID, Norms: norms})
	}

	for _, f := range b.sch.Fields() {
		fa, ok := b.fastByField[f.ID]
		if !ok {
			continue
		}
		for uint32(len(fa.counts)) < b.maxDoc {
			fa.counts = append(fa.counts, 0)
		}
		result.FastFields = append(result.FastFields, segment.FieldFastValues{
			Name:        fa.name,
			TypeCode:    fa.typeCode,
			MultiValues: fa.values,
			MultiCounts: fa.counts,
		})
	}

	result.Stored = b.stored
	return result
}

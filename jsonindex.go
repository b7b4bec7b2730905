package ember

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/nutmeg-labs/ember/internal/jsonterm"
	"github.com/nutmeg-labs/ember/internal/postings"
	"github.com/nutmeg-labs/ember/schema"
)

// indexJSONValue flattens v (one document's value for a Json field) into
// the field's term space, recursively walking objects/arrays and
// recording one posting per leaf.
func indexJSONValue(acc *postings.Accumulator, tok Tokenizer, pathPos *jsonterm.PathPositions,
	w *jsonterm.Writer, doc uint32, v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.PushPathSegment(k)
			if err := indexJSONValue(acc, tok, pathPos, w, doc, val[k]); err != nil {
				return err
			}
			w.PopPathSegment()
		}
		return nil
	case []any:
		for _, elem := range val {
			if err := indexJSONValue(acc, tok, pathPos, w, doc, elem); err != nil {
				return err
			}
		}
		return nil
	case string:
		return indexJSONString(acc, tok, pathPos, w, doc, val)
	case float64:
		return indexJSONLeafU64(acc, pathPos, w, doc, schema.TypeF64, schema.F64ToOrdered(val))
	case int64:
		return indexJSONLeafU64(acc, pathPos, w, doc, schema.TypeI64, schema.I64ToOrdered(val))
	case int:
		return indexJSONLeafU64(acc, pathPos, w, doc, schema.TypeI64, schema.I64ToOrdered(int64(val)))
	case uint64:
		return indexJSONLeafU64(acc, pathPos, w, doc, schema.TypeU64, schema.U64ToOrdered(val))
	case bool:
		return indexJSONLeafU64(acc, pathPos, w, doc, schema.TypeBool, schema.BoolToOrdered(val))
	default:
		return fmt.Errorf("ember: unsupported JSON leaf type %T", v)
	}
}

// indexJSONString tokenizes a JSON string leaf and records one posting per
// token, all sharing the same closed path, at positions drawn from the
// per-document path-position gap tracker.
func indexJSONString(acc *postings.Accumulator, tok Tokenizer, pathPos *jsonterm.PathPositions,
	w *jsonterm.Writer, doc uint32, text string) error {
	w.ClosePathAndSetType(schema.TypeStr)
	tokens := tok.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	start := pathPos.Reserve(w.PathKey(), len(tokens))
	for i, t := range tokens {
		w.SetStrLeaf(t.Text)
		if err := acc.Record(doc, w.Term(), uint32(start+i)); err != nil {
			return err
		}
	}
	return nil
}

// indexJSONLeafU64 records a single scalar JSON leaf (number, bool) at its
// reserved position, the way indexJSONString does for one token.
func indexJSONLeafU64(acc *postings.Accumulator, pathPos *jsonterm.PathPositions,
	w *jsonterm.Writer, doc uint32, typ schema.Type, ordered uint64) error {
	w.ClosePathAndSetType(typ)
	start := pathPos.Reserve(w.PathKey(), 1)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], ordered)
	w.AppendValueBytes(buf[:])
	return acc.Record(doc, w.Term(), uint32(start))
}

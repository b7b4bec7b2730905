package ember

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/jsonterm"
	"github.com/nutmeg-labs/ember/options"
	"github.com/nutmeg-labs/ember/schema"
	"github.com/nutmeg-labs/ember/search/query"
)

func newTestIndex(t *testing.T, build func(*schema.Schema)) *Index {
	t.Helper()
	sch := schema.NewSchema()
	build(sch)
	idx, err := Create(sch, Config{
		Options: options.New(
			options.WithDataDir(t.TempDir()),
			options.WithNumThreads(1),
		),
		Logger: zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func textField(t *testing.T, sch *schema.Schema, name string) {
	t.Helper()
	_, err := sch.AddField(name, schema.TypeStr, schema.Options{Indexed: true, Stored: true})
	require.NoError(t, err)
}

// Docs "a b c", "a c", "b c", "a b c d", "d"; the query (+d -a -b) matches
// only the doc containing just "d", and its score equals the plain term
// query's score for "d".
func TestBooleanMustNotRanking(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) { textField(t, sch, "text") })

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()
	for _, text := range []string{"a b c", "a c", "b c", "a b c d", "d"} {
		_, err := w.AddDocument(NewDocument().AddText("text", text))
		require.NoError(t, err)
	}
	require.NoError(t, w.Commit())

	field, err := idx.Schema().FieldByName("text")
	require.NoError(t, err)
	term := func(tok string) []byte { return schema.FromFieldText(field.ID, tok) }

	reader := idx.Reader()
	require.EqualValues(t, 5, reader.TotalDocs())

	boolean := query.NewBooleanQuery(
		query.Clause{Occur: query.Must, Query: query.NewTermQuery(field.ID, term("d"))},
		query.Clause{Occur: query.MustNot, Query: query.NewTermQuery(field.ID, term("a"))},
		query.Clause{Occur: query.MustNot, Query: query.NewTermQuery(field.ID, term("b"))},
	)
	hits, err := reader.Search(boolean, 10, true)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.EqualValues(t, 4, hits[0].Address.Doc)

	plain, err := reader.Search(query.NewTermQuery(field.ID, term("d")), 10, true)
	require.NoError(t, err)
	require.Len(t, plain, 2) // docs "a b c d" and "d"

	var dAloneScore float32
	for _, h := range plain {
		if h.Address.Doc == 4 {
			dAloneScore = h.Score
		}
	}
	require.Equal(t, dAloneScore, hits[0].Score,
		"must_not clauses filter but must not change the remaining doc's score")
}

func TestShouldClausesRankCoOccurrence(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) { textField(t, sch, "text") })

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()
	for _, text := range []string{"x y", "x", "y", "z"} {
		_, err := w.AddDocument(NewDocument().AddText("text", text))
		require.NoError(t, err)
	}
	require.NoError(t, w.Commit())

	field, _ := idx.Schema().FieldByName("text")
	boolean := query.NewBooleanQuery(
		query.Clause{Occur: query.Should, Query: query.NewTermQuery(field.ID, schema.FromFieldText(field.ID, "x"))},
		query.Clause{Occur: query.Should, Query: query.NewTermQuery(field.ID, schema.FromFieldText(field.ID, "y"))},
	)
	hits, err := idx.Reader().Search(boolean, 10, true)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.EqualValues(t, 0, hits[0].Address.Doc, "doc matching both terms must rank first")
}

func TestPhraseQuery(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) { textField(t, sch, "text") })

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()
	for _, text := range []string{"the quick brown fox", "brown the quick", "quick brown"} {
		_, err := w.AddDocument(NewDocument().AddText("text", text))
		require.NoError(t, err)
	}
	require.NoError(t, w.Commit())

	field, _ := idx.Schema().FieldByName("text")
	phrase := query.NewPhraseQuery(field.ID, [][]byte{
		schema.FromFieldText(field.ID, "quick"),
		schema.FromFieldText(field.ID, "brown"),
	})
	hits, err := idx.Reader().Search(phrase, 10, true)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	docs := map[uint32]bool{}
	for _, h := range hits {
		docs[h.Address.Doc] = true
	}
	require.True(t, docs[0] && docs[2], "got %v", docs)
}

// JSON subtrees repeating the same leaf path get a position gap, so a
// phrase must never stitch tokens from two different array elements.
func TestJSONPhraseAcrossArrayElements(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) {
		_, err := sch.AddField("attrs", schema.TypeJson, schema.Options{Indexed: true})
		require.NoError(t, err)
	})

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()
	doc := NewDocument().AddJSON("attrs", map[string]any{
		"bands": []any{
			map[string]any{"name": "Elliot Smith"},
			map[string]any{"name": "The Who"},
		},
	})
	_, err = w.AddDocument(doc)
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	field, _ := idx.Schema().FieldByName("attrs")
	jsonTerm := func(tok string) []byte {
		jw := jsonterm.Wrap(field.ID, false)
		jw.PushPathSegment("bands")
		jw.PushPathSegment("name")
		jw.SetStrLeaf(tok)
		return jw.Clone()
	}

	reader := idx.Reader()

	match, err := reader.Search(query.NewPhraseQuery(field.ID, [][]byte{jsonTerm("the"), jsonTerm("who")}), 10, true)
	require.NoError(t, err)
	require.Len(t, match, 1, `"the who" is a real phrase within one subtree`)

	cross, err := reader.Search(query.NewPhraseQuery(field.ID, [][]byte{jsonTerm("smith"), jsonTerm("the")}), 10, true)
	require.NoError(t, err)
	require.Empty(t, cross, `"smith the" spans two subtrees and must not match`)

	single, err := reader.Search(query.NewTermQuery(field.ID, jsonTerm("elliot")), 10, true)
	require.NoError(t, err)
	require.Len(t, single, 1)
}

// Add A, commit (op 1); delete A by its id term (op 2); add A again
// (op 3); commit. Exactly one A remains visible.
func TestCommitOrderingDeleteThenReAdd(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) {
		_, err := sch.AddField("id", schema.TypeU64, schema.Options{Indexed: true})
		require.NoError(t, err)
		textField(t, sch, "text")
	})

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	_, err = w.AddDocument(NewDocument().AddU64("id", 1).AddText("text", "first incarnation"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	require.NoError(t, w.DeleteTerm("id", uint64(1)))
	_, err = w.AddDocument(NewDocument().AddU64("id", 1).AddText("text", "second incarnation"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	reader := idx.Reader()
	require.EqualValues(t, 1, reader.TotalDocs())

	field, _ := idx.Schema().FieldByName("id")
	term := schema.FromFieldU64(field.ID, 1)

	df, err := reader.DocFreq(field.ID, term)
	require.NoError(t, err)
	require.EqualValues(t, 1, df, "delete consistency: doc_freq counts only live docs")

	hits, err := reader.Search(query.NewTermQuery(field.ID, term), 10, true)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	stored, err := reader.Doc(hits[0].Address)
	require.NoError(t, err)
	require.Equal(t, "second incarnation", stored["text"])
}

func TestDeleteAppliesToInProgressBuilder(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) {
		_, err := sch.AddField("id", schema.TypeU64, schema.Options{Indexed: true})
		require.NoError(t, err)
	})

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	// Neither add has been committed when the delete arrives; only the
	// doc added before the delete's opstamp may die.
	_, err = w.AddDocument(NewDocument().AddU64("id", 7))
	require.NoError(t, err)
	require.NoError(t, w.DeleteTerm("id", uint64(7)))
	_, err = w.AddDocument(NewDocument().AddU64("id", 7))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	require.EqualValues(t, 1, idx.Reader().TotalDocs())
}

func TestRollbackDiscardsUncommitted(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) { textField(t, sch, "text") })

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	_, err = w.AddDocument(NewDocument().AddText("text", "kept"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	_, err = w.AddDocument(NewDocument().AddText("text", "discarded"))
	require.NoError(t, err)
	require.NoError(t, w.Rollback())
	require.NoError(t, w.Commit())

	reader := idx.Reader()
	require.EqualValues(t, 1, reader.TotalDocs())

	field, _ := idx.Schema().FieldByName("text")
	hits, err := reader.Search(query.NewTermQuery(field.ID, schema.FromFieldText(field.ID, "discarded")), 10, true)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestReaderSnapshotIsolation(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) { textField(t, sch, "text") })

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()
	_, err = w.AddDocument(NewDocument().AddText("text", "one"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	old := idx.Reader()
	require.EqualValues(t, 1, old.TotalDocs())

	_, err = w.AddDocument(NewDocument().AddText("text", "two"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	// The retained snapshot keeps its old view; a fresh one sees the commit.
	require.EqualValues(t, 1, old.TotalDocs())
	require.EqualValues(t, 2, idx.Reader().TotalDocs())
}

func TestOpenExistingIndex(t *testing.T) {
	dir := t.TempDir()
	sch := schema.NewSchema()
	_, err := sch.AddField("text", schema.TypeStr, schema.Options{Indexed: true, Stored: true})
	require.NoError(t, err)

	cfg := Config{
		Options: options.New(options.WithDataDir(dir), options.WithNumThreads(1)),
		Logger:  zap.NewNop().Sugar(),
	}
	idx, err := Create(sch, cfg)
	require.NoError(t, err)

	w, err := idx.Writer()
	require.NoError(t, err)
	_, err = w.AddDocument(NewDocument().AddText("text", "durable content"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())
	require.NoError(t, idx.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	field, err := reopened.Schema().FieldByName("text")
	require.NoError(t, err)
	hits, err := reopened.Reader().Search(
		query.NewTermQuery(field.ID, schema.FromFieldText(field.ID, "durable")), 10, true)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	stored, err := reopened.Reader().Doc(hits[0].Address)
	require.NoError(t, err)
	require.Equal(t, "durable content", stored["text"])
}

func TestCreateTwiceFails(t *testing.T) {
	dir := t.TempDir()
	sch := schema.NewSchema()
	textField(t, sch, "text")
	cfg := Config{
		Options: options.New(options.WithDataDir(dir), options.WithNumThreads(1)),
		Logger:  zap.NewNop().Sugar(),
	}
	idx, err := Create(sch, cfg)
	require.NoError(t, err)
	defer idx.Close()

	_, err = Create(sch, cfg)
	require.Error(t, err)
}

func TestSecondWriterIsLockConflict(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) { textField(t, sch, "text") })

	w, err := idx.Writer()
	require.NoError(t, err)

	_, err = idx.Writer()
	require.Error(t, err)
	require.True(t, ftserrors.IsLockConflict(err))

	require.NoError(t, w.Close())
	w2, err := idx.Writer()
	require.NoError(t, err)
	require.NoError(t, w2.Close())
}

func TestRangeQueryOverNumericField(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) {
		_, err := sch.AddField("price", schema.TypeU64, schema.Options{Indexed: true})
		require.NoError(t, err)
	})

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()
	for _, price := range []uint64{5, 10, 25, 100} {
		_, err := w.AddDocument(NewDocument().AddU64("price", price))
		require.NoError(t, err)
	}
	require.NoError(t, w.Commit())

	field, _ := idx.Schema().FieldByName("price")
	q := query.NewRangeQuery(field.ID,
		schema.FromFieldU64(field.ID, 10),
		schema.FromFieldU64(field.ID, 100),
		true, false)
	hits, err := idx.Reader().Search(q, 10, false)
	require.NoError(t, err)
	require.Len(t, hits, 2) // 10 and 25; 100 excluded, 5 below
}

func TestMergeCompactsSegmentsAndDropsDeleted(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) {
		_, err := sch.AddField("id", schema.TypeU64, schema.Options{Indexed: true})
		require.NoError(t, err)
		textField(t, sch, "text")
	})

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	_, err = w.AddDocument(NewDocument().AddU64("id", 1).AddText("text", "alpha"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	_, err = w.AddDocument(NewDocument().AddU64("id", 2).AddText("text", "beta"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	require.NoError(t, w.DeleteTerm("id", uint64(1)))
	require.NoError(t, w.Commit())

	require.Equal(t, 2, idx.Reader().NumSegments())
	require.NoError(t, w.Merge())

	reader := idx.Reader()
	require.Equal(t, 1, reader.NumSegments())
	require.EqualValues(t, 1, reader.TotalDocs())

	field, _ := idx.Schema().FieldByName("text")
	hits, err := reader.Search(query.NewTermQuery(field.ID, schema.FromFieldText(field.ID, "beta")), 10, true)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	gone, err := reader.Search(query.NewTermQuery(field.ID, schema.FromFieldText(field.ID, "alpha")), 10, true)
	require.NoError(t, err)
	require.Empty(t, gone)
}

func TestFastFieldValues(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) {
		_, err := sch.AddField("rating", schema.TypeI64, schema.Options{Indexed: true, Fast: true})
		require.NoError(t, err)
	})

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()

	// Doc 0 has two ratings (multi-valued), doc 1 has one, doc 2 has none.
	_, err = w.AddDocument(NewDocument().AddI64("rating", -3).AddI64("rating", 8))
	require.NoError(t, err)
	_, err = w.AddDocument(NewDocument().AddI64("rating", 5))
	require.NoError(t, err)
	_, err = w.AddDocument(NewDocument())
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	reader := idx.Reader()

	values, err := reader.FastValues(DocAddress{Segment: 0, Doc: 0}, "rating")
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.EqualValues(t, -3, schema.OrderedToI64(values[0]))
	require.EqualValues(t, 8, schema.OrderedToI64(values[1]))

	values, err = reader.FastValues(DocAddress{Segment: 0, Doc: 1}, "rating")
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.EqualValues(t, 5, schema.OrderedToI64(values[0]))

	values, err = reader.FastValues(DocAddress{Segment: 0, Doc: 2}, "rating")
	require.NoError(t, err)
	require.Empty(t, values)

	_, err = reader.FastValues(DocAddress{Segment: 0, Doc: 0}, "missing")
	require.Error(t, err)
}

func TestSchemaMismatchRejected(t *testing.T) {
	idx := newTestIndex(t, func(sch *schema.Schema) { textField(t, sch, "text") })

	w, err := idx.Writer()
	require.NoError(t, err)
	defer w.Close()
	_, err = w.AddDocument(NewDocument().AddU64("text", 9))
	require.Error(t, err, "a u64 value on a Str field is a schema error")
	_, err = w.AddDocument(NewDocument().AddText("unknown", "x"))
	require.Error(t, err, "an undeclared field is a schema error")
}

func TestTokenizerPositions(t *testing.T) {
	tokens := SimpleTokenizer{}.Tokenize("Hello, World 42!")
	require.Len(t, tokens, 3)
	require.Equal(t, "hello", tokens[0].Text)
	require.Equal(t, "world", tokens[1].Text)
	require.Equal(t, "42", tokens[2].Text)
	for i, tok := range tokens {
		require.EqualValues(t, i, tok.Position)
	}
}

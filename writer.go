package ember

import (
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"

	"github.com/nutmeg-labs/ember/directory"
	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/meta"
	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/internal/segment/zap"
	"github.com/nutmeg-labs/ember/schema"
)

// msgKind tags one message sent down a worker's channel.
type msgKind int

const (
	msgAdd msgKind = iota
	msgDelete
	msgFlush
	msgDiscard
	msgClose
)

// addResult is what an msgAdd reports back: the assigned doc id, or an
// indexer/schema error.
type addResult struct {
	docID uint32
	err   error
}

// workerMsg is the unit of work sent down a writerWorker's bounded channel.
type workerMsg struct {
	kind    msgKind
	doc     *Document
	opstamp uint64
	fieldID uint32
	term    schema.Term
	result  chan addResult // msgAdd
	done    chan error     // msgDelete/msgFlush/msgDiscard/msgClose
}

// pendingSegment is one worker-flushed segment awaiting publication by the
// next Commit.
type pendingSegment struct {
	ID      segment.ID
	MaxDoc  uint32
	Opstamp uint64
	DelFile bool
}

// deleteOp is one queued delete-by-term, recorded so Commit can apply it
// against segments that were already published before the delete was
// issued.
type deleteOp struct {
	FieldID uint32
	Term    schema.Term
	Opstamp uint64
}

// writerWorker owns one private in-memory segment builder and drains its
// own channel of documents/deletes/control messages, serializing a fresh
// segment to disk whenever its builder crosses the configured memory
// budget.
type writerWorker struct {
	owner      *IndexWriter
	dir        directory.Directory
	sch        *schema.Schema
	tokenizer  Tokenizer
	expandDots bool
	memBudget  uint64

	ch      chan workerMsg
	builder *segBuilder
}

func (w *writerWorker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for msg := range w.ch {
		switch msg.kind {
		case msgAdd:
			docID, err := w.builder.AddDocument(msg.doc, msg.opstamp)
			msg.result <- addResult{docID: docID, err: err}
			if err == nil && uint64(w.builder.MemUsage()) >= w.memBudget {
				if ferr := w.flush(); ferr != nil {
					w.owner.recordAsyncErr(ferr)
				}
			}
		case msgDelete:
			w.builder.ApplyDelete(msg.fieldID, msg.term, msg.opstamp)
			msg.done <- nil
		case msgFlush:
			msg.done <- w.flush()
		case msgDiscard:
			w.builder = newSegBuilder(w.sch, w.tokenizer, w.expandDots)
			msg.done <- nil
		case msgClose:
			msg.done <- nil
			return
		}
	}
}

// flush drains the worker's builder to a fresh immutable segment and queues
// it for the next Commit, resetting the builder to an empty one.
func (w *writerWorker) flush() error {
	if w.builder.maxDoc == 0 {
		return nil
	}
	result := w.builder.Flush()
	id := segment.NewID()
	w.owner.idx.protectSegment(id)
	if err := segment.Write(w.dir, id, result); err != nil {
		w.owner.idx.unprotectSegment(id)
		return err
	}
	delFile := false
	if w.builder.deletes != nil && !w.builder.deletes.IsEmpty() {
		if err := segment.WriteDeletes(w.dir, id, w.builder.deletes); err != nil {
			w.owner.idx.unprotectSegment(id)
			return err
		}
		delFile = true
	}
	if names, err := w.dir.ListPrefix(id.String() + "."); err == nil {
		if rerr := w.owner.idx.registerManaged(names...); rerr != nil {
			w.owner.idx.log.Warnw("failed to register segment files in .managed.json", "error", rerr)
		}
	}
	w.owner.appendPending(pendingSegment{
		ID:      id,
		MaxDoc:  result.MaxDoc,
		Opstamp: w.builder.MaxOpstamp(),
		DelFile: delFile,
	})
	w.builder = newSegBuilder(w.sch, w.tokenizer, w.expandDots)
	return nil
}

// IndexWriter is the multi-threaded segment writer bound to one Index.
// AddDocument/DeleteTerm return synchronously, fanning work out
// round-robin across a fixed pool of worker goroutines each with their own
// bounded inbox; Commit quiesces every worker, atomically publishes every
// pending segment plus any queued delete-by-term operations, and installs
// the result as the index's new root snapshot.
type IndexWriter struct {
	idx     *Index
	workers []*writerWorker
	wg      sync.WaitGroup

	rrCounter uint64

	pendingMu       sync.Mutex
	pendingSegments []pendingSegment

	deleteMu             sync.Mutex
	deleteOpsSinceCommit []deleteOp

	asyncErrMu sync.Mutex
	asyncErr   error

	closed atomic.Bool
}

// newWriter spins up NumThreads worker goroutines, each owning a private
// segBuilder.
func newWriter(idx *Index) *IndexWriter {
	w := &IndexWriter{idx: idx}
	n := idx.options.NumThreads()
	w.workers = make([]*writerWorker, n)
	for i := 0; i < n; i++ {
		wk := &writerWorker{
			owner:      w,
			dir:        idx.dir,
			sch:        idx.schema,
			tokenizer:  idx.tokenizer,
			expandDots: idx.expandDots,
			memBudget:  idx.options.MemoryBudget(),
			ch:         make(chan workerMsg, idx.options.ChannelCapacity()),
			builder:    newSegBuilder(idx.schema, idx.tokenizer, idx.expandDots),
		}
		w.workers[i] = wk
		w.wg.Add(1)
		go wk.run(&w.wg)
	}
	return w
}

func (w *IndexWriter) appendPending(ps pendingSegment) {
	w.pendingMu.Lock()
	w.pendingSegments = append(w.pendingSegments, ps)
	w.pendingMu.Unlock()
}

func (w *IndexWriter) recordAsyncErr(err error) {
	w.asyncErrMu.Lock()
	if w.asyncErr == nil {
		w.asyncErr = err
	}
	w.asyncErrMu.Unlock()
	w.idx.log.Warnw("segment flush failed on worker memory-budget trigger", "error", err)
}

func (w *IndexWriter) checkAsyncErr() error {
	w.asyncErrMu.Lock()
	defer w.asyncErrMu.Unlock()
	return w.asyncErr
}

// AddDocument absorbs doc into one worker's in-progress segment, assigning
// it the next opstamp and a dense, worker-local doc id.
func (w *IndexWriter) AddDocument(doc *Document) (uint32, error) {
	if w.closed.Load() {
		return 0, ftserrors.ErrCancelled
	}
	if err := w.checkAsyncErr(); err != nil {
		return 0, err
	}

	opstamp := w.idx.allocOpstamp()
	n := uint64(len(w.workers))
	wi := atomic.AddUint64(&w.rrCounter, 1) % n

	result := make(chan addResult, 1)
	w.workers[wi].ch <- workerMsg{kind: msgAdd, doc: doc, opstamp: opstamp, result: result}
	res := <-result
	return res.docID, res.err
}

// DeleteTerm marks every document whose fieldName value equals value as
// deleted, at a fresh opstamp. The delete is applied
// immediately against every worker's in-progress builder (scoped to docs
// added before this opstamp) and recorded to be applied, at the next
// Commit, against segments already published at the time of the call.
func (w *IndexWriter) DeleteTerm(fieldName string, value any) error {
	if w.closed.Load() {
		return ftserrors.ErrCancelled
	}
	field, err := w.idx.schema.FieldByName(fieldName)
	if err != nil {
		return err
	}
	if err := schema.RequireIndexed(field); err != nil {
		return err
	}
	term, err := encodeTerm(field, value)
	if err != nil {
		return err
	}

	opstamp := w.idx.allocOpstamp()

	w.deleteMu.Lock()
	w.deleteOpsSinceCommit = append(w.deleteOpsSinceCommit, deleteOp{FieldID: field.ID, Term: term, Opstamp: opstamp})
	w.deleteMu.Unlock()

	for _, wk := range w.workers {
		done := make(chan error, 1)
		wk.ch <- workerMsg{kind: msgDelete, fieldID: field.ID, term: term, opstamp: opstamp, done: done}
		<-done
	}
	return nil
}

// Commit waits for every worker to quiesce (flushing its current builder
// regardless of memory budget), applies every delete-by-term queued since
// the last commit against segments already live at the time of the call,
// and atomically publishes the union of newly flushed segments plus
// updated delete bitmaps as the index's new root snapshot.
func (w *IndexWriter) Commit() error {
	if w.closed.Load() {
		return ftserrors.ErrCancelled
	}

	for _, wk := range w.workers {
		done := make(chan error, 1)
		wk.ch <- workerMsg{kind: msgFlush, done: done}
		if err := <-done; err != nil {
			return err
		}
	}
	if err := w.checkAsyncErr(); err != nil {
		return err
	}

	commitOpstamp := atomic.LoadUint64(&w.idx.nextOpstamp)

	w.pendingMu.Lock()
	pending := w.pendingSegments
	w.pendingSegments = nil
	w.pendingMu.Unlock()

	w.deleteMu.Lock()
	deleteOps := w.deleteOpsSinceCommit
	w.deleteOpsSinceCommit = nil
	w.deleteMu.Unlock()

	root := w.idx.Reader()
	delBitmaps, err := applyDeletesToPublished(root, deleteOps)
	if err != nil {
		return err
	}
	for id, bm := range delBitmaps {
		if err := segment.WriteDeletes(w.idx.dir, id, bm); err != nil {
			return err
		}
		if rerr := w.idx.registerManaged(segment.FileName(id, segment.ExtDeletes)); rerr != nil {
			w.idx.log.Warnw("failed to register deletes file in .managed.json", "error", rerr)
		}
	}

	newMeta := meta.New(w.idx.schema)
	newMeta.Opstamp = commitOpstamp
	if root.meta != nil {
		for _, rec := range root.meta.Segments {
			if bm, ok := delBitmaps[rec.ID]; ok {
				rec.DelFile = !bm.IsEmpty()
			}
			newMeta.Segments = append(newMeta.Segments, rec)
		}
	}
	for _, ps := range pending {
		newMeta.Segments = append(newMeta.Segments, meta.SegmentRecord{
			ID: ps.ID, MaxDoc: ps.MaxDoc, Opstamp: ps.Opstamp, DelFile: ps.DelFile,
		})
	}

	if err := meta.Persist(w.idx.dir, newMeta); err != nil {
		return err
	}

	readers := make([]*segment.Reader, 0, len(newMeta.Segments))
	for _, rec := range newMeta.Segments {
		r, err := segment.Open(w.idx.dir, rec.ID, rec.MaxDoc)
		if err != nil {
			return err
		}
		readers = append(readers, r)
	}

	w.idx.log.Debugw("commit published", "opstamp", commitOpstamp, "segments", len(readers))
	w.idx.introduce(newMeta, readers)
	for _, ps := range pending {
		w.idx.unprotectSegment(ps.ID)
	}
	return nil
}

// applyDeletesToPublished matches each queued delete op against every
// segment in root whose snapshot opstamp predates the delete, merging
// matches into a per-segment bitmap seeded from that segment's existing
// deletes file, if any.
func applyDeletesToPublished(root *Reader, ops []deleteOp) (map[segment.ID]*roaring.Bitmap, error) {
	delBitmaps := make(map[segment.ID]*roaring.Bitmap)
	if root.meta == nil || len(ops) == 0 {
		return delBitmaps, nil
	}
	for i, seg := range root.segments {
		rec := root.meta.Segments[i]
		for _, op := range ops {
			if rec.Opstamp >= op.Opstamp {
				continue
			}
			idxReader, ok, err := seg.InvertedIndex(op.FieldID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			pl, found, err := idxReader.LookupAndRead(op.Term, segment.Basic)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			bm, ok := delBitmaps[rec.ID]
			if !ok {
				if existing := seg.Deletes(); existing != nil {
					bm = existing
				} else {
					bm = roaring.New()
				}
				delBitmaps[rec.ID] = bm
			}
			for _, doc := range pl.DocIDs {
				bm.Add(doc)
			}
		}
	}
	return delBitmaps, nil
}

// Merge combines every currently-published segment into a single fresh
// segment, dropping deleted docs and compacting doc ids, then atomically
// swaps the new segment in for its inputs. The inputs' files become unreferenced and are reclaimed by
// the background GC sweep; a failed merge registers nothing and keeps the
// inputs.
func (w *IndexWriter) Merge() error {
	if w.closed.Load() {
		return ftserrors.ErrCancelled
	}
	root := w.idx.Reader()
	if root.meta == nil || len(root.segments) < 2 {
		return nil
	}

	inputs := make([]zap.Input, len(root.segments))
	for i, seg := range root.segments {
		inputs[i] = zap.Input{Reader: seg, Drops: seg.Deletes()}
	}
	merged, err := zap.Merge(w.idx.schema, inputs)
	if err != nil {
		return err
	}

	id := segment.NewID()
	w.idx.protectSegment(id)
	if err := segment.Write(w.idx.dir, id, merged); err != nil {
		w.idx.unprotectSegment(id)
		return err
	}
	if names, err := w.idx.dir.ListPrefix(id.String() + "."); err == nil {
		if rerr := w.idx.registerManaged(names...); rerr != nil {
			w.idx.log.Warnw("failed to register merged segment files in .managed.json", "error", rerr)
		}
	}

	newMeta := meta.New(w.idx.schema)
	newMeta.Opstamp = root.meta.Opstamp
	newMeta.Segments = []meta.SegmentRecord{{
		ID: id, MaxDoc: merged.MaxDoc, Opstamp: root.meta.Opstamp,
	}}
	if err := meta.Persist(w.idx.dir, newMeta); err != nil {
		w.idx.unprotectSegment(id)
		return err
	}

	reader, err := segment.Open(w.idx.dir, id, merged.MaxDoc)
	if err != nil {
		return err
	}
	w.idx.log.Debugw("merge published", "inputs", len(inputs), "maxDoc", merged.MaxDoc)
	w.idx.introduce(newMeta, []*segment.Reader{reader})
	w.idx.unprotectSegment(id)
	return nil
}

// Rollback discards every worker's in-progress builder without writing it,
// and drops every pending segment and queued delete not yet committed.
// Segment
// files a worker already flushed to disk under the memory-budget trigger
// are left on disk, unregistered in meta.json; the background GC sweep
// reclaims them like any other file absent from the live meta.
func (w *IndexWriter) Rollback() error {
	if w.closed.Load() {
		return ftserrors.ErrCancelled
	}
	for _, wk := range w.workers {
		done := make(chan error, 1)
		wk.ch <- workerMsg{kind: msgDiscard, done: done}
		<-done
	}

	w.pendingMu.Lock()
	dropped := w.pendingSegments
	w.pendingSegments = nil
	w.pendingMu.Unlock()
	for _, ps := range dropped {
		w.idx.unprotectSegment(ps.ID)
	}

	w.deleteMu.Lock()
	w.deleteOpsSinceCommit = nil
	w.deleteMu.Unlock()

	w.asyncErrMu.Lock()
	w.asyncErr = nil
	w.asyncErrMu.Unlock()

	return nil
}

// Close stops every worker goroutine without flushing or publishing
// anything; callers must Commit (or Rollback) before Close if they want
// buffered documents to survive.
func (w *IndexWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, wk := range w.workers {
		done := make(chan error, 1)
		wk.ch <- workerMsg{kind: msgClose, done: done}
		<-done
	}
	w.wg.Wait()
	w.idx.writerActive.Store(false)
	return nil
}

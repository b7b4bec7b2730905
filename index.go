package ember

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nutmeg-labs/ember/directory"
	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/meta"
	"github.com/nutmeg-labs/ember/internal/segment"
	"github.com/nutmeg-labs/ember/options"
	"github.com/nutmeg-labs/ember/schema"
)

// Config holds the dependencies an Index is built from, following the
// options+logger constructor shape the engine carries throughout.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger

	// Tokenizer turns Str field text into postings at index time. Defaults to SimpleTokenizer.
	Tokenizer Tokenizer

	// ExpandDots rewrites a raw JSON path segment's '.' into the path
	// separator, letting dotted input keys be indexed as nested objects.
	ExpandDots bool
}

// segmentIntroduction is one atomic publish: the newly written segments
// plus the updated delete bitmaps for already-live segments, applied to
// the root snapshot under a single lock hold.
type segmentIntroduction struct {
	meta    *meta.Meta
	readers []*segment.Reader
	applied chan struct{}
}

// Index is the top-level, directory-backed search index: schema, live
// segment registry, and the background GC sweep that reclaims files no
// segment in the current meta references. Reads go
// through an immutable root snapshot swapped atomically on commit.
type Index struct {
	dir        directory.Directory
	options    *options.Options
	log        *zap.SugaredLogger
	schema     *schema.Schema
	tokenizer  Tokenizer
	expandDots bool

	nextOpstamp uint64

	rootLock sync.RWMutex
	root     *Reader

	// protected holds segment ids flushed by a live writer but not yet
	// committed; the GC sweep must not reclaim their files even though no
	// meta record references them yet.
	protectedMu sync.Mutex
	protected   map[string]struct{}

	managedMu sync.Mutex

	introductions chan *segmentIntroduction
	closeCh       chan struct{}
	gcDone        chan struct{}
	closed        atomic.Bool

	writerActive atomic.Bool
}

// Create initializes a brand-new index at the configured data directory
// with sch as its fixed schema, failing if one already exists there.
func Create(sch *schema.Schema, config Config) (*Index, error) {
	opts := resolveOptions(config.Options)
	dir, err := directory.OpenOS(opts.DataDir)
	if err != nil {
		return nil, err
	}
	if _, ok, err := meta.Load(dir); err != nil {
		return nil, err
	} else if ok {
		return nil, ftserrors.NewBaseSentinel(ftserrors.ErrorCodeLockConflict, "index already exists at this data directory")
	}
	m := meta.New(sch)
	if err := meta.Persist(dir, m); err != nil {
		return nil, err
	}
	if err := meta.PersistManaged(dir, nil); err != nil {
		return nil, err
	}
	return open(dir, sch, opts, resolveLogger(config.Logger), resolveTokenizer(config.Tokenizer), config.ExpandDots)
}

// Open reopens a previously created index, reconstructing its schema from
// the persisted meta record.
func Open(config Config) (*Index, error) {
	opts := resolveOptions(config.Options)
	dir, err := directory.OpenOS(opts.DataDir)
	if err != nil {
		return nil, err
	}
	m, ok, err := meta.Load(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeIO, "no index found at this data directory")
	}
	sch, err := meta.ToSchema(m.Fields)
	if err != nil {
		return nil, err
	}
	log := resolveLogger(config.Logger)
	idx, err := open(dir, sch, opts, log, resolveTokenizer(config.Tokenizer), config.ExpandDots)
	if err != nil {
		return nil, err
	}
	if err := idx.loadFrom(m); err != nil {
		return nil, err
	}
	return idx, nil
}

func resolveOptions(o *options.Options) *options.Options {
	if o != nil {
		return o
	}
	defaults := options.NewDefaultOptions()
	return &defaults
}

func resolveLogger(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l != nil {
		return l
	}
	plain, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return plain.Sugar()
}

func resolveTokenizer(t Tokenizer) Tokenizer {
	if t != nil {
		return t
	}
	return SimpleTokenizer{}
}

func open(dir directory.Directory, sch *schema.Schema, opts *options.Options, log *zap.SugaredLogger,
	tokenizer Tokenizer, expandDots bool) (*Index, error) {
	idx := &Index{
		dir:           dir,
		options:       opts,
		log:           log,
		schema:        sch,
		tokenizer:     tokenizer,
		expandDots:    expandDots,
		root:          &Reader{schema: sch, log: log},
		protected:     make(map[string]struct{}),
		introductions: make(chan *segmentIntroduction),
		closeCh:       make(chan struct{}),
		gcDone:        make(chan struct{}),
	}
	go idx.mainLoop()
	go idx.gcLoop()
	return idx, nil
}

// loadFrom opens every segment named in m and installs it as the initial
// root snapshot, used by Open to reconstruct in-memory readers from disk.
func (idx *Index) loadFrom(m *meta.Meta) error {
	idx.nextOpstamp = m.Opstamp
	readers := make([]*segment.Reader, 0, len(m.Segments))
	for _, sr := range m.Segments {
		r, err := segment.Open(idx.dir, sr.ID, sr.MaxDoc)
		if err != nil {
			return err
		}
		readers = append(readers, r)
	}
	idx.rootLock.Lock()
	idx.root = &Reader{schema: idx.schema, log: idx.log, segments: readers, meta: m}
	idx.rootLock.Unlock()
	return nil
}

// Schema returns the index's fixed field schema.
func (idx *Index) Schema() *schema.Schema { return idx.schema }

// Reader returns the current, immutable root snapshot. Safe to retain and
// query concurrently with writer activity; it simply stops reflecting new
// commits.
func (idx *Index) Reader() *Reader {
	idx.rootLock.RLock()
	defer idx.rootLock.RUnlock()
	return idx.root
}

// Writer creates a new IndexWriter bound to this index, spinning up its
// configured number of worker goroutines. At most one writer may
// be open at a time; a second call before the first writer's Close returns
// ErrLockConflict.
func (idx *Index) Writer() (*IndexWriter, error) {
	if !idx.writerActive.CompareAndSwap(false, true) {
		return nil, ftserrors.ErrLockConflict
	}
	return newWriter(idx), nil
}

// mainLoop serializes every segment introduction (new segments from a
// writer commit, or a GC-driven meta rewrite) through a single goroutine,
// so root is never swapped concurrently from two sources.
func (idx *Index) mainLoop() {
	for {
		select {
		case intro := <-idx.introductions:
			idx.rootLock.Lock()
			idx.root = &Reader{schema: idx.schema, log: idx.log, segments: intro.readers, meta: intro.meta}
			idx.rootLock.Unlock()
			close(intro.applied)
		case <-idx.closeCh:
			return
		}
	}
}

// introduce submits a fully-prepared meta+reader set and blocks until the
// mainLoop has installed it as the new root.
func (idx *Index) introduce(m *meta.Meta, readers []*segment.Reader) {
	intro := &segmentIntroduction{meta: m, readers: readers, applied: make(chan struct{})}
	idx.introductions <- intro
	<-intro.applied
}

func (idx *Index) allocOpstamp() uint64 {
	return atomic.AddUint64(&idx.nextOpstamp, 1)
}

// gcLoop periodically reconciles on-disk segment files against the live
// meta record, deleting files from superseded segments (e.g. merge
// inputs, or a segment list rewritten by a delete commit) that the current
// root meta no longer names and no writer still protects. Older Reader
// snapshots are not tracked: the sweep does not check whether one still
// uses a segment it deletes.
func (idx *Index) gcLoop() {
	defer close(idx.gcDone)
	ticker := time.NewTicker(idx.options.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := idx.gcSweep(); err != nil {
				idx.log.Warnw("segment gc sweep failed", "error", err)
			}
		case <-idx.closeCh:
			return
		}
	}
}

// protectSegment shields a flushed-but-uncommitted segment's files from
// the GC sweep until its writer commits or rolls back.
func (idx *Index) protectSegment(id segment.ID) {
	idx.protectedMu.Lock()
	idx.protected[id.String()] = struct{}{}
	idx.protectedMu.Unlock()
}

// unprotectSegment releases a segment previously protected: either it is
// now named in the live meta (commit) or it is garbage (rollback).
func (idx *Index) unprotectSegment(id segment.ID) {
	idx.protectedMu.Lock()
	delete(idx.protected, id.String())
	idx.protectedMu.Unlock()
}

func (idx *Index) isProtected(segmentID string) bool {
	idx.protectedMu.Lock()
	defer idx.protectedMu.Unlock()
	_, ok := idx.protected[segmentID]
	return ok
}

// registerManaged appends file names to the `.managed.json` set the GC
// sweep is allowed to reclaim from.
func (idx *Index) registerManaged(names ...string) error {
	idx.managedMu.Lock()
	defer idx.managedMu.Unlock()
	existing, _, err := meta.LoadManaged(idx.dir)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		seen[n] = struct{}{}
	}
	changed := false
	for _, n := range names {
		if _, ok := seen[n]; !ok {
			existing = append(existing, n)
			seen[n] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return meta.PersistManaged(idx.dir, existing)
}

// gcSweep deletes component files belonging to segment ids not named in
// the current root's meta snapshot, restricted to files the engine itself
// created (the .managed.json set) and to segments no live writer still
// holds as pending. A missing .managed.json disables the sweep.
func (idx *Index) gcSweep() error {
	root := idx.Reader()
	if root.meta == nil {
		return nil
	}
	live := make(map[string]struct{}, len(root.meta.Segments))
	for _, sr := range root.meta.Segments {
		live[sr.ID.String()] = struct{}{}
	}

	// Hold managedMu across the whole sweep so a concurrent flush's
	// registerManaged cannot be lost between the load and the rewrite.
	idx.managedMu.Lock()
	defer idx.managedMu.Unlock()
	managed, ok, err := meta.LoadManaged(idx.dir)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var errs error
	kept := managed[:0]
	for _, name := range managed {
		id, isSegmentFile := segmentIDFromFileName(name)
		if !isSegmentFile {
			kept = append(kept, name)
			continue
		}
		if _, isLive := live[id]; isLive || idx.isProtected(id) {
			kept = append(kept, name)
			continue
		}
		if err := idx.dir.Delete(name); err != nil {
			errs = multierr.Append(errs, err)
			kept = append(kept, name)
		}
	}
	if len(kept) != len(managed) {
		if err := meta.PersistManaged(idx.dir, kept); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func segmentIDFromFileName(name string) (string, bool) {
	dot := -1
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			dot = i
			break
		}
	}
	if dot != 32 { // hex-encoded 16-byte uuid
		return "", false
	}
	if _, ok := segment.ParseID(name[:dot]); !ok {
		return "", false
	}
	return name[:dot], true
}

// Close stops the background GC sweep and the mainLoop goroutine. It does
// not flush any writer's buffered documents; callers must Commit their
// writers first.
func (idx *Index) Close() error {
	if !idx.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(idx.closeCh)
	<-idx.gcDone
	return nil
}

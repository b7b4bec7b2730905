package search

import (
	"go.uber.org/zap"

	"github.com/nutmeg-labs/ember/internal/segment"
)

// scoreBlockSize mirrors the postings file's 128-doc block grouping, the granularity Block-WAND's block_max_score operates over.
const scoreBlockSize = 128

// IsDeletedFunc reports whether doc has been marked deleted in the
// segment a scorer is iterating.
type IsDeletedFunc func(doc DocID) bool

// TermScorer iterates one term's posting list with BM25 scoring. It wraps an already-decoded segment.PostingsList; deleted docs
// are skipped transparently during Advance/Seek.
type TermScorer struct {
	postings  *segment.PostingsList
	fieldNorms segment.FieldNorms
	avgdl     float32
	idf       float32
	params    BM25Params
	isDeleted IsDeletedFunc
	log       *zap.SugaredLogger

	pos int // index into postings.DocIDs/TFs; -1 before first Advance
}

// NewTermScorer builds a scorer over pl, scoring with BM25 using
// totalDocs/docFreq for idf and fieldNorms/avgdl for the length
// normalization term.
func NewTermScorer(pl *segment.PostingsList, fieldNorms segment.FieldNorms, totalDocs, docFreq uint64,
	avgdl float32, params BM25Params, isDeleted IsDeletedFunc, log *zap.SugaredLogger) *TermScorer {
	return &TermScorer{
		postings:   pl,
		fieldNorms: fieldNorms,
		avgdl:      avgdl,
		idf:        IDF(totalDocs, docFreq),
		params:     params,
		isDeleted:  isDeleted,
		log:        log,
		pos:        -1,
	}
}

func (s *TermScorer) deleted(i int) bool {
	return s.isDeleted != nil && s.isDeleted(s.postings.DocIDs[i])
}

// Doc implements DocSet.
func (s *TermScorer) Doc() DocID {
	if s.pos < 0 || s.pos >= len(s.postings.DocIDs) {
		return Terminated
	}
	return s.postings.DocIDs[s.pos]
}

// Advance implements DocSet.
func (s *TermScorer) Advance() DocID {
	for {
		s.pos++
		if s.pos >= len(s.postings.DocIDs) {
			return Terminated
		}
		if !s.deleted(s.pos) {
			return s.Doc()
		}
	}
}

// Seek implements DocSet with a binary search over the decoded, sorted doc
// id array (the in-memory analog of a skip-list-backed seek). If
// the scorer already sits at a doc >= target it stays put, so re-seeking
// an aligned child inside an intersection is a no-op.
func (s *TermScorer) Seek(target DocID) DocID {
	docIDs := s.postings.DocIDs
	if s.pos >= 0 && s.pos < len(docIDs) && docIDs[s.pos] >= target {
		return docIDs[s.pos]
	}
	lo, hi := s.pos+1, len(docIDs)
	if lo < 0 {
		lo = 0
	}
	for lo < hi {
		mid := (lo + hi) / 2
		if docIDs[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	s.pos = lo
	for s.pos < len(docIDs) && s.deleted(s.pos) {
		s.pos++
	}
	return s.Doc()
}

// SizeHint implements DocSet.
func (s *TermScorer) SizeHint() uint32 {
	if s.pos >= len(s.postings.DocIDs) {
		return 0
	}
	return uint32(len(s.postings.DocIDs) - s.pos - 1)
}

// docLength returns the field length for the current doc, from the
// fieldnorm byte.
func (s *TermScorer) docLength() float32 {
	return float32(segment.DecodeFieldNorm(s.fieldNorms.Get(s.Doc())))
}

// Score implements Scorer.
func (s *TermScorer) Score() float32 {
	if s.pos < 0 || s.pos >= len(s.postings.TFs) {
		return 0
	}
	tf := float32(s.postings.TFs[s.pos])
	score := s.params.Score(s.idf, tf, s.docLength(), s.avgdl)
	if score == 0 && tf != 0 && s.log != nil {
		s.log.Debugw("score clamped to zero", "doc", s.Doc(), "tf", tf, "avgdl", s.avgdl)
	}
	return score
}

// Explain implements Scorer.
func (s *TermScorer) Explain() *Explanation {
	tf := float32(0)
	if s.pos >= 0 && s.pos < len(s.postings.TFs) {
		tf = float32(s.postings.TFs[s.pos])
	}
	return Explain(s.Score(), "bm25(tf=%.0f, dl=%.0f, avgdl=%.1f, idf=%.4f)", tf, s.docLength(), s.avgdl, s.idf)
}

// BlockMaxScore returns an upper bound on any score this scorer can
// produce for docs in the scoreBlockSize-sized block starting at or after
// its current position, the primitive Block-WAND's pivot selection builds
// on.
func (s *TermScorer) BlockMaxScore() float32 {
	if s.pos < 0 || s.pos >= len(s.postings.DocIDs) {
		return 0
	}
	blockStart := (s.pos / scoreBlockSize) * scoreBlockSize
	blockEnd := blockStart + scoreBlockSize
	if blockEnd > len(s.postings.DocIDs) {
		blockEnd = len(s.postings.DocIDs)
	}
	var maxScore float32
	for i := blockStart; i < blockEnd; i++ {
		if s.deleted(i) {
			continue
		}
		tf := float32(s.postings.TFs[i])
		dl := float32(segment.DecodeFieldNorm(s.fieldNorms.Get(s.postings.DocIDs[i])))
		score := s.params.Score(s.idf, tf, dl, s.avgdl)
		if score > maxScore {
			maxScore = score
		}
	}
	return maxScore
}

// SkipBlock jumps past the remainder of the current scoreBlockSize-sized
// block without scoring it, landing on the first live doc of the next
// block. Used by the single-scorer Block-WAND fast path once the block's
// upper bound falls below the collector threshold.
func (s *TermScorer) SkipBlock() DocID {
	if s.pos < 0 {
		return s.Advance()
	}
	next := (s.pos/scoreBlockSize + 1) * scoreBlockSize
	if next >= len(s.postings.DocIDs) {
		s.pos = len(s.postings.DocIDs)
		return Terminated
	}
	s.pos = next
	for s.pos < len(s.postings.DocIDs) && s.deleted(s.pos) {
		s.pos++
	}
	return s.Doc()
}

// Positions returns the positions recorded for the current doc, or nil if
// the scorer was not built WithFreqsAndPositions.
func (s *TermScorer) Positions() []uint32 {
	if s.postings.Positions == nil || s.pos < 0 || s.pos >= len(s.postings.Positions) {
		return nil
	}
	return s.postings.Positions[s.pos]
}

// DocFreq returns the term's document frequency in this segment.
func (s *TermScorer) DocFreq() int { return len(s.postings.DocIDs) }

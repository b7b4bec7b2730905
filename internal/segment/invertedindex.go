package segment

import (
	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/sstable"
)

// TermInfo is the term dictionary's value: where the term's postings
// record begins in the postings file.
type TermInfo struct {
	PostingsOffset uint64
}

// PostingsList is one term's fully decoded posting list: doc ids (absolute,
// strictly increasing), term frequencies aligned 1:1, and (if requested)
// positions aligned 1:1 with doc ids.
type PostingsList struct {
	DocIDs    []uint32
	TFs       []uint32
	Positions [][]uint32 // nil unless read WithFreqsAndPositions
}

// InvertedIndexReader opens one field's term dictionary and postings data
// for a segment.
type InvertedIndexReader struct {
	dict         *sstable.Reader
	postingsData []byte
	posFileData  []byte
}

// OpenInvertedIndexReader parses a field's term-dictionary bytes
// (typically one section of the segment's .term file) plus the segment's
// .idx (postings) and .pos (positions) file contents.
func OpenInvertedIndexReader(dictBytes, postingsData, posFileData []byte) (*InvertedIndexReader, error) {
	dict, err := sstable.OpenReader(dictBytes)
	if err != nil {
		return nil, err
	}
	return &InvertedIndexReader{dict: dict, postingsData: postingsData, posFileData: posFileData}, nil
}

// Get performs a point lookup of a term's dictionary entry.
func (r *InvertedIndexReader) Get(term []byte) (TermInfo, bool, error) {
	offset, ok, err := r.dict.Get(term)
	if err != nil || !ok {
		return TermInfo{}, ok, err
	}
	return TermInfo{PostingsOffset: offset}, true, nil
}

// Range performs a half-open range/prefix scan over the term dictionary.
func (r *InvertedIndexReader) Range(lo, hi []byte) (*sstable.RangeIterator, error) {
	return r.dict.Range(lo, hi)
}

// ReadPostings decodes the posting list for a term dictionary entry at the
// requested information granularity.
func (r *InvertedIndexReader) ReadPostings(info TermInfo, opt Option) (*PostingsList, error) {
	if info.PostingsOffset >= uint64(len(r.postingsData)) {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "postings offset out of range")
	}
	et, err := decodeEncodedTerm(r.postingsData[info.PostingsOffset:])
	if err != nil {
		return nil, err
	}

	docDeltas := et.DocDeltas()
	docIDs := make([]uint32, len(docDeltas))
	var cum uint64
	for i, d := range docDeltas {
		cum += d
		docIDs[i] = uint32(cum)
	}

	pl := &PostingsList{DocIDs: docIDs}
	if opt == Basic {
		return pl, nil
	}

	tfs64 := et.TFs()
	pl.TFs = make([]uint32, len(tfs64))
	for i, tf := range tfs64 {
		pl.TFs[i] = uint32(tf)
	}
	if opt == WithFreqsAndPositions {
		pl.Positions = et.Positions(r.posFileData, tfs64)
	}
	return pl, nil
}

// LookupAndRead combines Get + ReadPostings, the common case for a term
// scorer.
func (r *InvertedIndexReader) LookupAndRead(term []byte, opt Option) (*PostingsList, bool, error) {
	info, ok, err := r.Get(term)
	if err != nil || !ok {
		return nil, ok, err
	}
	pl, err := r.ReadPostings(info, opt)
	if err != nil {
		return nil, false, err
	}
	return pl, true, nil
}

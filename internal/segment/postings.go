package segment

import (
	"encoding/binary"

	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/internal/postings"
)

// Option selects how much information a postings read needs to retrieve,
// from cheapest to most complete.
type Option uint8

const (
	Basic Option = iota
	WithFreqs
	WithFreqsAndPositions
)

// skipEntry summarizes one 128-doc block for the postings skip list: the
// block's last (absolute) doc id and the byte length of its doc-delta and
// term-frequency encodings, letting a seek() skip decoding blocks that
// cannot contain the target.
type skipEntry struct {
	lastDoc   uint32
	docLen    uint32
	tfLen     uint32
}

// encodedTerm is the self-describing record written at a term's postings
// offset: everything InvertedIndexReader.ReadPostings needs to reconstruct
// doc ids, term frequencies, and (optionally) positions without consulting
// any other term's data.
type encodedTerm struct {
	docFreq    uint32
	skipList   []skipEntry
	docBlocks  []byte // full-block doc-delta bytes, concatenated in block order
	tfBlocks   []byte // full-block tf bytes, concatenated in block order
	tailDocs   []byte // varint-encoded tail doc deltas
	tailTFs    []byte // varint-encoded tail tfs
	tailCount  uint32
	posOffset  uint64 // byte offset into the positions file
	posLen     uint64 // byte length of this term's position data there
}

// EncodeTerm builds the postings-file record for one drained term. It
// writes the positions stream into posFile (appending) and returns the
// serialized postings-file record (its length is len of the result), ready to be
// appended to the postings file at the offset recorded in the term
// dictionary.
func EncodeTerm(t postings.DrainedTerm, posFile *[]byte) []byte {
	fullDocBlocks, tailDocs := blockGroups(t.DocDeltas)
	fullTFBlocks, tailTFs := blockGroups(t.TFs)

	var skipList []skipEntry
	var docBlocks, tfBlocks []byte
	var cumDoc uint64
	for i, block := range fullDocBlocks {
		for _, d := range block {
			cumDoc += d
		}
		encodedDoc := encodeFullBlock(block)
		encodedTF := encodeFullBlock(fullTFBlocks[i])
		skipList = append(skipList, skipEntry{
			lastDoc: uint32(cumDoc),
			docLen:  uint32(len(encodedDoc)),
			tfLen:   uint32(len(encodedTF)),
		})
		docBlocks = append(docBlocks, encodedDoc...)
		tfBlocks = append(tfBlocks, encodedTF...)
	}

	posOffset := uint64(len(*posFile))
	posBytes := encodeTailVarint(t.Positions) // positions always stored as a flat varint stream
	*posFile = append(*posFile, posBytes...)

	et := encodedTerm{
		docFreq:   t.DocFreq,
		skipList:  skipList,
		docBlocks: docBlocks,
		tfBlocks:  tfBlocks,
		tailDocs:  encodeTailVarint(tailDocs),
		tailTFs:   encodeTailVarint(tailTFs),
		tailCount: uint32(len(tailDocs)),
		posOffset: posOffset,
		posLen:    uint64(len(posBytes)),
	}
	return et.serialize()
}

func (et *encodedTerm) serialize() []byte {
	var out []byte
	var buf [binary.MaxVarintLen64]byte

	putUvarint := func(v uint64) {
		n := binary.PutUvarint(buf[:], v)
		out = append(out, buf[:n]...)
	}

	putUvarint(uint64(et.docFreq))
	putUvarint(uint64(len(et.skipList)))
	putUvarint(uint64(et.tailCount))
	putUvarint(et.posOffset)
	putUvarint(et.posLen)
	putUvarint(uint64(len(et.tailDocs)))
	putUvarint(uint64(len(et.tailTFs)))
	for _, s := range et.skipList {
		putUvarint(uint64(s.lastDoc))
		putUvarint(uint64(s.docLen))
		putUvarint(uint64(s.tfLen))
	}
	out = append(out, et.docBlocks...)
	out = append(out, et.tfBlocks...)
	out = append(out, et.tailDocs...)
	out = append(out, et.tailTFs...)
	return out
}

func decodeEncodedTerm(data []byte) (*encodedTerm, error) {
	if len(data) == 0 {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "empty postings record")
	}
	pos := 0
	readUvarint := func() uint64 {
		v, n := binary.Uvarint(data[pos:])
		pos += n
		return v
	}
	et := &encodedTerm{}
	et.docFreq = uint32(readUvarint())
	numBlocks := int(readUvarint())
	et.tailCount = uint32(readUvarint())
	et.posOffset = readUvarint()
	et.posLen = readUvarint()
	tailDocsLen := int(readUvarint())
	tailTFsLen := int(readUvarint())

	et.skipList = make([]skipEntry, numBlocks)
	var totalDocLen, totalTFLen int
	for i := 0; i < numBlocks; i++ {
		lastDoc := uint32(readUvarint())
		docLen := uint32(readUvarint())
		tfLen := uint32(readUvarint())
		et.skipList[i] = skipEntry{lastDoc: lastDoc, docLen: docLen, tfLen: tfLen}
		totalDocLen += int(docLen)
		totalTFLen += int(tfLen)
	}

	if pos+totalDocLen > len(data) {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "postings doc blocks truncated")
	}
	et.docBlocks = data[pos : pos+totalDocLen]
	pos += totalDocLen

	if pos+totalTFLen > len(data) {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "postings tf blocks truncated")
	}
	et.tfBlocks = data[pos : pos+totalTFLen]
	pos += totalTFLen

	if pos+tailDocsLen > len(data) {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "postings tail doc deltas truncated")
	}
	et.tailDocs = data[pos : pos+tailDocsLen]
	pos += tailDocsLen

	if pos+tailTFsLen > len(data) {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "postings tail tfs truncated")
	}
	et.tailTFs = data[pos : pos+tailTFsLen]

	return et, nil
}

// DocDeltas decodes every doc-id delta (full blocks then tail), in order.
func (et *encodedTerm) DocDeltas() []uint64 {
	out := make([]uint64, 0, et.docFreq)
	off := 0
	for _, s := range et.skipList {
		out = append(out, decodeFullBlock(et.docBlocks[off:off+int(s.docLen)], blockSize)...)
		off += int(s.docLen)
	}
	out = append(out, decodeTailVarint(et.tailDocs, int(et.tailCount))...)
	return out
}

// TFs decodes every term frequency (full blocks then tail), in order,
// aligned 1:1 with DocDeltas.
func (et *encodedTerm) TFs() []uint64 {
	out := make([]uint64, 0, et.docFreq)
	off := 0
	for _, s := range et.skipList {
		out = append(out, decodeFullBlock(et.tfBlocks[off:off+int(s.tfLen)], blockSize)...)
		off += int(s.tfLen)
	}
	out = append(out, decodeTailVarint(et.tailTFs, int(et.tailCount))...)
	return out
}

// Positions decodes the term's flat position-delta stream, along with the
// per-doc tfs needed to regroup it (position deltas reset to a from-zero
// basis at each new document).
func (et *encodedTerm) Positions(posFileData []byte, tfs []uint64) [][]uint32 {
	data := posFileData[et.posOffset : et.posOffset+et.posLen]
	perDoc := make([][]uint32, len(tfs))
	for i, tf := range tfs {
		positions := make([]uint32, tf)
		var cum uint64
		for j := uint64(0); j < tf; j++ {
			v, n := binary.Uvarint(data)
			data = data[n:]
			cum += v
			positions[j] = uint32(cum)
		}
		perDoc[i] = positions
	}
	return perDoc
}

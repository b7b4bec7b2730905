// Package docstore implements the stored-document store: documents
// compressed in snappy blocks, field metadata (id, type tag, byte length)
// interleaved as a govarint stream, and an offset table mapping DocId to
// (block, intra-block offset) for random access.
package docstore

import (
	"bytes"
	"encoding/binary"

	"github.com/Smerity/govarint"
	"github.com/golang/snappy"

	"github.com/nutmeg-labs/ember/ftserrors"
	"github.com/nutmeg-labs/ember/schema"
)

// BlockSize is the target uncompressed size of one stored-document block
// before it is flushed and snappy-compressed.
const BlockSize = 16 * 1024

// StoredValue is one (field id, type, raw value bytes) entry captured for
// a stored field, independent of whether that field is also indexed/fast.
type StoredValue struct {
	FieldID uint32
	Type    schema.Type
	Value   []byte
}

// Writer accumulates documents' stored fields into 16 kB blocks, snappy
// compressing each block as it fills, and records a DocId -> (block,
// offset) map for the companion reader.
type Writer struct {
	blocks      [][]byte
	offsetTable []docLocation

	curBlock bytes.Buffer
}

type docLocation struct {
	block  uint32
	offset uint32
}

// NewWriter creates an empty stored-document writer.
func NewWriter() *Writer {
	return &Writer{}
}

// AddDocument serializes one document's stored fields and appends them to
// the current block, rotating to a fresh block once BlockSize is exceeded.
func (w *Writer) AddDocument(values []StoredValue) error {
	if w.curBlock.Len() >= BlockSize {
		w.flushBlock()
	}

	loc := docLocation{block: uint32(len(w.blocks)), offset: uint32(w.curBlock.Len())}
	w.offsetTable = append(w.offsetTable, loc)

	var lenBuf bytes.Buffer
	metaEncoder := govarint.NewU64Base128Encoder(&lenBuf)
	metaEncoder.PutU64(uint64(len(values)))
	for _, v := range values {
		metaEncoder.PutU64(uint64(v.FieldID))
		metaEncoder.PutU64(uint64(v.Type))
		metaEncoder.PutU64(uint64(len(v.Value)))
	}
	metaEncoder.Close()

	var docBuf bytes.Buffer
	var metaLenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(metaLenBuf[:], uint64(lenBuf.Len()))
	docBuf.Write(metaLenBuf[:n])
	docBuf.Write(lenBuf.Bytes())
	for _, v := range values {
		docBuf.Write(v.Value)
	}

	if _, err := w.curBlock.Write(docBuf.Bytes()); err != nil {
		return ftserrors.NewDataError(err, ftserrors.ErrorCodeIO, "failed to buffer stored document")
	}
	return nil
}

func (w *Writer) flushBlock() {
	compressed := snappy.Encode(nil, w.curBlock.Bytes())
	w.blocks = append(w.blocks, compressed)
	w.curBlock.Reset()
}

// Finish flushes any partial trailing block and serializes the store:
// [num_blocks:4 LE | (block_len:4 LE | block_bytes)... | num_docs:4 LE |
// (block:4 LE | offset:4 LE)...].
func (w *Writer) Finish() []byte {
	if w.curBlock.Len() > 0 {
		w.flushBlock()
	}

	var out bytes.Buffer
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(w.blocks)))
	out.Write(hdr[:])
	for _, b := range w.blocks {
		var blen [4]byte
		binary.LittleEndian.PutUint32(blen[:], uint32(len(b)))
		out.Write(blen[:])
		out.Write(b)
	}

	var numDocs [4]byte
	binary.LittleEndian.PutUint32(numDocs[:], uint32(len(w.offsetTable)))
	out.Write(numDocs[:])
	for _, loc := range w.offsetTable {
		var rec [8]byte
		binary.LittleEndian.PutUint32(rec[0:4], loc.block)
		binary.LittleEndian.PutUint32(rec[4:8], loc.offset)
		out.Write(rec[:])
	}
	return out.Bytes()
}

// Reader opens a previously built stored-document store for random-access
// reconstruction of any DocId.
type Reader struct {
	blockOffsets []uint32 // byte offset into data where each compressed block starts
	data         []byte
	offsetTable  []docLocation
	blockCache   map[uint32][]byte
}

// OpenReader parses data (the full contents of a segment's .store file).
func OpenReader(data []byte) (*Reader, error) {
	if len(data) < 4 {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "stored document file truncated")
	}
	numBlocks := binary.LittleEndian.Uint32(data[0:4])
	pos := uint32(4)
	blockOffsets := make([]uint32, 0, numBlocks)
	for i := uint32(0); i < numBlocks; i++ {
		if int(pos)+4 > len(data) {
			return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "stored document block header truncated")
		}
		blen := binary.LittleEndian.Uint32(data[pos : pos+4])
		pos += 4
		blockOffsets = append(blockOffsets, pos)
		pos += blen
	}
	if int(pos)+4 > len(data) {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "stored document doc count truncated")
	}
	numDocs := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4
	offsetTable := make([]docLocation, 0, numDocs)
	for i := uint32(0); i < numDocs; i++ {
		if int(pos)+8 > len(data) {
			return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "stored document offset table truncated")
		}
		block := binary.LittleEndian.Uint32(data[pos : pos+4])
		off := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		pos += 8
		offsetTable = append(offsetTable, docLocation{block: block, offset: off})
	}
	return &Reader{blockOffsets: blockOffsets, data: data, offsetTable: offsetTable, blockCache: make(map[uint32][]byte)}, nil
}

func blockLen(data []byte, startOffset uint32) uint32 {
	return binary.LittleEndian.Uint32(data[startOffset-4 : startOffset])
}

func (r *Reader) decompressedBlock(block uint32) ([]byte, error) {
	if b, ok := r.blockCache[block]; ok {
		return b, nil
	}
	start := r.blockOffsets[block]
	compressed := r.data[start : start+blockLen(r.data, start)]
	decompressed, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "failed to decompress stored document block")
	}
	r.blockCache[block] = decompressed
	return decompressed, nil
}

// NumDocs returns the number of documents recorded.
func (r *Reader) NumDocs() uint32 { return uint32(len(r.offsetTable)) }

// Document reconstructs doc's stored fields.
func (r *Reader) Document(doc uint32) ([]StoredValue, error) {
	if int(doc) >= len(r.offsetTable) {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "doc id out of range for stored document store")
	}
	loc := r.offsetTable[doc]
	block, err := r.decompressedBlock(loc.block)
	if err != nil {
		return nil, err
	}
	buf := block[loc.offset:]

	metaLen, n := binary.Uvarint(buf)
	buf = buf[n:]
	metaBytes := buf[:metaLen]
	buf = buf[metaLen:]

	metaDecoder := govarint.NewU64Base128Decoder(bytes.NewReader(metaBytes))
	numFields, err := metaDecoder.GetU64()
	if err != nil {
		return nil, ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "failed to decode stored document field count")
	}

	values := make([]StoredValue, 0, numFields)
	type fieldMeta struct {
		id  uint32
		typ schema.Type
		ln  uint64
	}
	metas := make([]fieldMeta, 0, numFields)
	for i := uint64(0); i < numFields; i++ {
		fieldID, err := metaDecoder.GetU64()
		if err != nil {
			return nil, ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "failed to decode stored field id")
		}
		typCode, err := metaDecoder.GetU64()
		if err != nil {
			return nil, ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "failed to decode stored field type")
		}
		ln, err := metaDecoder.GetU64()
		if err != nil {
			return nil, ftserrors.NewDataError(err, ftserrors.ErrorCodeSegmentCorrupted, "failed to decode stored field length")
		}
		metas = append(metas, fieldMeta{id: uint32(fieldID), typ: schema.Type(typCode), ln: ln})
	}
	for _, m := range metas {
		val := append([]byte(nil), buf[:m.ln]...)
		buf = buf[m.ln:]
		values = append(values, StoredValue{FieldID: m.id, Type: m.typ, Value: val})
	}
	return values, nil
}

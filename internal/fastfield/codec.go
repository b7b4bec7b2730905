// Package fastfield implements the columnar "fast field" store: bit-packed
// or linear-codec column values plus the multi-valued offset index. Fast fields are written in parallel with the inverted index
// from the same add-document stream but are otherwise disjoint from it.
package fastfield

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/nutmeg-labs/ember/ftserrors"
)

// CodecKind tags which u64 codec a column was encoded with.
type CodecKind uint8

const (
	// CodecBitpacked subtracts the column minimum and bit-packs the
	// residual to ceil(log2(max-min+1)) bits per value.
	CodecBitpacked CodecKind = iota
	// CodecLinear fits y ~= a*x + b and bit-packs the (typically smaller)
	// residuals.
	CodecLinear
)

// Column is a decoded, in-memory columnar store of one field's values for
// one segment, exposed as u64 rows (the order-preserving projection;
// callers decode back to the logical type using schema's Ordered*
// helpers).
type Column struct {
	codec    CodecKind
	min      uint64
	bits     uint8
	numVals  uint32
	data     []byte // tightly packed, bits-per-value rows
	linearA  float64
	linearB  float64
}

// NumVals returns the number of rows in the column.
func (c *Column) NumVals() uint32 { return c.numVals }

// GetVal returns the value at row.
func (c *Column) GetVal(row uint32) uint64 {
	residual := getBitpacked(c.data, c.bits, row)
	switch c.codec {
	case CodecLinear:
		predicted := int64(c.linearA*float64(row) + c.linearB)
		return uint64(predicted + zigzagDecode(residual))
	default:
		return c.min + residual
	}
}

// GetRange vector-copies [start, start+len(out)) into out.
func (c *Column) GetRange(start uint32, out []uint64) {
	for i := range out {
		out[i] = c.GetVal(start + uint32(i))
	}
}

func bitsNeeded(maxResidual uint64) uint8 {
	if maxResidual == 0 {
		return 0
	}
	return uint8(bits.Len64(maxResidual))
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// BuildBitpacked picks between the bitpacked and linear codecs by estimated
// output size and returns the smaller encoding.
func BuildBitpacked(values []uint64) *Column {
	if len(values) == 0 {
		return &Column{codec: CodecBitpacked, numVals: 0}
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	bitpackedBits := bitsNeeded(max - min)
	bitpackedSize := bitpackedCost(bitpackedBits, len(values))

	a, b := fitLinear(values)
	var maxAbsResidual uint64
	for i, v := range values {
		predicted := int64(a*float64(i) + b)
		residual := zigzagEncode(int64(v) - predicted)
		if residual > maxAbsResidual {
			maxAbsResidual = residual
		}
	}
	linearBits := bitsNeeded(maxAbsResidual)
	linearSize := bitpackedCost(linearBits, len(values)) + 16 // a, b stored as float64

	if linearSize < bitpackedSize {
		col := &Column{codec: CodecLinear, bits: linearBits, numVals: uint32(len(values)), linearA: a, linearB: b}
		col.data = packValues(values, linearBits, func(i int, v uint64) uint64 {
			predicted := int64(a*float64(i) + b)
			return zigzagEncode(int64(v) - predicted)
		})
		return col
	}

	col := &Column{codec: CodecBitpacked, min: min, bits: bitpackedBits, numVals: uint32(len(values))}
	col.data = packValues(values, bitpackedBits, func(_ int, v uint64) uint64 { return v - min })
	return col
}

func bitpackedCost(bitsPerValue uint8, n int) int {
	return (int(bitsPerValue)*n + 7) / 8
}

// fitLinear performs a simple least-squares fit of values against their
// row index, used as the "y ~= a*x + b" predictor for the linear codec.
func fitLinear(values []uint64) (a, b float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		y := float64(v)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	a = (n*sumXY - sumX*sumY) / denom
	b = (sumY - a*sumX) / n
	return a, b
}

func packValues(values []uint64, bitsPerValue uint8, residual func(i int, v uint64) uint64) []byte {
	if bitsPerValue == 0 {
		return nil
	}
	totalBits := int(bitsPerValue) * len(values)
	out := make([]byte, (totalBits+7)/8)
	var bitPos int
	for i, v := range values {
		setBitpacked(out, bitsPerValue, bitPos, residual(i, v))
		bitPos += int(bitsPerValue)
	}
	return out
}

func setBitpacked(data []byte, bitsPerValue uint8, bitPos int, value uint64) {
	for b := 0; b < int(bitsPerValue); b++ {
		if value&(1<<uint(b)) != 0 {
			pos := bitPos + b
			data[pos/8] |= 1 << uint(pos%8)
		}
	}
}

func getBitpacked(data []byte, bitsPerValue uint8, row uint32) uint64 {
	if bitsPerValue == 0 {
		return 0
	}
	bitPos := int(row) * int(bitsPerValue)
	var v uint64
	for b := 0; b < int(bitsPerValue); b++ {
		pos := bitPos + b
		if data[pos/8]&(1<<uint(pos%8)) != 0 {
			v |= 1 << uint(b)
		}
	}
	return v
}

// Serialize writes the column's header and packed data as a self-describing
// record: [codec:1 | bits:1 | numVals:4 LE | min:8 LE | linearA:8 LE |
// linearB:8 LE | data...].
func (c *Column) Serialize() []byte {
	header := make([]byte, 1+1+4+8+8+8)
	header[0] = byte(c.codec)
	header[1] = c.bits
	binary.LittleEndian.PutUint32(header[2:6], c.numVals)
	binary.LittleEndian.PutUint64(header[6:14], c.min)
	binary.LittleEndian.PutUint64(header[14:22], math.Float64bits(c.linearA))
	binary.LittleEndian.PutUint64(header[22:30], math.Float64bits(c.linearB))
	return append(header, c.data...)
}

// DeserializeColumn parses a record previously produced by Serialize.
func DeserializeColumn(data []byte) (*Column, error) {
	const headerLen = 1 + 1 + 4 + 8 + 8 + 8
	if len(data) < headerLen {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeSegmentCorrupted, "fast field column header truncated")
	}
	c := &Column{
		codec:   CodecKind(data[0]),
		bits:    data[1],
		numVals: binary.LittleEndian.Uint32(data[2:6]),
		min:     binary.LittleEndian.Uint64(data[6:14]),
		linearA: math.Float64frombits(binary.LittleEndian.Uint64(data[14:22])),
		linearB: math.Float64frombits(binary.LittleEndian.Uint64(data[22:30])),
	}
	c.data = data[headerLen:]
	return c, nil
}

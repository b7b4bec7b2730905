package segment

import (
	"encoding/binary"
	"math/bits"
)

// blockSize is the group size the postings/positions block codec operates
// on.
const blockSize = 128

// encodeFullBlock bit-packs exactly blockSize values (already delta
// encoded by the caller) to ceil(log2(max+1)) bits each, prefixed with the
// bit width.
func encodeFullBlock(values []uint64) []byte {
	var maxV uint64
	for _, v := range values {
		if v > maxV {
			maxV = v
		}
	}
	width := bitWidth(maxV)
	out := make([]byte, 1, 1+(int(width)*len(values)+7)/8)
	out[0] = width
	if width == 0 {
		return out
	}
	packed := make([]byte, (int(width)*len(values)+7)/8)
	var bitPos int
	for _, v := range values {
		for b := 0; b < int(width); b++ {
			if v&(1<<uint(b)) != 0 {
				pos := bitPos + b
				packed[pos/8] |= 1 << uint(pos%8)
			}
		}
		bitPos += int(width)
	}
	return append(out, packed...)
}

func decodeFullBlock(data []byte, n int) []uint64 {
	width := data[0]
	values := make([]uint64, n)
	if width == 0 {
		return values
	}
	packed := data[1:]
	var bitPos int
	for i := 0; i < n; i++ {
		var v uint64
		for b := 0; b < int(width); b++ {
			pos := bitPos + b
			if packed[pos/8]&(1<<uint(pos%8)) != 0 {
				v |= 1 << uint(b)
			}
		}
		values[i] = v
		bitPos += int(width)
	}
	return values
}

func fullBlockByteLen(values []uint64) int {
	var maxV uint64
	for _, v := range values {
		if v > maxV {
			maxV = v
		}
	}
	width := bitWidth(maxV)
	return 1 + (int(width)*len(values)+7)/8
}

func bitWidth(v uint64) byte {
	if v == 0 {
		return 0
	}
	return byte(bits.Len64(v))
}

// encodeTailVarint encodes the trailing < blockSize values as plain
// varints.
func encodeTailVarint(values []uint64) []byte {
	var out []byte
	var buf [binary.MaxVarintLen64]byte
	for _, v := range values {
		n := binary.PutUvarint(buf[:], v)
		out = append(out, buf[:n]...)
	}
	return out
}

func decodeTailVarint(data []byte, n int) []uint64 {
	values := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		v, k := binary.Uvarint(data)
		values = append(values, v)
		data = data[k:]
	}
	return values
}

// blockGroups splits values into groups of blockSize, the last possibly
// shorter.
func blockGroups(values []uint64) (full [][]uint64, tail []uint64) {
	for len(values) >= blockSize {
		full = append(full, values[:blockSize])
		values = values[blockSize:]
	}
	return full, values
}

package postings

import (
	"encoding/binary"

	"github.com/nutmeg-labs/ember/internal/arena"
)

// chunkHeaderSize is the on-arena header prefixing every chunk: an Addr to
// the next chunk (or arena.NullAddr) followed by the number of data bytes
// currently in use.
const chunkHeaderSize = 10

const (
	initialChunkCapacity = 16
	maxChunkCapacity     = 512
)

// chunkedList is a singly-linked list of arena chunks holding a
// varint-encoded byte stream. It is a fixed-size POD value, safe to embed directly in
// an arena-stored PerTermState.
type chunkedList struct {
	head    arena.Addr
	tail    arena.Addr
	tailLen uint16
	tailCap uint16
}

func nextChunkCapacity(cur int) int {
	doubled := cur * 2
	if doubled > maxChunkCapacity {
		return maxChunkCapacity
	}
	return doubled
}

func allocChunk(a *arena.Arena, capacity int) arena.Addr {
	addr := a.Allocate(chunkHeaderSize + capacity)
	header := a.Slice(addr, chunkHeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], uint64(arena.NullAddr))
	binary.LittleEndian.PutUint16(header[8:10], 0)
	return addr
}

func chunkNext(a *arena.Arena, addr arena.Addr) arena.Addr {
	header := a.Slice(addr, chunkHeaderSize)
	return arena.Addr(binary.LittleEndian.Uint64(header[0:8]))
}

func setChunkNext(a *arena.Arena, addr, next arena.Addr) {
	header := a.Slice(addr, 8)
	binary.LittleEndian.PutUint64(header, uint64(next))
}

func chunkLen(a *arena.Arena, addr arena.Addr) uint16 {
	header := a.Slice(addr+8, 2)
	return binary.LittleEndian.Uint16(header)
}

func setChunkLen(a *arena.Arena, addr arena.Addr, n uint16) {
	header := a.Slice(addr+8, 2)
	binary.LittleEndian.PutUint16(header, n)
}

func chunkData(a *arena.Arena, addr arena.Addr, capacity int) []byte {
	return a.Slice(addr+chunkHeaderSize, capacity)
}

// appendVarint appends value's unsigned varint encoding to list, growing
// onto a fresh, larger chunk when the current tail is full, and returns
// the (possibly updated) list header.
func appendVarint(a *arena.Arena, list chunkedList, value uint64) chunkedList {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], value)
	encoded := buf[:n]

	if list.tailCap == 0 {
		addr := allocChunk(a, initialChunkCapacity)
		list.head = addr
		list.tail = addr
		list.tailLen = 0
		list.tailCap = initialChunkCapacity
	}

	if int(list.tailLen)+n > int(list.tailCap) {
		capacity := nextChunkCapacity(int(list.tailCap))
		for capacity < n {
			capacity = nextChunkCapacity(capacity)
		}
		newAddr := allocChunk(a, capacity)
		setChunkNext(a, list.tail, newAddr)
		list.tail = newAddr
		list.tailLen = 0
		list.tailCap = uint16(capacity)
	}

	data := chunkData(a, list.tail, int(list.tailCap))
	copy(data[list.tailLen:], encoded)
	list.tailLen += uint16(n)
	setChunkLen(a, list.tail, list.tailLen)
	return list
}

// readVarints decodes every value appended to list, in append order.
func readVarints(a *arena.Arena, list chunkedList) []uint64 {
	var out []uint64
	if list.tailCap == 0 {
		return out
	}
	addr := list.head
	for !addr.IsNull() {
		length := chunkLen(a, addr)
		data := a.Slice(addr+chunkHeaderSize, int(length))
		for len(data) > 0 {
			v, n := binary.Uvarint(data)
			out = append(out, v)
			data = data[n:]
		}
		addr = chunkNext(a, addr)
	}
	return out
}

package arena

import (
	"bytes"
	"encoding/binary"
)

// keyValue is one bucket slot: a handle to the inline [len|key|value]
// record in the arena, the key's hash (kept so most collisions are
// rejected without re-reading the arena), and the 0-based insertion-order
// id handed back to callers that need to correlate auxiliary per-term
// state.
type keyValue struct {
	keyValueAddr Addr
	hash         uint32
	unorderedID  uint32
}

func (kv keyValue) isEmpty() bool { return kv.keyValueAddr.IsNull() }

// HashMap maps arbitrary-length byte keys to a fixed-size value V, with
// both keys and values stored inline in an Arena rather than the Go heap.
// Buckets form a power-of-two flat table probed quadratically.
type HashMap[V any] struct {
	table    []keyValue
	arena    *Arena
	mask     uint32
	occupied []int
	length   uint32
}

// NewHashMap creates a HashMap whose table is sized to the greatest power
// of two less than or equal to tableSize (tableSize must be > 0).
func NewHashMap[V any](tableSize int) *HashMap[V] {
	if tableSize <= 0 {
		tableSize = 1
	}
	size := computePreviousPowerOfTwo(tableSize)
	table := make([]keyValue, size)
	for i := range table {
		table[i].keyValueAddr = NullAddr
	}
	return &HashMap[V]{
		table: table,
		arena: New(),
		mask:  uint32(size - 1),
	}
}

// computePreviousPowerOfTwo returns the greatest power of two <= n.
func computePreviousPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

// Len returns the number of distinct keys stored.
func (m *HashMap[V]) Len() int { return int(m.length) }

// MemUsage returns the arena's allocated byte count plus the bucket table
// size, for the writer's memory-budget accounting.
func (m *HashMap[V]) MemUsage() int {
	return m.arena.Len() + len(m.table)*24
}

func (m *HashMap[V]) getKeyValue(addr Addr) (key []byte, valueAddr Addr) {
	data := m.arena.SliceFrom(addr)
	keyLen := int(binary.LittleEndian.Uint16(data[0:2]))
	key = data[2 : 2+keyLen]
	return key, addr.offset(uint32(2 + keyLen))
}

func (addr Addr) offset(n uint32) Addr {
	return addr + Addr(n)
}

func (m *HashMap[V]) isSaturated() bool {
	return uint32(len(m.occupied))*3 >= uint32(len(m.table))
}

func (m *HashMap[V]) resize() {
	newLen := len(m.table) * 2
	mask := uint32(newLen - 1)
	newTable := make([]keyValue, newLen)
	for i := range newTable {
		newTable[i].keyValueAddr = NullAddr
	}
	oldTable := m.table
	m.table = newTable
	m.mask = mask
	for i, oldPos := range m.occupied {
		kv := oldTable[oldPos]
		h := kv.hash
		var probeI uint32
		for {
			probeI++
			bucket := (h + probeI) & mask
			if m.table[bucket].isEmpty() {
				m.table[bucket] = kv
				m.occupied[i] = int(bucket)
				break
			}
		}
	}
}

func (m *HashMap[V]) setBucket(hash uint32, keyValueAddr Addr, bucket int) uint32 {
	m.occupied = append(m.occupied, bucket)
	id := m.length
	m.length++
	m.table[bucket] = keyValue{keyValueAddr: keyValueAddr, hash: hash, unorderedID: id}
	return id
}

// Get returns the value stored for key, if present.
func (m *HashMap[V]) Get(key []byte) (V, bool) {
	var zero V
	hash := HashKey(key)
	var probeI uint32
	for {
		probeI++
		bucket := (hash + probeI) & m.mask
		kv := m.table[bucket]
		if kv.isEmpty() {
			return zero, false
		}
		if kv.hash == hash {
			storedKey, valueAddr := m.getKeyValue(kv.keyValueAddr)
			if bytes.Equal(storedKey, key) {
				return Read[V](m.arena, valueAddr), true
			}
		}
	}
}

// MutateOrCreate probes until it finds key's bucket (creating one if
// absent) and invokes updater with the previous value (or the zero value
// and found=false on first occurrence), storing its return value in
// place. It returns the key's dense, 0-based unordered id.
func (m *HashMap[V]) MutateOrCreate(key []byte, updater func(prev V, found bool) V) uint32 {
	if m.isSaturated() {
		m.resize()
	}
	hash := HashKey(key)
	var probeI uint32
	for {
		probeI++
		bucket := (hash + probeI) & m.mask
		kv := m.table[bucket]
		if kv.isEmpty() {
			var zero V
			val := updater(zero, false)
			numBytes := 2 + len(key) + int(sizeOf[V]())
			keyAddr := m.arena.Allocate(numBytes)
			data := m.arena.Slice(keyAddr, numBytes)
			binary.LittleEndian.PutUint16(data[0:2], uint16(len(key)))
			copy(data[2:2+len(key)], key)
			valueAddr := keyAddr.offset(uint32(2 + len(key)))
			Write(m.arena, valueAddr, val)
			return m.setBucket(hash, keyAddr, int(bucket))
		}
		if kv.hash == hash {
			storedKey, valueAddr := m.getKeyValue(kv.keyValueAddr)
			if bytes.Equal(storedKey, key) {
				prev := Read[V](m.arena, valueAddr)
				newVal := updater(prev, true)
				Write(m.arena, valueAddr, newVal)
				return kv.unorderedID
			}
		}
	}
}

// Entry is one (key, value) pair yielded by Iter, in insertion order.
type Entry[V any] struct {
	Key         []byte
	Value       V
	UnorderedID uint32
}

// Iter returns every entry in insertion (unordered-id) order, the order
// the segment writer drains accumulators in before re-sorting by key
// bytes.
func (m *HashMap[V]) Iter() []Entry[V] {
	entries := make([]Entry[V], 0, len(m.occupied))
	for _, bucket := range m.occupied {
		kv := m.table[bucket]
		key, valueAddr := m.getKeyValue(kv.keyValueAddr)
		entries = append(entries, Entry[V]{
			Key:         key,
			Value:       Read[V](m.arena, valueAddr),
			UnorderedID: kv.unorderedID,
		})
	}
	return entries
}

func sizeOf[V any]() uintptr {
	var v V
	return sizeOfValue(v)
}

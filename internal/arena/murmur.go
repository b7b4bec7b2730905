package arena

import "encoding/binary"

// murmurSeed matches the fixed seed used throughout the indexing path so
// that the same key always hashes the same way across the arena hash map
// and the JSON term writer's per-path position-gap map.
const murmurSeed uint32 = 0

// Murmur2 is the 32-bit MurmurHash2 (Austin Appleby, public domain), the
// hash used by the arena hash map's bucket probing.
func Murmur2(data []byte, seed uint32) uint32 {
	const m = 0x5bd1e995
	const r = 24

	h := seed ^ uint32(len(data))

	for len(data) >= 4 {
		k := binary.LittleEndian.Uint32(data)
		k *= m
		k ^= k >> r
		k *= m

		h *= m
		h ^= k

		data = data[4:]
	}

	switch len(data) {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15

	return h
}

// HashKey hashes a key with the package's fixed seed.
func HashKey(key []byte) uint32 {
	return Murmur2(key, murmurSeed)
}

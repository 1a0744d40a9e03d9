package zrank

import (
	"hash"
	"hash/fnv"

	"github.com/pierrec/xxHash/xxHash32"
	"github.com/twmb/murmur3"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BLOOM FILTER: Negative-Lookup Fast Path
// ═══════════════════════════════════════════════════════════════════════════════
// The Store registers every member it has ever seen with this filter. A
// lookup for a member the filter does not recognize can be answered "absent"
// without consulting any board; a "maybe" falls through to the exact path.
//
// The filter is ADD-ONLY. Removing a member from a board does not clear its
// bits - clearing would also clear bits shared with other members. That only
// ever over-approximates membership, which is the safe direction: a stale
// "maybe" costs one map lookup, a false "definitely not" would lose data.
//
// Three independent hash functions spread each member across the bit array;
// a member is "maybe present" only when all three of its bits are set.
// ═══════════════════════════════════════════════════════════════════════════════

// defaultFilterBytes sizes the Store's filter: 64 KiB = 524288 bits.
const defaultFilterBytes = 1 << 16

// filterSeed keeps the seeded hashers deterministic across instances.
const filterSeed = 0x9e3779b9

// bloomFilter is not safe for concurrent use on its own; the Store's mutex
// serializes access to it.
type bloomFilter struct {
	filter  []uint8
	size    uint32
	hashers []hash.Hash32
}

func newBloomFilter(size uint32) *bloomFilter {
	return &bloomFilter{
		filter: make([]uint8, size),
		size:   size,
		hashers: []hash.Hash32{
			murmur3.SeedNew32(filterSeed),
			xxHash32.New(filterSeed),
			fnv.New32(),
		},
	}
}

// hashOf runs one hasher over the data and resets it for the next call.
func hashOf(hasher hash.Hash32, data string) uint32 {
	hasher.Write([]byte(data))
	sum := hasher.Sum32()
	hasher.Reset()
	return sum
}

// add sets the member's bit for each hash function.
//
// The filter stores bits, not bytes: hash%(size*8) picks a bit index, then
// byteIdx/bitIdx locate it within the byte array.
func (bf *bloomFilter) add(member string) {
	for _, hasher := range bf.hashers {
		hashIdx := hashOf(hasher, member) % (bf.size * 8)
		byteIdx := hashIdx / 8
		bitIdx := hashIdx % 8
		bf.filter[byteIdx] |= 1 << bitIdx
	}
}

// mayContain reports whether the member MIGHT have been added. A false
// result is definitive; a true result still needs the exact lookup.
func (bf *bloomFilter) mayContain(member string) bool {
	for _, hasher := range bf.hashers {
		hashIdx := hashOf(hasher, member) % (bf.size * 8)
		byteIdx := hashIdx / 8
		bitIdx := hashIdx % 8
		if bf.filter[byteIdx]&(1<<bitIdx) == 0 {
			return false
		}
	}
	return true
}

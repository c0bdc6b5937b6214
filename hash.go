// Hash algorithm implementations feeding each index's Bloom pre-check.
//
// Three algorithms are supported, selectable via Config.HashAlgorithm:
// xxh3 (fastest, default), FNV-1a (no external dependency, used as the
// Bloom filter's second hash for double hashing) and blake2b (best
// distribution).
package isam

import (
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Hash algorithm constants.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
	AlgBlake2b = 3 // Best distribution
)

// hash64 reduces arbitrary key bytes to a 64-bit digest using the
// selected algorithm.
func hash64(b []byte, alg int) uint64 {
	switch alg {
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
		h.Write(b)
		sum := h.Sum(nil)
		return getUint64(sum)
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(b)
		return h.Sum64()
	default: // AlgXXHash3
		return xxh3.Hash(b)
	}
}

// fnv32 is the Bloom filter's fixed second hash for double hashing,
// independent of Config.HashAlgorithm (paired with the primary hash
// in bloom.go's positions()).
func fnv32(b []byte) uint32 {
	h := fnv.New32a()
	h.Write(b)
	return h.Sum32()
}

// Package bloom implements a standard Bloom filter over byte-slice keys,
// used to build the per-chunk filters the maintenance scheduler
// constructs via lsm.Operations.BuildBloom.
//
// No example repository in the retrieval pack pulls in a dedicated Bloom
// filter library, and there is no clear ecosystem-standard choice the way
// there is for logging or metrics; this package is intentionally built on
// the standard library's hash/fnv and math/bits, the same pairing a
// from-scratch Go Bloom filter implementation would reach for.
package bloom

import (
	"hash/fnv"
	"math"
	"math/bits"
)

// Filter is a fixed-size Bloom filter sized at construction for an
// expected element count and target false-positive rate.
type Filter struct {
	bits []uint64
	m    uint64 // number of bits
	k    uint64 // number of hash functions
}

// New builds a Filter sized for n expected elements at false-positive
// rate fpRate (e.g. 0.01 for 1%).
func New(n int, fpRate float64) *Filter {
	if n < 1 {
		n = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}

	m := optimalBits(n, fpRate)
	k := optimalHashCount(m, n)

	return &Filter{
		bits: make([]uint64, (m+63)/64),
		m:    uint64(m),
		k:    uint64(k),
	}
}

func optimalBits(n int, fpRate float64) int {
	m := -float64(n) * math.Log(fpRate) / (math.Ln2 * math.Ln2)
	if m < 64 {
		m = 64
	}
	return int(math.Ceil(m))
}

func optimalHashCount(m, n int) int {
	k := math.Round(float64(m) / float64(n) * math.Ln2)
	if k < 1 {
		k = 1
	}
	return int(k)
}

// Add inserts key into the filter.
func (f *Filter) Add(key []byte) {
	h1, h2 := hashPair(key)
	for i := uint64(0); i < f.k; i++ {
		f.setBit(f.index(h1, h2, i))
	}
}

// Test reports whether key may have been added. False positives are
// possible per the configured false-positive rate; false negatives are
// not.
func (f *Filter) Test(key []byte) bool {
	h1, h2 := hashPair(key)
	for i := uint64(0); i < f.k; i++ {
		if !f.getBit(f.index(h1, h2, i)) {
			return false
		}
	}
	return true
}

// index computes the i-th bit position using Kirsch-Mitzenmacher double
// hashing: h1 + i*h2 mod m, avoiding k independent hash computations.
func (f *Filter) index(h1, h2, i uint64) uint64 {
	return (h1 + i*h2) % f.m
}

func (f *Filter) setBit(pos uint64) {
	f.bits[pos/64] |= 1 << (pos % 64)
}

func (f *Filter) getBit(pos uint64) bool {
	return f.bits[pos/64]&(1<<(pos%64)) != 0
}

// hashPair derives two independent 64-bit hashes of key from FNV-1 and
// FNV-1a, then spreads the second through bits.RotateLeft so the two
// aren't trivially related for keys that happen to collide under one
// variant.
func hashPair(key []byte) (uint64, uint64) {
	h1 := fnv.New64a()
	h1.Write(key)
	h2 := fnv.New64()
	h2.Write(key)
	return h1.Sum64(), bits.RotateLeft64(h2.Sum64(), 17)
}

// Bytes serializes the filter's bit array and parameters for storage
// alongside a chunk.
func (f *Filter) Bytes() []byte {
	out := make([]byte, 16+len(f.bits)*8)
	putUint64(out[0:8], f.m)
	putUint64(out[8:16], f.k)
	for i, w := range f.bits {
		putUint64(out[16+i*8:16+i*8+8], w)
	}
	return out
}

// FromBytes deserializes a filter previously produced by Bytes.
func FromBytes(data []byte) *Filter {
	if len(data) < 16 {
		return &Filter{bits: []uint64{0}, m: 64, k: 1}
	}
	m := getUint64(data[0:8])
	k := getUint64(data[8:16])
	words := (len(data) - 16) / 8
	out := make([]uint64, words)
	for i := 0; i < words; i++ {
		out[i] = getUint64(data[16+i*8 : 16+i*8+8])
	}
	return &Filter{bits: out, m: m, k: k}
}

func putUint64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func getUint64(src []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(src[i]) << (8 * i)
	}
	return v
}

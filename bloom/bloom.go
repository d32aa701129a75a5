// Package bloom implements the double-hashing Bloom filter attached to a
// static hash store: a parameterized bit array that supports in-place add,
// membership test, serialization to/from a mapped byte region, and online
// growth. False positives are permitted; false negatives are not.
package bloom

import (
	"math"

	"golang.org/x/crypto/blake2b"
)

// digestSize is the width of the BLAKE2b digest used for the filter's
// double-hashing construction — 16 bytes, split into two u64 halves.
const digestSize = 16

// Filter is a growable Bloom filter whose bit array is a raw byte slice,
// so it can be copied verbatim into (and reloaded verbatim from) a
// memory-mapped file region.
type Filter struct {
	bits []byte
	m    uint64 // bit count; always 8*len(bits)
	k    uint64 // hash count, fixed at construction
}

// New builds a filter sized for an item-count hint n and a target
// false-positive rate p. n is clamped to at least 1. m and k follow the
// standard optimal-size formulas:
//
//	m = ceil(-n*ln(p) / (ln 2)^2)
//	k = ceil((m/n) * ln 2)
//
// m is then rounded up to 8*len(bits), the same value FromBytes derives
// when the array is reloaded.
func New(n uint64, p float64) *Filter {
	if n < 1 {
		n = 1
	}

	nf := float64(n)
	m := uint64(math.Ceil(-nf * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m < 1 {
		m = 1
	}
	k := uint64(math.Ceil((float64(m) / nf) * math.Ln2))
	if k < 1 {
		k = 1
	}

	bits := make([]byte, (m+7)/8)
	return &Filter{
		bits: bits,
		m:    uint64(len(bits)) * 8,
		k:    k,
	}
}

// FromBytes reconstructs a filter from a previously serialized bit array.
// m is recomputed as 8*len(bits), per the on-disk format's convention that
// a reopened store doesn't persist m/k directly — only the raw bytes.
func FromBytes(bits []byte, k uint64) *Filter {
	b := make([]byte, len(bits))
	copy(b, bits)
	return &Filter{
		bits: b,
		m:    uint64(len(b)) * 8,
		k:    k,
	}
}

// K reports the hash count New(n, p) would pick, without allocating a bit
// array. A store uses this to derive its fixed hash count purely from
// configuration (capacity hint + false-positive target), since the on-disk
// format never persists k directly — only the raw bit array.
func K(n uint64, p float64) uint64 {
	return New(n, p).K()
}

// CapacityBytes reports the byte length of the bit array New(n, p) would
// allocate, without keeping the filter around. A store uses this to size
// its reserved, on-disk Bloom region at creation time.
func CapacityBytes(n uint64, p float64) uint32 {
	return uint32(len(New(n, p).bits))
}

// Bits returns the filter's current byte array. The caller must not retain
// a reference across a subsequent Add, which may grow and reallocate it.
func (f *Filter) Bits() []byte { return f.bits }

// K returns the fixed hash count.
func (f *Filter) K() uint64 { return f.k }

// hashes returns the two BLAKE2b-derived halves used for double hashing.
func hashes(key []byte) (h1, h2 uint64) {
	h, err := blake2b.New(digestSize, nil)
	if err != nil {
		panic("shs/bloom: blake2b init: " + err.Error())
	}
	h.Write(key)
	sum := h.Sum(nil)
	h1 = uint64(sum[0]) | uint64(sum[1])<<8 | uint64(sum[2])<<16 | uint64(sum[3])<<24 |
		uint64(sum[4])<<32 | uint64(sum[5])<<40 | uint64(sum[6])<<48 | uint64(sum[7])<<56
	h2 = uint64(sum[8]) | uint64(sum[9])<<8 | uint64(sum[10])<<16 | uint64(sum[11])<<24 |
		uint64(sum[12])<<32 | uint64(sum[13])<<40 | uint64(sum[14])<<48 | uint64(sum[15])<<56
	return h1, h2
}

// bitIndex computes the i-th bit index of the double-hashing construction.
func bitIndex(h1, h2 uint64, i, m uint64) uint64 {
	return (h1 + i*h2) % m
}

// growTo extends the bit array with zero bytes so that byteIndex is valid,
// then updates m to match the new length. Growth is one-directional: the
// array never shrinks.
func (f *Filter) growTo(byteIndex uint64) {
	if byteIndex < uint64(len(f.bits)) {
		return
	}
	grown := make([]byte, byteIndex+1)
	copy(grown, f.bits)
	f.bits = grown
	f.m = uint64(len(f.bits)) * 8
}

// Add sets all k bits for key, growing the bit array online if a computed
// index falls beyond its current length.
func (f *Filter) Add(key []byte) {
	h1, h2 := hashes(key)
	for i := uint64(0); i < f.k; i++ {
		idx := bitIndex(h1, h2, i, f.m)
		byteIdx := idx / 8
		f.growTo(byteIdx)
		f.bits[byteIdx] |= 1 << (idx % 8)
	}
}

// Test reports whether key might be a member (true) or is definitely not
// (false). A true result can be a false positive; false is never a false
// negative for any key previously Add-ed to this exact filter.
func (f *Filter) Test(key []byte) bool {
	h1, h2 := hashes(key)
	for i := uint64(0); i < f.k; i++ {
		idx := bitIndex(h1, h2, i, f.m)
		byteIdx := idx / 8
		if byteIdx >= uint64(len(f.bits)) {
			return false
		}
		if f.bits[byteIdx]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// Hash64 is the store's own key-hashing primitive: an 8-byte BLAKE2b
// digest interpreted as a little-endian u64. It is deliberately the same
// primitive the Bloom filter uses (just a different output width), per
// spec §4.4.
func Hash64(key []byte) uint64 {
	h, err := blake2b.New(8, nil)
	if err != nil {
		panic("shs/bloom: blake2b init: " + err.Error())
	}
	h.Write(key)
	sum := h.Sum(nil)
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(sum[i]) << (8 * i)
	}
	return v
}

// Package shs implements a persistent, append-only, on-disk hash map.
//
// A store is a single memory-mapped file: a fixed header, a bucket table of
// chain heads, a reserved Bloom filter region, and an ever-growing entries
// region. Keys are fixed-size; values are arbitrary-length. Collisions are
// resolved with LIFO chains linked through entry headers, so the newest
// put for a key always shadows older ones. There is no deletion, no
// in-place update, and no range scan by key order — see the Bloom filter
// in the bloom subpackage for the fast-negative-lookup half of the design.
package shs

import (
	"encoding/binary"
	"fmt"
)

const (
	// Magic identifies the file format. A mismatch is always fatal.
	Magic = "SHS1"

	// CurrentVersionMinor is written when Open creates a store and is the highest minor
	// version this package knows how to exploit fully. Higher minor
	// versions found on open are still read; only the fixed fields are
	// relied on.
	CurrentVersionMinor uint16 = 1

	// HeaderSize is the fixed on-disk size of the header, in bytes.
	HeaderSize = 24

	// BucketSlotSize is the size of one bucket-table entry (a file offset).
	BucketSlotSize = 8

	// EntryHeaderSize is the fixed portion of an entry: next_offset(8) +
	// key_hash(8) + value_size(4).
	EntryHeaderSize = 20

	// DefaultSegmentCount is used when Open creates a store and the caller doesn't
	// override it with WithSegmentCount.
	DefaultSegmentCount = 256

	// DefaultBloomFP is the default target false-positive rate.
	DefaultBloomFP = 0.01

	// DefaultBloomCapacityHint is the item-count hint used to size the
	// reserved, on-disk Bloom region at creation time (policy (A) of
	// spec §4.3.4/§9). It matches the estimate the teacher's own SST
	// writer used for its Bloom filter (bloom.NewWithEstimates(100000, 0.01)).
	DefaultBloomCapacityHint = 100_000
)

// header is the in-memory view of the 24-byte on-disk header.
//
//	offset 0:  magic          [4]byte
//	offset 4:  versionMinor   uint16
//	offset 6:  keySize        uint16
//	offset 8:  segmentCount   uint32
//	offset 12: bloomBits      uint64 // byte length of the Bloom array in use
//	offset 20: bloomCapacity  uint32 // reserved byte capacity of the Bloom region
type header struct {
	versionMinor  uint16
	keySize       uint16
	segmentCount  uint32
	bloomBits     uint64
	bloomCapacity uint32
}

func (h *header) encode(buf []byte) {
	if len(buf) < HeaderSize {
		panic("shs: header buffer too small")
	}
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.versionMinor)
	binary.LittleEndian.PutUint16(buf[6:8], h.keySize)
	binary.LittleEndian.PutUint32(buf[8:12], h.segmentCount)
	binary.LittleEndian.PutUint64(buf[12:20], h.bloomBits)
	binary.LittleEndian.PutUint32(buf[20:24], h.bloomCapacity)
}

func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("shs: short header: %d bytes", len(buf))
	}
	if string(buf[0:4]) != Magic {
		return nil, fmt.Errorf("%w: got magic %q", ErrInvalidFile, buf[0:4])
	}
	h := &header{
		versionMinor:  binary.LittleEndian.Uint16(buf[4:6]),
		keySize:       binary.LittleEndian.Uint16(buf[6:8]),
		segmentCount:  binary.LittleEndian.Uint32(buf[8:12]),
		bloomBits:     binary.LittleEndian.Uint64(buf[12:20]),
		bloomCapacity: binary.LittleEndian.Uint32(buf[20:24]),
	}
	return h, nil
}

// bucketTableSize is the byte size of the bucket table for segmentCount segments.
func bucketTableSize(segmentCount uint32) int64 {
	return int64(segmentCount) * BucketSlotSize
}

// bucketOffset is the file offset of the bucket-head slot for segment.
func bucketOffset(segment uint32) int64 {
	return HeaderSize + int64(segment)*BucketSlotSize
}

// bloomOffset is the file offset where the Bloom region begins.
func bloomOffset(segmentCount uint32) int64 {
	return HeaderSize + bucketTableSize(segmentCount)
}

// dataOffset is the file offset where the entries region begins: right
// after the reserved Bloom capacity, never right after the Bloom filter's
// current logical length. This is what makes policy (A) hold — the entries
// region never moves once the file is created.
func dataOffset(segmentCount uint32, bloomCapacity uint32) int64 {
	return bloomOffset(segmentCount) + int64(bloomCapacity)
}

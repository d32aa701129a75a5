package shs

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"go.uber.org/zap"

	"github.com/candanumut/shs/bloom"
)

// Store is a single memory-mapped file backing a fixed-key-size,
// variable-value-size hash map. All exported methods are safe for
// concurrent use by multiple goroutines.
type Store struct {
	path          string
	file          *os.File
	keySize       int
	segmentCount  uint32
	bloomCapacity uint32

	// mapMu guards the identity of data: any goroutine dereferencing the
	// current mapping (to read/write bytes or take its address) holds at
	// least RLock; growMappingLocked, which unmaps/truncates/remaps, holds
	// Lock. It is not the bucket-level contention point — that's segLocks
	// plus the OS byte-range lock — it only protects against a racy read
	// of the slice header itself while another goroutine swaps it out.
	mapMu sync.RWMutex
	data  mmap.MMap

	bloomMu     sync.RWMutex
	bloomFilter *bloom.Filter

	// flushMu serializes Flush/Close so two concurrent flushes don't
	// interleave their header/Bloom writes.
	flushMu sync.Mutex

	// segLocks serializes put calls against the same segment within this
	// process. Combined with the OS byte-range lock acquired on the
	// bucket-head slot, this is what makes concurrent puts to different
	// segments independent (spec invariant 6) while puts to the same
	// segment, in-process or cross-process, never race.
	segLocks []sync.Mutex

	dirty atomic.Bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	logger *zap.Logger
}

// Open opens the store at path, creating it if it doesn't exist. keySize is
// the fixed key length in bytes; it must match the header's key_size field
// when reopening an existing file, or Open returns ErrKeySizeMismatch.
func Open(path string, keySize int, opts ...Option) (*Store, error) {
	if keySize <= 0 {
		return nil, fmt.Errorf("shs: key_size must be positive, got %d", keySize)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	_, statErr := os.Stat(path)
	switch {
	case os.IsNotExist(statErr):
		return create(path, keySize, o)
	case statErr != nil:
		return nil, fmt.Errorf("shs: stat %s: %w", path, statErr)
	default:
		return openExisting(path, keySize, o)
	}
}

func create(path string, keySize int, o options) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shs: create %s: %w", path, err)
	}

	segmentCount := o.segmentCount
	if segmentCount == 0 {
		segmentCount = DefaultSegmentCount
	}
	bloomCapacity := bloom.CapacityBytes(o.bloomCapacityHint, o.bloomFP)

	dataOff := dataOffset(segmentCount, bloomCapacity)
	if err := f.Truncate(dataOff); err != nil {
		f.Close()
		return nil, fmt.Errorf("shs: truncate %s: %w", path, err)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shs: mmap %s: %w", path, err)
	}

	// Size m/k directly from the store's real capacity configuration,
	// not a literal tiny bootstrap hint: m must be self-consistent with
	// the persisted byte array from the very first put, or a later
	// growth event that changes m would recompute different bit
	// positions for an already-added key and falsely "lose" it (see
	// DESIGN.md's resolution of the initial-Bloom-sizing open question).
	// Since bloomCapacity was already sized from the same (hint, fp), the
	// filter's byte length matches the reserved region exactly.
	bf := bloom.New(o.bloomCapacityHint, o.bloomFP)

	hdr := &header{
		versionMinor:  CurrentVersionMinor,
		keySize:       uint16(keySize),
		segmentCount:  segmentCount,
		bloomBits:     uint64(len(bf.Bits())),
		bloomCapacity: bloomCapacity,
	}
	hdr.encode(data[0:HeaderSize])
	copy(data[bloomOffset(segmentCount):], bf.Bits())

	s := &Store{
		path:          path,
		file:          f,
		keySize:       keySize,
		segmentCount:  segmentCount,
		bloomCapacity: bloomCapacity,
		data:          data,
		bloomFilter:   bf,
		segLocks:      make([]sync.Mutex, segmentCount),
		logger:        o.logger,
	}
	s.dirty.Store(true)

	s.logger.Info("shs: created store",
		zap.String("path", path),
		zap.Int("key_size", keySize),
		zap.Uint32("segment_count", segmentCount),
		zap.Uint32("bloom_capacity_bytes", bloomCapacity),
	)

	return s, nil
}

func openExisting(path string, keySize int, o options) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shs: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shs: stat %s: %w", path, err)
	}
	if info.Size() < HeaderSize {
		f.Close()
		return nil, fmt.Errorf("%w: file shorter than header", ErrInvalidFile)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shs: mmap %s: %w", path, err)
	}

	hdr, err := decodeHeader(data[0:HeaderSize])
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}

	if int(hdr.keySize) != keySize {
		data.Unmap()
		f.Close()
		return nil, fmt.Errorf("%w: file has key_size=%d, opened with %d", ErrKeySizeMismatch, hdr.keySize, keySize)
	}

	if hdr.versionMinor > CurrentVersionMinor {
		o.logger.Warn("shs: file has a newer minor version than this build knows; reading only the fixed fields",
			zap.Uint16("file_version_minor", hdr.versionMinor),
			zap.Uint16("known_version_minor", CurrentVersionMinor),
		)
	}

	bOff := bloomOffset(hdr.segmentCount)
	if bOff+int64(hdr.bloomBits) > int64(len(data)) {
		data.Unmap()
		f.Close()
		return nil, fmt.Errorf("%w: bloom region runs past end of file", ErrInvalidFile)
	}

	loaded := make([]byte, hdr.bloomBits)
	copy(loaded, data[bOff:bOff+int64(hdr.bloomBits)])

	k := bloom.K(o.bloomCapacityHint, o.bloomFP)
	bf := bloom.FromBytes(loaded, k)

	s := &Store{
		path:          path,
		file:          f,
		keySize:       keySize,
		segmentCount:  hdr.segmentCount,
		bloomCapacity: hdr.bloomCapacity,
		data:          data,
		bloomFilter:   bf,
		segLocks:      make([]sync.Mutex, hdr.segmentCount),
		logger:        o.logger,
	}

	s.logger.Info("shs: opened store",
		zap.String("path", path),
		zap.Uint32("segment_count", hdr.segmentCount),
		zap.Uint64("bloom_bits", hdr.bloomBits),
	)

	return s, nil
}

// Get looks up key. A false second return with a nil error means key is
// definitely absent. A non-nil error only ever comes from the store being
// closed — a corrupt chain is logged and treated as a miss, never returned
// as an error, since the Bloom filter already promises no false negatives
// for anything actually put.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	// Unlike Put, Get never rejects a key of the wrong length: it simply
	// won't match anything (the Bloom test or the hash/key comparison in
	// the chain walk fails on its own), per spec.

	s.bloomMu.RLock()
	maybe := s.bloomFilter.Test(key)
	s.bloomMu.RUnlock()
	if !maybe {
		return nil, false, nil
	}

	h := bloom.Hash64(key)
	segment := uint32(h % uint64(s.segmentCount))

	cur := int64(s.loadHead(segment))
	prev := int64(math.MaxInt64)

	for cur != 0 {
		if cur >= prev {
			s.logger.Warn("shs: corrupt chain: non-decreasing offset, treating as miss",
				zap.Int64("offset", cur))
			return nil, false, nil
		}

		eh, storedKey, value, err := s.entryAt(cur)
		if err != nil {
			s.logger.Warn("shs: corrupt chain: entry out of bounds, treating as miss",
				zap.Int64("offset", cur), zap.Error(err))
			return nil, false, nil
		}

		if eh.keyHash == h && bytes.Equal(storedKey, key) {
			return value, true, nil
		}

		prev = cur
		cur = int64(eh.next)
	}

	return nil, false, nil
}

// Put appends a new entry for key, linking it in front of whatever
// currently heads key's segment chain. An older entry for the same key is
// never removed; it's simply shadowed by the new head (spec invariant 2).
func (s *Store) Put(key, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(key) != s.keySize {
		return fmt.Errorf("%w: got %d want %d", ErrKeySizeMismatch, len(key), s.keySize)
	}

	h := bloom.Hash64(key)
	segment := uint32(h % uint64(s.segmentCount))

	s.segLocks[segment].Lock()
	defer s.segLocks[segment].Unlock()

	unlockRange, err := lockRange(s.file, bucketOffset(segment), BucketSlotSize)
	if err != nil {
		return fmt.Errorf("shs: acquire segment lock: %w", err)
	}
	defer func() {
		if uerr := unlockRange(); uerr != nil {
			s.logger.Warn("shs: release segment lock", zap.Error(uerr))
		}
	}()

	oldHead := s.loadHead(segment)
	entryBytes := encodeEntry(oldHead, h, key, value)

	s.mapMu.Lock()
	eof := int64(len(s.data))
	if err := s.growMappingLocked(eof + int64(len(entryBytes))); err != nil {
		s.mapMu.Unlock()
		return fmt.Errorf("shs: grow mapping: %w", err)
	}
	copy(s.data[eof:], entryBytes)
	s.mapMu.Unlock()

	s.storeHead(segment, uint64(eof))

	s.bloomMu.Lock()
	s.bloomFilter.Add(key)
	s.bloomMu.Unlock()

	s.dirty.Store(true)
	return nil
}

// Flush persists the current bucket table (already written through the
// mapping on every put), the Bloom filter's bit array, and the header's
// bloom_bits field, then msyncs the mapping. It's a no-op if nothing is
// dirty. Returns ErrBloomCapacityExceeded if the filter has grown past the
// region reserved for it at creation — see header.bloomCapacity and
// dataOffset.
func (s *Store) Flush() error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if !s.dirty.Load() {
		return nil
	}

	s.bloomMu.RLock()
	bits := make([]byte, len(s.bloomFilter.Bits()))
	copy(bits, s.bloomFilter.Bits())
	s.bloomMu.RUnlock()

	if uint32(len(bits)) > s.bloomCapacity {
		s.logger.Error("shs: bloom filter outgrew its reserved capacity",
			zap.Int("bloom_bytes", len(bits)),
			zap.Uint32("bloom_capacity", s.bloomCapacity),
		)
		return ErrBloomCapacityExceeded
	}

	s.mapMu.Lock()
	bOff := bloomOffset(s.segmentCount)
	copy(s.data[bOff:bOff+int64(len(bits))], bits)

	hdr := &header{
		versionMinor:  CurrentVersionMinor,
		keySize:       uint16(s.keySize),
		segmentCount:  s.segmentCount,
		bloomBits:     uint64(len(bits)),
		bloomCapacity: s.bloomCapacity,
	}
	hdr.encode(s.data[0:HeaderSize])

	syncErr := s.data.Flush()
	s.mapMu.Unlock()

	if syncErr != nil {
		return fmt.Errorf("shs: msync: %w", syncErr)
	}

	s.dirty.Store(false)
	return nil
}

// Close flushes and releases the mapping. It's safe to call more than
// once; only the first call does any work.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		flushErr := s.Flush()

		s.closed.Store(true)

		s.mapMu.Lock()
		unmapErr := s.data.Unmap()
		s.mapMu.Unlock()

		fileErr := s.file.Close()

		switch {
		case flushErr != nil:
			s.closeErr = flushErr
		case unmapErr != nil:
			s.closeErr = fmt.Errorf("shs: unmap: %w", unmapErr)
		case fileErr != nil:
			s.closeErr = fmt.Errorf("shs: close file: %w", fileErr)
		}

		s.logger.Info("shs: closed store", zap.String("path", s.path))
	})
	return s.closeErr
}

// loadHead atomically reads the bucket-head slot for segment (an
// acquire-load matching storeHead's release-store), so an unsynchronized
// Get never observes a torn 8-byte offset.
func (s *Store) loadHead(segment uint32) uint64 {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	ptr := (*uint64)(unsafe.Pointer(&s.data[bucketOffset(segment)]))
	return atomic.LoadUint64(ptr)
}

func (s *Store) storeHead(segment uint32, val uint64) {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	ptr := (*uint64)(unsafe.Pointer(&s.data[bucketOffset(segment)]))
	atomic.StoreUint64(ptr, val)
}

// growMappingLocked unmaps, truncates the file to newSize, and remaps it.
// The caller must hold mapMu for writing.
func (s *Store) growMappingLocked(newSize int64) error {
	if err := s.data.Unmap(); err != nil {
		return fmt.Errorf("unmap: %w", err)
	}
	if err := s.file.Truncate(newSize); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	data, err := mmap.Map(s.file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("remap: %w", err)
	}
	s.data = data
	return nil
}

// entryAt reads the full entry at offset: its header, a copy of its key,
// and a copy of its value. Copies are returned (not sub-slices of the
// mapping) so callers can safely use them after mapMu is released.
func (s *Store) entryAt(offset int64) (eh entryHeader, key, value []byte, err error) {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()

	n := int64(len(s.data))
	if offset < 0 || offset+EntryHeaderSize > n {
		return entryHeader{}, nil, nil, errCorruptChain
	}
	eh = decodeEntryHeader(s.data[offset : offset+EntryHeaderSize])

	keyStart := offset + EntryHeaderSize
	keyEnd := keyStart + int64(s.keySize)
	valEnd := keyEnd + int64(eh.valueSize)
	if keyEnd > n || valEnd > n {
		return entryHeader{}, nil, nil, errCorruptChain
	}

	key = make([]byte, s.keySize)
	copy(key, s.data[keyStart:keyEnd])
	value = make([]byte, eh.valueSize)
	copy(value, s.data[keyEnd:valEnd])

	return eh, key, value, nil
}

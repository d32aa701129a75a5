package shs

import "errors"

var (
	// ErrInvalidFile is returned when the magic bytes don't match. Fatal at open.
	ErrInvalidFile = errors.New("shs: invalid file")

	// ErrKeySizeMismatch is returned when a configured key size disagrees
	// with the header's key size on open, or when put is called with a
	// key of the wrong length.
	ErrKeySizeMismatch = errors.New("shs: key size mismatch")

	// ErrClosed is returned by any operation on a closed store.
	ErrClosed = errors.New("shs: store is closed")

	// ErrBloomCapacityExceeded is returned by Flush (and so by Close) when the Bloom
	// filter's logical byte length has grown past the capacity reserved
	// for it at creation time. See header.bloomCapacity.
	ErrBloomCapacityExceeded = errors.New("shs: bloom filter outgrew its reserved capacity")

	// errCorruptChain is returned internally by entryAt when an entry's
	// header, key or value runs past the end of the mapping. It never
	// escapes get, which treats it as a true negative per spec §7.
	errCorruptChain = errors.New("shs: corrupt chain")
)

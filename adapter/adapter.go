// Package adapter is the thin, collaborator-facing helper described in
// spec §6: it lets a caller address the store by a UTF-8 string selector
// instead of a raw 8-byte key, and accepts values in whichever of three
// shapes is most convenient to the caller. The core store never sees
// these encodings — adapter translates at the boundary and nothing else.
//
// Grounded on original_source/automation/pru_db.py's _h/_bytes helpers
// around StaticHashStore.
package adapter

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/candanumut/shs"
)

// KeySize is the fixed key width this adapter produces; a Store it wraps
// must have been opened with this key size.
const KeySize = 8

// Adapter wraps a *shs.Store, mapping string selectors to keys and
// accepting values in whichever encoding the caller has on hand.
type Adapter struct {
	store *shs.Store
}

// New wraps store. It does not validate store's key size up front — a
// mismatched key size surfaces as shs.ErrKeySizeMismatch from Put/Get,
// same as using the store directly.
func New(store *shs.Store) *Adapter {
	return &Adapter{store: store}
}

// selectorKey derives the fixed 8-byte key for a string selector: a
// 64-bit xxHash digest, big-endian, matching the byte layout of the
// original helper's xxhash.xxh64(selector).digest().
func selectorKey(selector string) []byte {
	var key [KeySize]byte
	binary.BigEndian.PutUint64(key[:], xxhash.Sum64String(selector))
	return key[:]
}

// decodeValue accepts raw bytes unchanged; for strings, it tries base64
// decoding first and falls back to a plain UTF-8 encoding, mirroring
// _bytes() in the original helper. ok is false for any other type.
func decodeValue(value any) (raw []byte, ok bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
			return decoded, true
		}
		return []byte(v), true
	default:
		return nil, false
	}
}

// Put stores value under selector. value must be a []byte, a
// base64-decodable string (decoded before storing), or any other string
// (stored as its UTF-8 bytes). Any other type is rejected.
func (a *Adapter) Put(selector string, value any) error {
	raw, ok := decodeValue(value)
	if !ok {
		return &UnsupportedValueError{Selector: selector}
	}
	return a.store.Put(selectorKey(selector), raw)
}

// Get returns the raw bytes last put for selector, or ok=false if absent.
func (a *Adapter) Get(selector string) (value []byte, ok bool, err error) {
	return a.store.Get(selectorKey(selector))
}

// Flush persists the underlying store.
func (a *Adapter) Flush() error {
	return a.store.Flush()
}

// Close flushes and releases the underlying store.
func (a *Adapter) Close() error {
	return a.store.Close()
}

// UnsupportedValueError is returned by Put when value is neither []byte
// nor string.
type UnsupportedValueError struct {
	Selector string
}

func (e *UnsupportedValueError) Error() string {
	return "adapter: unsupported value type for selector " + e.Selector
}

package shs

import "encoding/binary"

// entryHeader is the fixed 20-byte prefix of every entry:
//
//	next_offset(8) | key_hash(8) | value_size(4)
type entryHeader struct {
	next      uint64
	keyHash   uint64
	valueSize uint32
}

func (e *entryHeader) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], e.next)
	binary.LittleEndian.PutUint64(buf[8:16], e.keyHash)
	binary.LittleEndian.PutUint32(buf[16:20], e.valueSize)
}

func decodeEntryHeader(buf []byte) entryHeader {
	return entryHeader{
		next:      binary.LittleEndian.Uint64(buf[0:8]),
		keyHash:   binary.LittleEndian.Uint64(buf[8:16]),
		valueSize: binary.LittleEndian.Uint32(buf[16:20]),
	}
}

// encodeEntry builds the full on-disk representation of one entry:
// header + key + value.
func encodeEntry(next, keyHash uint64, key, value []byte) []byte {
	buf := make([]byte, EntryHeaderSize+len(key)+len(value))
	eh := entryHeader{next: next, keyHash: keyHash, valueSize: uint32(len(value))}
	eh.encode(buf)
	copy(buf[EntryHeaderSize:], key)
	copy(buf[EntryHeaderSize+len(key):], value)
	return buf
}

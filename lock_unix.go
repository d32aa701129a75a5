//go:build unix

package shs

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// lockRange takes a blocking, exclusive, advisory byte-range lock on
// [off, off+length) of f via fcntl(F_SETLKW). It serializes put calls
// across processes sharing the same file; within one process, callers
// additionally hold the segment's in-process mutex, since POSIX record
// locks are associated with (process, inode) and don't serialize two
// goroutines of the same process against each other.
func lockRange(f *os.File, off, length int64) (unlock func() error, err error) {
	lk := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: io.SeekStart,
		Start:  off,
		Len:    length,
	}
	if err := unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &lk); err != nil {
		return nil, fmt.Errorf("shs: lock range [%d,%d): %w", off, off+length, err)
	}

	unlock = func() error {
		uk := lk
		uk.Type = unix.F_UNLCK
		if err := unix.FcntlFlock(f.Fd(), unix.F_SETLK, &uk); err != nil {
			return fmt.Errorf("shs: unlock range [%d,%d): %w", off, off+length, err)
		}
		return nil
	}
	return unlock, nil
}

//go:build unix || linux || darwin

// Byte-range advisory locking for Unix platforms, via fcntl(2) F_SETLKW
// (blocking) and F_SETLK (non-blocking probe). Whole-file flock(2) only
// locks the entire file, so it cannot express the fixed per-row/header
// address map of lock.go — FcntlFlock is the byte-range primitive the
// rest of the engine needs.
package isam

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockRange(f *os.File, offset, length int64, exclusive bool) error {
	typ := int16(unix.F_RDLCK)
	if exclusive {
		typ = unix.F_WRLCK
	}
	flock := unix.Flock_t{
		Type:   typ,
		Whence: int16(os.SEEK_SET),
		Start:  offset,
		Len:    length,
	}
	for {
		err := unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &flock)
		if err == unix.EINTR {
			// A signal interrupted the blocking wait; retry
			// transparently rather than surfacing INTERUPT to callers
			// that asked to wait.
			continue
		}
		return mapLockErr(err)
	}
}

func tryLockRange(f *os.File, offset, length int64, exclusive bool) error {
	typ := int16(unix.F_RDLCK)
	if exclusive {
		typ = unix.F_WRLCK
	}
	flock := unix.Flock_t{
		Type:   typ,
		Whence: int16(os.SEEK_SET),
		Start:  offset,
		Len:    length,
	}
	return mapLockErr(unix.FcntlFlock(f.Fd(), unix.F_SETLK, &flock))
}

func unlockRange(f *os.File, offset, length int64) error {
	flock := unix.Flock_t{
		Type:   int16(unix.F_UNLCK),
		Whence: int16(os.SEEK_SET),
		Start:  offset,
		Len:    length,
	}
	return mapLockErr(unix.FcntlFlock(f.Fd(), unix.F_SETLK, &flock))
}

func mapLockErr(err error) error {
	if err == nil {
		return nil
	}
	if err == unix.EAGAIN || err == unix.EACCES {
		return ErrLocked
	}
	return ErrFLocked
}

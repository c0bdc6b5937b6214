//go:build windows

// Byte-range advisory locking for Windows, via LockFileEx/UnlockFileEx
// with the OVERLAPPED struct's Offset/OffsetHigh naming the byte range
// from the fixed lock address map, rather than the whole-file lock a
// zero-offset/max-length call would take.
package isam

import (
	"os"
	"syscall"
	"unsafe"
)

var (
	modkernel32      = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = modkernel32.NewProc("LockFileEx")
	procUnlockFileEx = modkernel32.NewProc("UnlockFileEx")
)

const (
	lockfileExclusiveLock   = 0x00000002
	lockfileFailImmediately = 0x00000001
)

func lockRange(f *os.File, offset, length int64, exclusive bool) error {
	return callLockFileEx(f, offset, length, exclusive, false)
}

func tryLockRange(f *os.File, offset, length int64, exclusive bool) error {
	return callLockFileEx(f, offset, length, exclusive, true)
}

func callLockFileEx(f *os.File, offset, length int64, exclusive, nowait bool) error {
	var flags uint32
	if exclusive {
		flags |= lockfileExclusiveLock
	}
	if nowait {
		flags |= lockfileFailImmediately
	}
	h := syscall.Handle(f.Fd())
	overlapped := syscall.Overlapped{
		Offset:     uint32(offset & 0xFFFFFFFF),
		OffsetHigh: uint32(offset >> 32),
	}
	r1, _, err := procLockFileEx.Call(
		uintptr(h),
		uintptr(flags),
		0,
		uintptr(uint32(length&0xFFFFFFFF)),
		uintptr(uint32(length>>32)),
		uintptr(unsafe.Pointer(&overlapped)),
	)
	if r1 == 0 {
		if nowait {
			return ErrLocked
		}
		_ = err
		return ErrFLocked
	}
	return nil
}

func unlockRange(f *os.File, offset, length int64) error {
	h := syscall.Handle(f.Fd())
	overlapped := syscall.Overlapped{
		Offset:     uint32(offset & 0xFFFFFFFF),
		OffsetHigh: uint32(offset >> 32),
	}
	r1, _, err := procUnlockFileEx.Call(
		uintptr(h),
		0,
		uintptr(uint32(length&0xFFFFFFFF)),
		uintptr(uint32(length>>32)),
		uintptr(unsafe.Pointer(&overlapped)),
	)
	if r1 == 0 {
		_ = err
		return ErrFLocked
	}
	return nil
}

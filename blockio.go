// Fixed-size block I/O on the index file.
//
// Every index-file structure (dictionary, key-descriptor nodes,
// freelist nodes, B+tree nodes, varlen nodes) occupies exactly one
// node-sized block, numbered from 1. readBlock/writeBlock are the
// single choke point other components go through; the cache (cache.go)
// wraps them for node numbers other than 1.
package isam

import (
	"io"
	"os"
)

// openOrCreate opens path for read/write, creating it if absent.
func openOrCreate(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
}

// processID returns the calling process's id, embedded in every
// transaction-log record so Recover can group records by writer.
func processID() int32 {
	return int32(os.Getpid())
}

// readBlock reads node-sized bytes at block number n (1-based) from f.
func readBlock(f *os.File, n int64, nodeSize int) ([]byte, error) {
	buf := make([]byte, nodeSize)
	off := (n - 1) * int64(nodeSize)
	cnt, err := f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, ErrBadFile
	}
	if cnt != nodeSize {
		// Short read past EOF is a not-yet-allocated block: present it
		// as a zeroed buffer rather than an error, matching the
		// allocator's convention of lazily extending the file.
		for i := cnt; i < nodeSize; i++ {
			buf[i] = 0
		}
	}
	return buf, nil
}

// writeBlock writes buf (exactly nodeSize bytes) to block number n.
func writeBlock(f *os.File, n int64, buf []byte, nodeSize int) error {
	if len(buf) != nodeSize {
		padded := make([]byte, nodeSize)
		copy(padded, buf)
		buf = padded
	}
	off := (n - 1) * int64(nodeSize)
	cnt, err := f.WriteAt(buf, off)
	if err != nil {
		return ErrBadFile
	}
	if cnt != nodeSize {
		return ErrBadFile
	}
	return nil
}

// fileSize returns the size of f in bytes, mapped to ErrBadFile on
// failure so callers never have to special-case *os.PathError.
func fileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, ErrBadFile
	}
	return info.Size(), nil
}

func syncFile(f *os.File) error {
	if err := f.Sync(); err != nil {
		return ErrBadFile
	}
	return nil
}

// Big-endian scalar codec.
//
// Every multi-byte value in the on-disk format — dictionary fields,
// freelist pointers, node trailers, key parts — is stored big-endian
// regardless of host byte order, so the files are portable between
// little- and big-endian hosts. No misaligned access is assumed: all
// loads/stores go through explicit byte slicing rather than pointer
// casts.
package isam

import (
	"math"
)

func putUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func getUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func putInt16(b []byte, v int16) { putUint16(b, uint16(v)) }
func getInt16(b []byte) int16    { return int16(getUint16(b)) }

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putInt32(b []byte, v int32) { putUint32(b, uint32(v)) }
func getInt32(b []byte) int32    { return int32(getUint32(b)) }

func putUint64(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}

func getUint64(b []byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

func putInt64(b []byte, v int64) { putUint64(b, uint64(v)) }
func getInt64(b []byte) int64    { return int64(getUint64(b)) }

func putFloat32(b []byte, v float32) { putUint32(b, math.Float32bits(v)) }
func getFloat32(b []byte) float32    { return math.Float32frombits(getUint32(b)) }

func putFloat64(b []byte, v float64) { putUint64(b, math.Float64bits(v)) }
func getFloat64(b []byte) float64    { return math.Float64frombits(getUint64(b)) }

// posInf64 / negInf64 are the sentinel bit patterns used for FIRST/LAST
// fabricated extremal keys on float/double key parts.
func posInf64() float64 { return math.Inf(1) }
func negInf64() float64 { return math.Inf(-1) }

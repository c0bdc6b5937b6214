// Composite key construction and typed comparison.
//
// Keys are always stored uncompressed in memory; the per-part
// typecode only affects how two key images compare, never how they
// are laid out (a key is just the concatenation of its parts' raw
// bytes, in part order).
package isam

import "bytes"

// buildKey concatenates the parts named by kd out of row into a single
// contiguous composite key.
func buildKey(row []byte, kd *KeyDescriptor) []byte {
	key := make([]byte, 0, kd.totalLength())
	for _, p := range kd.Parts {
		end := p.Start + p.Length
		if end > len(row) {
			// Short row image: the caller is responsible for padding;
			// treat missing bytes as zero so a comparison still has a
			// well-defined (if minimal) result rather than panicking.
			part := make([]byte, p.Length)
			if p.Start < len(row) {
				copy(part, row[p.Start:])
			}
			key = append(key, part...)
			continue
		}
		key = append(key, row[p.Start:end]...)
	}
	return key
}

// isAllNullFill reports whether key is entirely made of each part's
// null-fill byte — the NULL_KEY elision condition.
func isAllNullFill(key []byte, kd *KeyDescriptor) bool {
	if !kd.nullKey() {
		return false
	}
	off := 0
	for _, p := range kd.Parts {
		for i := 0; i < p.Length; i++ {
			if key[off+i] != p.NullFill {
				return false
			}
		}
		off += p.Length
	}
	return true
}

// compareKeys performs a typed, part-by-part comparison of two
// uncompressed composite keys of the same descriptor, honoring each
// part's descending flag. Returns <0, 0, >0 like bytes.Compare.
func compareKeys(a, b []byte, kd *KeyDescriptor) int {
	off := 0
	for _, p := range kd.Parts {
		pa := a[off : off+p.Length]
		pb := b[off : off+p.Length]
		off += p.Length

		c := comparePart(pa, pb, p.Type)
		if p.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func comparePart(a, b []byte, typ int) int {
	switch typ {
	case IntType:
		va, vb := getInt16(a), getInt16(b)
		return cmpInt64(int64(va), int64(vb))
	case LongType:
		va, vb := getInt32(a), getInt32(b)
		return cmpInt64(int64(va), int64(vb))
	case Int64Type:
		va, vb := getInt64(a), getInt64(b)
		return cmpInt64(va, vb)
	case FloatType:
		va, vb := getFloat32(a), getFloat32(b)
		return cmpFloat64(float64(va), float64(vb))
	case DoubleType:
		va, vb := getFloat64(a), getFloat64(b)
		return cmpFloat64(va, vb)
	default: // CharType
		return bytes.Compare(a, b)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareDup orders (key, dup) pairs lexicographically: key first,
// then duplicate sequence number.
func compareDup(aKey []byte, aDup int64, bKey []byte, bDup int64, kd *KeyDescriptor) int {
	if c := compareKeys(aKey, bKey, kd); c != 0 {
		return c
	}
	return cmpInt64(aDup, bDup)
}

// extremalKey fabricates the least (low=true) or greatest (low=false)
// possible key for kd, honoring each part's type and descending flag,
// used by search(FIRST)/search(LAST).
func extremalKey(kd *KeyDescriptor, low bool) []byte {
	key := make([]byte, kd.totalLength())
	off := 0
	for _, p := range kd.Parts {
		want := low
		if p.Descending {
			want = !want
		}
		fillExtremalPart(key[off:off+p.Length], p.Type, want)
		off += p.Length
	}
	return key
}

func fillExtremalPart(b []byte, typ int, low bool) {
	switch typ {
	case FloatType:
		if low {
			putFloat32(b, float32(negInf64()))
		} else {
			putFloat32(b, float32(posInf64()))
		}
	case DoubleType:
		if low {
			putFloat64(b, negInf64())
		} else {
			putFloat64(b, posInf64())
		}
	case IntType, LongType, Int64Type:
		// Signed two's complement: all-0x00 is 0 and all-0xff is -1,
		// neither of which bounds the negative range. The true
		// extremes are 0x80 00... (min) and 0x7f ff... (max).
		if low {
			b[0] = 0x80
			for i := 1; i < len(b); i++ {
				b[i] = 0x00
			}
		} else {
			b[0] = 0x7f
			for i := 1; i < len(b); i++ {
				b[i] = 0xff
			}
		}
	default:
		fill := byte(0x00)
		if !low {
			fill = 0xff
		}
		for i := range b {
			b[i] = fill
		}
	}
}

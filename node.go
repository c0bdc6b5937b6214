// On-disk B+tree/freelist/key-descriptor node layout.
//
// Every node occupies one block: a 2-byte used-length,
// an 8-byte node-local transaction number in 64-bit mode, a packed
// sequence of entries, and a trailer {marker=0x7f (64-bit only),
// type-byte, level}. type-byte distinguishes freelist-data (-1),
// freelist-index (-2), key-descriptor (0x7e) and ordinary B+tree (0)
// nodes; level 0 marks a leaf.
package isam

const (
	nodeTypeFreeData = -1
	nodeTypeFreeIdx  = -2
	nodeTypeKeyDesc  = 0x7e
	nodeTypeBTree    = 0
	trailerMarker    = 0x7f
)

func headerSize(cfg *Config) int {
	if cfg.BuildMode == Mode64 {
		return 2 + 8
	}
	return 2
}

func trailerSize(cfg *Config) int {
	if cfg.BuildMode == Mode64 {
		return 3
	}
	return 2
}

// bodyRange returns the header and trailer sizes: the payload area of
// a node buffer is buf[hs : len(buf)-ts].
func bodyRange(cfg *Config) (hs, ts int) {
	return headerSize(cfg), trailerSize(cfg)
}

func writeTrailer(buf []byte, cfg *Config, nodeType int8, level int) {
	pos := len(buf) - trailerSize(cfg)
	if cfg.BuildMode == Mode64 {
		buf[pos] = trailerMarker
		pos++
	}
	buf[pos] = byte(nodeType)
	buf[pos+1] = byte(level)
}

func readTrailer(buf []byte, cfg *Config) (nodeType int8, level int, err error) {
	pos := len(buf) - trailerSize(cfg)
	if pos < 0 {
		return 0, 0, ErrBadFormat
	}
	if cfg.BuildMode == Mode64 {
		if buf[pos] != trailerMarker {
			return 0, 0, ErrBadFormat
		}
		pos++
	}
	return int8(buf[pos]), int(buf[pos+1]), nil
}

func writeUsedLen(buf []byte, n int)  { putUint16(buf, uint16(n)) }
func readUsedLen(buf []byte) int      { return int(getUint16(buf)) }
func writeNodeTxn(buf []byte, txn int64) {
	if len(buf) >= 10 {
		putInt64(buf[2:], txn)
	}
}
func readNodeTxn(buf []byte) int64 {
	if len(buf) >= 10 {
		return getInt64(buf[2:])
	}
	return 0
}

// diskEntry is one B+tree node entry in its decompressed, in-memory
// shape. Kind distinguishes a normal key from the leaf trailing dummy
// and the internal high-water sentinel.
type diskEntry struct {
	Kind byte // entryNormal | entryDummy | entryHigh
	Key  []byte
	Dup  int64
	Ptr  int64
}

const (
	entryNormal = 0
	entryDummy  = 1
	entryHigh   = 2
)

// entry flag bits within the packed on-disk format.
const (
	flagLeading = 1 << 0
	flagTrail   = 1 << 1
	flagDupComp = 1 << 2
	flagHasDup  = 1 << 3
	kindShift   = 4 // 2 bits: entryNormal | entryDummy | entryHigh
)

// encodeEntries packs entries (already in sorted order) applying
// leading/trailing/dup compression relative to a running "previous
// key" scratch buffer initialized to all zero bytes.
func encodeEntries(entries []diskEntry, kd *KeyDescriptor, cfg *Config) []byte {
	out := make([]byte, 0, 256)
	prev := make([]byte, kd.totalLength())
	ptrSize := cfg.pointerSize()

	for _, e := range entries {
		flags := byte(e.Kind) << kindShift

		if e.Kind != entryNormal {
			out = append(out, flags)
			out = appendPtr(out, e.Ptr, ptrSize)
			continue
		}

		leadLen := 0
		if kd.leadingComp() {
			leadLen = commonPrefix(prev, e.Key)
		}

		dupComp := kd.dupComp() && leadLen == len(e.Key) && leadLen == len(prev)
		trailLen := 0
		middle := e.Key[leadLen:]
		if !dupComp && kd.trailingComp() {
			trailLen = trailingSpaces(middle)
			middle = middle[:len(middle)-trailLen]
		}
		if dupComp {
			middle = nil
		}

		if leadLen > 0 {
			flags |= flagLeading
		}
		if trailLen > 0 {
			flags |= flagTrail
		}
		if dupComp {
			flags |= flagDupComp
		}
		if kd.hasDups() {
			flags |= flagHasDup
		}

		out = append(out, flags)
		if leadLen > 0 {
			out = append(out, byte(leadLen))
		}
		if trailLen > 0 {
			out = append(out, byte(trailLen))
		}
		if !dupComp {
			lenBuf := make([]byte, 2)
			putUint16(lenBuf, uint16(len(middle)))
			out = append(out, lenBuf...)
			out = append(out, middle...)
		}
		if kd.hasDups() {
			dupBuf := make([]byte, 8)
			putInt64(dupBuf, e.Dup)
			out = append(out, dupBuf...)
		}
		out = appendPtr(out, e.Ptr, ptrSize)

		prev = e.Key
	}
	return out
}

// decodeEntries reverses encodeEntries, reconstructing each full key
// against the same running "previous key" scratch buffer.
func decodeEntries(body []byte, kd *KeyDescriptor, cfg *Config) ([]diskEntry, error) {
	var out []diskEntry
	prev := make([]byte, kd.totalLength())
	ptrSize := cfg.pointerSize()
	pos := 0

	for pos < len(body) {
		flags := body[pos]
		pos++
		kind := byte((flags >> kindShift) & 0x3)

		if kind != entryNormal {
			if pos+ptrSize > len(body) {
				return nil, ErrBadFormat
			}
			ptr := readPtr(body[pos:], ptrSize)
			pos += ptrSize
			out = append(out, diskEntry{Kind: kind, Ptr: ptr})
			continue
		}

		leadLen, trailLen := 0, 0
		if flags&flagLeading != 0 {
			if pos >= len(body) {
				return nil, ErrBadFormat
			}
			leadLen = int(body[pos])
			pos++
		}
		if flags&flagTrail != 0 {
			if pos >= len(body) {
				return nil, ErrBadFormat
			}
			trailLen = int(body[pos])
			pos++
		}

		var key []byte
		if flags&flagDupComp != 0 {
			key = append([]byte(nil), prev...)
		} else {
			if pos+2 > len(body) {
				return nil, ErrBadFormat
			}
			midLen := int(getUint16(body[pos:]))
			pos += 2
			if pos+midLen > len(body) {
				return nil, ErrBadFormat
			}
			middle := body[pos : pos+midLen]
			pos += midLen

			total := leadLen + midLen + trailLen
			key = make([]byte, total)
			copy(key, prev[:leadLen])
			copy(key[leadLen:], middle)
			for i := leadLen + midLen; i < total; i++ {
				key[i] = ' '
			}
		}

		var dup int64
		if flags&flagHasDup != 0 {
			if pos+8 > len(body) {
				return nil, ErrBadFormat
			}
			dup = getInt64(body[pos:])
			pos += 8
		}

		if pos+ptrSize > len(body) {
			return nil, ErrBadFormat
		}
		ptr := readPtr(body[pos:], ptrSize)
		pos += ptrSize

		out = append(out, diskEntry{Kind: entryNormal, Key: key, Dup: dup, Ptr: ptr})
		prev = key
	}
	return out, nil
}

func appendPtr(out []byte, ptr int64, size int) []byte {
	buf := make([]byte, size)
	if size == 4 {
		putInt32(buf, int32(ptr))
	} else {
		putInt64(buf, ptr)
	}
	return append(out, buf...)
}

func readPtr(buf []byte, size int) int64 {
	if size == 4 {
		return int64(getInt32(buf))
	}
	return getInt64(buf)
}

func commonPrefix(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func trailingSpaces(b []byte) int {
	n := 0
	for n < len(b) && b[len(b)-1-n] == ' ' {
		n++
	}
	return n
}

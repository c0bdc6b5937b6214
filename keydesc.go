// Key descriptors: the on-disk and in-memory shape of an index's key.
//
// A descriptor lists 1..8 parts; each part names a (start, length,
// typecode) slice of the row image.
package isam

// Typecodes for a key part. The null-fill byte (for NULL_KEY parts)
// is stored in its own byte of each on-disk part record, next to the
// type byte, and held in KeyPart.NullFill.
const (
	CharType   = 0
	IntType    = 1 // 2-byte signed
	LongType   = 2 // 4-byte signed
	Int64Type  = 5 // 8-byte signed
	FloatType  = 3
	DoubleType = 4
)

// Key descriptor flags.
const (
	DUPS              = 1 << 0
	LeadingCompress   = 1 << 1
	TrailingCompress  = 1 << 2
	DupCompress       = 1 << 3
	NullKey           = 1 << 4
)

const maxKeyParts = 8
const maxKeyLength = 511

// KeyPart describes one segment of a composite key.
type KeyPart struct {
	Start      int  // byte offset into the row image
	Length     int  // byte length of this part
	Type       int  // one of *Type above
	Descending bool
	NullFill   byte // only meaningful when the descriptor's NullKey flag is set
}

// KeyDescriptor is index N's key shape: 1..8 parts plus flags, plus the
// on-disk linkage to its B+tree root and the next descriptor in the
// dictionary's key-descriptor list.
type KeyDescriptor struct {
	Parts []KeyPart
	Flags int
	Root  int64 // B+tree root node number
	Next  int64 // next key-descriptor node, 0 = end of list
}

func (kd *KeyDescriptor) hasDups() bool      { return kd.Flags&DUPS != 0 }
func (kd *KeyDescriptor) leadingComp() bool  { return kd.Flags&LeadingCompress != 0 }
func (kd *KeyDescriptor) trailingComp() bool { return kd.Flags&TrailingCompress != 0 }
func (kd *KeyDescriptor) dupComp() bool      { return kd.Flags&DupCompress != 0 }
func (kd *KeyDescriptor) nullKey() bool      { return kd.Flags&NullKey != 0 }

// totalLength returns the uncompressed composite key length in bytes.
func (kd *KeyDescriptor) totalLength() int {
	n := 0
	for _, p := range kd.Parts {
		n += p.Length
	}
	return n
}

// validate checks the structural invariants of a descriptor: 1..8
// parts, total length <= 511 bytes.
func (kd *KeyDescriptor) validate() error {
	if len(kd.Parts) < 1 || len(kd.Parts) > maxKeyParts {
		return ErrBadKey
	}
	if kd.totalLength() > maxKeyLength {
		return ErrBadKey
	}
	for _, p := range kd.Parts {
		if p.Length <= 0 || p.Start < 0 {
			return ErrBadKey
		}
		switch p.Type {
		case CharType, IntType, LongType, Int64Type, FloatType, DoubleType:
		default:
			return ErrBadKey
		}
	}
	return nil
}

// encodeKeyDescNode packs kd into one key-descriptor node buffer.
func encodeKeyDescNode(kd *KeyDescriptor, cfg *Config) []byte {
	buf := make([]byte, cfg.NodeSize)
	hs, _ := bodyRange(cfg)
	pos := hs
	putUint16(buf[pos:], uint16(kd.Flags))
	pos += 2
	putUint16(buf[pos:], uint16(len(kd.Parts)))
	pos += 2
	for _, p := range kd.Parts {
		buf[pos] = byte(p.Type)
		if p.Descending {
			buf[pos+1] = 1
		}
		buf[pos+2] = p.NullFill
		putUint16(buf[pos+3:], uint16(p.Start))
		putUint16(buf[pos+5:], uint16(p.Length))
		pos += 7
	}
	putInt64(buf[pos:], kd.Root)
	pos += 8
	putInt64(buf[pos:], kd.Next)
	pos += 8
	writeUsedLen(buf, pos-hs)
	writeTrailer(buf, cfg, nodeTypeKeyDesc, 0)
	return buf
}

func decodeKeyDescNode(buf []byte, cfg *Config) (*KeyDescriptor, error) {
	nodeType, _, err := readTrailer(buf, cfg)
	if err != nil {
		return nil, err
	}
	if nodeType != nodeTypeKeyDesc {
		return nil, ErrBadFormat
	}
	hs, _ := bodyRange(cfg)
	pos := hs
	kd := &KeyDescriptor{Flags: int(getUint16(buf[pos:]))}
	pos += 2
	n := int(getUint16(buf[pos:]))
	pos += 2
	if n < 1 || n > maxKeyParts {
		return nil, ErrBadFormat
	}
	kd.Parts = make([]KeyPart, n)
	for i := 0; i < n; i++ {
		kd.Parts[i] = KeyPart{
			Type:       int(buf[pos]),
			Descending: buf[pos+1] != 0,
			NullFill:   buf[pos+2],
			Start:      int(getUint16(buf[pos+3:])),
			Length:     int(getUint16(buf[pos+5:])),
		}
		pos += 7
	}
	kd.Root = getInt64(buf[pos:])
	pos += 8
	kd.Next = getInt64(buf[pos:])
	return kd, nil
}

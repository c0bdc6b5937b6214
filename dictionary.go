// Dictionary node: block 1 of the index file, the engine's superblock.
//
// Binary layout, big-endian, fixed offsets:
//
//	0   2   magic "IX"
//	2   2   node size
//	4   2   number of indexes
//	6   4   min row length
//	10  4   max row length (variable-length tables)
//	14  8   key-descriptor list head (block number, 0 = none)
//	22  8   index-node freelist head
//	30  8   data-row freelist head
//	38  8   highest-allocated data row count
//	46  8   highest-allocated index-node count
//	54  8   transaction number (monotone, bumped on every modifying exit)
//	62  8   unique-id counter (monotone)
//	70  80  varlen tail-store group heads (10 slots of 8 bytes; 32-bit builds use the first 6)
//
// The dictionary is always read/written bypassing the block cache:
// another process may have advanced it since this handle's last
// enter.
package isam

import "os"

var dictMagic = [2]byte{'I', 'X'}

const (
	dictOffMagic   = 0
	dictOffNode    = 2
	dictOffNIdx    = 4
	dictOffMinRow  = 6
	dictOffMaxRow  = 10
	dictOffKeyDesc = 14
	dictOffIdxFree = 22
	dictOffDatFree = 30
	dictOffDatCnt  = 38
	dictOffIdxCnt  = 46
	dictOffTxn     = 54
	dictOffUID     = 62
	dictOffBuckets = 70
	maxBuckets     = 10
)

// Dictionary mirrors the on-disk block-1 superblock.
type Dictionary struct {
	NodeSize       int
	NumIndexes     int
	MinRowLength   int
	MaxRowLength   int
	KeyDescHead    int64
	IndexFreeHead  int64
	DataFreeHead   int64
	DataRowCount   int64
	IndexNodeCount int64
	TxnNumber      int64
	UniqueID       int64
	BucketHeads    [maxBuckets]int64
}

func (d *Dictionary) encode(nodeSize int) []byte {
	buf := make([]byte, nodeSize)
	copy(buf[dictOffMagic:], dictMagic[:])
	putUint16(buf[dictOffNode:], uint16(d.NodeSize))
	putUint16(buf[dictOffNIdx:], uint16(d.NumIndexes))
	putUint32(buf[dictOffMinRow:], uint32(d.MinRowLength))
	putUint32(buf[dictOffMaxRow:], uint32(d.MaxRowLength))
	putInt64(buf[dictOffKeyDesc:], d.KeyDescHead)
	putInt64(buf[dictOffIdxFree:], d.IndexFreeHead)
	putInt64(buf[dictOffDatFree:], d.DataFreeHead)
	putInt64(buf[dictOffDatCnt:], d.DataRowCount)
	putInt64(buf[dictOffIdxCnt:], d.IndexNodeCount)
	putInt64(buf[dictOffTxn:], d.TxnNumber)
	putInt64(buf[dictOffUID:], d.UniqueID)
	for i := 0; i < maxBuckets; i++ {
		putInt64(buf[dictOffBuckets+i*8:], d.BucketHeads[i])
	}
	return buf
}

func decodeDictionary(buf []byte) (*Dictionary, error) {
	if len(buf) < dictOffBuckets+maxBuckets*8 {
		return nil, ErrBadFormat
	}
	if buf[dictOffMagic] != dictMagic[0] || buf[dictOffMagic+1] != dictMagic[1] {
		return nil, ErrBadFormat
	}
	d := &Dictionary{
		NodeSize:       int(getUint16(buf[dictOffNode:])),
		NumIndexes:     int(getUint16(buf[dictOffNIdx:])),
		MinRowLength:   int(getUint32(buf[dictOffMinRow:])),
		MaxRowLength:   int(getUint32(buf[dictOffMaxRow:])),
		KeyDescHead:    getInt64(buf[dictOffKeyDesc:]),
		IndexFreeHead:  getInt64(buf[dictOffIdxFree:]),
		DataFreeHead:   getInt64(buf[dictOffDatFree:]),
		DataRowCount:   getInt64(buf[dictOffDatCnt:]),
		IndexNodeCount: getInt64(buf[dictOffIdxCnt:]),
		TxnNumber:      getInt64(buf[dictOffTxn:]),
		UniqueID:       getInt64(buf[dictOffUID:]),
	}
	for i := 0; i < maxBuckets; i++ {
		d.BucketHeads[i] = getInt64(buf[dictOffBuckets+i*8:])
	}
	return d, nil
}

// readDictionary reads block 1, always bypassing the cache.
func readDictionary(idx *os.File, nodeSize int) (*Dictionary, error) {
	buf, err := readBlock(idx, 1, nodeSize)
	if err != nil {
		return nil, err
	}
	return decodeDictionary(buf)
}

// writeDictionary writes block 1, always bypassing the cache.
func writeDictionary(idx *os.File, d *Dictionary) error {
	return writeBlock(idx, 1, d.encode(d.NodeSize), d.NodeSize)
}

// Write-ahead transaction log.
//
// Every record carries a 2-byte opcode tag, the writing process's pid,
// a per-process transaction sequence number, and the file offset of
// the previous record in the same transaction (0 for the first). That
// prevOffset chain is what lets Rollback walk backward through exactly
// one transaction's records without scanning unrelated ones; forward
// replay during Recover instead reads the file sequentially from the
// start, which is the order every committed transaction's effects
// actually happened in.
package isam

import (
	"os"
)

// Log opcodes, matching the historical engine's two-letter record tags.
const (
	OpBeginWork   = "BW"
	OpCommitWork  = "CW"
	OpRollback    = "RW"
	OpInsert      = "IN"
	OpUpdate      = "UP"
	OpDelete      = "DE"
	OpFileOpen    = "FO"
	OpFileClose   = "FC"
	OpExtendRow   = "ER"
	OpRebuild     = "RE"
	OpBuild       = "BU"
	OpCreateIndex = "CI"
	OpDropIndex   = "DI"
	OpSetUnique   = "SU"
	OpUniqueID    = "UN"
	OpClose       = "CL"
)

const logHeaderSize = 2 + 4 + 4 + 8 + 8 // tag, payloadLen, pid, txn, prevOffset

// logRecord is one transaction-log entry.
type logRecord struct {
	Opcode     string
	PID        int32
	Txn        int64
	PrevOffset int64
	Payload    []byte
}

// txLog is an append-only log file, one per table.
type txLog struct {
	f      *os.File
	offset int64
}

func openTxLog(f *os.File) (*txLog, error) {
	sz, err := fileSize(f)
	if err != nil {
		return nil, err
	}
	return &txLog{f: f, offset: sz}, nil
}

// append writes rec at the current end of the log and returns the
// offset its header starts at, for use as a later record's PrevOffset.
func (l *txLog) append(rec logRecord) (int64, error) {
	off := l.offset
	buf := make([]byte, logHeaderSize+len(rec.Payload))
	copy(buf[0:2], rec.Opcode)
	putUint32(buf[2:], uint32(len(rec.Payload)))
	putInt32(buf[6:], rec.PID)
	putInt64(buf[10:], rec.Txn)
	putInt64(buf[18:], rec.PrevOffset)
	copy(buf[logHeaderSize:], rec.Payload)

	n, err := l.f.WriteAt(buf, off)
	if err != nil || n != len(buf) {
		return 0, ErrLogWrit
	}
	l.offset += int64(len(buf))
	return off, nil
}

// readAt parses the record whose header starts at offset, returning it
// along with its total on-disk length.
func (l *txLog) readAt(offset int64) (logRecord, int64, error) {
	hdr := make([]byte, logHeaderSize)
	if _, err := l.f.ReadAt(hdr, offset); err != nil {
		return logRecord{}, 0, ErrLogRead
	}
	payloadLen := int(getUint32(hdr[2:]))
	rec := logRecord{
		Opcode:     string(hdr[0:2]),
		PID:        getInt32(hdr[6:]),
		Txn:        getInt64(hdr[10:]),
		PrevOffset: getInt64(hdr[18:]),
	}
	if payloadLen > 0 {
		rec.Payload = make([]byte, payloadLen)
		if _, err := l.f.ReadAt(rec.Payload, offset+logHeaderSize); err != nil {
			return logRecord{}, 0, ErrLogRead
		}
	}
	return rec, int64(logHeaderSize + payloadLen), nil
}

// scanForward reads every record from the start of the log in the
// order it was written, used by Recover's forward replay pass.
func (l *txLog) scanForward(fn func(offset int64, rec logRecord) error) error {
	var pos int64
	for pos < l.offset {
		rec, n, err := l.readAt(pos)
		if err != nil {
			return err
		}
		if err := fn(pos, rec); err != nil {
			return err
		}
		pos += n
	}
	return nil
}

// encodeRowPayload packs an IN/DE record's payload: the row number and
// its full image (DE keeps the image so Rollback can restore it; IN's
// image gives Rollback the keys to remove from every index).
func encodeRowPayload(row int64, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	putInt64(buf, row)
	copy(buf[8:], data)
	return buf
}

func decodeRowPayload(buf []byte) (row int64, data []byte) {
	return getInt64(buf), append([]byte(nil), buf[8:]...)
}

// encodeUpdatePayload packs an UP record's payload: the row number and
// its zstd-compressed before-image.
func encodeUpdatePayload(row int64, oldImage []byte) []byte {
	compressed := compressRow(oldImage)
	buf := make([]byte, 8, 8+len(compressed))
	putInt64(buf, row)
	buf = append(buf, compressed...)
	return buf
}

func decodeUpdatePayload(buf []byte) (row int64, oldImage []byte, err error) {
	row = getInt64(buf)
	oldImage, err = decompressRow(buf[8:])
	return
}

// encodeUniquePayload packs an SU/UN record's payload: the single
// unique-id value set or consumed.
func encodeUniquePayload(id int64) []byte {
	buf := make([]byte, 8)
	putInt64(buf, id)
	return buf
}

// walkBack follows PrevOffset starting at offset, invoking fn on each
// record until the chain reaches its BW record, or runs off the start
// of a transaction that was never begun (PrevOffset 0, only valid as
// "no previous record").
func (l *txLog) walkBack(offset int64, fn func(rec logRecord) error) error {
	for offset != 0 {
		rec, _, err := l.readAt(offset)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		if rec.Opcode == OpBeginWork {
			return nil
		}
		offset = rec.PrevOffset
	}
	return nil
}

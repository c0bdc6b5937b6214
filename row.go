// Data row packing.
//
// Each data-file slot is a fixed-size record: a min_row_length prefix
// of the row image, a one-byte tombstone (0x0a live, 0x00 deleted),
// and a footer naming the varlen tail store's head slot and the row's
// true total length when it overflows the prefix. A never-written slot
// reads back all zeroes, which the tombstone convention classifies as
// deleted without a separate allocated-bitmap.
package isam

const (
	rowFlagLive    = 0x0a
	rowFlagDeleted = 0x00
)

func rowSlotSize(minRowLen int) int {
	return minRowLen + 1 + 8 + 4
}

// PackRow splits a row image into its fixed prefix (padded/truncated to
// minRowLen) and any overflow tail that must go to the varlen store.
func PackRow(data []byte, minRowLen int) (prefix, tail []byte) {
	if len(data) <= minRowLen {
		prefix = make([]byte, minRowLen)
		copy(prefix, data)
		return prefix, nil
	}
	return data[:minRowLen], data[minRowLen:]
}

// EncodeRowSlot assembles a full data-file slot from its prefix, the
// varlen head pointer (0 if the row never overflowed), the row's true
// total length, and whether it is live.
func EncodeRowSlot(prefix []byte, varlenHead int64, totalLen int, minRowLen int, deleted bool) []byte {
	buf := make([]byte, rowSlotSize(minRowLen))
	copy(buf, prefix)
	if deleted {
		buf[minRowLen] = rowFlagDeleted
	} else {
		buf[minRowLen] = rowFlagLive
	}
	putInt64(buf[minRowLen+1:], varlenHead)
	putUint32(buf[minRowLen+9:], uint32(totalLen))
	return buf
}

// DecodeRowSlot splits a slot back into its fields.
func DecodeRowSlot(slot []byte, minRowLen int) (prefix []byte, varlenHead int64, totalLen int, deleted bool) {
	prefix = slot[:minRowLen]
	deleted = slot[minRowLen] != rowFlagLive
	varlenHead = getInt64(slot[minRowLen+1:])
	totalLen = int(getUint32(slot[minRowLen+9:]))
	return
}

// AssembleRow reconstructs the full row image, reading the varlen tail
// through v when the row overflowed its fixed prefix.
func AssembleRow(slot []byte, minRowLen int, v *varlenStore) ([]byte, error) {
	prefix, head, total, deleted := DecodeRowSlot(slot, minRowLen)
	if deleted {
		return nil, ErrNoRec
	}
	if total <= minRowLen {
		return append([]byte(nil), prefix[:total]...), nil
	}
	tail, err := v.Read(head, total-minRowLen)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, total)
	out = append(out, prefix...)
	out = append(out, tail...)
	return out, nil
}

// Row storage and per-row index maintenance: the glue between the data
// file's fixed row slots (row.go), the varlen tail store (varlen.go)
// and the per-index B+tree mirrors (tree.go, btsearch.go, insert.go,
// btreedelete.go) that every write operation drives together.
package isam

import "bytes"

// readRow loads and reassembles row's full image, failing ErrNoRec if
// the slot is tombstoned or never allocated.
func (t *Table) readRow(row int64) ([]byte, error) {
	slot, err := readBlock(t.dataFile, row, rowSlotSize(t.dict.MinRowLength))
	if err != nil {
		return nil, err
	}
	return AssembleRow(slot, t.dict.MinRowLength, t.varlen)
}

// writeRowImage packs data into row's fixed slot, spilling overflow
// into the varlen store, replacing whatever tail the row previously
// held (the caller is responsible for freeing the old tail first via
// freeRowTail when overwriting a live row).
func (t *Table) writeRowImage(row int64, data []byte) error {
	prefix, tail := PackRow(data, t.dict.MinRowLength)
	var head int64
	if len(tail) > 0 {
		h, err := t.varlen.Write(tail)
		if err != nil {
			return err
		}
		head = h
	}
	slot := EncodeRowSlot(prefix, head, len(data), t.dict.MinRowLength, false)
	return writeBlock(t.dataFile, row, slot, rowSlotSize(t.dict.MinRowLength))
}

// freeRowTail releases whatever varlen chain row's current slot points
// at, used before overwriting or deleting a live row.
func (t *Table) freeRowTail(row int64) error {
	slot, err := readBlock(t.dataFile, row, rowSlotSize(t.dict.MinRowLength))
	if err != nil {
		return err
	}
	_, head, total, deleted := DecodeRowSlot(slot, t.dict.MinRowLength)
	if deleted || head == 0 {
		return nil
	}
	return t.varlen.Free(head, total-t.dict.MinRowLength)
}

// tombstoneRow marks row deleted without releasing its slot number
// back to the data freelist (the caller does that separately).
func (t *Table) tombstoneRow(row int64) error {
	slot := EncodeRowSlot(make([]byte, t.dict.MinRowLength), 0, 0, t.dict.MinRowLength, true)
	return writeBlock(t.dataFile, row, slot, rowSlotSize(t.dict.MinRowLength))
}

// probeUnique reports whether key is definitely absent from a
// non-duplicate index's Bloom filter, letting checkUniqueness skip the
// real tree search on the common case. A positive never proves
// presence on its own: the caller always falls back to a real search
// before trusting DUPL.
func (m *Mirror) probeUnique(key []byte) (definitelyAbsent bool) {
	return !m.bloom.Contains(key)
}

// checkUniqueness pre-validates every non-duplicate index's key for
// row before any index is mutated, so a Write touching N indexes never
// partially applies and needs compensating rollback purely because a
// later index rejected a duplicate the first index would have accepted.
func (t *Table) checkUniqueness(rowImage []byte) error {
	for i, kd := range t.keyDescs {
		if kd.hasDups() {
			continue
		}
		key := buildKey(rowImage, kd)
		if isAllNullFill(key, kd) {
			continue
		}
		m := t.mirrors[i]
		if m.probeUnique(key) {
			continue
		}
		_, res, err := m.search(SearchEqual, key, 0, nil)
		if err != nil {
			return err
		}
		if res == ResultEqual {
			return ErrDupl
		}
	}
	return nil
}

// insertIntoIndexes adds row's key to every index, unwinding any index
// already inserted if a later one fails.
func (t *Table) insertIntoIndexes(row int64, rowImage []byte) error {
	done := 0
	for i, kd := range t.keyDescs {
		key := buildKey(rowImage, kd)
		if isAllNullFill(key, kd) {
			done++
			continue
		}
		if err := t.mirrors[i].Insert(key, row); err != nil {
			for j := 0; j < done; j++ {
				jkd := t.keyDescs[j]
				jkey := buildKey(rowImage, jkd)
				if !isAllNullFill(jkey, jkd) {
					t.mirrors[j].Delete(jkey, row)
				}
			}
			return err
		}
		done++
	}
	return nil
}

// removeFromIndexes deletes row's key from every index. Errors from
// one index don't stop removal from the rest: a missing secondary
// entry is not grounds to leave the others dangling.
func (t *Table) removeFromIndexes(row int64, rowImage []byte) error {
	var firstErr error
	for i, kd := range t.keyDescs {
		key := buildKey(rowImage, kd)
		if isAllNullFill(key, kd) {
			continue
		}
		if err := t.mirrors[i].Delete(key, row); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// indexesWithChangedKey returns the index positions whose projected key
// differs between oldData and newData: a rewrite or an undo of one only
// needs to touch these, not every index. A key transitioning to or from
// all-null-fill counts as changed, since its presence in the tree itself
// changes.
func (t *Table) indexesWithChangedKey(oldData, newData []byte) []int {
	var changed []int
	for i, kd := range t.keyDescs {
		oldKey := buildKey(oldData, kd)
		newKey := buildKey(newData, kd)
		oldAbsent := isAllNullFill(oldKey, kd)
		newAbsent := isAllNullFill(newKey, kd)
		if oldAbsent && newAbsent {
			continue
		}
		if oldAbsent != newAbsent || !bytes.Equal(oldKey, newKey) {
			changed = append(changed, i)
		}
	}
	return changed
}

// removeFromIndexSet deletes row's key from just the given index
// positions.
func (t *Table) removeFromIndexSet(idxs []int, row int64, rowImage []byte) error {
	var firstErr error
	for _, i := range idxs {
		kd := t.keyDescs[i]
		key := buildKey(rowImage, kd)
		if isAllNullFill(key, kd) {
			continue
		}
		if err := t.mirrors[i].Delete(key, row); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// insertIntoIndexSet adds row's key to just the given index positions,
// unwinding any already inserted if a later one fails.
func (t *Table) insertIntoIndexSet(idxs []int, row int64, rowImage []byte) error {
	for pos, i := range idxs {
		kd := t.keyDescs[i]
		key := buildKey(rowImage, kd)
		if isAllNullFill(key, kd) {
			continue
		}
		if err := t.mirrors[i].Insert(key, row); err != nil {
			for _, j := range idxs[:pos] {
				jkd := t.keyDescs[j]
				jkey := buildKey(rowImage, jkd)
				if !isAllNullFill(jkey, jkd) {
					t.mirrors[j].Delete(jkey, row)
				}
			}
			return err
		}
	}
	return nil
}

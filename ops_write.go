// Row mutation: Write, Rewrite and their current-record/by-row
// variants.
package isam

import "bytes"

func (t *Table) checkRowLen(data []byte) error {
	if len(data) < t.dict.MinRowLength || len(data) > t.dict.MaxRowLength {
		return ErrRowSize
	}
	return nil
}

// Write inserts a new row, returning its row number.
func (t *Table) Write(data []byte) (int64, error) {
	if err := t.checkRowLen(data); err != nil {
		return 0, err
	}
	if err := t.enter(true); err != nil {
		return 0, err
	}
	defer t.exit()

	if err := t.checkUniqueness(data); err != nil {
		return 0, err
	}
	row, err := allocDataRow(t.cache, &t.cfg, t.dict)
	if err != nil {
		return 0, err
	}
	if err := t.writeRowImage(row, data); err != nil {
		return 0, err
	}
	if err := t.insertIntoIndexes(row, data); err != nil {
		t.tombstoneRow(row)
		freeDataRow(t.cache, &t.cfg, t.dict, row)
		return 0, err
	}
	if err := t.logOp(OpInsert, encodeRowPayload(row, data)); err != nil {
		return 0, err
	}
	return row, nil
}

// checkUniquenessExcluding is checkUniqueness for a rewrite: a key
// that didn't change never conflicts with itself.
func (t *Table) checkUniquenessExcluding(row int64, oldData, newData []byte) error {
	for i, kd := range t.keyDescs {
		if kd.hasDups() {
			continue
		}
		newKey := buildKey(newData, kd)
		if isAllNullFill(newKey, kd) {
			continue
		}
		oldKey := buildKey(oldData, kd)
		if bytes.Equal(newKey, oldKey) {
			continue
		}
		m := t.mirrors[i]
		if m.probeUnique(newKey) {
			continue
		}
		cur, res, err := m.search(SearchEqual, newKey, 0, nil)
		if err != nil {
			return err
		}
		if res == ResultEqual && cur.Ptr != row {
			return ErrDupl
		}
	}
	return nil
}

// rewriteRow replaces row's image in place, removing and reinserting
// its entry in every index whose key changed.
func (t *Table) rewriteRow(row int64, newData []byte) error {
	if err := t.checkRowLen(newData); err != nil {
		return err
	}
	if err := t.enter(true); err != nil {
		return err
	}
	defer t.exit()

	oldData, err := t.readRow(row)
	if err != nil {
		return err
	}
	if err := t.checkUniquenessExcluding(row, oldData, newData); err != nil {
		return err
	}
	changed := t.indexesWithChangedKey(oldData, newData)
	if err := t.removeFromIndexSet(changed, row, oldData); err != nil {
		return err
	}
	if err := t.freeRowTail(row); err != nil {
		return err
	}
	if err := t.writeRowImage(row, newData); err != nil {
		return err
	}
	if err := t.insertIntoIndexSet(changed, row, newData); err != nil {
		return err
	}
	if err := t.logOp(OpUpdate, encodeUpdatePayload(row, oldData)); err != nil {
		return err
	}
	t.cursor = nil
	return nil
}

// RewriteCurrent replaces the row at the handle's current cursor.
func (t *Table) RewriteCurrent(data []byte) error {
	if t.cursor == nil {
		return ErrNoCurr
	}
	return t.rewriteRow(t.cursor.Ptr, data)
}

// RewriteByRow replaces a row addressed directly by its row number,
// independent of any active cursor.
func (t *Table) RewriteByRow(row int64, data []byte) error {
	return t.rewriteRow(row, data)
}

// Rewrite replaces the row whose primary key matches data's primary
// key projection. Requires a unique primary: on a duplicate-keyed
// primary the image alone can't name one row.
func (t *Table) Rewrite(data []byte) error {
	row, err := t.rowByPrimaryKey(data)
	if err != nil {
		return err
	}
	return t.rewriteRow(row, data)
}

// rowByPrimaryKey resolves a row image to its row number via the
// primary index, the addressing mode Rewrite and Delete share.
func (t *Table) rowByPrimaryKey(data []byte) (int64, error) {
	if t.keyDescs[0].hasDups() {
		return 0, ErrPrimKey
	}
	if err := t.enter(false); err != nil {
		return 0, err
	}
	defer t.exit()
	key := buildKey(data, t.keyDescs[0])
	cur, res, err := t.mirrors[0].search(SearchEqual, key, 0, nil)
	if err != nil {
		return 0, err
	}
	if cur == nil || res != ResultEqual {
		return 0, ErrNoRec
	}
	return cur.Ptr, nil
}

// WriteCurrent inserts a new row and leaves the handle's cursor on its
// entry in the active index, so a following ReadCurr (or
// RewriteCurrent/DeleteCurrent) addresses the row just written.
func (t *Table) WriteCurrent(data []byte) (int64, error) {
	row, err := t.Write(data)
	if err != nil {
		return 0, err
	}
	if err := t.enter(false); err != nil {
		return row, err
	}
	defer t.exit()
	cur, err := t.locateRowEntry(t.activeIndex, data, row)
	if err != nil {
		return row, err
	}
	t.cursor = cur
	return row, nil
}

// locateRowEntry finds row's entry in index, walking through the
// duplicate group when the key admits more than one. A NULL_KEY row
// whose key is all null-fill has no entry at all; the returned nil
// cursor leaves the handle with no current record.
func (t *Table) locateRowEntry(index int, rowImage []byte, row int64) (*Cursor, error) {
	kd := t.keyDescs[index]
	key := buildKey(rowImage, kd)
	if isAllNullFill(key, kd) {
		return nil, nil
	}
	m := t.mirrors[index]
	cur, res, err := m.search(SearchEqual, key, 0, nil)
	if err != nil {
		return nil, err
	}
	if cur == nil || res != ResultEqual {
		return nil, ErrNoRec
	}
	for cur != nil && compareKeys(cur.Key, key, kd) == 0 {
		if cur.Ptr == row {
			return cur, nil
		}
		cur, _, err = m.Next(cur)
		if err != nil {
			return nil, err
		}
	}
	return nil, ErrNoRec
}

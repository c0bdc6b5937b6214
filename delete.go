// Row deletion: Delete, DeleteCurrent and DeleteByRow.
package isam

// deleteRow tombstones row and removes it from every index. Freeing its
// slot number back to the data freelist happens immediately only
// outside a transaction; inside one, the free is deferred to Commit
// (txnHandle.pendingFrees) so a row this transaction might still roll back
// never becomes reallocatable to some other handle in the meantime —
// Rollback's undo needs to put the original image straight back into
// the same row number, which only works if nobody else claimed it
// first.
func (t *Table) deleteRow(row int64) error {
	if err := t.enter(true); err != nil {
		return err
	}
	defer t.exit()

	data, err := t.readRow(row)
	if err != nil {
		return err
	}
	if err := t.removeFromIndexes(row, data); err != nil {
		return err
	}
	if err := t.freeRowTail(row); err != nil {
		return err
	}
	if err := t.tombstoneRow(row); err != nil {
		return err
	}
	if t.mode&ModeTransactions != 0 && t.txn.mode == txnActive {
		t.txn.pendingFrees = append(t.txn.pendingFrees, row)
	} else if err := freeDataRow(t.cache, &t.cfg, t.dict, row); err != nil {
		return err
	}
	if err := t.logOp(OpDelete, encodeRowPayload(row, data)); err != nil {
		return err
	}
	t.cursor = nil
	return nil
}

// DeleteCurrent removes the row at the handle's current cursor.
func (t *Table) DeleteCurrent() error {
	if t.cursor == nil {
		return ErrNoCurr
	}
	return t.deleteRow(t.cursor.Ptr)
}

// DeleteByRow removes a row addressed directly by its row number.
func (t *Table) DeleteByRow(row int64) error {
	return t.deleteRow(row)
}

// Delete removes the row whose primary key matches data's primary key
// projection. Like Rewrite, this addressing mode needs a unique
// primary to name exactly one row.
func (t *Table) Delete(data []byte) error {
	row, err := t.rowByPrimaryKey(data)
	if err != nil {
		return err
	}
	return t.deleteRow(row)
}

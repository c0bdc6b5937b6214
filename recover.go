// Crash recovery: undo every transaction whose log chain never reached
// a CW or RW record. Unlike Rollback, which walks back from a live
// handle's in-memory txn state, Recover has to reconstruct which
// transactions were left open purely from a forward scan of the log,
// since the process that wrote them is gone.
//
// The applicator below bypasses Write/Rewrite/Delete (and their
// logging and uniqueness pre-checks) on purpose: those checks already
// passed the first time these rows were mutated, and re-running them
// during recovery would reject a legitimate undo the moment two
// in-flight transactions happened to touch the same key.
package isam

type openTxn struct {
	pid        int32
	lastOffset int64
}

// Recover opens path exclusively, rolls back every transaction left
// incomplete by a prior crash, and returns how many it undid.
func Recover(path string) (int, error) {
	t, err := Open(path, ModeExclusive|ModeTransactions)
	if err != nil {
		return 0, err
	}
	defer t.Close()

	// Transaction numbers are only unique within the process that
	// issued them, so records are grouped by (pid, txn).
	type txnKey struct {
		pid int32
		txn int64
	}
	open := make(map[txnKey]*openTxn)
	if err := t.txlog.scanForward(func(offset int64, rec logRecord) error {
		k := txnKey{rec.PID, rec.Txn}
		switch rec.Opcode {
		case OpBeginWork:
			open[k] = &openTxn{pid: rec.PID, lastOffset: offset}
		case OpCommitWork, OpRollback:
			delete(open, k)
		case OpInsert, OpUpdate, OpDelete:
			if o, ok := open[k]; ok {
				o.lastOffset = offset
			}
		}
		return nil
	}); err != nil {
		return 0, err
	}

	if err := t.enter(true); err != nil {
		return 0, err
	}
	defer t.exit()
	count := 0
	for k, o := range open {
		if err := t.applyUndo(o.lastOffset); err != nil {
			t.poison()
			return count, err
		}
		if _, err := t.txlog.append(logRecord{Opcode: OpRollback, PID: o.pid, Txn: k.txn, PrevOffset: o.lastOffset}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// applyUndo walks back from offset applying the same per-opcode undo
// rollbackLocked uses, without touching any in-memory txnHandle state.
func (t *Table) applyUndo(offset int64) error {
	return t.txlog.walkBack(offset, func(rec logRecord) error {
		switch rec.Opcode {
		case OpInsert:
			row, data := decodeRowPayload(rec.Payload)
			if err := t.removeFromIndexes(row, data); err != nil {
				return err
			}
			if err := t.freeRowTail(row); err != nil {
				return err
			}
			if err := t.tombstoneRow(row); err != nil {
				return err
			}
			return freeDataRow(t.cache, &t.cfg, t.dict, row)
		case OpUpdate:
			row, oldImage, err := decodeUpdatePayload(rec.Payload)
			if err != nil {
				return err
			}
			cur, err := t.readRow(row)
			if err != nil {
				return err
			}
			changed := t.indexesWithChangedKey(cur, oldImage)
			if err := t.removeFromIndexSet(changed, row, cur); err != nil {
				return err
			}
			if err := t.freeRowTail(row); err != nil {
				return err
			}
			if err := t.writeRowImage(row, oldImage); err != nil {
				return err
			}
			return t.insertIntoIndexSet(changed, row, oldImage)
		case OpDelete:
			row, data := decodeRowPayload(rec.Payload)
			if err := forceDataAlloc(t.cache, &t.cfg, t.dict, row); err != nil {
				return err
			}
			if err := t.writeRowImage(row, data); err != nil {
				return err
			}
			return t.insertIntoIndexes(row, data)
		default:
			return nil
		}
	})
}

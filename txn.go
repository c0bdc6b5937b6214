// Transaction state machine: Begin/Commit/Rollback and the backward
// replay that undoes one transaction's IN/UP/DE records against the
// live table.
//
// Rollback only understands the three data-mutating opcodes; FO/FC/
// ER/RE/BU/CI/DI/SU/UN/CL records are skipped when walking back, since
// none of Build/AddIndex/DelIndex/SetUnique/UniqueID/Rename support
// transactional undo. Build hands back an exclusive handle and
// AddIndex/DelIndex require ModeExclusive, which already rules out a
// concurrent reader needing the old shape back; SetUnique/UniqueID
// only ever move the monotone unique-id counter forward; Rename works
// on closed files and takes no handle at all.
package isam

type txnMode int

const (
	txnNone txnMode = iota
	txnActive
)

// txnHandle is the per-Table transaction state. began tracks whether a
// BW record has actually been written yet: Begin itself stays silent,
// and logOp writes BW lazily on the first modifying call, so a
// Begin/Commit (or Begin/Rollback) with no write in between never
// touches the log at all. pendingFrees holds the rows a DeleteCurrent/
// DeleteByRow inside this transaction tombstoned but hasn't yet
// returned to the data freelist; deleteRow defers that until Commit,
// so a row a concurrent handle could reallocate never goes back on the
// freelist while this transaction might still roll back and need the
// row number back (see deleteRow's comment).
type txnHandle struct {
	mode         txnMode
	id           int64
	lastOffset   int64
	began        bool
	pendingFrees []int64
}

var txnSeq int64

func nextTxnID() int64 {
	txnSeq++
	return txnSeq
}

// openLog opens (or creates) this table's write-ahead log file, used
// by Open when ModeTransactions was requested up front.
func (t *Table) openLog() error {
	return t.LogOpen("")
}

// LogOpen attaches a write-ahead log to a handle opened without
// ModeTransactions, enabling Begin/Commit/Rollback after the fact.
// path names the log file; "" selects the table's default
// <basename>.log. Fails ErrLogOpen if this handle already has one.
func (t *Table) LogOpen(path string) error {
	if t.txlog != nil {
		return ErrLogOpen
	}
	if path == "" {
		path = logPath(t.basePath)
	}
	f, err := openOrCreate(path)
	if err != nil {
		return ErrLogOpen
	}
	l, err := openTxLog(f)
	if err != nil {
		f.Close()
		return err
	}
	t.logFile = f
	t.txlog = l
	t.mode |= ModeTransactions
	return nil
}

// LogClose detaches the handle's write-ahead log, rolling back any
// transaction still open the same way Close would. Subsequent writes
// run unlogged until the next LogOpen.
func (t *Table) LogClose() error {
	if t.txlog == nil {
		return ErrNoLog
	}
	if t.txn.mode == txnActive {
		if err := t.Rollback(); err != nil {
			return err
		}
	}
	err := t.logFile.Close()
	t.logFile = nil
	t.txlog = nil
	t.mode &^= ModeTransactions
	return err
}

// logOp appends one record chained onto the current transaction. A
// write outside any transaction (log open, no Begin) is applied
// directly and left unlogged: it has no BW/CW bracket for recovery to
// reason about, so logging it would only make Recover misread it as an
// orphan to undo. The transaction's BW record is written here, on the
// first call, rather than by Begin itself.
func (t *Table) logOp(opcode string, payload []byte) error {
	if t.mode&ModeTransactions == 0 || t.txn.mode != txnActive {
		return nil
	}
	if !t.txn.began {
		bwOff, err := t.txlog.append(logRecord{Opcode: OpBeginWork, PID: processID(), Txn: t.txn.id})
		if err != nil {
			return err
		}
		t.txn.lastOffset = bwOff
		t.txn.began = true
	}
	off, err := t.txlog.append(logRecord{
		Opcode:     opcode,
		PID:        processID(),
		Txn:        t.txn.id,
		PrevOffset: t.txn.lastOffset,
		Payload:    payload,
	})
	if err != nil {
		return err
	}
	t.txn.lastOffset = off
	return nil
}

// Begin opens a new transaction. Requires ModeTransactions. No log
// record is written yet: BW only appears once the transaction actually
// modifies something.
func (t *Table) Begin() error {
	if t.mode&ModeTransactions == 0 {
		return ErrNoLog
	}
	if t.txn.mode == txnActive {
		return ErrNoTrans
	}
	t.txn = txnHandle{mode: txnActive, id: nextTxnID()}
	return nil
}

// Commit closes out the current transaction, making its writes
// permanent and releasing every row lock the transaction took. A
// transaction that never wrote anything (no BW ever emitted) leaves no
// trace in the log at all. Any row deleteRow tombstoned during the
// transaction but deferred freeing is returned to the data freelist
// only now, after CW is durable, never before.
func (t *Table) Commit() error {
	if t.txn.mode != txnActive {
		return ErrNoTrans
	}
	var err error
	if t.txn.began {
		_, err = t.txlog.append(logRecord{
			Opcode:     OpCommitWork,
			PID:        processID(),
			Txn:        t.txn.id,
			PrevOffset: t.txn.lastOffset,
		})
	}
	pending := t.txn.pendingFrees
	t.txn = txnHandle{}
	t.releaseAllRowLocks()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	if err := t.enter(true); err != nil {
		return err
	}
	defer t.exit()
	for _, row := range pending {
		if err := freeDataRow(t.cache, &t.cfg, t.dict, row); err != nil {
			return err
		}
	}
	return nil
}

// Rollback undoes every write the current transaction made.
func (t *Table) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollbackLocked()
}

// rollbackLocked is Rollback's body, callable from Close while t.mu is
// already held. A transaction that never wrote anything has nothing to
// undo and nothing to log.
func (t *Table) rollbackLocked() error {
	if t.txn.mode != txnActive {
		return ErrNoTrans
	}
	if t.txn.began {
		if err := t.enter(true); err != nil {
			return err
		}
		err := t.applyUndo(t.txn.lastOffset)
		t.exit()
		if err != nil {
			t.poison()
			return err
		}
		if _, err := t.txlog.append(logRecord{
			Opcode:     OpRollback,
			PID:        processID(),
			Txn:        t.txn.id,
			PrevOffset: t.txn.lastOffset,
		}); err != nil {
			t.poison()
			return err
		}
	}
	t.txn = txnHandle{}
	t.releaseAllRowLocks()
	return nil
}

// Process-wide row-lock and file-open bookkeeping shared by every
// Table handle open on the same table in this process: each file
// descriptor is refcounted per process, and the row-lock list is
// shared across same-process handles of the same table.
//
// OS byte-range locks (lock.go/lock_unix.go) catch cross-process
// conflicts; fcntl locks are scoped to (process, inode), so a second
// handle opened by the *same* process never actually conflicts at the
// OS level. sharedState is the in-memory list that makes LOCKED and
// FLOCKED correct within one process.
package isam

import "sync"

type sharedState struct {
	mu   sync.Mutex
	cond *sync.Cond
	refs int

	rowLocks map[int64]int64 // row number -> owning handle id
	allRows  int64           // handle id holding the table-wide row lock, 0 = none

	exclusiveHolder int64 // handle id holding ModeExclusive, 0 = none
	openCount       int   // number of non-exclusive handles currently open
}

var tableRegistry = struct {
	mu     sync.Mutex
	tables map[string]*sharedState
}{tables: make(map[string]*sharedState)}

func acquireShared(key string) *sharedState {
	tableRegistry.mu.Lock()
	defer tableRegistry.mu.Unlock()
	st := tableRegistry.tables[key]
	if st == nil {
		st = &sharedState{rowLocks: make(map[int64]int64)}
		st.cond = sync.NewCond(&st.mu)
		tableRegistry.tables[key] = st
	}
	st.refs++
	return st
}

func releaseShared(key string, st *sharedState) {
	tableRegistry.mu.Lock()
	defer tableRegistry.mu.Unlock()
	st.refs--
	if st.refs <= 0 {
		delete(tableRegistry.tables, key)
	}
}

// claimOpen records this handle's open mode against the shared state,
// failing FLOCKED if it conflicts with an existing same-process
// opener (the in-process half of the file-open lock; the OS-level
// half is TryLockFileOpen in table.go).
func (s *sharedState) claimOpen(handleID int64, exclusive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exclusiveHolder != 0 || (exclusive && s.openCount > 0) {
		return ErrFLocked
	}
	if exclusive {
		s.exclusiveHolder = handleID
	} else {
		s.openCount++
	}
	return nil
}

func (s *sharedState) releaseOpen(handleID int64, exclusive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exclusive {
		if s.exclusiveHolder == handleID {
			s.exclusiveHolder = 0
		}
	} else if s.openCount > 0 {
		s.openCount--
	}
}

// lockRow records row as held by handleID. wait selects blocking vs.
// non-blocking acquisition when the row is already held by a
// different handle: re-locking a row already held by another handle
// fails with LOCKED; re-locking by the same handle is a no-op.
func (s *sharedState) lockRow(handleID, row int64, wait bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if owner, held := s.rowLocks[row]; !held || owner == handleID {
			s.rowLocks[row] = handleID
			return nil
		}
		if !wait {
			return ErrLocked
		}
		s.cond.Wait()
	}
}

func (s *sharedState) unlockRow(handleID, row int64) {
	s.mu.Lock()
	if s.rowLocks[row] == handleID {
		delete(s.rowLocks, row)
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// lockAllRows takes the table-wide row lock (ISLOCKALL).
func (s *sharedState) lockAllRows(handleID int64, wait bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.allRows == 0 || s.allRows == handleID {
			s.allRows = handleID
			return nil
		}
		if !wait {
			return ErrLocked
		}
		s.cond.Wait()
	}
}

func (s *sharedState) unlockAllRows(handleID int64) {
	s.mu.Lock()
	if s.allRows == handleID {
		s.allRows = 0
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// releaseHandleRowLocks drops every row lock (and the all-rows lock,
// if held) belonging to handleID, used by Close/Commit/Rollback.
func (s *sharedState) releaseHandleRowLocks(handleID int64) {
	s.mu.Lock()
	for row, owner := range s.rowLocks {
		if owner == handleID {
			delete(s.rowLocks, row)
		}
	}
	if s.allRows == handleID {
		s.allRows = 0
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// rowsHeldBy returns every row number handleID currently holds a
// per-row lock on, so the caller can drop the matching OS byte-range
// locks before the in-process bookkeeping forgets which rows they were.
func (s *sharedState) rowsHeldBy(handleID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []int64
	for row, owner := range s.rowLocks {
		if owner == handleID {
			rows = append(rows, row)
		}
	}
	return rows
}

// isLockedByOther reports whether row is held by a handle other than
// handleID, used by reads that take no row lock of their own: such a
// read fails LOCKED, or under SKIPLOCK returns the row with the
// advisory error.
func (s *sharedState) isLockedByOther(handleID, row int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, held := s.rowLocks[row]
	return held && owner != handleID
}

// releaseAllRowLocks drops every lock this handle holds, both the
// in-process bookkeeping and the OS byte-range locks, called from
// Close and from the end of a committed or rolled-back transaction.
// The OS ranges have to be unlocked one row at a time, and before the
// in-process map is cleared: the map is the only record of which rows
// this handle locked.
func (t *Table) releaseAllRowLocks() {
	for _, row := range t.shared.rowsHeldBy(t.handleID) {
		t.lock.UnlockRow(row)
	}
	t.shared.releaseHandleRowLocks(t.handleID)
	t.lock.UnlockAllRows()
}

// Release drops every per-row lock this handle holds, keeping any
// table-wide lock from LockAll and the file-open lock. Unlike Commit
// and Rollback it touches no transaction state, so a caller can shed
// read locks mid-transaction.
func (t *Table) Release() error {
	for _, row := range t.shared.rowsHeldBy(t.handleID) {
		t.shared.unlockRow(t.handleID, row)
		t.lock.UnlockRow(row)
	}
	return nil
}

// ReleaseRow drops the lock on one row, whether it came from Lock or
// from a locking read.
func (t *Table) ReleaseRow(row int64) error {
	return t.Unlock(row)
}

// ReleaseCurrent drops the lock on the row under the handle's cursor.
func (t *Table) ReleaseCurrent() error {
	if t.cursor == nil {
		return ErrNoCurr
	}
	return t.Unlock(t.cursor.Ptr)
}

// Lock takes an explicit, manual row lock on row, failing LOCKED if
// another handle already holds it. Requires ModeManualLock.
func (t *Table) Lock(row int64, wait bool) error {
	if t.mode&ModeManualLock == 0 {
		return ErrNoManualLock
	}
	if err := t.shared.lockRow(t.handleID, row, wait); err != nil {
		return err
	}
	if wait {
		if err := t.lock.LockRow(row, LockExclusive); err != nil {
			t.shared.unlockRow(t.handleID, row)
			return err
		}
		return nil
	}
	if err := t.lock.TryLockRow(row, LockExclusive); err != nil {
		t.shared.unlockRow(t.handleID, row)
		return ErrLocked
	}
	return nil
}

// Unlock releases a row previously taken with Lock (or implicitly
// locked by a read).
func (t *Table) Unlock(row int64) error {
	t.shared.unlockRow(t.handleID, row)
	return t.lock.UnlockRow(row)
}

// LockAll takes the table-wide row lock (ISLOCKALL).
func (t *Table) LockAll(wait bool) error {
	if t.mode&ModeManualLock == 0 {
		return ErrNoManualLock
	}
	if err := t.shared.lockAllRows(t.handleID, wait); err != nil {
		return err
	}
	if err := t.lock.LockAllRows(LockExclusive); err != nil {
		t.shared.unlockAllRows(t.handleID)
		return err
	}
	return nil
}

// UnlockAll releases the table-wide row lock.
func (t *Table) UnlockAll() error {
	t.shared.unlockAllRows(t.handleID)
	return t.lock.UnlockAllRows()
}

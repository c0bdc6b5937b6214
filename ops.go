// Table-level positioning and reads.
//
// Start selects which index subsequent Read calls search against; Read
// itself is one function parameterized by an eight-way positioning
// mode, mirroring ISFIRST/ISLAST/ISNEXT/.../ISPREV by reusing
// btsearch.go's SearchFirst..SearchPrev values directly: the Read*
// names below are aliases of them, not a separate numbering.
package isam

// Read-mode aliases, named for the public API but numerically identical
// to the Mirror-level search modes they drive.
const (
	ReadFirst = SearchFirst
	ReadLast  = SearchLast
	ReadEqual = SearchEqual
	ReadGteq  = SearchGteq
	ReadGreat = SearchGreat
	ReadCurr  = SearchCurr
	ReadNext  = SearchNext
	ReadPrev  = SearchPrev
)

// Read flags.
const (
	FlagLock     = 1 << iota // take a row lock on the returned row
	FlagSkipLock             // don't fail on a row another handle has locked: return it anyway, with ErrLocked as an advisory
	FlagWait                 // block on a conflicting row lock instead of failing immediately
)

// Start selects index for subsequent Read calls, 0 being the primary
// key. Resets the handle's current-record cursor.
func (t *Table) Start(index int) error {
	if index < 0 || index >= len(t.mirrors) {
		return ErrBadArg
	}
	if err := t.enter(false); err != nil {
		return err
	}
	defer t.exit()
	t.activeIndex = index
	t.cursor = nil
	return nil
}

// Read locates a row by mode against the active index and returns its
// full image and row number. mode == ReadEqual requires key (and dup,
// for a duplicate-keyed index) to match exactly; the others position
// relative to key or the handle's current cursor (ReadCurr/Next/Prev).
// A row another handle has locked fails ErrLocked with no image, unless
// FlagSkipLock is set: then the image and row come back together with
// ErrLocked as an advisory (and FlagLock's lock is not taken).
func (t *Table) Read(mode int, key []byte, dup int64, flags int) ([]byte, int64, error) {
	if err := t.enter(false); err != nil {
		return nil, 0, err
	}
	defer t.exit()

	m := t.mirrors[t.activeIndex]
	cur, res, err := m.search(mode, key, dup, t.cursor)
	if err != nil {
		return nil, 0, err
	}
	// An empty index has no record for FIRST/LAST/EQUAL to find; only
	// walking off either end of a populated index is end-of-file.
	if res == ResultEmpty {
		return nil, 0, ErrNoRec
	}
	if mode == ReadEqual && (cur == nil || res != ResultEqual) {
		return nil, 0, ErrNoRec
	}
	if cur == nil || res == ResultEOF {
		return nil, 0, ErrEndFile
	}
	row := cur.Ptr
	var advisory error

	if flags&FlagLock != 0 {
		wait := flags&FlagWait != 0
		lockErr := t.shared.lockRow(t.handleID, row, wait)
		if lockErr == nil {
			lockErr = func() error {
				if wait {
					return t.lock.LockRow(row, LockExclusive)
				}
				return t.lock.TryLockRow(row, LockExclusive)
			}()
			if lockErr != nil {
				t.shared.unlockRow(t.handleID, row)
			}
		}
		if lockErr != nil && flags&FlagSkipLock == 0 {
			return nil, 0, ErrLocked
		} else if lockErr != nil {
			advisory = ErrLocked
		}
	} else if t.mode&ModeManualLock == 0 && t.shared.isLockedByOther(t.handleID, row) {
		if flags&FlagSkipLock == 0 {
			return nil, 0, ErrLocked
		}
		advisory = ErrLocked
	}

	data, err := t.readRow(row)
	if err != nil {
		return nil, 0, err
	}
	t.cursor = cur
	return data, row, advisory
}

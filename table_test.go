// End-to-end exercises of the handle API: build/write/read ordering,
// delete and row reuse, transaction rollback, variable-length rows,
// same-process row locking, secondary indexes with duplicates, and
// crash recovery.
package isam

import (
	"fmt"
	"path/filepath"
	"testing"
)

func newTestTable(t *testing.T, minRow, maxRow int, primary *KeyDescriptor, mode int) *Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t")
	tbl, err := Build(path, minRow, maxRow, primary, Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })
	if mode != ModeExclusive {
		if err := tbl.Close(); err != nil {
			t.Fatalf("Close after Build: %v", err)
		}
		tbl, err = Open(path, mode)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { tbl.Close() })
	}
	return tbl
}

func charKey(start, length int, dups bool, leadingCompress bool) *KeyDescriptor {
	flags := 0
	if dups {
		flags |= DUPS
	}
	if leadingCompress {
		flags |= LeadingCompress
	}
	return &KeyDescriptor{
		Flags: flags,
		Parts: []KeyPart{{Start: start, Length: length, Type: CharType}},
	}
}

// Scenario 1: fixed-length table, primary key (0,4,CHAR); FIRST/NEXT/NEXT.
func TestScenario1RoundTripOrder(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	if _, err := tbl.Write([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Write row 1: %v", err)
	}
	if _, err := tbl.Write([]byte("0002bbbbbbbbbbbb")); err != nil {
		t.Fatalf("Write row 2: %v", err)
	}

	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	data, _, err := tbl.Read(ReadFirst, nil, 0, 0)
	if err != nil {
		t.Fatalf("Read(FIRST): %v", err)
	}
	if string(data) != "0001aaaaaaaaaaaa" {
		t.Fatalf("Read(FIRST) = %q, want 0001...", data)
	}
	data, _, err = tbl.Read(ReadNext, nil, 0, 0)
	if err != nil {
		t.Fatalf("Read(NEXT): %v", err)
	}
	if string(data) != "0002bbbbbbbbbbbb" {
		t.Fatalf("Read(NEXT) = %q, want 0002...", data)
	}
	if _, _, err := tbl.Read(ReadNext, nil, 0, 0); err != ErrEndFile {
		t.Fatalf("Read(NEXT) past end = %v, want ErrEndFile", err)
	}
}

// Scenario 2: delete a row and confirm both halves of the historical
// behavior — the tombstone byte right after row 1's fixed payload
// flips to 0x00 in the data file, and the slot number comes back from
// the freelist on the next write.
func TestScenario2DeleteFreesRowForReuse(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	row1, err := tbl.Write([]byte("0001aaaaaaaaaaaa"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := tbl.Write([]byte("0002bbbbbbbbbbbb")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := tbl.DeleteByRow(row1); err != nil {
		t.Fatalf("DeleteByRow: %v", err)
	}
	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := tbl.Read(ReadEqual, []byte("0001"), 0, 0); err != ErrNoRec {
		t.Fatalf("Read(EQUAL, deleted key) = %v, want ErrNoRec", err)
	}

	slot := make([]byte, 1)
	if _, err := tbl.dataFile.ReadAt(slot, 16); err != nil {
		t.Fatalf("read tombstone byte: %v", err)
	}
	if slot[0] != 0x00 {
		t.Fatalf("tombstone byte at offset 16 = %#x, want 0x00", slot[0])
	}

	row3, err := tbl.Write([]byte("0003cccccccccccc"))
	if err != nil {
		t.Fatalf("Write after delete: %v", err)
	}
	if row3 != row1 {
		t.Fatalf("reused row = %d, want freed row %d", row3, row1)
	}
}

// Scenario 3: TRANS mode, begin/write/rollback undoes the write and
// frees the row again.
func TestScenario3TransactionRollback(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive|ModeTransactions)

	if err := tbl.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	row, err := tbl.Write([]byte("0003cccccccccccc"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tbl.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := tbl.Read(ReadEqual, []byte("0003"), 0, 0); err != ErrNoRec {
		t.Fatalf("Read(EQUAL) after rollback = %v, want ErrNoRec", err)
	}

	// The freed row must be available again.
	row2, err := tbl.Write([]byte("0004dddddddddddd"))
	if err != nil {
		t.Fatalf("Write after rollback: %v", err)
	}
	if row2 != row {
		t.Fatalf("row after rollback write = %d, want reused row %d", row2, row)
	}
}

// Scenario 4: variable-length table, a row whose image overflows the
// fixed minimum reconstructs losslessly through the varlen tail store.
func TestScenario4VarlenRoundTrip(t *testing.T) {
	tbl := newTestTable(t, 8, 64, charKey(0, 4, false, false), ModeExclusive)

	image := []byte("0001" + string(make([]byte, 46)))
	for i := 4; i < len(image); i++ {
		image[i] = byte('a' + (i % 26))
	}
	if len(image) != 50 {
		t.Fatalf("test setup: image length = %d, want 50", len(image))
	}

	row, err := tbl.Write(image)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, _, err := tbl.Read(ReadEqual, []byte("0001"), 0, 0)
	if err != nil {
		t.Fatalf("Read(EQUAL): %v", err)
	}
	if string(got) != string(image) {
		t.Fatalf("round-tripped row = %q, want %q", got, image)
	}

	got2, err := tbl.readRow(row)
	if err != nil {
		t.Fatalf("readRow: %v", err)
	}
	if string(got2) != string(image) {
		t.Fatalf("readRow = %q, want %q", got2, image)
	}
}

// Scenario 5 (same-process variant): a row lock held by one handle is
// reported LOCKED to a non-blocking LOCK read on another handle opened
// on the same table; releasing it lets the second handle proceed.
func TestScenario5RowLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t")
	primary := charKey(0, 4, false, false)
	a, err := Build(path, 16, 16, primary, Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Build's handle is exclusive: reopen shared so b can join.
	if err := a.Close(); err != nil {
		t.Fatalf("Close after Build: %v", err)
	}
	a, err = Open(path, 0)
	if err != nil {
		t.Fatalf("Open first handle: %v", err)
	}
	defer a.Close()
	if _, err := a.Write([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	b, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open second handle: %v", err)
	}
	defer b.Close()

	if err := a.Start(0); err != nil {
		t.Fatalf("a.Start: %v", err)
	}
	if _, _, err := a.Read(ReadEqual, []byte("0001"), 0, FlagLock); err != nil {
		t.Fatalf("a.Read(LOCK): %v", err)
	}

	if err := b.Start(0); err != nil {
		t.Fatalf("b.Start: %v", err)
	}
	if _, _, err := b.Read(ReadEqual, []byte("0001"), 0, FlagLock); err != ErrLocked {
		t.Fatalf("b.Read(LOCK) while a holds it = %v, want ErrLocked", err)
	}

	if err := a.Unlock(1); err != nil {
		t.Fatalf("a.Unlock: %v", err)
	}
	if _, _, err := b.Read(ReadEqual, []byte("0001"), 0, FlagLock); err != nil {
		t.Fatalf("b.Read(LOCK) after unlock: %v", err)
	}
}

// Scenario 6: add a DUPS|LCOMPRESS secondary index after data already
// exists; rows come back ordered by the new index's key, and
// duplicate rows preserve write order by duplicate sequence number.
func TestScenario6AddIndexWithDuplicates(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	rows := []string{
		"0001zzzzzzzzzzzz",
		"0002yyyyyyyyyyyy",
		"0003zzzzzzzzzzzz", // shares bytes [4:16) with row 0001
		"0004xxxxxxxxxxxx",
	}
	for _, r := range rows {
		if _, err := tbl.Write([]byte(r)); err != nil {
			t.Fatalf("Write(%q): %v", r, err)
		}
	}

	secondary := charKey(4, 12, true, true)
	idx, err := tbl.AddIndex(secondary)
	if err != nil {
		t.Fatalf("AddIndex: %v", err)
	}
	if idx != 1 {
		// AddIndex returns the new index's number; it is appended
		// after the primary, which stays index 0.
		t.Fatalf("AddIndex returned %d, want 1 (new index appended after the primary)", idx)
	}

	if err := tbl.Start(idx); err != nil {
		t.Fatalf("Start(secondary): %v", err)
	}
	var got []string
	data, _, err := tbl.Read(ReadFirst, nil, 0, 0)
	for err == nil {
		got = append(got, string(data))
		data, _, err = tbl.Read(ReadNext, nil, 0, 0)
	}
	if err != ErrEndFile {
		t.Fatalf("traversal ended with %v, want ErrEndFile", err)
	}
	want := []string{
		"0004xxxxxxxxxxxx",
		"0002yyyyyyyyyyyy",
		"0001zzzzzzzzzzzz",
		"0003zzzzzzzzzzzz",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d = %q, want %q (full order %v)", i, got[i], want[i], got)
		}
	}
}

// Property 2: duplicate discipline. A NODUPS index rejects a second
// row projecting onto an existing key; a DUPS index accepts it.
func TestDuplicateDiscipline(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	if _, err := tbl.Write([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := tbl.Write([]byte("0001bbbbbbbbbbbb")); err != ErrDupl {
		t.Fatalf("Write(duplicate primary key) = %v, want ErrDupl", err)
	}

	dupTbl := newTestTable(t, 16, 16, charKey(0, 4, true, false), ModeExclusive)
	if _, err := dupTbl.Write([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Write into DUPS index: %v", err)
	}
	if _, err := dupTbl.Write([]byte("0001bbbbbbbbbbbb")); err != nil {
		t.Fatalf("Write duplicate into DUPS index: %v", err)
	}
}

// Property 1 / TOF/EOF, at a scale that forces a leaf split and a new
// root (exercising cross-leaf Next/Prev, not just within a single node).
func TestManyRowsTraversalAndSplits(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	const n = 300
	for i := 0; i < n; i++ {
		row := fmt.Sprintf("%04dxxxxxxxxxxxx", i)
		if _, err := tbl.Write([]byte(row)); err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
	}

	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	count := 0
	data, _, err := tbl.Read(ReadFirst, nil, 0, 0)
	var prev string
	for err == nil {
		if count > 0 && string(data[:4]) <= prev {
			t.Fatalf("out of order at %d: prev=%q cur=%q", count, prev, data[:4])
		}
		prev = string(data[:4])
		count++
		data, _, err = tbl.Read(ReadNext, nil, 0, 0)
	}
	if err != ErrEndFile {
		t.Fatalf("forward traversal ended with %v, want ErrEndFile", err)
	}
	if count != n {
		t.Fatalf("forward traversal visited %d rows, want %d", count, n)
	}

	// Walk backward from LAST and confirm the same count, descending order.
	data, _, err = tbl.Read(ReadLast, nil, 0, 0)
	if err != nil {
		t.Fatalf("Read(LAST): %v", err)
	}
	back := 1
	for {
		data2, _, err := tbl.Read(ReadPrev, nil, 0, 0)
		if err == ErrEndFile {
			break
		}
		if err != nil {
			t.Fatalf("Read(PREV): %v", err)
		}
		if string(data2[:4]) >= string(data[:4]) {
			t.Fatalf("backward traversal not descending: %q then %q", data, data2)
		}
		data = data2
		back++
	}
	if back != n {
		t.Fatalf("backward traversal visited %d rows, want %d", back, n)
	}
}

// TOF/EOF discipline: FIRST/LAST on an empty table report no-record,
// while running off either end of a populated table is end-of-file.
func TestEmptyTableNoRecord(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)
	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := tbl.Read(ReadFirst, nil, 0, 0); err != ErrNoRec {
		t.Fatalf("Read(FIRST) on empty table = %v, want ErrNoRec", err)
	}
	if _, _, err := tbl.Read(ReadLast, nil, 0, 0); err != ErrNoRec {
		t.Fatalf("Read(LAST) on empty table = %v, want ErrNoRec", err)
	}

	if _, err := tbl.Write([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, _, err := tbl.Read(ReadFirst, nil, 0, 0); err != nil {
		t.Fatalf("Read(FIRST): %v", err)
	}
	if _, _, err := tbl.Read(ReadPrev, nil, 0, 0); err != ErrEndFile {
		t.Fatalf("Read(PREV) at first row = %v, want ErrEndFile", err)
	}
	if _, _, err := tbl.Read(ReadLast, nil, 0, 0); err != nil {
		t.Fatalf("Read(LAST): %v", err)
	}
	if _, _, err := tbl.Read(ReadNext, nil, 0, 0); err != ErrEndFile {
		t.Fatalf("Read(NEXT) at last row = %v, want ErrEndFile", err)
	}
}

// Position stability: an intervening non-modifying read doesn't move
// the cursor out from under a later Read(CURR).
func TestPositionStability(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)
	for _, r := range []string{"0001aaaaaaaaaaaa", "0002bbbbbbbbbbbb", "0003cccccccccccc"} {
		if _, err := tbl.Write([]byte(r)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := tbl.Read(ReadFirst, nil, 0, 0); err != nil {
		t.Fatalf("Read(FIRST): %v", err)
	}
	data, _, err := tbl.Read(ReadNext, nil, 0, 0)
	if err != nil {
		t.Fatalf("Read(NEXT): %v", err)
	}
	if string(data) != "0002bbbbbbbbbbbb" {
		t.Fatalf("Read(NEXT) = %q", data)
	}
	cur, _, err := tbl.Read(ReadCurr, nil, 0, 0)
	if err != nil {
		t.Fatalf("Read(CURR): %v", err)
	}
	if string(cur) != "0002bbbbbbbbbbbb" {
		t.Fatalf("Read(CURR) = %q, want the same row NEXT returned", cur)
	}
}

// Rewrite replaces a row's image and re-indexes it under its new key.
func TestRewriteReindexes(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)
	row, err := tbl.Write([]byte("0001aaaaaaaaaaaa"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tbl.RewriteByRow(row, []byte("0002bbbbbbbbbbbb")); err != nil {
		t.Fatalf("RewriteByRow: %v", err)
	}
	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := tbl.Read(ReadEqual, []byte("0001"), 0, 0); err != ErrNoRec {
		t.Fatalf("Read(EQUAL, old key) = %v, want ErrNoRec", err)
	}
	data, _, err := tbl.Read(ReadEqual, []byte("0002"), 0, 0)
	if err != nil {
		t.Fatalf("Read(EQUAL, new key): %v", err)
	}
	if string(data) != "0002bbbbbbbbbbbb" {
		t.Fatalf("Read(EQUAL, new key) = %q", data)
	}
}

// Recover replays a crash-simulated log (handle left open, never
// committed or rolled back) and undoes the orphaned transaction.
func TestRecoverUndoesOrphanedTransaction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t")
	tbl, err := Build(path, 16, 16, charKey(0, 4, false, false), Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	tbl, err = Open(path, ModeExclusive|ModeTransactions)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := tbl.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := tbl.Write([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// Simulate a crash: close the underlying files without Commit or
	// Rollback running (bypassing Table.Close, which would itself roll
	// the open transaction back).
	tbl.dataFile.Close()
	tbl.idxFile.Close()
	tbl.logFile.Close()
	tbl.lock.UnlockHeader()
	tbl.lock.UnlockFileOpen()
	tbl.shared.releaseOpen(tbl.handleID, true)
	releaseShared(idxPath(path), tbl.shared)

	undone, err := Recover(path)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if undone != 1 {
		t.Fatalf("Recover undid %d transactions, want 1", undone)
	}

	tbl2, err := Open(path, ModeExclusive)
	if err != nil {
		t.Fatalf("reopen after recover: %v", err)
	}
	defer tbl2.Close()
	if err := tbl2.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := tbl2.Read(ReadEqual, []byte("0001"), 0, 0); err != ErrNoRec {
		t.Fatalf("Read(EQUAL) after recover = %v, want ErrNoRec", err)
	}
}

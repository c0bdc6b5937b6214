// Exercises for the key-addressed mutation calls (Write/Rewrite/Delete
// by primary key image), cursor positioning after WriteCurrent, manual
// lock release, freelist integrity under churn, descending index
// ordering, and the log-attach/detach toggle.
package isam

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
)

func TestRewriteByPrimaryKey(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	if _, err := tbl.Write([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := tbl.Write([]byte("0002bbbbbbbbbbbb")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := tbl.Rewrite([]byte("0001cccccccccccc")); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, _, err := tbl.Read(ReadEqual, []byte("0001"), 0, 0)
	if err != nil {
		t.Fatalf("Read(EQUAL): %v", err)
	}
	if string(got) != "0001cccccccccccc" {
		t.Fatalf("rewritten row = %q", got)
	}

	if err := tbl.Rewrite([]byte("9999dddddddddddd")); err != ErrNoRec {
		t.Fatalf("Rewrite(absent key) = %v, want ErrNoRec", err)
	}
}

func TestDeleteByPrimaryKey(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	if _, err := tbl.Write([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tbl.Delete([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := tbl.Read(ReadEqual, []byte("0001"), 0, 0); err != ErrNoRec {
		t.Fatalf("Read(EQUAL, deleted key) = %v, want ErrNoRec", err)
	}
	if err := tbl.Delete([]byte("0001aaaaaaaaaaaa")); err != ErrNoRec {
		t.Fatalf("Delete(absent key) = %v, want ErrNoRec", err)
	}
}

// WriteCurrent leaves the cursor on the row just written, so CURR
// reads and current-record mutations address it without a Start/Read
// round trip first.
func TestWriteCurrentPositionsCursor(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	if _, err := tbl.WriteCurrent([]byte("0002bbbbbbbbbbbb")); err != nil {
		t.Fatalf("WriteCurrent: %v", err)
	}
	row, err := tbl.WriteCurrent([]byte("0001aaaaaaaaaaaa"))
	if err != nil {
		t.Fatalf("WriteCurrent: %v", err)
	}

	got, gotRow, err := tbl.Read(ReadCurr, nil, 0, 0)
	if err != nil {
		t.Fatalf("Read(CURR): %v", err)
	}
	if gotRow != row || string(got) != "0001aaaaaaaaaaaa" {
		t.Fatalf("Read(CURR) = row %d %q, want row %d %q", gotRow, got, row, "0001aaaaaaaaaaaa")
	}

	if err := tbl.DeleteCurrent(); err != nil {
		t.Fatalf("DeleteCurrent: %v", err)
	}
	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := tbl.Read(ReadEqual, []byte("0001"), 0, 0); err != ErrNoRec {
		t.Fatalf("Read(EQUAL) after DeleteCurrent = %v, want ErrNoRec", err)
	}
}

// Release sheds the row locks a handle accumulated through locking
// reads without touching its transaction or table-wide lock state.
func TestReleaseDropsRowLocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t")
	a, err := Build(path, 16, 16, charKey(0, 4, false, false), Config{})
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

	if err := a.Release(); err != nil {
		t.Fatalf("a.Release: %v", err)
	}
	if _, _, err := b.Read(ReadEqual, []byte("0001"), 0, FlagLock); err != nil {
		t.Fatalf("b.Read(LOCK) after release: %v", err)
	}
}

// After any churn of writes and deletes, the union of live rows and
// the data freelist must account for every row number ever allocated:
// deleted row numbers come back from subsequent writes before the
// counter grows.
func TestFreelistIntegrityAfterChurn(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	for i := 1; i <= 5; i++ {
		image := fmt.Sprintf("%04d%012d", i, i)
		if _, err := tbl.Write([]byte(image)); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	if err := tbl.Delete([]byte("0002000000000002")); err != nil {
		t.Fatalf("Delete row 2: %v", err)
	}
	if err := tbl.Delete([]byte("0004000000000004")); err != nil {
		t.Fatalf("Delete row 4: %v", err)
	}
	if tbl.dict.DataRowCount != 5 {
		t.Fatalf("DataRowCount after interior deletes = %d, want 5", tbl.dict.DataRowCount)
	}

	reused := map[int64]bool{}
	for i := 6; i <= 7; i++ {
		image := fmt.Sprintf("%04d%012d", i, i)
		row, err := tbl.Write([]byte(image))
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
		reused[row] = true
	}
	if !reused[2] || !reused[4] {
		t.Fatalf("writes after delete reused rows %v, want {2,4}", reused)
	}
	if tbl.dict.DataRowCount != 5 {
		t.Fatalf("DataRowCount after reuse = %d, want 5", tbl.dict.DataRowCount)
	}

	// Deleting the highest row trims the counter instead of growing
	// the freelist.
	if err := tbl.Delete([]byte("0005000000000005")); err != nil {
		t.Fatalf("Delete tail row: %v", err)
	}
	if tbl.dict.DataRowCount != 4 {
		t.Fatalf("DataRowCount after tail delete = %d, want 4", tbl.dict.DataRowCount)
	}
}

// Rolling back a rewrite whose before-image went through the log's
// zstd path restores byte-identical contents.
func TestRollbackRestoresCompressedOldImage(t *testing.T) {
	tbl := newTestTable(t, 8, 256, charKey(0, 4, false, false), ModeExclusive|ModeTransactions)

	old := make([]byte, 200)
	copy(old, "0001")
	for i := 4; i < len(old); i++ {
		old[i] = byte('a' + i%26)
	}
	if err := tbl.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := tbl.Write(old); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tbl.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := tbl.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	updated := make([]byte, 150)
	copy(updated, "0001")
	for i := 4; i < len(updated); i++ {
		updated[i] = byte('A' + i%26)
	}
	if err := tbl.Rewrite(updated); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if err := tbl.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, _, err := tbl.Read(ReadEqual, []byte("0001"), 0, 0)
	if err != nil {
		t.Fatalf("Read(EQUAL): %v", err)
	}
	if !bytes.Equal(got, old) {
		t.Fatalf("row after rollback = %q, want original %q", got, old)
	}
}

// A descending key part reverses NEXT order for that part: FIRST/NEXT
// iteration comes back in decreasing byte order.
func TestDescendingIndexOrder(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	for _, r := range []string{
		"0001bbbbbbbbbbbb",
		"0002dddddddddddd",
		"0003aaaaaaaaaaaa",
		"0004cccccccccccc",
	} {
		if _, err := tbl.Write([]byte(r)); err != nil {
			t.Fatalf("Write(%q): %v", r, err)
		}
	}

	desc := &KeyDescriptor{
		Parts: []KeyPart{{Start: 4, Length: 12, Type: CharType, Descending: true}},
	}
	idx, err := tbl.AddIndex(desc)
	if err != nil {
		t.Fatalf("AddIndex: %v", err)
	}
	if err := tbl.Start(idx); err != nil {
		t.Fatalf("Start(descending index): %v", err)
	}

	want := []string{"0002", "0004", "0001", "0003"} // d, c, b, a
	mode := ReadFirst
	for i, w := range want {
		got, _, err := tbl.Read(mode, nil, 0, 0)
		if err != nil {
			t.Fatalf("Read #%d: %v", i, err)
		}
		if string(got[:4]) != w {
			t.Fatalf("Read #%d = %q, want prefix %q", i, got, w)
		}
		mode = ReadNext
	}
	if _, _, err := tbl.Read(ReadNext, nil, 0, 0); err != ErrEndFile {
		t.Fatalf("Read past last = %v, want ErrEndFile", err)
	}
}

// LogOpen attaches transaction support to a handle opened without it;
// LogClose detaches it again.
func TestLogOpenCloseToggle(t *testing.T) {
	tbl := newTestTable(t, 16, 16, charKey(0, 4, false, false), ModeExclusive)

	if err := tbl.Begin(); err != ErrNoLog {
		t.Fatalf("Begin without log = %v, want ErrNoLog", err)
	}
	if err := tbl.LogOpen(""); err != nil {
		t.Fatalf("LogOpen: %v", err)
	}
	if err := tbl.LogOpen(""); err != ErrLogOpen {
		t.Fatalf("second LogOpen = %v, want ErrLogOpen", err)
	}

	if err := tbl.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := tbl.Write([]byte("0001aaaaaaaaaaaa")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tbl.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := tbl.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := tbl.Read(ReadEqual, []byte("0001"), 0, 0); err != ErrNoRec {
		t.Fatalf("Read after rollback = %v, want ErrNoRec", err)
	}

	if err := tbl.LogClose(); err != nil {
		t.Fatalf("LogClose: %v", err)
	}
	if err := tbl.Begin(); err != ErrNoLog {
		t.Fatalf("Begin after LogClose = %v, want ErrNoLog", err)
	}
	if _, err := tbl.Write([]byte("0002bbbbbbbbbbbb")); err != nil {
		t.Fatalf("unlogged Write after LogClose: %v", err)
	}
}

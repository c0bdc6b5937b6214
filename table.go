// Table: the handle-level object the rest of the public API hangs off.
//
// A Table pairs one data file and one index file and owns the
// per-handle state: the block cache, the per-index B+tree mirrors,
// the varlen tail store, the byte-range lock wrapper, and (if
// transactions are enabled) the write-ahead log.
// Build and Open default a Config, create or validate the on-disk
// files, then construct the handle from what is read back.
package isam

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Open/Build mode flags.
const (
	ModeExclusive    = 1 << iota // EXCLLOCK: exclusive file-open lock for the life of the handle
	ModeTransactions             // TRANS: write-ahead log every modifying operation
	ModeManualLock               // MANULOCK: reads never take an implicit row lock
)

var handleSeq atomic.Int64

// Table is one open handle on a table. Multiple Tables may be open on
// the same basename within one process; they share row-lock
// bookkeeping through a process-wide registry (sharedState,
// rowlock.go) but each keeps its own block cache and tree mirrors,
// invalidated independently on enter().
type Table struct {
	handleID int64
	basePath string
	cfg      Config
	mode     int

	dataFile *os.File
	idxFile  *os.File
	lock     *fileLock
	cache    *blockCache
	shared   *sharedState

	dict     *Dictionary
	keyNodes []int64 // on-disk key-descriptor node number, parallel to keyDescs/mirrors
	keyDescs []*KeyDescriptor
	mirrors  []*Mirror
	varlen   *varlenStore

	activeIndex int
	cursor      *Cursor

	txn      txnHandle
	txlog    *txLog
	logFile  *os.File

	poisoned  bool
	modifying bool
	mu        sync.Mutex
}

func dataPath(base string) string { return base + ".dat" }
func idxPath(base string) string  { return base + ".idx" }
func logPath(base string) string  { return base + ".log" }

// Build creates a new table: the data file and the index file's first
// three blocks (dictionary, primary key descriptor, empty root).
// minRowLen == maxRowLen denotes a fixed-length table; maxRowLen >
// minRowLen enables the varlen tail store. The returned handle is open
// with ModeExclusive; close it before opening the table shared.
func Build(path string, minRowLen, maxRowLen int, primary *KeyDescriptor, cfg Config) (*Table, error) {
	if primary == nil {
		return nil, ErrBadArg
	}
	if err := primary.validate(); err != nil {
		return nil, err
	}
	if minRowLen <= 0 || maxRowLen < minRowLen {
		return nil, ErrRowSize
	}
	cfg.setDefaults()

	if _, err := os.Stat(dataPath(path)); err == nil {
		return nil, ErrExists
	}
	if _, err := os.Stat(idxPath(path)); err == nil {
		return nil, ErrExists
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ErrBadFile
	}

	dataFile, err := os.OpenFile(dataPath(path), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, ErrBadFile
	}
	idxFile, err := os.OpenFile(idxPath(path), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		dataFile.Close()
		os.Remove(dataPath(path))
		return nil, ErrBadFile
	}

	dict := &Dictionary{
		NodeSize:     cfg.NodeSize,
		NumIndexes:   1,
		MinRowLength: minRowLen,
		MaxRowLength: maxRowLen,
		KeyDescHead:  2,
	}
	primary.Root = 3
	primary.Next = 0

	if err := writeDictionary(idxFile, dict); err != nil {
		cleanupFailedBuild(path, dataFile, idxFile)
		return nil, err
	}
	if err := writeBlock(idxFile, 2, encodeKeyDescNode(primary, &cfg), cfg.NodeSize); err != nil {
		cleanupFailedBuild(path, dataFile, idxFile)
		return nil, err
	}
	if err := writeBlock(idxFile, 3, encodeEmptyLeaf(primary, &cfg), cfg.NodeSize); err != nil {
		cleanupFailedBuild(path, dataFile, idxFile)
		return nil, err
	}
	dict.IndexNodeCount = 3
	if err := writeDictionary(idxFile, dict); err != nil {
		cleanupFailedBuild(path, dataFile, idxFile)
		return nil, err
	}
	if err := syncFile(idxFile); err != nil {
		cleanupFailedBuild(path, dataFile, idxFile)
		return nil, err
	}

	dataFile.Close()
	idxFile.Close()

	return OpenConfig(path, ModeExclusive, cfg)
}

func cleanupFailedBuild(path string, dataFile, idxFile *os.File) {
	dataFile.Close()
	idxFile.Close()
	os.Remove(dataPath(path))
	os.Remove(idxPath(path))
}

// encodeEmptyLeaf builds the on-disk bytes of an empty leaf (just the
// trailing dummy entry), used for the root block Build writes at
// block 3 before any handle/cache exists to go through Mirror.store.
func encodeEmptyLeaf(kd *KeyDescriptor, cfg *Config) []byte {
	body := encodeEntries([]diskEntry{{Kind: entryDummy}}, kd, cfg)
	hs, ts := bodyRange(cfg)
	_ = ts
	buf := make([]byte, cfg.NodeSize)
	writeUsedLen(buf, len(body))
	copy(buf[hs:], body)
	writeTrailer(buf, cfg, nodeTypeBTree, 0)
	return buf
}

// Open opens an existing table with default tunables. NodeSize and
// BuildMode are read from the dictionary on disk, never overridden.
func Open(path string, mode int) (*Table, error) {
	return openWithConfig(path, mode, Config{})
}

// OpenConfig is like Open but lets the caller tune CacheSize/SyncWrites.
func OpenConfig(path string, mode int, cfg Config) (*Table, error) {
	return openWithConfig(path, mode, cfg)
}

func openWithConfig(path string, mode int, cfg Config) (*Table, error) {
	cfg.setDefaults()

	dataFile, err := os.OpenFile(dataPath(path), os.O_RDWR, 0o644)
	if err != nil {
		return nil, ErrNotOpen
	}
	idxFile, err := os.OpenFile(idxPath(path), os.O_RDWR, 0o644)
	if err != nil {
		dataFile.Close()
		return nil, ErrNotOpen
	}

	lock := &fileLock{}
	lock.setFile(idxFile)

	openMode := LockShared
	if mode&ModeExclusive != 0 {
		openMode = LockExclusive
	}
	if err := lock.TryLockFileOpen(openMode); err != nil {
		dataFile.Close()
		idxFile.Close()
		return nil, ErrFLocked
	}

	if err := lock.LockHeader(LockShared); err != nil {
		dataFile.Close()
		idxFile.Close()
		return nil, err
	}
	dict, err := readDictionary(idxFile, probeNodeSize(idxFile))
	lock.UnlockHeader()
	if err != nil {
		dataFile.Close()
		idxFile.Close()
		return nil, err
	}
	cfg.NodeSize = dict.NodeSize
	if cfg.NodeSize == NodeSize32 {
		cfg.BuildMode = Mode32
	} else {
		cfg.BuildMode = Mode64
	}

	t := &Table{
		handleID: handleSeq.Add(1),
		basePath: path,
		cfg:      cfg,
		mode:     mode,
		dataFile: dataFile,
		idxFile:  idxFile,
		lock:     lock,
		dict:     dict,
	}
	t.cache = newBlockCache(idxFile, cfg.NodeSize, cfg.CacheSize)
	t.shared = acquireShared(idxPath(path))
	if err := t.shared.claimOpen(t.handleID, mode&ModeExclusive != 0); err != nil {
		lock.UnlockFileOpen()
		releaseShared(idxPath(path), t.shared)
		dataFile.Close()
		idxFile.Close()
		return nil, err
	}

	if err := t.loadIndexes(); err != nil {
		t.Close()
		return nil, err
	}

	if mode&ModeTransactions != 0 {
		if err := t.openLog(); err != nil {
			t.Close()
			return nil, err
		}
	}
	return t, nil
}

// probeNodeSize reads block 1's node-size field without yet knowing
// the node size itself, by trying the larger candidate first: the
// magic+node-size header fits in either size's first bytes.
func probeNodeSize(f *os.File) int {
	buf := make([]byte, NodeSize64)
	f.ReadAt(buf, 0)
	if buf[0] == dictMagic[0] && buf[1] == dictMagic[1] {
		if n := getUint16(buf[dictOffNode:]); n == NodeSize32 || n == NodeSize64 {
			return int(n)
		}
	}
	return NodeSize64
}

// loadIndexes walks the dictionary's key-descriptor linked list,
// building one in-memory B+tree mirror per index.
func (t *Table) loadIndexes() error {
	t.keyDescs = nil
	t.keyNodes = nil
	t.mirrors = nil

	node := t.dict.KeyDescHead
	for node != 0 {
		buf, err := t.cache.get(node)
		if err != nil {
			return err
		}
		kd, err := decodeKeyDescNode(buf, &t.cfg)
		if err != nil {
			return err
		}
		t.keyDescs = append(t.keyDescs, kd)
		t.keyNodes = append(t.keyNodes, node)
		t.mirrors = append(t.mirrors, newMirror(t.cache, &t.cfg, kd, t.dict, kd.Root))
		node = kd.Next
	}
	if len(t.keyDescs) == 0 {
		return ErrBadFormat
	}
	t.varlen = newVarlenStore(t.cache, &t.cfg, t.dict)
	t.activeIndex = 0
	return nil
}

// Close flushes and releases a handle: release OS locks, flush dirty
// state, close file handles.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.txn.mode != txnNone {
		t.rollbackLocked()
	}
	if t.shared != nil {
		t.releaseAllRowLocks()
		t.shared.releaseOpen(t.handleID, t.mode&ModeExclusive != 0)
	}
	if t.logFile != nil {
		t.logFile.Close()
	}
	if t.cache != nil {
		t.cache.flush()
	}
	if t.lock != nil {
		t.lock.UnlockHeader()
		t.lock.UnlockFileOpen()
		t.lock.setFile(nil)
	}
	if t.shared != nil {
		releaseShared(idxPath(t.basePath), t.shared)
	}
	var firstErr error
	if t.dataFile != nil {
		if err := t.dataFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.idxFile != nil {
		if err := t.idxFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// enter brackets every public operation: take the header guard,
// reread the dictionary, and invalidate caches if another
// participant's transaction number has advanced since our last exit.
func (t *Table) enter(modifying bool) error {
	if t.poisoned {
		return ErrBadFile
	}
	mode := LockShared
	if modifying {
		mode = LockExclusive
	}
	if err := t.lock.LockHeader(mode); err != nil {
		return err
	}
	fresh, err := readDictionary(t.idxFile, t.cfg.NodeSize)
	if err != nil {
		t.lock.UnlockHeader()
		return err
	}
	if fresh.TxnNumber != t.dict.TxnNumber {
		t.cache.invalidate()
		for _, m := range t.mirrors {
			m.invalidate()
		}
		*t.dict = *fresh
		for i, kd := range t.keyDescs {
			buf, err := t.cache.get(t.keyNodes[i])
			if err == nil {
				if reloaded, err := decodeKeyDescNode(buf, &t.cfg); err == nil {
					*kd = *reloaded
					t.mirrors[i].root = kd.Root
				}
			}
		}
	}
	t.modifying = modifying
	return nil
}

// exit, after a modifying bracket, bumps the transaction number and
// flushes the key descriptors, the cache and the dictionary; it always
// releases the header guard.
func (t *Table) exit() error {
	var err error
	if t.modifying {
		t.dict.TxnNumber++
		for i, kd := range t.keyDescs {
			if err2 := t.cache.put(t.keyNodes[i], encodeKeyDescNode(kd, &t.cfg)); err2 != nil && err == nil {
				err = err2
			}
		}
		if err2 := t.cache.flush(); err2 != nil && err == nil {
			err = err2
		}
		if err2 := writeDictionary(t.idxFile, t.dict); err2 != nil && err == nil {
			err = err2
		}
		if t.cfg.SyncWrites {
			syncFile(t.idxFile)
			syncFile(t.dataFile)
		}
	}
	t.lock.UnlockHeader()
	return err
}

// poison marks the handle unusable after a compensating rollback
// itself failed: every further operation returns BADFILE until Close.
func (t *Table) poison() {
	t.poisoned = true
}

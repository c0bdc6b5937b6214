// Dictionary-backed freelist allocators.
//
// Two independent freelists — data rows and index nodes — are stored
// as singly-linked lists of nodes in the index file. Each freelist
// node's body is an 8-byte next-pointer followed by a packed array of
// 8-byte entries; usedLen counts live entries in that array, not
// bytes.
//
// The two lists differ in one structural way. Index-node numbers and
// freelist-node numbers share the index file's block address space, so
// a freed index node can become a freelist node itself ("make n the
// new head"). Data-row numbers address the data file — a different
// address space entirely — so a freed row is only ever an entry inside
// an index-file freelist node, never a node; when the data list needs
// a new head, one is allocated from the index-node side. freeDataRow
// additionally tail-trims: freeing the highest allocated row
// decrements the counter instead of pushing, so a sequence of inserts
// immediately followed by their own deletion never grows the freelist.
package isam

// freelistCapacity returns how many 8-byte entries fit in one
// freelist node's body after the 8-byte next pointer.
func freelistCapacity(cfg *Config) int {
	hs, ts := bodyRange(cfg)
	body := cfg.NodeSize - hs - ts - 8
	return body / 8
}

type freelistNode struct {
	next    int64
	entries []int64
}

func decodeFreelistNode(buf []byte, cfg *Config, wantType int8) (*freelistNode, error) {
	nodeType, _, err := readTrailer(buf, cfg)
	if err != nil {
		return nil, err
	}
	if nodeType != wantType {
		return nil, ErrBadFormat
	}
	hs, _ := bodyRange(cfg)
	used := readUsedLen(buf)
	fn := &freelistNode{next: getInt64(buf[hs:])}
	cap := freelistCapacity(cfg)
	if used > cap {
		return nil, ErrBadFormat
	}
	fn.entries = make([]int64, used)
	for i := 0; i < used; i++ {
		fn.entries[i] = getInt64(buf[hs+8+i*8:])
	}
	return fn, nil
}

func encodeFreelistNode(fn *freelistNode, cfg *Config, nodeType int8) []byte {
	buf := make([]byte, cfg.NodeSize)
	hs, _ := bodyRange(cfg)
	writeUsedLen(buf, len(fn.entries))
	putInt64(buf[hs:], fn.next)
	for i, v := range fn.entries {
		putInt64(buf[hs+8+i*8:], v)
	}
	writeTrailer(buf, cfg, nodeType, 0)
	return buf
}

// allocIndexNode pops a free index-node number, or extends the
// highest-allocated count if the freelist is empty. An emptied head
// node's own block number is itself a valid index node, so it is
// returned as the allocation and the list advances to its next
// pointer.
func allocIndexNode(c *blockCache, cfg *Config, dict *Dictionary) (int64, error) {
	if dict.IndexFreeHead == 0 {
		dict.IndexNodeCount++
		return dict.IndexNodeCount, nil
	}
	buf, err := c.get(dict.IndexFreeHead)
	if err != nil {
		return 0, err
	}
	fn, err := decodeFreelistNode(buf, cfg, nodeTypeFreeIdx)
	if err != nil {
		return 0, err
	}
	if len(fn.entries) > 0 {
		n := fn.entries[len(fn.entries)-1]
		fn.entries = fn.entries[:len(fn.entries)-1]
		if err := c.put(dict.IndexFreeHead, encodeFreelistNode(fn, cfg, nodeTypeFreeIdx)); err != nil {
			return 0, err
		}
		if n == dict.IndexFreeHead {
			// Self-referential degenerate entry: drop it rather than
			// allocating a node that is still the freelist head.
			return allocIndexNode(c, cfg, dict)
		}
		return n, nil
	}
	// Head node is empty: reuse the head node number itself, advancing
	// the freelist to its next pointer.
	reused := dict.IndexFreeHead
	next := fn.next
	if next == reused {
		next = 0 // break an accidental circular reference
	}
	dict.IndexFreeHead = next
	return reused, nil
}

// freeIndexNode pushes n onto the index-node freelist, making n itself
// the new head node when the current head is absent or full.
func freeIndexNode(c *blockCache, cfg *Config, dict *Dictionary, n int64) error {
	if dict.IndexFreeHead != 0 {
		buf, err := c.get(dict.IndexFreeHead)
		if err != nil {
			return err
		}
		fn, err := decodeFreelistNode(buf, cfg, nodeTypeFreeIdx)
		if err != nil {
			return err
		}
		if len(fn.entries) < freelistCapacity(cfg) {
			fn.entries = append(fn.entries, n)
			return c.put(dict.IndexFreeHead, encodeFreelistNode(fn, cfg, nodeTypeFreeIdx))
		}
	}
	newHead := &freelistNode{next: dict.IndexFreeHead}
	if err := c.put(n, encodeFreelistNode(newHead, cfg, nodeTypeFreeIdx)); err != nil {
		return err
	}
	dict.IndexFreeHead = n
	return nil
}

// allocDataRow pops a free data-row number, or extends the
// highest-allocated count if the freelist is empty. A head node that
// runs out of entries is an index-file block, not a row: its number is
// recycled to the index-node freelist and the list advances.
func allocDataRow(c *blockCache, cfg *Config, dict *Dictionary) (int64, error) {
	for dict.DataFreeHead != 0 {
		buf, err := c.get(dict.DataFreeHead)
		if err != nil {
			return 0, err
		}
		fn, err := decodeFreelistNode(buf, cfg, nodeTypeFreeData)
		if err != nil {
			return 0, err
		}
		if len(fn.entries) > 0 {
			r := fn.entries[len(fn.entries)-1]
			fn.entries = fn.entries[:len(fn.entries)-1]
			if err := c.put(dict.DataFreeHead, encodeFreelistNode(fn, cfg, nodeTypeFreeData)); err != nil {
				return 0, err
			}
			return r, nil
		}
		empty := dict.DataFreeHead
		next := fn.next
		if next == empty {
			next = 0 // break an accidental circular reference
		}
		dict.DataFreeHead = next
		if err := freeIndexNode(c, cfg, dict, empty); err != nil {
			return 0, err
		}
	}
	dict.DataRowCount++
	return dict.DataRowCount, nil
}

// freeDataRow tail-trims when possible; otherwise the row number is
// pushed as an entry into the head freelist node, allocating a fresh
// index node to hold entries when the head is absent or full.
func freeDataRow(c *blockCache, cfg *Config, dict *Dictionary, r int64) error {
	if r == dict.DataRowCount {
		dict.DataRowCount--
		return nil
	}
	if dict.DataFreeHead != 0 {
		buf, err := c.get(dict.DataFreeHead)
		if err != nil {
			return err
		}
		fn, err := decodeFreelistNode(buf, cfg, nodeTypeFreeData)
		if err != nil {
			return err
		}
		if len(fn.entries) < freelistCapacity(cfg) {
			fn.entries = append(fn.entries, r)
			return c.put(dict.DataFreeHead, encodeFreelistNode(fn, cfg, nodeTypeFreeData))
		}
	}
	id, err := allocIndexNode(c, cfg, dict)
	if err != nil {
		return err
	}
	fn := &freelistNode{next: dict.DataFreeHead, entries: []int64{r}}
	if err := c.put(id, encodeFreelistNode(fn, cfg, nodeTypeFreeData)); err != nil {
		return err
	}
	dict.DataFreeHead = id
	return nil
}

// forceDataAlloc allocates row r specifically, for undoing a DE record
// during rollback or recovery. If r is beyond the current high-water
// mark the intermediate rows are pushed onto the freelist; otherwise r
// is unlinked from the freelist if it's there. A DE whose free_data_row
// was deferred to a commit that never happened (the transaction was
// undone first) leaves r allocated and off the freelist entirely, which
// unlinkDataRow's ErrBadFile also covers: r is already exactly where
// this undo wants it, so that case is a no-op rather than an error.
func forceDataAlloc(c *blockCache, cfg *Config, dict *Dictionary, r int64) error {
	if r > dict.DataRowCount {
		for row := dict.DataRowCount + 1; row < r; row++ {
			if err := freeDataRow(c, cfg, dict, row); err != nil {
				return err
			}
		}
		dict.DataRowCount = r
		return nil
	}
	if err := unlinkDataRow(c, cfg, dict, r); err != nil && err != ErrBadFile {
		return err
	}
	return nil
}

// unlinkDataRow removes a specific row number from the data freelist's
// entry arrays, failing BADFILE if it is not present there. A node
// emptied by the unlink stays in the chain; allocDataRow recycles it
// once it surfaces as the head.
func unlinkDataRow(c *blockCache, cfg *Config, dict *Dictionary, r int64) error {
	head := dict.DataFreeHead
	for head != 0 {
		buf, err := c.get(head)
		if err != nil {
			return err
		}
		fn, err := decodeFreelistNode(buf, cfg, nodeTypeFreeData)
		if err != nil {
			return err
		}
		for i, v := range fn.entries {
			if v == r {
				fn.entries = append(fn.entries[:i], fn.entries[i+1:]...)
				return c.put(head, encodeFreelistNode(fn, cfg, nodeTypeFreeData))
			}
		}
		if fn.next == head {
			return ErrBadFile // circular chain; row not present
		}
		head = fn.next
	}
	return ErrBadFile
}

// Table renaming/erasure and secondary-index add/drop. AddIndex/
// DelIndex require ModeExclusive: both restructure the key-descriptor
// list and (for AddIndex) walk every live row, which is only safe
// with no concurrent reader holding stale mirror state.
package isam

import "os"

// Rename moves a closed table's files to newPath. The table must not
// be open by any handle.
func Rename(oldPath, newPath string) error {
	if err := os.Rename(dataPath(oldPath), dataPath(newPath)); err != nil {
		return ErrBadFile
	}
	if err := os.Rename(idxPath(oldPath), idxPath(newPath)); err != nil {
		return ErrBadFile
	}
	os.Rename(logPath(oldPath), logPath(newPath))
	return nil
}

// Erase deletes a closed table's data, index and log files.
func Erase(path string) error {
	os.Remove(dataPath(path))
	os.Remove(idxPath(path))
	os.Remove(logPath(path))
	return nil
}

// AddIndex builds a new secondary index from kd, backfilling it from
// every live row in the table, and returns its index number.
func (t *Table) AddIndex(kd *KeyDescriptor) (int, error) {
	if t.mode&ModeExclusive == 0 {
		return 0, ErrNotExcl
	}
	if err := kd.validate(); err != nil {
		return 0, err
	}
	if err := t.enter(true); err != nil {
		return 0, err
	}
	defer t.exit()

	rootID, err := allocIndexNode(t.cache, &t.cfg, t.dict)
	if err != nil {
		return 0, err
	}
	if err := t.cache.put(rootID, encodeEmptyLeaf(kd, &t.cfg)); err != nil {
		return 0, err
	}
	kd.Root = rootID
	kd.Next = 0

	nodeID, err := allocIndexNode(t.cache, &t.cfg, t.dict)
	if err != nil {
		return 0, err
	}
	if err := t.cache.put(nodeID, encodeKeyDescNode(kd, &t.cfg)); err != nil {
		return 0, err
	}
	// Link the new descriptor at the tail of the list, so existing
	// index numbers (and index 0 as the primary) stay put; exit()
	// rewrites the old tail's node with this link.
	t.keyDescs[len(t.keyDescs)-1].Next = nodeID
	t.dict.NumIndexes++

	mirror := newMirror(t.cache, &t.cfg, kd, t.dict, rootID)
	t.keyDescs = append(t.keyDescs, kd)
	t.keyNodes = append(t.keyNodes, nodeID)
	t.mirrors = append(t.mirrors, mirror)
	t.activeIndex = 0

	for row := int64(1); row <= t.dict.DataRowCount; row++ {
		data, err := t.readRow(row)
		if err == ErrNoRec {
			continue
		}
		if err != nil {
			return 0, err
		}
		key := buildKey(data, kd)
		if isAllNullFill(key, kd) {
			continue
		}
		if err := mirror.Insert(key, row); err != nil {
			return 0, err
		}
	}
	return len(t.keyDescs) - 1, nil
}

// DelIndex removes a secondary index (index 0, the primary key, can
// never be dropped) and frees every node in its tree.
func (t *Table) DelIndex(index int) error {
	if t.mode&ModeExclusive == 0 {
		return ErrNotExcl
	}
	if index <= 0 || index >= len(t.mirrors) {
		return ErrBadArg
	}
	if err := t.enter(true); err != nil {
		return err
	}
	defer t.exit()

	if err := t.mirrors[index].freeSubtree(t.mirrors[index].root); err != nil {
		return err
	}
	removed := t.keyDescs[index]
	prevNode := t.keyNodes[index-1]
	prevKD := t.keyDescs[index-1]
	prevKD.Next = removed.Next
	if err := t.cache.put(prevNode, encodeKeyDescNode(prevKD, &t.cfg)); err != nil {
		return err
	}
	if err := freeIndexNode(t.cache, &t.cfg, t.dict, t.keyNodes[index]); err != nil {
		return err
	}
	t.dict.NumIndexes--

	t.keyDescs = append(t.keyDescs[:index], t.keyDescs[index+1:]...)
	t.keyNodes = append(t.keyNodes[:index], t.keyNodes[index+1:]...)
	t.mirrors = append(t.mirrors[:index], t.mirrors[index+1:]...)
	if t.activeIndex >= index {
		t.activeIndex = 0
	}
	return nil
}

// freeSubtree recursively releases every node under id, used to drop a
// whole index's tree on DelIndex.
func (m *Mirror) freeSubtree(id int64) error {
	n, err := m.node(id)
	if err != nil {
		return err
	}
	if !n.isLeaf() {
		for _, k := range n.keys {
			if k.Kind == entryNormal || k.Kind == entryHigh {
				if err := m.freeSubtree(k.Ptr); err != nil {
					return err
				}
			}
		}
	}
	delete(m.nodes, id)
	return freeIndexNode(m.cache, m.cfg, m.dict, id)
}

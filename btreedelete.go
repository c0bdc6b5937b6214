// B+tree deletion: remove an entry, collapsing an emptied non-root node
// into its parent and shrinking the root when it is left with only its
// high-water pointer.
package isam

// Delete removes the entry for key whose pointer equals ptr (the row,
// or child node, installed at Insert time). Scanning the duplicate
// group by pointer rather than by duplicate ordinal means the caller
// never needs to know which ordinal a given row was assigned; once the
// matching entry's own ordinal is known, descendPath re-derives the
// authoritative root-to-leaf path the same way Insert does, rather
// than trusting treeNode.parent links that earlier traversal may not
// have populated. ErrNoRec if no matching entry is present.
func (m *Mirror) Delete(key []byte, ptr int64) error {
	cur, _, err := m.descend(key, 0)
	if err != nil {
		return err
	}
	for cur != nil && compareKeys(cur.Key, key, m.kd) == 0 {
		if cur.Ptr == ptr {
			path, err := m.descendPath(key, cur.Dup)
			if err != nil {
				return err
			}
			leaf, err := m.node(path[len(path)-1])
			if err != nil {
				return err
			}
			slot := lowerBound(leaf, key, cur.Dup, m.kd)
			if slot >= len(leaf.keys)-1 || compareDup(leaf.keys[slot].Key, leaf.keys[slot].Dup, key, cur.Dup, m.kd) != 0 {
				return ErrNoRec
			}
			leaf.keys = removeAt(leaf.keys, slot)
			return m.propagateDelete(path, leaf)
		}
		cur, _, err = m.Next(cur)
		if err != nil {
			return err
		}
	}
	return ErrNoRec
}

func removeAt(s []treeKey, idx int) []treeKey {
	return append(s[:idx], s[idx+1:]...)
}

// propagateDelete stores n and, if n is a non-root node left empty (a
// leaf with no real key, an internal node with no child pointer at
// all), splices it out of its parent, recursing up and collapsing the
// root if the collapse reaches the top.
func (m *Mirror) propagateDelete(path []int64, n *treeNode) error {
	emptied := n.realKeyCount() == 0
	if !n.isLeaf() {
		// An internal node still routing to a child, even through its
		// high pointer alone, is not empty.
		emptied = len(n.keys) == 0
	}
	if !emptied || len(path) == 1 {
		return m.store(n)
	}
	if err := m.store(n); err != nil {
		return err
	}
	parent, err := m.node(path[len(path)-2])
	if err != nil {
		return err
	}
	idx := indexOfChild(parent, n.id)
	if idx < 0 {
		return ErrBadFormat
	}
	if idx == len(parent.keys)-1 {
		if idx == 0 {
			// parent has no other child: it collapses too.
			parent.keys = nil
		} else {
			prevPtr := parent.keys[idx-1].Ptr
			parent.keys = append(parent.keys[:idx-1], treeKey{Kind: entryHigh, Ptr: prevPtr})
		}
	} else {
		parent.keys = removeAt(parent.keys, idx)
	}
	_ = freeIndexNode(m.cache, m.cfg, m.dict, n.id)
	delete(m.nodes, n.id)

	if len(path) == 2 && len(parent.keys) <= 1 {
		oldRoot := parent.id
		if len(parent.keys) == 1 {
			m.setRoot(parent.keys[0].Ptr)
		} else {
			// Fully emptied root: replace with a fresh empty leaf.
			newID, err := allocIndexNode(m.cache, m.cfg, m.dict)
			if err != nil {
				return err
			}
			leaf := newLeafNode(newID)
			if err := m.store(leaf); err != nil {
				return err
			}
			m.setRoot(newID)
		}
		_ = freeIndexNode(m.cache, m.cfg, m.dict, oldRoot)
		delete(m.nodes, oldRoot)
		return nil
	}
	return m.propagateDelete(path[:len(path)-1], parent)
}

// B+tree insertion: locate the leaf, insert in sorted order, and split
// bottom-up on overflow.
package isam

// Insert places key->ptr into the tree. A key made entirely of its
// parts' null-fill bytes is elided per the NULL_KEY convention and
// never reaches the tree at all. The duplicate ordinal is computed
// here rather than taken from the caller: a NODUPS index always uses
// 0, a DUPS index gets one greater than the greatest existing
// duplicate sharing this key.
func (m *Mirror) Insert(key []byte, ptr int64) error {
	if isAllNullFill(key, m.kd) {
		return nil
	}
	var dup int64
	if m.kd.hasDups() {
		d, err := m.nextDup(key)
		if err != nil {
			return err
		}
		dup = d
	}
	path, err := m.descendPath(key, dup)
	if err != nil {
		return err
	}
	leaf, err := m.node(path[len(path)-1])
	if err != nil {
		return err
	}
	slot := lowerBound(leaf, key, dup, m.kd)
	if !m.kd.hasDups() && slot < len(leaf.keys)-1 {
		ek := leaf.keys[slot]
		if compareKeys(ek.Key, key, m.kd) == 0 {
			return ErrDupl
		}
	}
	leaf.keys = insertAt(leaf.keys, slot, treeKey{Kind: entryNormal, Key: key, Dup: dup, Ptr: ptr})
	if err := m.propagate(path, leaf); err != nil {
		return err
	}
	m.bloom.Add(key)
	return nil
}

// nextDup returns the duplicate ordinal to assign a new entry with
// this key: one greater than the greatest existing duplicate sharing
// the key, or 0 if the key is not yet present in the index.
func (m *Mirror) nextDup(key []byte) (int64, error) {
	cur, _, err := m.descend(key, 0)
	if err != nil {
		return 0, err
	}
	if cur == nil || compareKeys(cur.Key, key, m.kd) != 0 {
		return 0, nil
	}
	maxDup := cur.Dup
	for {
		nxt, _, err := m.Next(cur)
		if err != nil {
			return 0, err
		}
		if nxt == nil || compareKeys(nxt.Key, key, m.kd) != 0 {
			break
		}
		maxDup = nxt.Dup
		cur = nxt
	}
	return maxDup + 1, nil
}

// descendPath walks root-to-leaf like descend but records every node id
// visited, needed by insert/delete to walk back up on split or merge.
func (m *Mirror) descendPath(key []byte, dup int64) ([]int64, error) {
	path := []int64{m.root}
	id := m.root
	for {
		n, err := m.node(id)
		if err != nil {
			return nil, err
		}
		if n.isLeaf() {
			return path, nil
		}
		slot := lowerBound(n, key, dup, m.kd)
		id = n.keys[slot].Ptr
		path = append(path, id)
	}
}

func insertAt(s []treeKey, idx int, k treeKey) []treeKey {
	s = append(s, treeKey{})
	copy(s[idx+1:], s[idx:])
	s[idx] = k
	return s
}

// propagate stores n, splitting it and threading the split up the
// recorded path on overflow, creating a new root if the split reaches
// the top of the tree.
func (m *Mirror) propagate(path []int64, n *treeNode) error {
	err := m.store(n)
	if err == nil {
		return nil
	}
	if err != errNodeOverflow {
		return err
	}
	right, sepKey, sepDup, serr := m.split(n)
	if serr != nil {
		return serr
	}
	if err := m.store(n); err != nil {
		return err
	}
	if err := m.store(right); err != nil {
		return err
	}
	if len(path) == 1 {
		return m.newRoot(n, right, sepKey, sepDup)
	}
	parent, err := m.node(path[len(path)-2])
	if err != nil {
		return err
	}
	idx := indexOfChild(parent, n.id)
	if idx < 0 {
		return ErrBadFormat
	}
	n.parent = parent.id
	right.parent = parent.id
	parent.keys[idx].Ptr = right.id
	parent.keys = insertAt(parent.keys, idx, treeKey{Kind: entryNormal, Key: sepKey, Dup: sepDup, Ptr: n.id})
	return m.propagate(path[:len(path)-1], parent)
}

// split divides n's entries roughly in half, returning the new right
// sibling and the separator (key,dup) that now bounds the left half.
func (m *Mirror) split(n *treeNode) (*treeNode, []byte, int64, error) {
	rightID, err := allocIndexNode(m.cache, m.cfg, m.dict)
	if err != nil {
		return nil, nil, 0, err
	}
	if n.isLeaf() {
		real := n.keys[:len(n.keys)-1]
		mid := len(real) / 2
		if mid == 0 {
			mid = 1
		}
		sep := real[mid-1]
		right := &treeNode{id: rightID, level: 0}
		right.keys = append(append([]treeKey{}, real[mid:]...), treeKey{Kind: entryDummy})
		n.keys = append(append([]treeKey{}, real[:mid]...), treeKey{Kind: entryDummy})
		return right, sep.Key, sep.Dup, nil
	}
	total := len(n.keys)
	split := total / 2
	if split < 1 {
		split = 1
	}
	sep := n.keys[split-1]
	right := &treeNode{id: rightID, level: n.level}
	right.keys = append([]treeKey{}, n.keys[split:]...)
	left := append([]treeKey{}, n.keys[:split-1]...)
	left = append(left, treeKey{Kind: entryHigh, Ptr: sep.Ptr})
	n.keys = left
	return right, sep.Key, sep.Dup, nil
}

// newRoot grows the tree by one level: the old root (now just another
// node, left in place under its existing id) and the new right sibling
// become the two children of a fresh root.
func (m *Mirror) newRoot(oldRoot, right *treeNode, sepKey []byte, sepDup int64) error {
	rootID, err := allocIndexNode(m.cache, m.cfg, m.dict)
	if err != nil {
		return err
	}
	root := &treeNode{
		id:    rootID,
		level: oldRoot.level + 1,
		keys: []treeKey{
			{Kind: entryNormal, Key: sepKey, Dup: sepDup, Ptr: oldRoot.id},
			{Kind: entryHigh, Ptr: right.id},
		},
	}
	if err := m.store(root); err != nil {
		return err
	}
	oldRoot.parent = rootID
	right.parent = rootID
	m.setRoot(rootID)
	return nil
}

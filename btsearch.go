// B+tree search: descend from root to leaf, locate a slot by one of
// eight cursor positioning modes.
package isam

// Search modes, mirroring the eight ways a cursor can be positioned.
const (
	SearchFirst = iota // lowest key in the index
	SearchLast         // highest key
	SearchEqual        // exact (key,dup) match, NOERROR if absent
	SearchGteq         // first entry >= key
	SearchGreat        // first entry > key
	SearchCurr         // re-resolve the current cursor after a possible split
	SearchNext         // entry immediately after the current cursor
	SearchPrev         // entry immediately before the current cursor
)

// Result codes returned alongside a Cursor.
const (
	ResultEqual = iota // exact match found
	ResultNear         // positioned at nearest entry, no exact match
	ResultEmpty        // tree has no real keys at all
	ResultEOF          // walked off either end
)

// Cursor names a located entry: the node holding it and its index
// within that node's keys slice.
type Cursor struct {
	Node int64
	Slot int
	Key  []byte
	Dup  int64
	Ptr  int64
}

// search descends the tree looking for (key,dup), honoring mode.
// SearchCurr/SearchNext/SearchPrev require a non-nil starting cursor.
func (m *Mirror) search(mode int, key []byte, dup int64, cur *Cursor) (*Cursor, int, error) {
	switch mode {
	case SearchFirst:
		c, res, err := m.descend(extremalKey(m.kd, true), minInt64)
		if err != nil {
			return nil, ResultEOF, err
		}
		if c == nil {
			// Nothing is >= the least possible key: the tree holds no
			// real keys at all.
			return nil, ResultEmpty, nil
		}
		return c, res, nil
	case SearchLast:
		return m.lastEntry()
	case SearchEqual, SearchGteq, SearchGreat:
		if mode == SearchGreat {
			// Past every duplicate of key, not just past (key, dup).
			dup = maxInt64
		}
		c, res, err := m.descend(key, dup)
		if err != nil {
			return nil, ResultEOF, err
		}
		if c == nil {
			return nil, ResultEOF, nil
		}
		if mode == SearchGreat && res == ResultEqual {
			return m.Next(c)
		}
		if mode == SearchEqual && res != ResultEqual {
			return c, ResultNear, nil
		}
		return c, res, nil
	case SearchCurr:
		if cur == nil {
			return nil, ResultEOF, ErrNoCurr
		}
		return m.descend(cur.Key, cur.Dup)
	case SearchNext:
		if cur == nil {
			return nil, ResultEOF, ErrNoCurr
		}
		return m.Next(cur)
	case SearchPrev:
		if cur == nil {
			return nil, ResultEOF, ErrNoCurr
		}
		return m.Prev(cur)
	default:
		return nil, ResultEOF, ErrBadArg
	}
}

const minInt64 = -1 << 63

const maxInt64 = 1<<63 - 1

// lastEntry walks the rightmost spine — every internal node's high
// pointer — to the last real key in the index. A descend toward a
// greater-than-everything key can't serve here: it lands past the
// rightmost leaf's last entry and reads as end-of-file rather than
// locating it. ResultEmpty when the tree holds no real keys.
func (m *Mirror) lastEntry() (*Cursor, int, error) {
	id := m.root
	for {
		n, err := m.node(id)
		if err != nil {
			return nil, ResultEOF, err
		}
		if !n.isLeaf() {
			child := n.keys[len(n.keys)-1].Ptr
			cn, err := m.node(child)
			if err != nil {
				return nil, ResultEOF, err
			}
			cn.parent = n.id
			id = child
			continue
		}
		if len(n.keys) <= 1 { // just the dummy: empty tree
			return nil, ResultEmpty, nil
		}
		slot := len(n.keys) - 2
		k := n.keys[slot]
		return &Cursor{Node: n.id, Slot: slot, Key: k.Key, Dup: k.Dup, Ptr: k.Ptr}, ResultNear, nil
	}
}

// descend walks from root to leaf, at each internal level following the
// first child whose separator is >= (key,dup), landing on the first
// leaf entry >= (key,dup).
func (m *Mirror) descend(key []byte, dup int64) (*Cursor, int, error) {
	id := m.root
	for {
		n, err := m.node(id)
		if err != nil {
			return nil, ResultEOF, err
		}
		slot := lowerBound(n, key, dup, m.kd)
		if !n.isLeaf() {
			child := n.keys[slot].Ptr
			cn, err := m.node(child)
			if err != nil {
				return nil, ResultEOF, err
			}
			cn.parent = n.id
			id = child
			continue
		}
		if slot >= len(n.keys)-1 { // only the dummy remains: past end
			return m.firstOfNext(n)
		}
		k := n.keys[slot]
		res := ResultNear
		if compareDup(k.Key, k.Dup, key, dup, m.kd) == 0 {
			res = ResultEqual
		}
		return &Cursor{Node: n.id, Slot: slot, Key: k.Key, Dup: k.Dup, Ptr: k.Ptr}, res, nil
	}
}

// lowerBound returns the index of the first entry in n (real key or,
// for internal nodes, the high sentinel) whose (key,dup) is >= target.
func lowerBound(n *treeNode, key []byte, dup int64, kd *KeyDescriptor) int {
	lo, hi := 0, len(n.keys)-1
	for lo < hi {
		mid := (lo + hi) / 2
		k := n.keys[mid]
		if k.Kind == entryHigh {
			hi = mid
			continue
		}
		if compareDup(k.Key, k.Dup, key, dup, kd) >= 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// firstOfNext handles descent landing past a leaf's last real key: move
// to the next leaf via the parent chain and take its first real entry.
func (m *Mirror) firstOfNext(n *treeNode) (*Cursor, int, error) {
	sib, err := m.rightSibling(n)
	if err != nil {
		return nil, ResultEOF, err
	}
	if sib == nil || len(sib.keys) <= 1 {
		return nil, ResultEOF, nil
	}
	k := sib.keys[0]
	return &Cursor{Node: sib.id, Slot: 0, Key: k.Key, Dup: k.Dup, Ptr: k.Ptr}, ResultNear, nil
}

// rightSibling locates the leaf (or internal node) immediately to the
// right of n by walking up to the least ancestor where n is not the
// last child, then back down the leftmost path.
func (m *Mirror) rightSibling(n *treeNode) (*treeNode, error) {
	child := n
	for child.parent != 0 {
		parent, err := m.node(child.parent)
		if err != nil {
			return nil, err
		}
		idx := indexOfChild(parent, child.id)
		if idx < 0 {
			return nil, ErrBadFormat
		}
		if idx+1 < len(parent.keys) {
			next, err := m.node(parent.keys[idx+1].Ptr)
			if err != nil {
				return nil, err
			}
			next.parent = parent.id
			for next.level > 0 {
				left, err := m.node(next.keys[0].Ptr)
				if err != nil {
					return nil, err
				}
				left.parent = next.id
				next = left
			}
			return next, nil
		}
		child = parent
	}
	return nil, nil
}

// leftSibling mirrors rightSibling.
func (m *Mirror) leftSibling(n *treeNode) (*treeNode, error) {
	child := n
	for child.parent != 0 {
		parent, err := m.node(child.parent)
		if err != nil {
			return nil, err
		}
		idx := indexOfChild(parent, child.id)
		if idx < 0 {
			return nil, ErrBadFormat
		}
		if idx-1 >= 0 {
			prev, err := m.node(parent.keys[idx-1].Ptr)
			if err != nil {
				return nil, err
			}
			prev.parent = parent.id
			for prev.level > 0 {
				right, err := m.node(prev.keys[len(prev.keys)-1].Ptr)
				if err != nil {
					return nil, err
				}
				right.parent = prev.id
				prev = right
			}
			return prev, nil
		}
		child = parent
	}
	return nil, nil
}

func indexOfChild(parent *treeNode, childID int64) int {
	for i, k := range parent.keys {
		if k.Ptr == childID {
			return i
		}
	}
	return -1
}

// Next returns the entry immediately after cur.
func (m *Mirror) Next(cur *Cursor) (*Cursor, int, error) {
	n, err := m.node(cur.Node)
	if err != nil {
		return nil, ResultEOF, err
	}
	if cur.Slot+1 < len(n.keys)-1 {
		k := n.keys[cur.Slot+1]
		return &Cursor{Node: n.id, Slot: cur.Slot + 1, Key: k.Key, Dup: k.Dup, Ptr: k.Ptr}, ResultNear, nil
	}
	return m.firstOfNext(n)
}

// Prev returns the entry immediately before cur.
func (m *Mirror) Prev(cur *Cursor) (*Cursor, int, error) {
	n, err := m.node(cur.Node)
	if err != nil {
		return nil, ResultEOF, err
	}
	if cur.Slot-1 >= 0 {
		k := n.keys[cur.Slot-1]
		return &Cursor{Node: n.id, Slot: cur.Slot - 1, Key: k.Key, Dup: k.Dup, Ptr: k.Ptr}, ResultNear, nil
	}
	sib, err := m.leftSibling(n)
	if err != nil {
		return nil, ResultEOF, err
	}
	if sib == nil || len(sib.keys) <= 1 {
		return nil, ResultEOF, nil
	}
	k := sib.keys[len(sib.keys)-2] // last real key, before the dummy
	return &Cursor{Node: sib.id, Slot: len(sib.keys) - 2, Key: k.Key, Dup: k.Dup, Ptr: k.Ptr}, ResultNear, nil
}

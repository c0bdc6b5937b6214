// In-memory B+tree mirror.
//
// Design note: rather than a doubly-linked keys-in-node representation
// with parent/child pointer cross-links, nodes are kept in an arena
// map keyed by the on-disk node number itself — already a stable
// integer id, so no separate id-remapping layer is needed.
// prev/next/parent/child become map lookups by that same number.
// Nodes are loaded lazily on first touch and dropped either on
// explicit invalidate() (cross-process mutation detected at enter) or
// on Close.
package isam

// treeKey is one entry in a mirror node: a normal key, the leaf
// trailing dummy, or the internal high-water sentinel.
type treeKey struct {
	Kind byte // entryNormal | entryDummy | entryHigh
	Key  []byte
	Dup  int64
	Ptr  int64 // row number (leaf) or child node number (internal)
}

// treeNode is one mirror node: a lazily loaded view of one on-disk
// B+tree block.
type treeNode struct {
	id     int64
	level  int
	parent int64 // 0 = root
	keys   []treeKey
	dirty  bool
}

func (n *treeNode) isLeaf() bool { return n.level == 0 }

// Mirror is the in-memory tree for one open index.
type Mirror struct {
	cache *blockCache
	cfg   *Config
	kd    *KeyDescriptor
	dict  *Dictionary
	root  int64
	nodes map[int64]*treeNode
	bloom *bloom
}

func newMirror(cache *blockCache, cfg *Config, kd *KeyDescriptor, dict *Dictionary, root int64) *Mirror {
	return &Mirror{
		cache: cache,
		cfg:   cfg,
		kd:    kd,
		dict:  dict,
		root:  root,
		nodes: make(map[int64]*treeNode),
		bloom: newBloom(cfg.HashAlgorithm),
	}
}

// invalidate discards every loaded node, used when enter() detects the
// dictionary's transaction number advanced since this handle last
// exited.
func (m *Mirror) invalidate() {
	m.nodes = make(map[int64]*treeNode)
	m.bloom.Reset()
}

// node returns the mirror node for disk node id, loading it from the
// block cache on first touch.
func (m *Mirror) node(id int64) (*treeNode, error) {
	if n, ok := m.nodes[id]; ok {
		return n, nil
	}
	buf, err := m.cache.get(id)
	if err != nil {
		return nil, err
	}
	nodeType, level, err := readTrailer(buf, m.cfg)
	if err != nil {
		return nil, err
	}
	if nodeType != nodeTypeBTree {
		return nil, ErrBadFormat
	}
	hs, ts := bodyRange(m.cfg)
	used := readUsedLen(buf)
	body := buf[hs : len(buf)-ts]
	if used > len(body) {
		used = len(body)
	}
	entries, err := decodeEntries(body[:used], m.kd, m.cfg)
	if err != nil {
		return nil, err
	}
	n := &treeNode{id: id, level: level}
	n.keys = make([]treeKey, len(entries))
	for i, e := range entries {
		n.keys[i] = treeKey{Kind: e.Kind, Key: e.Key, Dup: e.Dup, Ptr: e.Ptr}
	}
	m.nodes[id] = n
	return n, nil
}

// store serializes n back into its cache slot. It reaches disk when the
// cache flushes (at a modifying exit, on eviction, or on Close).
func (m *Mirror) store(n *treeNode) error {
	n.dirty = false
	entries := make([]diskEntry, len(n.keys))
	for i, k := range n.keys {
		entries[i] = diskEntry{Kind: k.Kind, Key: k.Key, Dup: k.Dup, Ptr: k.Ptr}
	}
	body := encodeEntries(entries, m.kd, m.cfg)
	hs, ts := bodyRange(m.cfg)
	if len(body) > m.cfg.NodeSize-hs-ts {
		return errNodeOverflow
	}
	buf := make([]byte, m.cfg.NodeSize)
	writeUsedLen(buf, len(body))
	copy(buf[hs:], body)
	writeTrailer(buf, m.cfg, nodeTypeBTree, n.level)
	m.nodes[n.id] = n
	return m.cache.put(n.id, buf)
}

// errNodeOverflow signals the caller (insert.go) that a node must be
// split before the new entry set fits.
var errNodeOverflow = newErr(171, "isam: node overflow, split required")

// newLeafNode builds a fresh, empty leaf: just the trailing dummy.
func newLeafNode(id int64) *treeNode {
	return &treeNode{id: id, level: 0, keys: []treeKey{{Kind: entryDummy}}}
}

// newInternalNode builds a fresh internal node with a single high
// pointer to child.
func newInternalNode(id int64, level int, child int64) *treeNode {
	return &treeNode{id: id, level: level, keys: []treeKey{{Kind: entryHigh, Ptr: child}}}
}

// Root returns the current root node number, which may have changed
// since construction if Insert or Delete grew or collapsed the tree.
func (m *Mirror) Root() int64 { return m.root }

// setRoot records a root change on both the mirror and its key
// descriptor, so the next exit() persists the new root in the
// on-disk key-descriptor node and other handles pick it up on their
// next enter(). Leaving kd.Root stale would point every reload at a
// node the tree no longer hangs from.
func (m *Mirror) setRoot(id int64) {
	m.root = id
	m.kd.Root = id
}

// realKeyCount returns the number of non-sentinel keys in n.
func (n *treeNode) realKeyCount() int {
	c := 0
	for _, k := range n.keys {
		if k.Kind == entryNormal {
			c++
		}
	}
	return c
}

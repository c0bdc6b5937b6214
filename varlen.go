// Variable-length tail store.
//
// Rows whose packed length exceeds the table's min_row_length spill
// their overflow into a separate chain of tail blocks, allocated from
// size-bucketed freelists recorded in the dictionary's BucketHeads.
// 32-bit builds use 6 buckets, 64-bit builds use 10.
package isam

const (
	bucketCount32 = 6
	bucketCount64 = 10
)

// bucketFor returns the smallest bucket whose slot size can hold n
// bytes of tail payload, using a doubling size ladder starting at 32
// bytes.
func bucketFor(n, nbuckets int) int {
	size := 32
	for b := 0; b < nbuckets; b++ {
		if n <= size {
			return b
		}
		size *= 2
	}
	return nbuckets - 1
}

func bucketSlotSize(bucket int) int {
	return 32 << uint(bucket)
}

// tailSlot is one fixed-size slot in a tail bucket node: a next pointer
// (free-chain link, or continuation link when payload spans multiple
// slots) and the payload bytes.
type tailSlot struct {
	next    int64
	payload []byte
}

// varlenStore manages one index file's tail-store buckets.
type varlenStore struct {
	cache     *blockCache
	cfg       *Config
	dict      *Dictionary
	nbuckets  int
}

func newVarlenStore(cache *blockCache, cfg *Config, dict *Dictionary) *varlenStore {
	nb := bucketCount32
	if cfg.BuildMode == Mode64 {
		nb = bucketCount64
	}
	return &varlenStore{cache: cache, cfg: cfg, dict: dict, nbuckets: nb}
}

// Write stores tail beyond the fixed row prefix in slots of the one
// bucket its total length selects, chaining further slots of that
// bucket as needed, and returns the head slot number to embed in the
// row's footer pointer.
func (v *varlenStore) Write(tail []byte) (int64, error) {
	if len(tail) == 0 {
		return 0, nil
	}
	bucket := bucketFor(len(tail), v.nbuckets)
	slotSize := bucketSlotSize(bucket)
	// A chunk never outgrows one node's body after the next pointer.
	if hs, ts := bodyRange(v.cfg); slotSize > v.cfg.NodeSize-hs-ts-8 {
		slotSize = v.cfg.NodeSize - hs - ts - 8
	}

	var headID int64
	var prevID int64
	remaining := tail
	for len(remaining) > 0 {
		chunk := remaining
		if len(chunk) > slotSize {
			chunk = remaining[:slotSize]
		}
		id, err := v.alloc(bucket)
		if err != nil {
			return 0, err
		}
		if headID == 0 {
			headID = id
		}
		if prevID != 0 {
			if err := v.linkNext(prevID, bucket, id); err != nil {
				return 0, err
			}
		}
		if err := v.writeSlot(id, bucket, tailSlot{payload: chunk}); err != nil {
			return 0, err
		}
		prevID = id
		remaining = remaining[len(chunk):]
	}
	return headID, nil
}

// Read reassembles a tail chain of total length n starting at head.
func (v *varlenStore) Read(head int64, n int) ([]byte, error) {
	if head == 0 || n == 0 {
		return nil, nil
	}
	bucket := bucketFor(n, v.nbuckets)
	out := make([]byte, 0, n)
	id := head
	for id != 0 && len(out) < n {
		slot, err := v.readSlot(id, bucket)
		if err != nil {
			return nil, err
		}
		out = append(out, slot.payload...)
		id = slot.next
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Free releases every slot in a tail chain back to its bucket's
// freelist.
func (v *varlenStore) Free(head int64, n int) error {
	if head == 0 {
		return nil
	}
	bucket := bucketFor(n, v.nbuckets)
	id := head
	for id != 0 {
		slot, err := v.readSlot(id, bucket)
		if err != nil {
			return err
		}
		next := slot.next
		if err := v.free(bucket, id); err != nil {
			return err
		}
		id = next
	}
	return nil
}

func (v *varlenStore) nodeTypeFor(bucket int) int8 {
	return int8(-16 - bucket) // distinct from freelist/keydesc/btree types
}

func (v *varlenStore) alloc(bucket int) (int64, error) {
	head := &v.dict.BucketHeads[bucket]
	if *head == 0 {
		v.dict.IndexNodeCount++
		return v.dict.IndexNodeCount, nil
	}
	id := *head
	slot, err := v.readSlot(id, bucket)
	if err != nil {
		return 0, err
	}
	*head = slot.next
	return id, nil
}

func (v *varlenStore) free(bucket int, id int64) error {
	head := &v.dict.BucketHeads[bucket]
	if err := v.writeSlot(id, bucket, tailSlot{next: *head}); err != nil {
		return err
	}
	*head = id
	return nil
}

func (v *varlenStore) linkNext(id int64, bucket int, next int64) error {
	slot, err := v.readSlot(id, bucket)
	if err != nil {
		return err
	}
	slot.next = next
	return v.writeSlot(id, bucket, slot)
}

func (v *varlenStore) readSlot(id int64, bucket int) (tailSlot, error) {
	buf, err := v.cache.get(id)
	if err != nil {
		return tailSlot{}, err
	}
	nodeType, _, err := readTrailer(buf, v.cfg)
	if err != nil {
		return tailSlot{}, err
	}
	if nodeType != v.nodeTypeFor(bucket) {
		return tailSlot{}, ErrBadFormat
	}
	hs, _ := bodyRange(v.cfg)
	next := getInt64(buf[hs:])
	used := readUsedLen(buf)
	payload := append([]byte(nil), buf[hs+8:hs+8+used]...)
	return tailSlot{next: next, payload: payload}, nil
}

func (v *varlenStore) writeSlot(id int64, bucket int, s tailSlot) error {
	buf := make([]byte, v.cfg.NodeSize)
	hs, _ := bodyRange(v.cfg)
	putInt64(buf[hs:], s.next)
	copy(buf[hs+8:], s.payload)
	writeUsedLen(buf, len(s.payload))
	writeTrailer(buf, v.cfg, v.nodeTypeFor(bucket), 0)
	return v.cache.put(id, buf)
}

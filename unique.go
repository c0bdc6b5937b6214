// Unique-id counter: a monotone per-table sequence, independent of any
// index, kept in the dictionary (dictionary.go's UniqueID field)
// alongside the transaction number it's bumped next to.
package isam

// SetUnique raises the dictionary's unique-id counter to seed, doing
// nothing if seed isn't greater than the current value: the counter
// never goes backward.
func (t *Table) SetUnique(seed int64) error {
	if err := t.enter(true); err != nil {
		return err
	}
	defer t.exit()
	if seed > t.dict.UniqueID {
		t.dict.UniqueID = seed
	}
	return t.logOp(OpSetUnique, encodeUniquePayload(seed))
}

// UniqueID returns the dictionary's unique-id counter and advances it
// by one.
func (t *Table) UniqueID() (int64, error) {
	if err := t.enter(true); err != nil {
		return 0, err
	}
	defer t.exit()
	id := t.dict.UniqueID
	t.dict.UniqueID = id + 1
	if err := t.logOp(OpUniqueID, encodeUniquePayload(id)); err != nil {
		return 0, err
	}
	return id, nil
}

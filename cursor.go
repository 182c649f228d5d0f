package ondb


//============================================= Cursor (section 4.7, BDBCUR)


// CursorPut governs where PutCurrent places a new value relative to the value the cursor
// currently points at, mirroring tcbdb.h's BDBCPCURRENT/BDBCPBEFORE/BDBCPAFTER.
type CursorPut int

const (
	// CursorPutCurrent overwrites the value the cursor points at.
	CursorPutCurrent CursorPut = iota
	// CursorPutBefore inserts a new value immediately before the current one.
	CursorPutBefore
	// CursorPutAfter inserts a new value immediately after the current one.
	CursorPutAfter
)

// Cursor walks the B+ tree in key order across the leaf sibling chain. Its position is a
// (leaf ID, key index, value index) triple; moving off either end of a leaf hops to the
// neighboring leaf via the sibling links built during insert/split.
type Cursor struct {
	t       *btree
	leafID  string
	keyIdx  int
	valIdx  int
	started bool
}

func newCursor(t *btree) *Cursor {
	return &Cursor{t: t}
}

// First positions the cursor at the smallest key in the tree.
func (c *Cursor) First() error {
	id := leafPageID(c.t.meta.firstLeafNum)

	for {
		leaf, err := c.t.loadLeaf(id)
		if err != nil {
			return err
		}

		if len(leaf.recs) > 0 {
			c.leafID, c.keyIdx, c.valIdx, c.started = id, 0, 0, true
			return nil
		}

		if leaf.next == "" {
			c.started = false
			return newErr("Cursor.First", ErrNoRecord, nil)
		}

		id = leaf.next
	}
}

// Last positions the cursor at the largest key in the tree.
func (c *Cursor) Last() error {
	id := leafPageID(c.t.meta.lastLeafNum)

	for {
		leaf, err := c.t.loadLeaf(id)
		if err != nil {
			return err
		}

		if len(leaf.recs) > 0 {
			c.leafID = id
			c.keyIdx = len(leaf.recs) - 1
			c.valIdx = len(leaf.recs[c.keyIdx].values) - 1
			c.started = true
			return nil
		}

		if leaf.prev == "" {
			c.started = false
			return newErr("Cursor.Last", ErrNoRecord, nil)
		}

		id = leaf.prev
	}
}

// Jump positions the cursor at the first value of key, or ErrNoRecord if absent.
func (c *Cursor) Jump(key []byte) error {
	leaf, _, err := c.t.descend(key)
	if err != nil {
		return err
	}

	idx, _ := findKey(leaf, key, c.t.cmp)
	if idx < 0 {
		c.started = false
		return newErr("Cursor.Jump", ErrNoRecord, nil)
	}

	c.leafID, c.keyIdx, c.valIdx, c.started = leaf.id, idx, 0, true
	return nil
}

func (c *Cursor) currentLeaf() (*leafPage, error) {
	if !c.started {
		return nil, newErr("Cursor", ErrInvalid, nil)
	}

	return c.t.loadLeaf(c.leafID)
}

// Next advances the cursor to the next value (the next key if the current key is exhausted,
// crossing into the next leaf along the sibling chain as needed).
func (c *Cursor) Next() error {
	leaf, err := c.currentLeaf()
	if err != nil {
		return err
	}

	if c.valIdx+1 < len(leaf.recs[c.keyIdx].values) {
		c.valIdx++
		return nil
	}

	if c.keyIdx+1 < len(leaf.recs) {
		c.keyIdx++
		c.valIdx = 0
		return nil
	}

	for leaf.next != "" {
		leaf, err = c.t.loadLeaf(leaf.next)
		if err != nil {
			return err
		}

		if len(leaf.recs) > 0 {
			c.leafID, c.keyIdx, c.valIdx = leaf.id, 0, 0
			return nil
		}
	}

	c.started = false
	return newErr("Cursor.Next", ErrNoRecord, nil)
}

// Prev retreats the cursor to the previous value, crossing into the previous leaf as needed.
func (c *Cursor) Prev() error {
	leaf, err := c.currentLeaf()
	if err != nil {
		return err
	}

	if c.valIdx > 0 {
		c.valIdx--
		return nil
	}

	if c.keyIdx > 0 {
		c.keyIdx--
		c.valIdx = len(leaf.recs[c.keyIdx].values) - 1
		return nil
	}

	for leaf.prev != "" {
		leaf, err = c.t.loadLeaf(leaf.prev)
		if err != nil {
			return err
		}

		if len(leaf.recs) > 0 {
			c.leafID = leaf.id
			c.keyIdx = len(leaf.recs) - 1
			c.valIdx = len(leaf.recs[c.keyIdx].values) - 1
			return nil
		}
	}

	c.started = false
	return newErr("Cursor.Prev", ErrNoRecord, nil)
}

// Key returns the key at the cursor's current position.
func (c *Cursor) Key() ([]byte, error) {
	leaf, err := c.currentLeaf()
	if err != nil {
		return nil, err
	}

	return leaf.recs[c.keyIdx].key, nil
}

// Value returns the value at the cursor's current position.
func (c *Cursor) Value() ([]byte, error) {
	leaf, err := c.currentLeaf()
	if err != nil {
		return nil, err
	}

	return leaf.recs[c.keyIdx].values[c.valIdx], nil
}

// PutCurrent writes value relative to the cursor's position per mode. CursorPutCurrent requires
// the key to already have at least one value (section 4.7's "cursor-put-current with no record
// at the position is an error", a behavior supplemented from tcbdb.c's tcbdbcurput).
func (c *Cursor) PutCurrent(value []byte, mode CursorPut) error {
	leaf, err := c.currentLeaf()
	if err != nil {
		return err
	}

	rec := &leaf.recs[c.keyIdx]

	switch mode {
	case CursorPutCurrent:
		if c.valIdx >= len(rec.values) {
			return newErr("Cursor.PutCurrent", ErrNoRecord, nil)
		}
		rec.values[c.valIdx] = value

	case CursorPutBefore:
		rec.values = append(rec.values, nil)
		copy(rec.values[c.valIdx+1:], rec.values[c.valIdx:])
		rec.values[c.valIdx] = value
		c.valIdx++
		c.t.meta.rnum++

	case CursorPutAfter:
		insertAt := c.valIdx + 1
		rec.values = append(rec.values, nil)
		copy(rec.values[insertAt+1:], rec.values[insertAt:])
		rec.values[insertAt] = value
		c.valIdx = insertAt
		c.t.meta.rnum++
	}

	return c.t.putLeaf(leaf, true)
}

// OutCurrent removes the value the cursor points at. If that was the key's last value, the
// whole key entry is removed and the cursor advances to the next key.
func (c *Cursor) OutCurrent() error {
	leaf, err := c.currentLeaf()
	if err != nil {
		return err
	}

	rec := &leaf.recs[c.keyIdx]
	rec.values = append(rec.values[:c.valIdx], rec.values[c.valIdx+1:]...)
	c.t.meta.rnum--

	if len(rec.values) > 0 {
		if c.valIdx >= len(rec.values) {
			c.valIdx = len(rec.values) - 1
		}
		return c.t.putLeaf(leaf, true)
	}

	leaf.recs = append(leaf.recs[:c.keyIdx], leaf.recs[c.keyIdx+1:]...)

	if err := c.t.putLeaf(leaf, true); err != nil {
		return err
	}

	if c.keyIdx >= len(leaf.recs) {
		return c.advancePastLeaf(leaf)
	}

	c.valIdx = 0
	return nil
}

// advancePastLeaf is used by OutCurrent when deleting the last key of the current leaf left the
// cursor pointing past the end; it hops to the first key of the next non-empty leaf.
func (c *Cursor) advancePastLeaf(leaf *leafPage) error {
	for leaf.next != "" {
		next, err := c.t.loadLeaf(leaf.next)
		if err != nil {
			return err
		}

		if len(next.recs) > 0 {
			c.leafID, c.keyIdx, c.valIdx = next.id, 0, 0
			return nil
		}

		leaf = next
	}

	c.started = false
	return nil
}

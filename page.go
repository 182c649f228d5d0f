package ondb

import "fmt"


//============================================= B+ tree page codec (section 4.6)


// Leaf pages and internal node pages are themselves stored as ordinary records in the hash store,
// keyed by a page ID string. Leaf IDs are plain hex counters; node IDs are '#'-prefixed, keeping
// the two keyspaces disjoint so a page ID alone says which codec to use. Grounded on the
// teacher's serializeINode/serializeLNode pair (Serialize.go), generalized from a single
// key/value leaf to an ordered page holding many keys, each with one or more values.

func leafPageID(n uint64) string { return fmt.Sprintf("%x", n) }
func nodePageID(n uint64) string { return fmt.Sprintf("#%x", n) }

func isNodePageID(id string) bool { return len(id) > 0 && id[0] == '#' }

// leafEntry
//	One key and its associated values. Most keys carry exactly one value; duplicate-key policies
//	(section 4.7) can grow this to several, ordered by insertion or explicit front/back placement.
type leafEntry struct {
	key    []byte
	values [][]byte
}

// leafPage
//	A B+ tree leaf: a sorted run of leafEntry plus sibling links for range/cursor traversal.
type leafPage struct {
	id     string
	prev   string // "" if this is the first leaf
	next   string // "" if this is the last leaf
	parent string
	recs   []leafEntry
}

// nodeEntry
//	One separator key and the ID of the child subtree holding keys >= that separator.
type nodeEntry struct {
	key     []byte
	childID string
}

// nodePage
//	A B+ tree internal node: heading child (keys < the first separator) plus ordered separator/child pairs.
type nodePage struct {
	id       string
	parent   string
	heading  string
	entries  []nodeEntry
}

func putString(dst []byte, s string) []byte {
	dst = putVarint64(dst, uint64(len(s)))
	return append(dst, s...)
}

func getString(src []byte) (string, int) {
	n, consumed := getVarint64(src)
	if consumed == 0 {
		return "", 0
	}

	total := consumed + int(n)
	if total > len(src) {
		return "", 0
	}

	return string(src[consumed:total]), total
}

func putBytes(dst, b []byte) []byte {
	dst = putVarint64(dst, uint64(len(b)))
	return append(dst, b...)
}

func getBytes(src []byte) ([]byte, int) {
	n, consumed := getVarint64(src)
	if consumed == 0 {
		return nil, 0
	}

	total := consumed + int(n)
	if total > len(src) {
		return nil, 0
	}

	return src[consumed:total], total
}

// encodeLeafPage serializes a leaf page to its record payload.
func encodeLeafPage(p *leafPage) []byte {
	var buf []byte

	buf = putString(buf, p.prev)
	buf = putString(buf, p.next)
	buf = putString(buf, p.parent)
	buf = putVarint64(buf, uint64(len(p.recs)))

	for _, rec := range p.recs {
		buf = putBytes(buf, rec.key)
		buf = putVarint64(buf, uint64(len(rec.values)))

		for _, v := range rec.values {
			buf = putBytes(buf, v)
		}
	}

	return buf
}

// decodeLeafPage is the inverse of encodeLeafPage; id is supplied by the caller since a page's
// own ID is never stored in its record payload (it is the record's key). A corrupted payload can
// drive the varint-length-prefixed slicing below out of bounds; recover converts that panic into
// an ErrMetaCorruption the same way the teacher's ReadMetaFromMemMap guards its own raw mmap reads.
func decodeLeafPage(id string, data []byte) (p *leafPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, newErr("decodeLeafPage", ErrMetaCorruption, nil)
		}
	}()

	pos := 0

	prev, n := getString(data[pos:])
	if n == 0 && len(data[pos:]) != 0 {
		return nil, newErr("decodeLeafPage", ErrMetaCorruption, nil)
	}
	pos += n

	next, n := getString(data[pos:])
	pos += n

	parent, n := getString(data[pos:])
	pos += n

	count, n := getVarint64(data[pos:])
	if n == 0 && count != 0 {
		return nil, newErr("decodeLeafPage", ErrMetaCorruption, nil)
	}
	pos += n

	recs := make([]leafEntry, 0, count)

	for i := uint64(0); i < count; i++ {
		key, kn := getBytes(data[pos:])
		if kn == 0 {
			return nil, newErr("decodeLeafPage", ErrMetaCorruption, nil)
		}
		pos += kn

		vcount, vn := getVarint64(data[pos:])
		pos += vn

		values := make([][]byte, 0, vcount)
		for j := uint64(0); j < vcount; j++ {
			v, valn := getBytes(data[pos:])
			if valn == 0 {
				return nil, newErr("decodeLeafPage", ErrMetaCorruption, nil)
			}
			pos += valn
			values = append(values, v)
		}

		recs = append(recs, leafEntry{key: key, values: values})
	}

	return &leafPage{id: id, prev: prev, next: next, parent: parent, recs: recs}, nil
}

// encodeNodePage serializes an internal node page to its record payload.
func encodeNodePage(p *nodePage) []byte {
	var buf []byte

	buf = putString(buf, p.parent)
	buf = putString(buf, p.heading)
	buf = putVarint64(buf, uint64(len(p.entries)))

	for _, e := range p.entries {
		buf = putBytes(buf, e.key)
		buf = putString(buf, e.childID)
	}

	return buf
}

// decodeNodePage carries the same recover-to-ErrMetaCorruption guard as decodeLeafPage, above.
func decodeNodePage(id string, data []byte) (p *nodePage, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, newErr("decodeNodePage", ErrMetaCorruption, nil)
		}
	}()

	pos := 0

	parent, n := getString(data[pos:])
	pos += n

	heading, n := getString(data[pos:])
	if n == 0 {
		return nil, newErr("decodeNodePage", ErrMetaCorruption, nil)
	}
	pos += n

	count, n := getVarint64(data[pos:])
	pos += n

	entries := make([]nodeEntry, 0, count)

	for i := uint64(0); i < count; i++ {
		key, kn := getBytes(data[pos:])
		if kn == 0 {
			return nil, newErr("decodeNodePage", ErrMetaCorruption, nil)
		}
		pos += kn

		childID, cn := getString(data[pos:])
		if cn == 0 {
			return nil, newErr("decodeNodePage", ErrMetaCorruption, nil)
		}
		pos += cn

		entries = append(entries, nodeEntry{key: key, childID: childID})
	}

	return &nodePage{id: id, parent: parent, heading: heading, entries: entries}, nil
}

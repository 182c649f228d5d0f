package ondb

import (
	"bytes"
	"os"

	"github.com/cespare/xxhash/v2"
)


//============================================= Bucket / hash record store (section 4.4)


// Every key lands in one of bnum buckets by its primary hash. A bucket holds the offset of the
// root of a small binary search tree threaded through the records that collided into it, ordered
// by (secondary-hash-byte, key bytes). This mirrors tcbdb.c's TCHDB substrate: tchdbputimpl's
// bucket placement plus tcbdb's secondary-hash tree chaining, grounded on original_source/upstream/tcbdb.c.

const (
	recordMagic byte = 0xc9
	freeMagic   byte = 0x00

	hashStoreHeaderSize = 256
)

// hashStoreHeader
//	On-disk fixed-size header: format identity plus the bucket/record bookkeeping needed to
//	reopen the store. opaque carries 96 bytes reserved for the B+ tree's own metadata
//	(section 4.6) followed by 96 bytes of user-settable opaque data (section 3).
type hashStoreHeader struct {
	magic             [4]byte
	version           uint32
	large             bool
	bnum              uint64
	apow              uint
	fpow              uint
	rnum              uint64
	fsiz              uint64
	firstRecordOffset uint64
	freeListLen       uint64
	opaque            [192]byte
}

var hashStoreMagic = [4]byte{'o', 'n', 'd', 'b'}

const hashStoreFormatVersion = 1

// freeListRegionSize
//	Worst-case bytes reserved for the serialized free list: each entry costs at most two 10-byte
//	varints, one per entry up to the pool's 2^fpow capacity.
func freeListRegionSize(fpow uint) int64 {
	return int64(1<<fpow) * (maxVarint64Len * 2)
}

func (h *hashStoreHeader) bucketWidth() int {
	if h.large {
		return 8
	}

	return 4
}

func (h *hashStoreHeader) bucketArrayOffset() int64 {
	return hashStoreHeaderSize + freeListRegionSize(h.fpow)
}

func (h *hashStoreHeader) dataOffset() int64 {
	return h.bucketArrayOffset() + int64(h.bnum)*int64(h.bucketWidth())
}

func (h *hashStoreHeader) encode() []byte {
	buf := make([]byte, hashStoreHeaderSize)
	copy(buf[0:4], h.magic[:])
	putUint32(buf[4:8], h.version)

	if h.large {
		buf[8] = 1
	}

	buf[10] = byte(h.apow)
	buf[11] = byte(h.fpow)
	putUint64(buf[12:20], h.bnum)
	putUint64(buf[20:28], h.rnum)
	putUint64(buf[28:36], h.fsiz)
	putUint64(buf[36:44], h.firstRecordOffset)
	putUint64(buf[44:52], h.freeListLen)
	copy(buf[52:244], h.opaque[:])

	return buf
}

func decodeHashStoreHeader(buf []byte) (*hashStoreHeader, error) {
	if len(buf) < hashStoreHeaderSize {
		return nil, newErr("decodeHashStoreHeader", ErrMetaCorruption, nil)
	}

	h := &hashStoreHeader{}
	copy(h.magic[:], buf[0:4])

	if h.magic != hashStoreMagic {
		return nil, newErr("decodeHashStoreHeader", ErrMetaCorruption, nil)
	}

	h.version = getUint32(buf[4:8])
	h.large = buf[8] != 0
	h.apow = uint(buf[10])
	h.fpow = uint(buf[11])
	h.bnum = getUint64(buf[12:20])
	h.rnum = getUint64(buf[20:28])
	h.fsiz = getUint64(buf[28:36])
	h.firstRecordOffset = getUint64(buf[36:44])
	h.freeListLen = getUint64(buf[44:52])
	copy(h.opaque[:], buf[52:244])

	return h, nil
}

// btreeMeta / userOpaque split the 192-byte opaque window: 96 bytes for the B+ tree's own
// root/leaf-chain pointers and member-count tuning, 96 bytes free for callers (section 3's
// "opaque region").
func (h *hashStoreHeader) btreeMeta() []byte  { return h.opaque[0:96] }
func (h *hashStoreHeader) userOpaque() []byte { return h.opaque[96:192] }

// hashRecord
//	A single stored (key, value) pair plus its chain-tree links, per the on-disk layout in
//	section 4.4: magic | hash-byte | left | right | padsize | ksiz | vsiz | key | value | pad.
type hashRecord struct {
	offset   uint64 // position of this record in the file; 0 only for not-yet-written records
	size     uint64 // total on-disk extent including padding
	hashByte byte
	left     uint64
	right    uint64
	key      []byte
	value    []byte
}

// hashStore
//	The bucket array plus record heap. Every exported method here is called only while the owning
//	DB holds its method lock (section 5), so hashStore itself does no internal locking.
type hashStore struct {
	f    *os.File
	hdr  *hashStoreHeader
	free *freeList

	compressor Compressor

	// pending holds at most one buffered append per bucket, written lazily (section 4.4's
	// "asynchronous append mode"). A conflicting read or close flushes it first.
	pending map[uint64]*hashRecord
}

// createHashStore initializes a brand-new store on an already-truncated, empty file.
func createHashStore(f *os.File, bnum uint64, apow, fpow uint, large bool) (*hashStore, error) {
	hdr := &hashStoreHeader{
		magic:   hashStoreMagic,
		version: hashStoreFormatVersion,
		large:   large,
		bnum:    bnum,
		apow:    apow,
		fpow:    fpow,
	}

	hdr.firstRecordOffset = uint64(hdr.dataOffset())
	hdr.fsiz = hdr.firstRecordOffset

	hs := &hashStore{
		f:       f,
		hdr:     hdr,
		free:    newFreeList(fpow),
		pending: make(map[uint64]*hashRecord),
	}

	if truncErr := truncateFile(f, int64(hdr.fsiz)); truncErr != nil {
		return nil, truncErr
	}

	if writeErr := hs.writeHeader(); writeErr != nil {
		return nil, writeErr
	}

	zeroBuckets := make([]byte, hdr.bnum*uint64(hdr.bucketWidth()))
	if writeErr := pwrite(f, zeroBuckets, hdr.bucketArrayOffset()); writeErr != nil {
		return nil, writeErr
	}

	return hs, nil
}

// openHashStore reopens an existing store, restoring the free list from its reserved region.
func openHashStore(f *os.File, compressor Compressor) (*hashStore, error) {
	hdrBuf := make([]byte, hashStoreHeaderSize)
	if readErr := pread(f, hdrBuf, 0); readErr != nil {
		return nil, readErr
	}

	hdr, decodeErr := decodeHashStoreHeader(hdrBuf)
	if decodeErr != nil {
		return nil, decodeErr
	}

	flBuf := make([]byte, hdr.freeListLen)
	if hdr.freeListLen > 0 {
		if readErr := pread(f, flBuf, hashStoreHeaderSize); readErr != nil {
			return nil, readErr
		}
	}

	fl, flErr := deserializeFreeList(flBuf, hdr.fpow)
	if flErr != nil {
		return nil, flErr
	}

	actualSize, sizeErr := fileSize(f)
	if sizeErr != nil {
		return nil, sizeErr
	}

	if uint64(actualSize) != hdr.fsiz {
		return nil, newErr("openHashStore", ErrMetaCorruption, nil)
	}

	return &hashStore{
		f:          f,
		hdr:        hdr,
		free:       fl,
		compressor: compressor,
		pending:    make(map[uint64]*hashRecord),
	}, nil
}

// close flushes pending appends, persists the header and free list, and syncs the file.
func (hs *hashStore) close() error {
	if flushErr := hs.flushAllPending(); flushErr != nil {
		return flushErr
	}

	flBytes := hs.free.serialize()
	if int64(len(flBytes)) > freeListRegionSize(hs.hdr.fpow) {
		return newErr("hashStore.close", ErrMetaCorruption, nil)
	}

	if writeErr := pwrite(hs.f, flBytes, hashStoreHeaderSize); writeErr != nil {
		return writeErr
	}

	hs.hdr.freeListLen = uint64(len(flBytes))

	if writeErr := hs.writeHeader(); writeErr != nil {
		return writeErr
	}

	return fsync(hs.f)
}

func (hs *hashStore) writeHeader() error {
	return pwrite(hs.f, hs.hdr.encode(), 0)
}

// align rounds n up to the store's alignment boundary (2^apow).
func (hs *hashStore) align(n uint64) uint64 {
	a := uint64(1) << hs.hdr.apow
	rem := n % a
	if rem == 0 {
		return n
	}

	return n + (a - rem)
}

func (hs *hashStore) bucketIndex(key []byte) uint64 {
	return xxhash.Sum64(key) % hs.hdr.bnum
}

func secondaryHashByte(key []byte) byte {
	h := xxhash.Sum64(append([]byte{0xaa}, key...))
	return byte(h >> 56)
}

// encodeRecord serializes a record's header and payload, applying compression to key+value
// if a Compressor is configured. Returns the encoded bytes (unpadded).
func (hs *hashStore) encodeRecord(rec *hashRecord) ([]byte, error) {
	key, value := rec.key, rec.value

	if hs.compressor != nil {
		var err error

		key, err = hs.compressor.Compress(rec.key)
		if err != nil {
			return nil, newErr("encodeRecord", ErrMiscIO, err)
		}

		value, err = hs.compressor.Compress(rec.value)
		if err != nil {
			return nil, newErr("encodeRecord", ErrMiscIO, err)
		}
	}

	width := hs.hdr.bucketWidth()
	buf := make([]byte, 0, 2+2*width+1+varintLen64(uint64(len(key)))+varintLen64(uint64(len(value)))+len(key)+len(value))

	buf = append(buf, recordMagic, rec.hashByte)

	linkBuf := make([]byte, width)
	if width == 8 {
		putUint64(linkBuf, rec.left)
	} else {
		putUint32(linkBuf, uint32(rec.left))
	}
	buf = append(buf, linkBuf...)

	if width == 8 {
		putUint64(linkBuf, rec.right)
	} else {
		putUint32(linkBuf, uint32(rec.right))
	}
	buf = append(buf, linkBuf...)

	buf = append(buf, 0) // padsize placeholder, filled in by writeRecordAt
	buf = putVarint64(buf, uint64(len(key)))
	buf = putVarint64(buf, uint64(len(value)))
	buf = append(buf, key...)
	buf = append(buf, value...)

	return buf, nil
}

// writeRecordAt pads body to the alignment boundary, stamps the real padsize, and writes it.
// Returns the record's total on-disk extent size.
func (hs *hashStore) writeRecordAt(offset uint64, body []byte) (uint64, error) {
	total := hs.align(uint64(len(body)))
	pad := total - uint64(len(body))

	if pad > 255 {
		return 0, newErr("writeRecordAt", ErrMetaCorruption, nil)
	}

	padsizeOffset := 2 + 2*hs.hdr.bucketWidth()
	body[padsizeOffset] = byte(pad)

	padded := make([]byte, total)
	copy(padded, body)

	if writeErr := pwrite(hs.f, padded, int64(offset)); writeErr != nil {
		return 0, writeErr
	}

	return total, nil
}

// readRecordAt reads and decodes the record stored at offset, given its on-disk size. A torn or
// corrupted extent can drive the header/varint slicing below out of bounds; recover converts that
// panic into ErrMetaCorruption rather than crashing the process, matching the teacher's own
// recover-around-raw-byte-decoding pattern (ReadMetaFromMemMap and friends in Meta.go).
func (hs *hashStore) readRecordAt(offset, size uint64) (rec *hashRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, newErr("readRecordAt", ErrMetaCorruption, nil)
		}
	}()

	buf := make([]byte, size)
	if readErr := pread(hs.f, buf, int64(offset)); readErr != nil {
		return nil, readErr
	}

	if buf[0] != recordMagic {
		return nil, newErr("readRecordAt", ErrMetaCorruption, nil)
	}

	width := hs.hdr.bucketWidth()
	pos := 1

	hashByte := buf[pos]
	pos++

	var left, right uint64
	if width == 8 {
		left = getUint64(buf[pos : pos+8])
	} else {
		left = uint64(getUint32(buf[pos : pos+4]))
	}
	pos += width

	if width == 8 {
		right = getUint64(buf[pos : pos+8])
	} else {
		right = uint64(getUint32(buf[pos : pos+4]))
	}
	pos += width

	pos++ // padsize, already accounted for via size

	ksiz, n1 := getVarint64(buf[pos:])
	if n1 == 0 {
		return nil, newErr("readRecordAt", ErrMetaCorruption, nil)
	}
	pos += n1

	vsiz, n2 := getVarint64(buf[pos:])
	if n2 == 0 {
		return nil, newErr("readRecordAt", ErrMetaCorruption, nil)
	}
	pos += n2

	key := buf[pos : pos+int(ksiz)]
	pos += int(ksiz)
	value := buf[pos : pos+int(vsiz)]

	if hs.compressor != nil {
		var err error

		key, err = hs.compressor.Decompress(key)
		if err != nil {
			return nil, newErr("readRecordAt", ErrMiscIO, err)
		}

		value, err = hs.compressor.Decompress(value)
		if err != nil {
			return nil, newErr("readRecordAt", ErrMiscIO, err)
		}
	}

	return &hashRecord{
		offset: offset, size: size, hashByte: hashByte,
		left: left, right: right, key: key, value: value,
	}, nil
}

// allocateAndWrite finds or grows space for body and writes the record, returning its offset and extent size.
func (hs *hashStore) allocateAndWrite(body []byte) (uint64, uint64, error) {
	total := hs.align(uint64(len(body)))

	if offset, ok := hs.free.allocate(total); ok {
		size, writeErr := hs.writeRecordAt(offset, body)
		return offset, size, writeErr
	}

	offset := hs.hdr.fsiz
	size, writeErr := hs.writeRecordAt(offset, body)
	if writeErr != nil {
		return 0, 0, writeErr
	}

	hs.hdr.fsiz = offset + size
	return offset, size, nil
}

// releaseExtent frees offset/size back to the pool and stamps a skip-marker for the file-order scan.
func (hs *hashStore) releaseExtent(offset, size uint64) error {
	tomb := append([]byte{freeMagic}, putVarint64(nil, size)...)
	if writeErr := pwrite(hs.f, tomb, int64(offset)); writeErr != nil {
		return writeErr
	}

	hs.free.release(offset, size)
	return nil
}

// bucketRootOffset reads the chain-tree root offset stored in bucket idx.
func (hs *hashStore) bucketRootOffset(idx uint64) (uint64, error) {
	width := hs.hdr.bucketWidth()
	buf := make([]byte, width)

	if readErr := pread(hs.f, buf, hs.hdr.bucketArrayOffset()+int64(idx)*int64(width)); readErr != nil {
		return 0, readErr
	}

	if width == 8 {
		return getUint64(buf), nil
	}

	return uint64(getUint32(buf)), nil
}

func (hs *hashStore) setBucketRootOffset(idx, offset uint64) error {
	width := hs.hdr.bucketWidth()
	buf := make([]byte, width)

	if width == 8 {
		putUint64(buf, offset)
	} else {
		putUint32(buf, uint32(offset))
	}

	return pwrite(hs.f, buf, hs.hdr.bucketArrayOffset()+int64(idx)*int64(width))
}

// chainCompare orders records within a bucket's tree by (secondary-hash-byte, key bytes).
func chainCompare(hashByte byte, key []byte, otherHashByte byte, otherKey []byte) int {
	if hashByte != otherHashByte {
		if hashByte < otherHashByte {
			return -1
		}
		return 1
	}

	return bytes.Compare(key, otherKey)
}

// flushPendingBucket writes out any buffered async-append record for bucket idx.
func (hs *hashStore) flushPendingBucket(idx uint64) error {
	rec, ok := hs.pending[idx]
	if !ok {
		return nil
	}

	delete(hs.pending, idx)
	return hs.insertIntoBucket(idx, rec)
}

func (hs *hashStore) flushAllPending() error {
	for idx := range hs.pending {
		if err := hs.flushPendingBucket(idx); err != nil {
			return err
		}
	}

	return nil
}

// insertIntoBucket walks bucket idx's chain tree, attaching rec as a new leaf by
// (secondary-hash-byte, key) order. Caller guarantees the key is not already present.
func (hs *hashStore) insertIntoBucket(idx uint64, rec *hashRecord) error {
	body, encErr := hs.encodeRecord(rec)
	if encErr != nil {
		return encErr
	}

	offset, size, writeErr := hs.allocateAndWrite(body)
	if writeErr != nil {
		return writeErr
	}

	rec.offset, rec.size = offset, size

	root, readErr := hs.bucketRootOffset(idx)
	if readErr != nil {
		return readErr
	}

	if root == 0 {
		hs.hdr.rnum++
		return hs.setBucketRootOffset(idx, offset)
	}

	cur := root
	for {
		curRec, readErr := hs.readRecordAt(cur, hs.recordSizeAt(cur))
		if readErr != nil {
			return readErr
		}

		cmp := chainCompare(rec.hashByte, rec.key, curRec.hashByte, curRec.key)

		if cmp < 0 {
			if curRec.left == 0 {
				curRec.left = offset
				hs.hdr.rnum++
				return hs.rewriteLinks(curRec)
			}
			cur = curRec.left
		} else {
			if curRec.right == 0 {
				curRec.right = offset
				hs.hdr.rnum++
				return hs.rewriteLinks(curRec)
			}
			cur = curRec.right
		}
	}
}

// recordSizeAt determines a record's on-disk extent by re-reading its header only, since size
// isn't cached separately from the heap; it recomputes from ksiz/vsiz/padsize at the fixed offset.
func (hs *hashStore) recordSizeAt(offset uint64) uint64 {
	width := hs.hdr.bucketWidth()
	headFixed := 2 + 2*width + 1

	headLen := uint64(headFixed + 2*maxVarint64Len)
	if rem := hs.hdr.fsiz - offset; offset < hs.hdr.fsiz && rem < headLen {
		headLen = rem
	}

	head := make([]byte, headLen)
	if readErr := pread(hs.f, head, int64(offset)); readErr != nil {
		return 0
	}

	padsize := uint64(head[2+2*width])

	pos := headFixed
	ksiz, n1 := getVarint64(head[pos:])
	pos += n1
	vsiz, n2 := getVarint64(head[pos:])
	pos += n2

	return uint64(pos) + ksiz + vsiz + padsize
}

// rewriteLinks rewrites only the left/right link fields of an already-written record in place.
func (hs *hashStore) rewriteLinks(rec *hashRecord) error {
	width := hs.hdr.bucketWidth()
	buf := make([]byte, 2*width)

	if width == 8 {
		putUint64(buf[0:8], rec.left)
		putUint64(buf[8:16], rec.right)
	} else {
		putUint32(buf[0:4], uint32(rec.left))
		putUint32(buf[4:8], uint32(rec.right))
	}

	return pwrite(hs.f, buf, int64(rec.offset)+2)
}

// lookup walks bucket idx's chain tree looking for key, returning the matching record and the
// parent chain needed for unlinking on delete (innermost last).
func (hs *hashStore) lookup(idx uint64, key []byte) (rec *hashRecord, chain []*hashRecord, err error) {
	if flushErr := hs.flushPendingBucket(idx); flushErr != nil {
		return nil, nil, flushErr
	}

	hb := secondaryHashByte(key)

	cur, readErr := hs.bucketRootOffset(idx)
	if readErr != nil {
		return nil, nil, readErr
	}

	for cur != 0 {
		curRec, readErr := hs.readRecordAt(cur, hs.recordSizeAt(cur))
		if readErr != nil {
			return nil, nil, readErr
		}

		cmp := chainCompare(hb, key, curRec.hashByte, curRec.key)

		if cmp == 0 {
			return curRec, chain, nil
		}

		chain = append(chain, curRec)

		if cmp < 0 {
			cur = curRec.left
		} else {
			cur = curRec.right
		}
	}

	return nil, chain, nil
}

// put stores value for key in bucket idx, replacing the in-place payload when the key already
// exists (overwrite semantics live in the caller, which applies the duplicate-key policy).
func (hs *hashStore) put(key, value []byte, async bool) error {
	idx := hs.bucketIndex(key)

	rec := &hashRecord{hashByte: secondaryHashByte(key), key: key, value: value}

	existing, chain, lookupErr := hs.lookup(idx, key)
	if lookupErr != nil {
		return lookupErr
	}

	if existing != nil {
		return hs.replaceRecord(idx, existing, chain, value)
	}

	if async {
		hs.pending[idx] = rec
		return nil
	}

	return hs.insertIntoBucket(idx, rec)
}

// replaceRecord overwrites an existing record's value in place when it fits, else relocates it
// to a freshly allocated extent and relinks the parent (or bucket root).
func (hs *hashStore) replaceRecord(idx uint64, existing *hashRecord, chain []*hashRecord, value []byte) error {
	newRec := &hashRecord{
		hashByte: existing.hashByte,
		left:     existing.left,
		right:    existing.right,
		key:      existing.key,
		value:    value,
	}

	body, encErr := hs.encodeRecord(newRec)
	if encErr != nil {
		return encErr
	}

	if hs.align(uint64(len(body))) <= existing.size {
		size, writeErr := hs.writeRecordAt(existing.offset, body)
		if writeErr != nil {
			return writeErr
		}

		if size < existing.size {
			if releaseErr := hs.releaseExtent(existing.offset+size, existing.size-size); releaseErr != nil {
				return releaseErr
			}
		}

		return nil
	}

	offset, size, writeErr := hs.allocateAndWrite(body)
	if writeErr != nil {
		return writeErr
	}

	if releaseErr := hs.releaseExtent(existing.offset, existing.size); releaseErr != nil {
		return releaseErr
	}

	newRec.offset, newRec.size = offset, size

	if len(chain) == 0 {
		return hs.setBucketRootOffset(idx, offset)
	}

	parent := chain[len(chain)-1]
	if parent.left == existing.offset {
		parent.left = offset
	} else {
		parent.right = offset
	}

	return hs.rewriteLinks(parent)
}

// get retrieves the value stored for key, returning ErrNoRecord if absent.
func (hs *hashStore) get(key []byte) ([]byte, error) {
	idx := hs.bucketIndex(key)

	rec, _, lookupErr := hs.lookup(idx, key)
	if lookupErr != nil {
		return nil, lookupErr
	}

	if rec == nil {
		return nil, newErr("hashStore.get", ErrNoRecord, nil)
	}

	return rec.value, nil
}

// out deletes the record for key, splicing it out of its bucket's chain tree.
func (hs *hashStore) out(key []byte) error {
	idx := hs.bucketIndex(key)

	rec, chain, lookupErr := hs.lookup(idx, key)
	if lookupErr != nil {
		return lookupErr
	}

	if rec == nil {
		return newErr("hashStore.out", ErrNoRecord, nil)
	}

	replacement, replaceErr := hs.detachNode(rec)
	if replaceErr != nil {
		return replaceErr
	}

	if len(chain) == 0 {
		if setErr := hs.setBucketRootOffset(idx, replacement); setErr != nil {
			return setErr
		}
	} else {
		parent := chain[len(chain)-1]
		if parent.left == rec.offset {
			parent.left = replacement
		} else {
			parent.right = replacement
		}

		if linkErr := hs.rewriteLinks(parent); linkErr != nil {
			return linkErr
		}
	}

	hs.hdr.rnum--
	return hs.releaseExtent(rec.offset, rec.size)
}

// detachNode removes rec from the tree it roots, returning the offset that should replace it in
// its parent (0 if it had no children). A node with two children is replaced by its in-order
// successor (leftmost descendant of its right subtree), spliced out of that subtree first.
func (hs *hashStore) detachNode(rec *hashRecord) (uint64, error) {
	if rec.left == 0 {
		return rec.right, nil
	}

	if rec.right == 0 {
		return rec.left, nil
	}

	// find leftmost node under rec.right, tracking its parent
	var parent *hashRecord
	succOffset := rec.right

	for {
		succ, readErr := hs.readRecordAt(succOffset, hs.recordSizeAt(succOffset))
		if readErr != nil {
			return 0, readErr
		}

		if succ.left == 0 {
			if parent == nil {
				succ.left = rec.left
				return succOffset, hs.rewriteLinks(succ)
			}

			parent.left = succ.right
			if linkErr := hs.rewriteLinks(parent); linkErr != nil {
				return 0, linkErr
			}

			succ.left = rec.left
			succ.right = rec.right
			return succOffset, hs.rewriteLinks(succ)
		}

		parent = succ
		succOffset = succ.left
	}
}

// iterState supports a file-order scan over records (section 4.4's maintenance-scan iterator),
// distinct from the B+ tree's key-ordered cursor.
type iterState struct {
	offset uint64
}

func (hs *hashStore) iterInit() *iterState {
	return &iterState{offset: hs.hdr.firstRecordOffset}
}

// iterNext returns the next live record in file order, or (nil, nil) at end of file.
func (hs *hashStore) iterNext(it *iterState) (*hashRecord, error) {
	for it.offset < hs.hdr.fsiz {
		var magicBuf [1]byte
		if readErr := pread(hs.f, magicBuf[:], int64(it.offset)); readErr != nil {
			return nil, readErr
		}

		if magicBuf[0] == freeMagic {
			sizeBuf := make([]byte, maxVarint64Len)
			if readErr := pread(hs.f, sizeBuf, int64(it.offset)+1); readErr != nil {
				return nil, readErr
			}

			size, n := getVarint64(sizeBuf)
			if n == 0 {
				return nil, newErr("iterNext", ErrMetaCorruption, nil)
			}

			it.offset += size
			continue
		}

		size := hs.recordSizeAt(it.offset)
		rec, readErr := hs.readRecordAt(it.offset, size)
		if readErr != nil {
			return nil, readErr
		}

		it.offset += size
		return rec, nil
	}

	return nil, nil
}

// recordCount and fileSizeBytes back the DB's RecordCount/FileSize introspection accessors.
func (hs *hashStore) recordCount() uint64 { return hs.hdr.rnum }
func (hs *hashStore) fileSizeBytes() uint64 { return hs.hdr.fsiz }
func (hs *hashStore) bucketCount() uint64 { return hs.hdr.bnum }
func (hs *hashStore) alignment() uint { return hs.hdr.apow }

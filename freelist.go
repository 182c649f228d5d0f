package ondb

import "sort"


//============================================= Free-block pool (section 4.3)


// freeBlock
//	A single freed file extent available for reuse.
type freeBlock struct {
	offset uint64
	size   uint64
}

// freeList
//	In-memory index of freed record extents, kept sorted by size for allocation and bounded to
//	2^fpow entries; overflow triggers a merge-adjacent-then-drop-smallest compaction (section 4.3).
type freeList struct {
	blocks   []freeBlock // sorted by size ascending
	capacity int         // 2^fpow
}

// newFreeList
//	Build an empty free list bounded to 2^fpow entries.
func newFreeList(fpow uint) *freeList {
	return &freeList{
		blocks:   make([]freeBlock, 0),
		capacity: 1 << fpow,
	}
}

// allocate
//	Picks the smallest free block whose size is >= requested size via a size-sorted binary
//	search. If the block is strictly larger than requested, the surplus is reinserted as a new
//	free block at offset+size. Returns (offset, true) on success, (0, false) if no block fits.
func (fl *freeList) allocate(size uint64) (uint64, bool) {
	idx := sort.Search(len(fl.blocks), func(i int) bool { return fl.blocks[i].size >= size })
	if idx == len(fl.blocks) {
		return 0, false
	}

	blk := fl.blocks[idx]
	fl.blocks = append(fl.blocks[:idx], fl.blocks[idx+1:]...)

	if blk.size > size {
		fl.release(blk.offset+size, blk.size-size)
	}

	return blk.offset, true
}

// release
//	Inserts a newly freed extent in size order. If this pushes the pool over capacity, the
//	pool compacts: sort by offset, merge adjacent extents, then drop the smallest entries until
//	back within capacity.
func (fl *freeList) release(offset, size uint64) {
	if size == 0 {
		return
	}

	idx := sort.Search(len(fl.blocks), func(i int) bool { return fl.blocks[i].size >= size })
	fl.blocks = append(fl.blocks, freeBlock{})
	copy(fl.blocks[idx+1:], fl.blocks[idx:])
	fl.blocks[idx] = freeBlock{offset: offset, size: size}

	if len(fl.blocks) > fl.capacity {
		fl.compact()
	}
}

// compact
//	Sorts by offset, merges adjacent extents, and drops the smallest surviving entries until the
//	pool is back at or under capacity. Re-sorts by size afterward to restore the allocation invariant.
func (fl *freeList) compact() {
	byOffset := make([]freeBlock, len(fl.blocks))
	copy(byOffset, fl.blocks)

	sort.Slice(byOffset, func(i, j int) bool { return byOffset[i].offset < byOffset[j].offset })

	merged := byOffset[:0:0]
	for _, blk := range byOffset {
		if n := len(merged); n > 0 && merged[n-1].offset+merged[n-1].size == blk.offset {
			merged[n-1].size += blk.size
		} else {
			merged = append(merged, blk)
		}
	}

	if len(merged) > fl.capacity {
		sort.Slice(merged, func(i, j int) bool { return merged[i].size < merged[j].size })
		merged = merged[len(merged)-fl.capacity:]
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].size < merged[j].size })
	fl.blocks = merged
}

// serialize
//	Serializes the pool as a sequence of (delta-offset, size) varints sorted by offset, per
//	section 4.3, to keep the on-disk form compact.
func (fl *freeList) serialize() []byte {
	byOffset := make([]freeBlock, len(fl.blocks))
	copy(byOffset, fl.blocks)
	sort.Slice(byOffset, func(i, j int) bool { return byOffset[i].offset < byOffset[j].offset })

	var out []byte
	var prevOffset uint64

	for _, blk := range byOffset {
		out = putVarint64(out, blk.offset-prevOffset)
		out = putVarint64(out, blk.size)
		prevOffset = blk.offset
	}

	return out
}

// deserializeFreeList
//	Inverse of serialize: reconstructs a free list (still respecting fpow's capacity) from its
//	on-disk delta-offset form.
func deserializeFreeList(data []byte, fpow uint) (*freeList, error) {
	fl := newFreeList(fpow)

	var offset uint64
	pos := 0

	for pos < len(data) {
		deltaOff, n1 := getVarint64(data[pos:])
		if n1 == 0 {
			return nil, newErr("deserializeFreeList", ErrMetaCorruption, nil)
		}

		pos += n1

		size, n2 := getVarint64(data[pos:])
		if n2 == 0 {
			return nil, newErr("deserializeFreeList", ErrMetaCorruption, nil)
		}

		pos += n2

		offset += deltaOff
		fl.blocks = append(fl.blocks, freeBlock{offset: offset, size: size})
	}

	sort.Slice(fl.blocks, func(i, j int) bool { return fl.blocks[i].size < fl.blocks[j].size })
	return fl, nil
}

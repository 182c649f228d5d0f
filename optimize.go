package ondb

import "os"


//============================================= Optimize: rebuild + atomic swap (section 4.7)


// OptimizeOptions lets a caller retarget lmemb/nmemb for the rebuilt file; a zero field keeps
// the current value, mirroring tcbdboptimize's own 0-means-unchanged convention.
type OptimizeOptions struct {
	LeafMembers uint32
	NodeMembers uint32
}

// Optimize rebuilds the database into a sibling file and swaps it in, dropping free-list
// fragmentation and recompacting the bucket/record heap via a full in-order walk of the B+
// tree's leaf chain. opts is optional; pass none to keep the current lmemb/nmemb.
func (db *DB) Optimize(opts ...OptimizeOptions) error {
	if db.state != stateOpenWriter {
		return newErr("Optimize", ErrInvalid, nil)
	}

	lmemb, nmemb := db.tree.meta.lmemb, db.tree.meta.nmemb
	if len(opts) > 0 {
		if opts[0].LeafMembers != 0 {
			lmemb = opts[0].LeafMembers
		}
		if opts[0].NodeMembers != 0 {
			nmemb = opts[0].NodeMembers
		}
	}

	tmpPath := db.path + ".optmp"

	tmpFile, createErr := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if createErr != nil {
		return newErr("Optimize", ErrMiscIO, createErr)
	}

	newHS, createErr := createHashStore(tmpFile, db.hs.hdr.bnum, db.hs.hdr.apow, db.hs.hdr.fpow, db.hs.hdr.large)
	if createErr != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return createErr
	}
	newHS.compressor = db.hs.compressor

	newTree := newBTree(newHS, db.tree.cmp, len(db.tree.leaves.items)+1, len(db.tree.nodes.items)+1)
	newTree.dup = db.tree.dup

	if bootstrapErr := newTree.bootstrap(); bootstrapErr != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return bootstrapErr
	}

	newTree.meta.lmemb = lmemb
	newTree.meta.nmemb = nmemb

	copy(newHS.hdr.userOpaque(), db.hs.hdr.userOpaque())

	if rebuildErr := db.rebuildInto(newTree); rebuildErr != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return rebuildErr
	}

	if flushErr := newTree.flushAll(); flushErr != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return flushErr
	}

	copy(newHS.hdr.btreeMeta(), encodeBTreeMeta(newTree.meta))

	if closeErr := newHS.close(); closeErr != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return closeErr
	}

	return db.swapOptimizedFile(tmpFile, tmpPath)
}

// rebuildInto walks the current tree's leaf chain in key order and reinserts every (key, value)
// pair into newTree, which starts empty and grows leaves/nodes fresh without any of the
// fragmentation the original tree may have accumulated.
func (db *DB) rebuildInto(newTree *btree) error {
	id := leafPageID(db.tree.meta.firstLeafNum)

	for id != "" {
		leaf, err := db.tree.loadLeaf(id)
		if err != nil {
			return err
		}

		for _, rec := range leaf.recs {
			for _, v := range rec.values {
				if err := newTree.putWithMode(rec.key, v, DupBackward); err != nil {
					return err
				}
			}
		}

		id = leaf.next
	}

	return nil
}

// swapOptimizedFile closes the live file, renames the rebuilt file over it, and reopens,
// following a rename-old-away/rename-new-in/remove-old sequence.
func (db *DB) swapOptimizedFile(tmpFile *os.File, tmpPath string) error {
	currentPath := db.path
	swapPath := currentPath + ".swap"

	if unlockErr := unlockFile(db.hs.f); unlockErr != nil && codeOf(unlockErr) != ErrThread {
		return unlockErr
	}

	if closeErr := db.hs.f.Close(); closeErr != nil {
		return newErr("Optimize", ErrMiscIO, closeErr)
	}

	if syncErr := fsync(tmpFile); syncErr != nil {
		return syncErr
	}

	if err := os.Rename(currentPath, swapPath); err != nil {
		return newErr("Optimize", ErrRename, err)
	}

	if err := os.Rename(tmpPath, currentPath); err != nil {
		os.Rename(swapPath, currentPath)
		return newErr("Optimize", ErrRename, err)
	}

	if err := os.Remove(swapPath); err != nil {
		return newErr("Optimize", ErrUnlink, err)
	}

	tmpFile.Close()

	reopened, openErr := os.OpenFile(currentPath, os.O_RDWR, 0644)
	if openErr != nil {
		return newErr("Optimize", ErrMiscIO, openErr)
	}

	if lockErr := flockFile(reopened, lockExclusive, db.opts.NonBlockingLock); lockErr != nil {
		return lockErr
	}

	newHS, openErr := openHashStore(reopened, db.hs.compressor)
	if openErr != nil {
		return openErr
	}

	db.hs = newHS
	db.tree = newBTree(newHS, db.tree.cmp, db.opts.LeafCacheSize, db.opts.NodeCacheSize)
	db.tree.meta = decodeBTreeMeta(newHS.hdr.btreeMeta())
	db.tree.dup = db.opts.DupMode

	return nil
}

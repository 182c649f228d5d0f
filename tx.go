package ondb


//============================================= Transactions (section 4.8)


// txSnapshot captures everything Abort needs to restore: the full opaque metadata region (the
// B+ tree's own bookkeeping plus the caller's user opaque bytes) and the file's logical size at
// the moment Begin was called.
type txSnapshot struct {
	opaque [192]byte
	meta   btreeMeta
	fsiz   uint64
}

// Begin starts a transaction by snapshotting the opaque metadata region, matching tcbdb.c's
// tcbdbtranbegin. Only one transaction may be open at a time. Cache eviction is suspended for
// the duration: a page written back out from under a pending Abort would defeat the rollback
// entirely.
func (db *DB) Begin() error {
	if db.state != stateOpenWriter {
		return newErr("Begin", ErrInvalid, nil)
	}

	if err := db.tree.flushAll(); err != nil {
		return err
	}

	db.txSnapshot = &txSnapshot{
		opaque: db.hs.hdr.opaque,
		meta:   *db.tree.meta,
		fsiz:   db.hs.hdr.fsiz,
	}

	db.tree.leaves.suspend = true
	db.tree.nodes.suspend = true
	db.tree.deferOut = true
	db.state = stateInTransaction

	return nil
}

// Commit releases the snapshot, flushes every dirty page, runs any hs.out calls a delete-to-
// empty-leaf deferred during the transaction, and persists the header.
func (db *DB) Commit() error {
	if db.state != stateInTransaction {
		return newErr("Commit", ErrInvalid, nil)
	}

	if err := db.tree.flushAll(); err != nil {
		return err
	}

	if err := db.tree.flushPendingOut(); err != nil {
		return err
	}

	copy(db.hs.hdr.btreeMeta(), encodeBTreeMeta(db.tree.meta))

	if err := db.hs.writeHeader(); err != nil {
		return err
	}

	if err := fsync(db.hs.f); err != nil {
		return err
	}

	db.endTransaction()
	return nil
}

// Abort discards every page mutated since Begin: dirty cache entries are dropped rather than
// written back, any leaf unlink's hs.out call that Begin deferred is discarded rather than run,
// and the opaque metadata region (including the B+ tree's root/leaf-chain bookkeeping) is
// restored to its pre-transaction snapshot, per tcbdb.c's tcbdbtranabort.
func (db *DB) Abort() error {
	if db.state != stateInTransaction {
		return newErr("Abort", ErrInvalid, nil)
	}

	db.tree.purgeDirty()
	db.tree.pendingOut = nil

	snap := db.txSnapshot
	db.hs.hdr.opaque = snap.opaque
	db.hs.hdr.fsiz = snap.fsiz

	restoredMeta := snap.meta
	db.tree.meta = &restoredMeta
	db.tree.hotLeafID = ""

	db.endTransaction()
	return nil
}

func (db *DB) endTransaction() {
	db.tree.leaves.suspend = false
	db.tree.nodes.suspend = false
	db.tree.deferOut = false
	db.txSnapshot = nil
	db.state = stateOpenWriter
}

// InTransaction reports whether a transaction is currently open.
func (db *DB) InTransaction() bool {
	return db.state == stateInTransaction
}

package ondb

import (
	"os"
	"sync"
)


//============================================= DB: top-level handle (section 3, 5)


// dbState tracks where a DB sits in its new -> tuned -> open -> (in transaction) -> closed
// lifecycle; most calls are only legal from specific states, mirroring tcbdb.c's own internal
// open/fatal flags.
type dbState int

const (
	stateNew dbState = iota
	stateTuned
	stateOpenReader
	stateOpenWriter
	stateInTransaction
	stateClosed
)

// OpenFlag is a bitmask of how Open should access the file, mirroring tcbdb.h's
// BDBOREADER/BDBOWRITER/BDBOCREAT/BDBOTRUNC/BDBONOLCK/BDBOLCKNB.
type OpenFlag int

const (
	OpenReader OpenFlag = 1 << iota
	OpenWriter
	OpenCreate
	OpenTruncate
	OpenNoLock
	OpenLockNonBlock
)

func (f OpenFlag) has(bit OpenFlag) bool { return f&bit != 0 }

// Options configures a DB before Open; fields left zero take the defaults noted below. Tuning is
// only legal while the DB is in its new/tuned states (before Open), matching tcbdb.c's
// tcbdbtune/tcbdbsetcmpfunc/tcbdbsetcodecfunc restrictions.
type Options struct {
	// BucketNum is the hash store's bucket array size. Default 131071 (a prime near 2^17).
	BucketNum uint64
	// Alignment is apow: records are padded to a 2^Alignment boundary. Default 4 (16 bytes).
	Alignment uint
	// FreePoolPower is fpow: the free-block pool holds at most 2^FreePoolPower entries. Default 10.
	FreePoolPower uint
	// Large selects 8-byte bucket/link offsets instead of 4-byte, needed past a 4GiB file. Default false.
	Large bool
	// Comparator orders keys; nil selects Lexical.
	Comparator Comparator
	// DupMode is the default duplicate-key policy for Put; PutWithMode can override per call.
	DupMode DupMode
	// Compressor wraps record payloads; nil means store them uncompressed.
	Compressor Compressor
	// LeafCacheSize / NodeCacheSize bound the page cache (section 4.5). Defaults 1024 / 512.
	LeafCacheSize int
	NodeCacheSize int
	// ThreadSafe enables the method lock; disabled by default to avoid the
	// overhead in the common single-goroutine-per-handle case (tcbdbsetmutex).
	ThreadSafe bool
	// NonBlockingLock makes the whole-file advisory lock non-blocking at Open.
	NonBlockingLock bool
	// FileMode is the permission bits used when OpenCreate creates a new file. Default 0644.
	FileMode os.FileMode
}

func (o Options) withDefaults() Options {
	if o.BucketNum == 0 {
		o.BucketNum = 131071
	}
	if o.Alignment == 0 {
		o.Alignment = 4
	}
	if o.FreePoolPower == 0 {
		o.FreePoolPower = 10
	}
	if o.Comparator == nil {
		o.Comparator = Lexical
	}
	if o.LeafCacheSize == 0 {
		o.LeafCacheSize = 1024
	}
	if o.NodeCacheSize == 0 {
		o.NodeCacheSize = 512
	}
	if o.FileMode == 0 {
		o.FileMode = 0644
	}

	return o
}

// DB is a single-file ordered key-value store. A zero-value DB is not usable; create one with
// New, optionally Tune it, then Open a file.
type DB struct {
	path string
	opts Options
	hs   *hashStore
	tree *btree

	state      dbState
	txSnapshot *txSnapshot

	methodLock sync.RWMutex
}

// New returns a DB in its "new" state, ready for Tune and Open.
func New() *DB {
	return &DB{opts: Options{}.withDefaults(), state: stateNew}
}

// Tune applies opts before Open. Legal only while the DB is new or already tuned.
func (db *DB) Tune(opts Options) error {
	if db.state != stateNew && db.state != stateTuned {
		return newErr("Tune", ErrInvalid, nil)
	}

	db.opts = opts.withDefaults()
	db.state = stateTuned

	return nil
}

func (db *DB) lockMethod(write bool) {
	if !db.opts.ThreadSafe {
		return
	}

	if write {
		db.methodLock.Lock()
	} else {
		db.methodLock.RLock()
	}
}

func (db *DB) unlockMethod(write bool) {
	if !db.opts.ThreadSafe {
		return
	}

	if write {
		db.methodLock.Unlock()
	} else {
		db.methodLock.RUnlock()
	}
}

// Open opens (and, with OpenCreate, creates) the database file at path under flags.
func (db *DB) Open(path string, flags OpenFlag) error {
	if db.state != stateNew && db.state != stateTuned {
		return newErr("Open", ErrInvalid, nil)
	}

	osFlags := os.O_RDONLY
	if flags.has(OpenWriter) {
		osFlags = os.O_RDWR
	}
	if flags.has(OpenCreate) {
		osFlags |= os.O_CREATE
	}
	if flags.has(OpenTruncate) {
		osFlags |= os.O_TRUNC
	}

	f, openErr := os.OpenFile(path, osFlags, db.opts.FileMode)
	if openErr != nil {
		return newErr("Open", ErrMiscIO, openErr)
	}

	if !flags.has(OpenNoLock) {
		kind := lockShared
		if flags.has(OpenWriter) {
			kind = lockExclusive
		}

		if lockErr := flockFile(f, kind, flags.has(OpenLockNonBlock) || db.opts.NonBlockingLock); lockErr != nil {
			f.Close()
			return lockErr
		}
	}

	size, sizeErr := fileSize(f)
	if sizeErr != nil {
		f.Close()
		return sizeErr
	}

	var hs *hashStore
	var tree *btree

	if size == 0 {
		if !flags.has(OpenWriter) || !flags.has(OpenCreate) {
			f.Close()
			return newErr("Open", ErrInvalid, nil)
		}

		var createErr error
		hs, createErr = createHashStore(f, db.opts.BucketNum, db.opts.Alignment, db.opts.FreePoolPower, db.opts.Large)
		if createErr != nil {
			f.Close()
			return createErr
		}
		hs.compressor = db.opts.Compressor

		tree = newBTree(hs, db.opts.Comparator, db.opts.LeafCacheSize, db.opts.NodeCacheSize)
		tree.dup = db.opts.DupMode

		if bootErr := tree.bootstrap(); bootErr != nil {
			f.Close()
			return bootErr
		}
	} else {
		var openErr error
		hs, openErr = openHashStore(f, db.opts.Compressor)
		if openErr != nil {
			f.Close()
			return openErr
		}

		tree = newBTree(hs, db.opts.Comparator, db.opts.LeafCacheSize, db.opts.NodeCacheSize)
		tree.dup = db.opts.DupMode
		tree.meta = decodeBTreeMeta(hs.hdr.btreeMeta())
	}

	db.path = path
	db.hs = hs
	db.tree = tree

	if flags.has(OpenWriter) {
		db.state = stateOpenWriter
	} else {
		db.state = stateOpenReader
	}

	return nil
}

// Close flushes any dirty pages, persists the header, releases the advisory lock, and closes
// the file. Closing while a transaction is open is rejected; Commit or Abort it first.
func (db *DB) Close() error {
	if db.state == stateClosed {
		return nil
	}

	if db.state == stateInTransaction {
		return newErr("Close", ErrInvalid, nil)
	}

	if db.state == stateOpenWriter {
		copy(db.hs.hdr.btreeMeta(), encodeBTreeMeta(db.tree.meta))

		if err := db.tree.flushAll(); err != nil {
			return err
		}

		if err := db.hs.close(); err != nil {
			return err
		}
	}

	unlockFile(db.hs.f)

	if err := db.hs.f.Close(); err != nil {
		return newErr("Close", ErrMiscIO, err)
	}

	db.state = stateClosed
	return nil
}

func (db *DB) requireOpen() error {
	if db.state != stateOpenReader && db.state != stateOpenWriter && db.state != stateInTransaction {
		return newErr("DB", ErrInvalid, nil)
	}

	return nil
}

func (db *DB) requireWritable() error {
	if db.state != stateOpenWriter && db.state != stateInTransaction {
		return newErr("DB", ErrInvalid, nil)
	}

	return nil
}

// Get returns the first value stored for key.
func (db *DB) Get(key []byte) ([]byte, error) {
	if err := db.requireOpen(); err != nil {
		return nil, err
	}

	db.lockMethod(false)
	defer db.unlockMethod(false)

	return db.tree.Get(key)
}

// GetAll returns every value stored for key, in duplicate-policy order.
func (db *DB) GetAll(key []byte) ([][]byte, error) {
	if err := db.requireOpen(); err != nil {
		return nil, err
	}

	db.lockMethod(false)
	defer db.unlockMethod(false)

	return db.tree.GetAll(key)
}

// Put stores value for key using the DB's configured duplicate-key mode.
func (db *DB) Put(key, value []byte) error {
	if err := db.requireWritable(); err != nil {
		return err
	}

	db.lockMethod(true)
	defer db.unlockMethod(true)

	return db.tree.Put(key, value)
}

// PutWithMode stores value for key using an explicit duplicate-key mode for this call only.
func (db *DB) PutWithMode(key, value []byte, mode DupMode) error {
	if err := db.requireWritable(); err != nil {
		return err
	}

	db.lockMethod(true)
	defer db.unlockMethod(true)

	return db.tree.PutWithMode(key, value, mode)
}

// Out removes the primary value stored for key, promoting the first extra value (if any) to be
// the new primary; a key with no extras is removed entirely, same as Delete but for exactly one
// value (section 4.7's "out", tcbdb.c's tcbdbout). Use Delete to drop every value for key at once.
func (db *DB) Out(key []byte) error {
	if err := db.requireWritable(); err != nil {
		return err
	}

	db.lockMethod(true)
	defer db.unlockMethod(true)

	return db.tree.Out(key)
}

// Delete removes every value stored for key in one step (section 4.7's "out-list", tcbdb.c's
// tcbdbout3). Use Out to remove just the key's primary value instead.
func (db *DB) Delete(key []byte) error {
	if err := db.requireWritable(); err != nil {
		return err
	}

	db.lockMethod(true)
	defer db.unlockMethod(true)

	return db.tree.Delete(key)
}

// NewCursor returns a cursor positioned before the first record; call First/Last/Jump to begin.
func (db *DB) NewCursor() (*Cursor, error) {
	if err := db.requireOpen(); err != nil {
		return nil, err
	}

	return newCursor(db.tree), nil
}

// RecordCount returns the number of values currently stored, counting every duplicate value of
// a key separately (section 9's introspection accessors,
// supplemented from tcbdb.c's tcbdbrnum).
func (db *DB) RecordCount() uint64 { return db.tree.meta.rnum }

// FileSize returns the backing file's current logical size in bytes (tcbdbfsiz).
func (db *DB) FileSize() uint64 { return db.hs.hdr.fsiz }

// BucketNum returns the hash store's bucket array size (tcbdbbnum).
func (db *DB) BucketNum() uint64 { return db.hs.hdr.bnum }

// Alignment returns the record alignment power, apow (tcbdbalign is 1<<Alignment).
func (db *DB) Alignment() uint { return db.hs.hdr.apow }

// UserOpaque returns the 96 bytes of opaque storage reserved for caller use (section 3).
func (db *DB) UserOpaque() []byte {
	return append([]byte{}, db.hs.hdr.userOpaque()...)
}

// SetUserOpaque overwrites the caller's opaque region; data longer than the reserved window
// is truncated, shorter is zero-padded.
func (db *DB) SetUserOpaque(data []byte) {
	dst := db.hs.hdr.userOpaque()
	for i := range dst {
		dst[i] = 0
	}

	copy(dst, data)
}

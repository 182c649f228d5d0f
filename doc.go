// Package ondb implements an embedded, single-process, ordered key-value store persisted to a
// single file. Keys are kept in sorted order by a B+ tree layered over a hash-bucket record
// store: every key lands in a bucket by its primary hash, records within a bucket chain through
// a small binary search tree, and B+ tree leaf/node pages are themselves stored as records in
// that same substrate. A bounded free-block pool recycles space released by updates and deletes,
// and an in-memory LRU page cache keeps hot leaves and nodes off the record store's I/O path.
//
// A DB begins in its "new" state; call Tune to configure bucket count, alignment, comparator,
// and duplicate-key policy, then Open a file to begin reading and writing. Begin/Commit/Abort
// provide a single in-flight snapshot transaction for grouping a sequence of writes with
// all-or-nothing rollback.
package ondb

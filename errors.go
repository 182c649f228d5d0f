package ondb

import (
	"errors"
	"fmt"
)

// ErrCode
//	A per-database last-error code, set by the deepest function that detects the condition.
//	Mirrors tcbdb.h's ecode enumeration (section 7).
type ErrCode int

const (
	// ErrNone indicates no error has occurred.
	ErrNone ErrCode = iota
	// ErrInvalid indicates the database was used from the wrong state (closed/not writable/in transaction).
	ErrInvalid
	// ErrNoRecord indicates get/out found no record for the key.
	ErrNoRecord
	// ErrKeepViolation indicates a put-keep call was made against an existing key.
	ErrKeepViolation
	// ErrMetaCorruption indicates an impossible count, bad magic, or unreadable page was found.
	ErrMetaCorruption
	// ErrMiscIO indicates a read/write/sync failure at the file level.
	ErrMiscIO
	// ErrThread indicates a locking primitive failed.
	ErrThread
	// ErrRename indicates the rename step of an atomic file swap failed.
	ErrRename
	// ErrUnlink indicates removal of a stale file failed.
	ErrUnlink
)

// String returns a short human readable label for the error code.
func (c ErrCode) String() string {
	switch c {
	case ErrNone:
		return "no error"
	case ErrInvalid:
		return "invalid operation"
	case ErrNoRecord:
		return "no record found"
	case ErrKeepViolation:
		return "existing record"
	case ErrMetaCorruption:
		return "meta data corruption"
	case ErrMiscIO:
		return "misc I/O error"
	case ErrThread:
		return "threading error"
	case ErrRename:
		return "rename error"
	case ErrUnlink:
		return "unlink error"
	default:
		return "unknown error"
	}
}

// DBError
//	The error type returned by every exported DB/Cursor method that fails.
//	Op names the operation that detected the failure; Code is the sentinel category.
type DBError struct {
	Op   string
	Code ErrCode
	Err  error
}

func (e *DBError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ondb: %s: %s: %s", e.Op, e.Code, e.Err)
	}

	return fmt.Sprintf("ondb: %s: %s", e.Op, e.Code)
}

func (e *DBError) Unwrap() error { return e.Err }

// newErr
//	Build a DBError tagged with the calling operation and sentinel code, optionally wrapping a lower-level error.
func newErr(op string, code ErrCode, err error) *DBError {
	return &DBError{Op: op, Code: code, Err: err}
}

// codeOf
//	Extract the ErrCode from an error if it is (or wraps) a *DBError, otherwise ErrMiscIO.
func codeOf(err error) ErrCode {
	if err == nil {
		return ErrNone
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}

	return ErrMiscIO
}

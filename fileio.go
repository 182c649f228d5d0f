package ondb

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)


//============================================= File I/O + advisory lock (section 4.2)


// lockKind
//	Distinguishes the advisory lock mode taken at open.
type lockKind int

const (
	lockShared lockKind = iota
	lockExclusive
)

// flockFile
//	Takes a whole-file advisory lock in shared (readers) or exclusive (writers) mode.
//	nonBlocking honours the BDBOLCKNB-equivalent open flag; returns ErrThread wrapped on failure.
func flockFile(f *os.File, kind lockKind, nonBlocking bool) error {
	how := unix.LOCK_SH
	if kind == lockExclusive {
		how = unix.LOCK_EX
	}

	if nonBlocking {
		how |= unix.LOCK_NB
	}

	lockErr := unix.Flock(int(f.Fd()), how)
	if lockErr != nil {
		return newErr("flockFile", ErrThread, lockErr)
	}

	return nil
}

// unlockFile
//	Releases a whole-file advisory lock taken by flockFile.
func unlockFile(f *os.File) error {
	unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if unlockErr != nil {
		return newErr("unlockFile", ErrThread, unlockErr)
	}

	return nil
}

// pread
//	Positional read into buf at offset; errors if fewer than len(buf) bytes are available.
func pread(f *os.File, buf []byte, offset int64) error {
	n, readErr := f.ReadAt(buf, offset)
	if readErr != nil && readErr != io.EOF {
		return newErr("pread", ErrMiscIO, readErr)
	}

	if n < len(buf) {
		return newErr("pread", ErrMiscIO, io.ErrUnexpectedEOF)
	}

	return nil
}

// pwrite
//	Positional write; os.File.WriteAt returns a non-nil error on any short write already.
func pwrite(f *os.File, buf []byte, offset int64) error {
	_, writeErr := f.WriteAt(buf, offset)
	if writeErr != nil {
		return newErr("pwrite", ErrMiscIO, writeErr)
	}

	return nil
}

// fsync
//	Flushes OS buffers for f to stable storage.
func fsync(f *os.File) error {
	syncErr := f.Sync()
	if syncErr != nil {
		return newErr("fsync", ErrMiscIO, syncErr)
	}

	return nil
}

// truncateFile
//	Grows or shrinks the backing file to size bytes.
func truncateFile(f *os.File, size int64) error {
	truncErr := f.Truncate(size)
	if truncErr != nil {
		return newErr("truncateFile", ErrMiscIO, truncErr)
	}

	return nil
}

// fileSize
//	Current size of the open file in bytes.
func fileSize(f *os.File) (int64, error) {
	info, statErr := f.Stat()
	if statErr != nil {
		return 0, newErr("fileSize", ErrMiscIO, statErr)
	}

	return info.Size(), nil
}

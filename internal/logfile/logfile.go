// Package logfile owns one append-only file's path and exposes the
// four operations the log engine composes: append, random-read by
// offset, sequential scan, and safe in-place rewrite. Each call opens
// and closes its own file handle, trading per-call overhead for
// simplicity and for robustness against handle-position aliasing
// between operations.
package logfile

import (
	"bufio"
	"io"
	"os"

	"github.com/roshangiyanani/pingcap-kvs/internal/kvserr"
	"github.com/roshangiyanani/pingcap-kvs/internal/logcodec"
	"github.com/roshangiyanani/pingcap-kvs/internal/posio"
	"github.com/roshangiyanani/pingcap-kvs/internal/safefile"
)

// DefaultLogID is the only file_id ever produced today. It is carried
// through Pointer to leave room for multi-segment logs in a future
// version without changing the on-disk format.
const DefaultLogID uint64 = 1

// Pointer identifies one record's starting byte within one log file.
// It is immutable once created and never itself persisted; the index
// that holds pointers lives only in memory.
type Pointer struct {
	FileID uint64
	Offset uint64
}

// LogFile owns a path to one append-only file.
type LogFile struct {
	path string
}

// New returns a LogFile over path. The file need not exist yet; it is
// created lazily on first Append.
func New(path string) *LogFile {
	return &LogFile{path: path}
}

// Append encodes cmd and writes it to the end of the file, creating
// the file if it doesn't exist. It flushes the write before returning
// so that, on success, the record is durably in the file, and returns
// a Pointer to where the record began.
func (lf *LogFile) Append(cmd logcodec.Command) (Pointer, error) {
	f, err := os.OpenFile(lf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Pointer{}, kvserr.IO("failed to open log file for append", err)
	}
	defer f.Close()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return Pointer{}, kvserr.IO("failed to seek to end of log file", err)
	}

	tracked := posio.NewTrackerAt[*os.File](f, offset)
	if _, err := logcodec.Encode(tracked, cmd); err != nil {
		return Pointer{}, err
	}
	if err := f.Sync(); err != nil {
		return Pointer{}, kvserr.IO("failed to sync log file after append", err)
	}

	return Pointer{FileID: DefaultLogID, Offset: uint64(offset)}, nil
}

// Read decodes the single record starting at ptr.Offset. It fails on
// a codec error (corruption) or an I/O error.
func (lf *LogFile) Read(ptr Pointer) (logcodec.Command, error) {
	if ptr.FileID != DefaultLogID {
		return logcodec.Command{}, kvserr.Corrupt("pointer references unknown file id")
	}

	f, err := os.Open(lf.path)
	if err != nil {
		return logcodec.Command{}, kvserr.IO("failed to open log file for read", err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(ptr.Offset), io.SeekStart); err != nil {
		return logcodec.Command{}, kvserr.IO("failed to seek to record offset", err)
	}

	cmd, err := logcodec.Decode(bufio.NewReader(f))
	if err != nil {
		if err == io.EOF {
			return logcodec.Command{}, kvserr.Corrupt("pointer references truncated record")
		}
		return logcodec.Command{}, err
	}
	return cmd, nil
}

// Record pairs a decoded command with the pointer to where it began,
// as yielded by Iter in file order (which is append order).
type Record struct {
	Command logcodec.Command
	Pointer Pointer
}

// Iter opens the file for sequential reading and returns a function
// that yields one Record per call until end-of-file, at which point
// it returns (Record{}, false, nil). A decode error mid-scan is
// surfaced through the returned error and terminates the iteration.
// The returned closer must be called once iteration is done.
func (lf *LogFile) Iter() (next func() (Record, bool, error), closer func() error, err error) {
	f, err := os.Open(lf.path)
	if err != nil {
		if os.IsNotExist(err) {
			return func() (Record, bool, error) { return Record{}, false, nil }, func() error { return nil }, nil
		}
		return nil, nil, kvserr.IO("failed to open log file for scan", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, kvserr.IO("failed to stat log file", err)
	}
	endPos := stat.Size()

	// The tracker wraps the *buffered* reader, not the raw file,
	// so its position advances by exactly the bytes the decoder
	// consumes rather than by bufio's internal read-ahead chunks.
	tracked := posio.NewTracker[*bufio.Reader](bufio.NewReader(f))

	next = func() (Record, bool, error) {
		if tracked.Pos() >= endPos {
			return Record{}, false, nil
		}
		offset := tracked.Pos()
		cmd, derr := logcodec.Decode(tracked)
		if derr != nil {
			if derr == io.EOF {
				return Record{}, false, nil
			}
			return Record{}, false, derr
		}
		return Record{Command: cmd, Pointer: Pointer{FileID: DefaultLogID, Offset: uint64(offset)}}, true, nil
	}
	return next, f.Close, nil
}

// RewriteFunc receives an iterator over the old file's records and a
// buffered writer onto the replacement file. It is expected to write
// exactly the subset of records (re-encoded via logcodec.Encode) that
// should survive the rewrite.
type RewriteFunc func(iterNext func() (Record, bool, error), w *bufio.Writer) error

// Rewrite atomically replaces the file's contents via SafeOverwrite,
// handing fn an iterator over the old contents and a writer for the
// new ones.
func (lf *LogFile) Rewrite(fn RewriteFunc) error {
	return safefile.OverwriteWithReader(lf.path, func(reader *os.File, w *bufio.Writer) error {
		stat, err := reader.Stat()
		if err != nil {
			return kvserr.IO("failed to stat log file for rewrite", err)
		}
		endPos := stat.Size()

		tracked := posio.NewTracker[*bufio.Reader](bufio.NewReader(reader))

		iterNext := func() (Record, bool, error) {
			if tracked.Pos() >= endPos {
				return Record{}, false, nil
			}
			offset := tracked.Pos()
			cmd, derr := logcodec.Decode(tracked)
			if derr != nil {
				if derr == io.EOF {
					return Record{}, false, nil
				}
				return Record{}, false, derr
			}
			return Record{Command: cmd, Pointer: Pointer{FileID: DefaultLogID, Offset: uint64(offset)}}, true, nil
		}
		return fn(iterNext, w)
	})
}

// Exists reports whether the file has been created yet.
func (lf *LogFile) Exists() bool {
	_, err := os.Stat(lf.path)
	return err == nil
}

// Path returns the file's path.
func (lf *LogFile) Path() string { return lf.path }

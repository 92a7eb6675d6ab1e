// Package safefile implements the atomic whole-file replacement
// primitive shared by log compaction and snapshot saves: write to a
// temporary sibling, rotate the old file to a backup, promote the
// temporary file, then drop the backup.
package safefile

import (
	"bufio"
	"os"

	"github.com/roshangiyanani/pingcap-kvs/internal/kvserr"
)

func tmpPath(target string) string    { return target + ".tmp" }
func backupPath(target string) string { return target + ".backup" }

// Overwrite invokes writeFn with a buffered writer onto target. If
// target does not yet exist, writeFn writes directly to it and
// nothing further happens. If target exists, writeFn writes to a
// sibling ".tmp" file; on success, target is renamed to ".backup",
// the ".tmp" file is renamed to target, and ".backup" is removed.
//
// If writeFn fails on an existing target, target is left untouched;
// at most a partial ".tmp" file remains on disk. If target did not
// exist, the partially written target itself remains.
func Overwrite(target string, writeFn func(*bufio.Writer) error) error {
	f, direct, err := openTargetOrTmp(target)
	if err != nil {
		return kvserr.IO("failed to open "+target+" for overwrite", err)
	}

	w := bufio.NewWriter(f)
	if err := writeFn(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return kvserr.IO("failed to flush "+target, err)
	}
	if err := f.Close(); err != nil {
		return kvserr.IO("failed to close "+target, err)
	}

	if direct {
		return nil
	}
	return rotateIn(target)
}

// OverwriteWithReader is like Overwrite but also opens target for
// reading and hands both the reader and the ".tmp" writer to writeFn,
// for callers (compaction) that need to stream the old contents while
// producing the new ones. Unlike Overwrite, target is assumed to
// already exist; the atomic rotation always runs.
func OverwriteWithReader(target string, writeFn func(*os.File, *bufio.Writer) error) error {
	reader, err := os.Open(target)
	if err != nil {
		return kvserr.IO("failed to open "+target+" for reading", err)
	}
	defer reader.Close()

	tmp := tmpPath(target)
	tmpFile, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return kvserr.IO("failed to create "+tmp, err)
	}

	w := bufio.NewWriter(tmpFile)
	if err := writeFn(reader, w); err != nil {
		tmpFile.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmpFile.Close()
		return kvserr.IO("failed to flush "+tmp, err)
	}
	if err := tmpFile.Close(); err != nil {
		return kvserr.IO("failed to close "+tmp, err)
	}

	return rotateIn(target)
}

// openTargetOrTmp tries to create target fresh (O_EXCL). If target
// already exists, it opens the ".tmp" sibling instead and reports
// direct=false so the caller knows to run the rotation protocol.
func openTargetOrTmp(target string) (f *os.File, direct bool, err error) {
	f, err = os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		return f, true, nil
	}
	if !os.IsExist(err) {
		return nil, false, err
	}
	f, err = os.OpenFile(tmpPath(target), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, false, err
	}
	return f, false, nil
}

// rotateIn performs the three-step rename/delete sequence that
// atomically promotes the ".tmp" file over target. At any instant
// between the two renames, at least one of {target, target.backup}
// exists holding either the committed old content or the new content,
// so a crash in this window is manually recoverable.
func rotateIn(target string) error {
	backup := backupPath(target)
	tmp := tmpPath(target)

	if err := os.Rename(target, backup); err != nil {
		return kvserr.IO("failed to rotate "+target+" to backup", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return kvserr.IO("failed to promote "+tmp+" over "+target, err)
	}
	if err := os.Remove(backup); err != nil {
		return kvserr.IO("failed to remove backup "+backup, err)
	}
	return nil
}

package safefile

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverwriteCreatesFresh(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data")

	err := Overwrite(target, func(w *bufio.Writer) error {
		_, werr := w.WriteString("hello")
		return werr
	})
	assert.Nil(t, err)

	data, err := os.ReadFile(target)
	assert.Nil(t, err)
	assert.Equal(t, "hello", string(data))
	assertNoCompanions(t, target)
}

func TestOverwriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data")
	assert.Nil(t, os.WriteFile(target, []byte("old"), 0o644))

	err := Overwrite(target, func(w *bufio.Writer) error {
		_, werr := w.WriteString("new")
		return werr
	})
	assert.Nil(t, err)

	data, err := os.ReadFile(target)
	assert.Nil(t, err)
	assert.Equal(t, "new", string(data))
	assertNoCompanions(t, target)
}

func TestOverwriteLeavesTargetUntouchedOnFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data")
	assert.Nil(t, os.WriteFile(target, []byte("old"), 0o644))

	err := Overwrite(target, func(w *bufio.Writer) error {
		return errors.New("boom")
	})
	assert.NotNil(t, err)

	data, err := os.ReadFile(target)
	assert.Nil(t, err)
	assert.Equal(t, "old", string(data))
}

func TestOverwriteWithReaderRewritesAndRotates(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data")
	assert.Nil(t, os.WriteFile(target, []byte("old-contents"), 0o644))

	err := OverwriteWithReader(target, func(r *os.File, w *bufio.Writer) error {
		buf := make([]byte, 3)
		if _, rerr := r.Read(buf); rerr != nil {
			return rerr
		}
		_, werr := w.Write(buf)
		return werr
	})
	assert.Nil(t, err)

	data, err := os.ReadFile(target)
	assert.Nil(t, err)
	assert.Equal(t, "old", string(data))
	assertNoCompanions(t, target)
}

func assertNoCompanions(t *testing.T, target string) {
	t.Helper()
	_, err := os.Stat(target + ".tmp")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(target + ".backup")
	assert.True(t, os.IsNotExist(err))
}

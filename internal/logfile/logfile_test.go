package logfile

import (
	"bufio"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roshangiyanani/pingcap-kvs/internal/kvserr"
	"github.com/roshangiyanani/pingcap-kvs/internal/logcodec"
)

func TestAppendAndRead(t *testing.T) {
	lf := New(filepath.Join(t.TempDir(), "1"))

	p1, err := lf.Append(logcodec.Set("key1", "value1"))
	assert.Nil(t, err)
	assert.EqualValues(t, 0, p1.Offset)
	assert.Equal(t, DefaultLogID, p1.FileID)

	p2, err := lf.Append(logcodec.Set("key2", "value2"))
	assert.Nil(t, err)
	assert.Greater(t, p2.Offset, p1.Offset)

	cmd, err := lf.Read(p1)
	assert.Nil(t, err)
	assert.Equal(t, logcodec.Set("key1", "value1"), cmd)

	cmd, err = lf.Read(p2)
	assert.Nil(t, err)
	assert.Equal(t, logcodec.Set("key2", "value2"), cmd)
}

func TestIterYieldsInAppendOrder(t *testing.T) {
	lf := New(filepath.Join(t.TempDir(), "1"))

	want := []logcodec.Command{
		logcodec.Set("a", "1"),
		logcodec.Remove("a"),
		logcodec.Set("b", "2"),
	}
	for _, cmd := range want {
		_, err := lf.Append(cmd)
		assert.Nil(t, err)
	}

	next, closer, err := lf.Iter()
	assert.Nil(t, err)
	defer closer()

	var got []logcodec.Command
	for {
		rec, ok, err := next()
		assert.Nil(t, err)
		if !ok {
			break
		}
		got = append(got, rec.Command)
	}
	assert.Equal(t, want, got)
}

func TestIterOnMissingFileYieldsNothing(t *testing.T) {
	lf := New(filepath.Join(t.TempDir(), "1"))

	next, closer, err := lf.Iter()
	assert.Nil(t, err)
	defer closer()

	_, ok, err := next()
	assert.Nil(t, err)
	assert.False(t, ok)
}

func TestRewriteKeepsOnlyFilteredRecords(t *testing.T) {
	lf := New(filepath.Join(t.TempDir(), "1"))

	_, err := lf.Append(logcodec.Set("a", "1"))
	assert.Nil(t, err)
	_, err = lf.Append(logcodec.Set("a", "2"))
	assert.Nil(t, err)
	_, err = lf.Append(logcodec.Remove("a"))
	assert.Nil(t, err)
	keepPtr, err := lf.Append(logcodec.Set("b", "3"))
	assert.Nil(t, err)

	err = lf.Rewrite(func(next func() (Record, bool, error), w *bufio.Writer) error {
		for {
			rec, ok, err := next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if rec.Pointer == keepPtr {
				if _, err := logcodec.Encode(w, rec.Command); err != nil {
					return err
				}
			}
		}
	})
	assert.Nil(t, err)

	next, closer, err := lf.Iter()
	assert.Nil(t, err)
	defer closer()

	rec, ok, err := next()
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Equal(t, logcodec.Set("b", "3"), rec.Command)

	_, ok, err = next()
	assert.Nil(t, err)
	assert.False(t, ok)
}

func TestReadWithUnknownFileIDIsCorrupt(t *testing.T) {
	lf := New(filepath.Join(t.TempDir(), "1"))
	_, err := lf.Append(logcodec.Set("a", "1"))
	assert.Nil(t, err)

	_, err = lf.Read(Pointer{FileID: 99, Offset: 0})
	assert.NotNil(t, err)
	assert.True(t, kvserr.Is(err, kvserr.CorruptDatabase))
}

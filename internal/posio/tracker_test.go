package posio

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerRead(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tracker")
	assert.Nil(t, err)
	defer f.Close()

	_, err = f.WriteString("test\n123\n")
	assert.Nil(t, err)
	_, err = f.Seek(0, io.SeekStart)
	assert.Nil(t, err)

	tr := NewTracker[*os.File](f)
	assert.EqualValues(t, 0, tr.Pos())

	buf := make([]byte, 9)
	n, err := tr.Read(buf)
	assert.Nil(t, err)
	assert.Equal(t, 9, n)
	assert.EqualValues(t, 9, tr.Pos())
}

func TestTrackerWrite(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker[*bytes.Buffer](&buf)
	assert.EqualValues(t, 0, tr.Pos())

	n, err := tr.Write([]byte("test\n"))
	assert.Nil(t, err)
	assert.Equal(t, 5, n)
	assert.EqualValues(t, 5, tr.Pos())

	n, err = tr.Write([]byte("123\n"))
	assert.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.EqualValues(t, 9, tr.Pos())
}

func TestTrackerSeek(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tracker")
	assert.Nil(t, err)
	defer f.Close()

	_, err = f.WriteString("test\n")
	assert.Nil(t, err)

	tr := NewTracker[*os.File](f)
	assert.EqualValues(t, 0, tr.Pos())

	pos, err := tr.Seek(0, io.SeekEnd)
	assert.Nil(t, err)
	assert.EqualValues(t, 5, pos)
	assert.EqualValues(t, 5, tr.Pos())

	pos, err = tr.Seek(0, io.SeekStart)
	assert.Nil(t, err)
	assert.EqualValues(t, 0, pos)
	assert.EqualValues(t, 0, tr.Pos())

	data, err := io.ReadAll(tr)
	assert.Nil(t, err)
	assert.Equal(t, "test\n", string(data))
	assert.EqualValues(t, 5, tr.Pos())
}

func TestTrackerConsume(t *testing.T) {
	tr := NewTracker[*bytes.Buffer](&bytes.Buffer{})
	tr.Consume(7)
	assert.EqualValues(t, 7, tr.Pos())
}

// Package logcodec implements the single-record binary codec used by
// the log engine: each record self-delimits a Set or Remove command,
// tagged by variant, preserving key and value bytes exactly.
//
// Wire format (little-endian throughout, via xbinary):
//
//	[ tag:1 ][ keyLen:4 ][ valLen:4 ][ key bytes ][ value bytes ]   Set
//	[ tag:1 ][ keyLen:4 ][ key bytes ]                              Remove
//
// valLen is only present for Set; Remove omits it entirely rather
// than writing a zero, since a Remove record carries no value.
package logcodec

import (
	"io"

	"github.com/eliquious/xbinary"

	"github.com/roshangiyanani/pingcap-kvs/internal/kvserr"
)

// Tag identifies which Command variant a record encodes.
type Tag uint8

const (
	// TagSet marks a record asserting key now maps to value.
	TagSet Tag = 1
	// TagRemove marks a record asserting key is now absent.
	TagRemove Tag = 2
)

const (
	tagSize       = 1
	lengthSize    = 4
	setHeaderSize = tagSize + lengthSize + lengthSize
	rmHeaderSize  = tagSize + lengthSize
)

// Command is the tagged union persisted to the log: a Set asserting a
// key/value mapping, or a Remove asserting a key's absence.
type Command struct {
	Tag   Tag
	Key   string
	Value string // unused when Tag == TagRemove
}

// Set builds a Set command.
func Set(key, value string) Command { return Command{Tag: TagSet, Key: key, Value: value} }

// Remove builds a Remove command.
func Remove(key string) Command { return Command{Tag: TagRemove, Key: key} }

// Encode writes one record to w and returns the number of bytes
// written, or a Serde error if the command's tag is unrecognized.
func Encode(w io.Writer, cmd Command) (int, error) {
	switch cmd.Tag {
	case TagSet:
		return encodeSet(w, cmd.Key, cmd.Value)
	case TagRemove:
		return encodeRemove(w, cmd.Key)
	default:
		return 0, kvserr.SerdeErr("unknown command tag", nil)
	}
}

func encodeSet(w io.Writer, key, value string) (int, error) {
	kb, vb := []byte(key), []byte(value)
	buf := make([]byte, setHeaderSize+len(kb)+len(vb))

	buf[0] = byte(TagSet)
	if _, err := xbinary.LittleEndian.PutUint32(buf, tagSize, uint32(len(kb))); err != nil {
		return 0, kvserr.SerdeErr("failed to encode key length", err)
	}
	if _, err := xbinary.LittleEndian.PutUint32(buf, tagSize+lengthSize, uint32(len(vb))); err != nil {
		return 0, kvserr.SerdeErr("failed to encode value length", err)
	}
	copy(buf[setHeaderSize:], kb)
	copy(buf[setHeaderSize+len(kb):], vb)

	n, err := w.Write(buf)
	if err != nil {
		return n, kvserr.IO("failed to write set record", err)
	}
	return n, nil
}

func encodeRemove(w io.Writer, key string) (int, error) {
	kb := []byte(key)
	buf := make([]byte, rmHeaderSize+len(kb))

	buf[0] = byte(TagRemove)
	if _, err := xbinary.LittleEndian.PutUint32(buf, tagSize, uint32(len(kb))); err != nil {
		return 0, kvserr.SerdeErr("failed to encode key length", err)
	}
	copy(buf[rmHeaderSize:], kb)

	n, err := w.Write(buf)
	if err != nil {
		return n, kvserr.IO("failed to write remove record", err)
	}
	return n, nil
}

// Decode reads exactly one record from r. A short read of the tag
// byte surfaces io.EOF unchanged so callers doing sequential scans can
// detect end-of-stream; any other truncation or malformed header is a
// Serde error. On error the reader's position is undefined, matching
// the codec contract.
func Decode(r io.Reader) (Command, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		if err == io.EOF {
			return Command{}, io.EOF
		}
		return Command{}, kvserr.SerdeErr("failed to read record tag", err)
	}

	switch Tag(tagBuf[0]) {
	case TagSet:
		return decodeSet(r)
	case TagRemove:
		return decodeRemove(r)
	default:
		return Command{}, kvserr.SerdeErr("unrecognized record tag", nil)
	}
}

func decodeSet(r io.Reader) (Command, error) {
	lenBuf := make([]byte, lengthSize*2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return Command{}, kvserr.SerdeErr("failed to read set record lengths", err)
	}
	keyLen, err := xbinary.LittleEndian.Uint32(lenBuf, 0)
	if err != nil {
		return Command{}, kvserr.SerdeErr("failed to decode key length", err)
	}
	valLen, err := xbinary.LittleEndian.Uint32(lenBuf, lengthSize)
	if err != nil {
		return Command{}, kvserr.SerdeErr("failed to decode value length", err)
	}

	body := make([]byte, keyLen+valLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Command{}, kvserr.SerdeErr("failed to read set record body", err)
	}
	return Command{Tag: TagSet, Key: string(body[:keyLen]), Value: string(body[keyLen:])}, nil
}

func decodeRemove(r io.Reader) (Command, error) {
	lenBuf := make([]byte, lengthSize)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return Command{}, kvserr.SerdeErr("failed to read remove record length", err)
	}
	keyLen, err := xbinary.LittleEndian.Uint32(lenBuf, 0)
	if err != nil {
		return Command{}, kvserr.SerdeErr("failed to decode key length", err)
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return Command{}, kvserr.SerdeErr("failed to read remove record key", err)
	}
	return Command{Tag: TagRemove, Key: string(key)}, nil
}

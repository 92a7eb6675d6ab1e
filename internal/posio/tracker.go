// Package posio wraps byte streams with position tracking, the way the
// log engine's replay scan learns where each record began without a
// second Seek/Stat round trip per record.
package posio

import "io"

// Tracker wraps a reader, writer, bufio.Reader, or seeker of type S and
// reports how many bytes have flowed through it since construction,
// adjusted by any seeks. Like the rest of this store, a Tracker makes
// no claim about concurrent use.
type Tracker[S any] struct {
	stream S
	pos    int64
}

// NewTracker wraps stream, assuming its current position is 0.
func NewTracker[S any](stream S) *Tracker[S] {
	return &Tracker[S]{stream: stream}
}

// NewTrackerAt wraps stream whose current position is already pos0,
// e.g. a file handle opened in append mode sitting at end-of-file.
func NewTrackerAt[S any](stream S, pos0 int64) *Tracker[S] {
	return &Tracker[S]{stream: stream, pos: pos0}
}

// Pos returns the current tracked offset.
func (t *Tracker[S]) Pos() int64 { return t.pos }

// Read implements io.Reader when S does, advancing Pos by the number
// of bytes successfully delivered.
func (t *Tracker[S]) Read(p []byte) (int, error) {
	r, ok := any(t.stream).(io.Reader)
	if !ok {
		return 0, io.ErrClosedPipe
	}
	n, err := r.Read(p)
	t.pos += int64(n)
	return n, err
}

// Write implements io.Writer when S does, advancing Pos by whatever
// was actually written, including a partial count on error.
func (t *Tracker[S]) Write(p []byte) (int, error) {
	w, ok := any(t.stream).(io.Writer)
	if !ok {
		return 0, io.ErrClosedPipe
	}
	n, err := w.Write(p)
	t.pos += int64(n)
	return n, err
}

// Consume advances Pos by n without reading, mirroring a buffered
// reader's Discard semantics once bytes have already been pulled into
// its internal buffer.
func (t *Tracker[S]) Consume(n int) {
	t.pos += int64(n)
}

// Seek implements io.Seeker when S does. The tracked position becomes
// whatever absolute offset the underlying stream reports, not a
// computed guess, so an out-of-band seek on the wrapped stream can
// never desync the tracker.
func (t *Tracker[S]) Seek(offset int64, whence int) (int64, error) {
	s, ok := any(t.stream).(io.Seeker)
	if !ok {
		return 0, io.ErrClosedPipe
	}
	newPos, err := s.Seek(offset, whence)
	if err != nil {
		return t.pos, err
	}
	t.pos = newPos
	return newPos, nil
}

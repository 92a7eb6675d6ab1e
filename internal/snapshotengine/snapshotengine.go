// Package snapshotengine implements the simplest possible engine: an
// in-memory map, persisted as a whole-file JSON snapshot through the
// same SafeOverwrite primitive the log engine's compaction uses. There
// is no per-record framing, since the whole map is encoded in one shot
// on every save rather than appended to record by record.
package snapshotengine

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/roshangiyanani/pingcap-kvs/internal/kvserr"
	"github.com/roshangiyanani/pingcap-kvs/internal/kvstore"
	"github.com/roshangiyanani/pingcap-kvs/internal/safefile"
)

var _ kvstore.Store = (*Engine)(nil)

// Engine is a whole-map-in-memory store backed by one JSON file.
type Engine struct {
	path  string
	data  map[string]string
	dirty bool
}

// Open loads path if it exists, or starts from an empty map if not.
func Open(path string) (*Engine, error) {
	e := &Engine{path: path, data: make(map[string]string)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		return nil, kvserr.IO("failed to open snapshot file", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&e.data); err != nil {
		return nil, kvserr.SerdeErr("failed to decode snapshot", err)
	}
	return e, nil
}

// Get returns the value for key, or ok=false if absent.
func (e *Engine) Get(key string) (value string, ok bool, err error) {
	v, present := e.data[key]
	return v, present, nil
}

// Set records key := value. The engine is dirty from the moment this
// succeeds until the next successful Save.
func (e *Engine) Set(key, value string) error {
	e.data[key] = value
	e.dirty = true
	return nil
}

// Remove deletes key, returning its prior value if it was present.
func (e *Engine) Remove(key string) (value string, ok bool, err error) {
	v, present := e.data[key]
	if !present {
		return "", false, nil
	}
	delete(e.data, key)
	e.dirty = true
	return v, true, nil
}

// Save serializes the entire map to the target file inside a single
// SafeOverwrite call, whether or not the engine is currently dirty.
func (e *Engine) Save() error {
	err := safefile.Overwrite(e.path, func(w *bufio.Writer) error {
		if err := json.NewEncoder(w).Encode(e.data); err != nil {
			return kvserr.SerdeErr("failed to encode snapshot", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// Close saves if the map has changed since the last Save, then
// returns. An engine that was never mutated closes without touching
// disk.
func (e *Engine) Close() error {
	if !e.dirty {
		return nil
	}
	return e.Save()
}

// Package snapshot implements the save/restore support types of spec.md
// section 4.5: a dedup-checking key writer, an in-memory store standing
// in for the host's persisted checkpoint, and a pluggable codec.
package snapshot

import (
	"encoding/json"

	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/processor"
)

// Codec encodes and decodes snapshot values. The default, matching the
// teacher's near-universal choice of encoding/json over protobuf for
// anything not on the Gazette wire, is JSONCodec.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// JSONCodec is the default Codec.
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error)        { return json.Marshal(v) }
func (JSONCodec) Decode(data []byte, v interface{}) error     { return json.Unmarshal(data, v) }

// KeyWriter wraps an outbox's snapshot bucket, enforcing spec.md section
// 4.5's requirement that keys be unique within a single capture. A
// repeated key is a ContractViolation: it corrupts the replayed state on
// restore, so it must fail loudly rather than silently overwrite.
type KeyWriter[Out any] struct {
	vertex string
	codec  Codec
	seen   map[string]struct{}
}

// NewKeyWriter builds a KeyWriter for the named vertex (used only to
// annotate a ContractViolation), using codec for value encoding.
func NewKeyWriter[Out any](vertex string, codec Codec) *KeyWriter[Out] {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &KeyWriter[Out]{vertex: vertex, codec: codec, seen: make(map[string]struct{})}
}

// Reset clears the duplicate-key tracking; call once at the start of
// each new saveSnapshot capture (a fresh Init, not each paused resume).
func (w *KeyWriter[Out]) Reset() {
	w.seen = make(map[string]struct{})
}

// Offer encodes value and offers (key, value) to out's snapshot bucket.
// Returns false on a full bucket (caller must resume with the same key
// next call, so Offer does not record key as seen until it is actually
// accepted).
func (w *KeyWriter[Out]) Offer(out *outbox.Outbox[Out], key string, value interface{}) (bool, error) {
	if _, dup := w.seen[key]; dup {
		return false, &processor.ContractViolation{
			Vertex: w.vertex,
			Reason: "duplicate snapshot key within one capture: " + key,
		}
	}
	var data, err = w.codec.Encode(value)
	if err != nil {
		return false, err
	}
	if !out.OfferToSnapshot(key, data) {
		return false, nil
	}
	w.seen[key] = struct{}{}
	return true, nil
}

// Store is an in-memory keyed byte-slice store standing in for the
// host's persisted snapshot: what a real deployment would hand off to
// object storage, a test can hand off to this map instead.
// pkg/harness.SaveAndRestore does not use it; it moves the drained
// snapshot bucket straight into the restored instance's inbox.
type Store struct {
	entries map[string][]byte
	order   []string
}

func NewStore() *Store {
	return &Store{entries: make(map[string][]byte)}
}

func (st *Store) Put(key string, value []byte) {
	if _, ok := st.entries[key]; !ok {
		st.order = append(st.order, key)
	}
	st.entries[key] = value
}

func (st *Store) Entries() []outbox.SnapshotEntry {
	var out = make([]outbox.SnapshotEntry, 0, len(st.order))
	for _, k := range st.order {
		out = append(out, outbox.SnapshotEntry{Key: k, Value: st.entries[k]})
	}
	return out
}

func (st *Store) Len() int { return len(st.order) }

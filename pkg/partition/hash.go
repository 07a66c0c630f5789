// Package partition buckets per-key operator state across shards using
// rendezvous (highest-random-weight) hashing — the same hashCombine/HRW
// family the teacher's shuffle package uses to route keys across
// distributed ring members, repurposed here as a purely in-process
// cache-locality helper for per-key state under high key cardinality; no
// operator package imports it. No networked shuffling is introduced; see spec.md
// section 1's distributed-shuffle Non-goal.
package partition

import (
	"encoding/binary"

	"github.com/minio/highwayhash"
)

// defaultHashKey is a fixed 32-byte HighwayHash key. Rendezvous hashing
// only needs a hash that is stable and well-distributed across runs of
// the same process, not cryptographically keyed per deployment, so a
// fixed key is sufficient and keeps bucket assignment reproducible
// across restores.
var defaultHashKey = make([]byte, 32)

// Bucketer assigns comparable keys to one of N shards by rendezvous
// hashing: each shard is scored by hashCombine(key, shardID), and the
// key goes to the highest-scoring shard. Unlike modulo hashing, this
// keeps the great majority of keys on the same shard when N changes.
type Bucketer struct {
	n int
}

func NewBucketer(shards int) *Bucketer {
	if shards <= 0 {
		panic("partition: shards must be positive")
	}
	return &Bucketer{n: shards}
}

// Shard returns the shard index in [0, n) for keyBytes.
func (b *Bucketer) Shard(keyBytes []byte) int {
	if b.n == 1 {
		return 0
	}
	var best = -1
	var bestWeight uint64
	for i := 0; i < b.n; i++ {
		var w = hashCombine(keyBytes, i)
		if best == -1 || w > bestWeight {
			best, bestWeight = i, w
		}
	}
	return best
}

// hashCombine scores (keyBytes, shard) with HighwayHash, mirroring the
// teacher's hrw.go hashCombine: the shard index is appended to the
// hashed bytes rather than mixed into the hash key, so one Hasher
// construction covers every shard's score for a given key via repeated
// Write/Sum on a reset state... here expressed directly with the
// one-shot Sum64 helper per key+shard pair, which is simpler and fast
// enough at in-process shard counts.
func hashCombine(keyBytes []byte, shard int) uint64 {
	var buf = make([]byte, len(keyBytes)+8)
	copy(buf, keyBytes)
	binary.LittleEndian.PutUint64(buf[len(keyBytes):], uint64(shard))
	var sum = highwayhash.Sum64(buf, defaultHashKey)
	return sum
}

// StringKey adapts a string key for Shard.
func StringKey(k string) []byte { return []byte(k) }

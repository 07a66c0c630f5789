package partition_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverwork/corestream/pkg/partition"
)

func TestBucketerIsDeterministic(t *testing.T) {
	var b = partition.NewBucketer(8)
	var key = partition.StringKey("customer-42")
	var first = b.Shard(key)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, b.Shard(key))
	}
	require.GreaterOrEqual(t, first, 0)
	require.Less(t, first, 8)
}

func TestBucketerSingleShardAlwaysZero(t *testing.T) {
	var b = partition.NewBucketer(1)
	require.Equal(t, 0, b.Shard(partition.StringKey("anything")))
}

// Rendezvous hashing's defining property: growing the shard count only
// moves keys that newly rank highest on the added shards, leaving most
// keys' assignment unchanged (unlike modulo hashing, which reshuffles
// nearly everything).
func TestBucketerMinimalDisruptionOnGrowth(t *testing.T) {
	const keyCount = 2000
	var before = partition.NewBucketer(4)
	var after = partition.NewBucketer(5)

	var moved int
	for i := 0; i < keyCount; i++ {
		var key = partition.StringKey(fmt.Sprintf("key-%d", i))
		if before.Shard(key) != after.Shard(key) {
			moved++
		}
	}
	// Expect roughly 1/5 of keys to move (the new shard's fair share);
	// allow generous slack since HighwayHash scoring is not perfectly
	// uniform over a small sample.
	require.Less(t, moved, keyCount/2)
}

func TestBucketerSpreadsKeysAcrossShards(t *testing.T) {
	const keyCount = 5000
	var b = partition.NewBucketer(10)
	var counts = make(map[int]int)
	for i := 0; i < keyCount; i++ {
		counts[b.Shard(partition.StringKey(fmt.Sprintf("key-%d", i)))]++
	}
	require.Len(t, counts, 10, "every shard should receive at least one key over %d samples", keyCount)
}

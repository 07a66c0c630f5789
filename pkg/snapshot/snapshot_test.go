package snapshot_test

import (
	"testing"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/require"

	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/snapshot"
)

type state struct {
	Count int64
	Total int64
}

// Testable Property 4 (snapshot key uniqueness): a duplicate key within
// one capture is a ContractViolation, detected before anything is
// written twice.
func TestKeyWriterRejectsDuplicateKey(t *testing.T) {
	var out = outbox.New[string](1, 4096)
	var w = snapshot.NewKeyWriter[string]("vertex", snapshot.JSONCodec{})

	var ok, err = w.Offer(out, "k1", state{Count: 1, Total: 10})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = w.Offer(out, "k1", state{Count: 2, Total: 20})
	require.Error(t, err)
}

// Encoding round-trips byte-for-byte through JSONCodec, the property
// pkg/harness.SaveAndRestore relies on: jsondiff.Compare reports the
// encoded/decoded/re-encoded documents as a FullMatch rather than just
// asserting deep equality, mirroring the teacher's fixture-comparison
// style in go/testing/driver.go.
func TestJSONCodecRoundTripsByteForByte(t *testing.T) {
	var codec = snapshot.JSONCodec{}
	var original = state{Count: 3, Total: 42}

	var encoded, err = codec.Encode(original)
	require.NoError(t, err)

	var decoded state
	require.NoError(t, codec.Decode(encoded, &decoded))

	var reEncoded, reErr = codec.Encode(decoded)
	require.NoError(t, reErr)

	var opts = jsondiff.DefaultConsoleOptions()
	var diffMode, report = jsondiff.Compare(encoded, reEncoded, &opts)
	require.Equal(t, jsondiff.FullMatch, diffMode, "snapshot round-trip diverged: %s", report)
}

func TestStorePreservesInsertionOrder(t *testing.T) {
	var st = snapshot.NewStore()
	st.Put("b", []byte("2"))
	st.Put("a", []byte("1"))
	st.Put("b", []byte("2-updated")) // re-Put of an existing key does not reorder

	var entries = st.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "b", entries[0].Key)
	require.Equal(t, []byte("2-updated"), entries[0].Value)
	require.Equal(t, "a", entries[1].Key)
	require.Equal(t, 2, st.Len())
}

package hamt

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
)

func testValueCID(s string) cid.Cid {
	return cid.NewCidV1(cid.Raw, []byte(s))
}

func TestTreeSetGetRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	tr, err := New(opts)
	require.NoError(t, err)

	keys := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi"}
	for _, k := range keys {
		require.NoError(t, tr.Set([]byte(k), testValueCID(k)))
	}

	for _, k := range keys {
		got, found, err := tr.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, testValueCID(k), got)
	}

	_, found, err := tr.Get([]byte("nobody"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestTreeOverwriteIsLastWriteWins(t *testing.T) {
	opts := DefaultOptions()
	tr, err := New(opts)
	require.NoError(t, err)

	require.NoError(t, tr.Set([]byte("key"), testValueCID("v1")))
	require.NoError(t, tr.Set([]byte("key"), testValueCID("v2")))

	got, found, err := tr.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, testValueCID("v2"), got)
}

func TestTreeForcesSplitBeyondBucketSize(t *testing.T) {
	opts, err := NewOptions(4, 2)
	require.NoError(t, err)
	tr, err := New(opts)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		require.NoError(t, tr.Set(k, testValueCID(string(k))))
	}

	for i := 0; i < 200; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		got, found, err := tr.Get(k)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, testValueCID(string(k)), got)
	}
}

func TestCollapseOrderIndependence(t *testing.T) {
	opts := DefaultOptions()
	keys := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi", "ivan", "judy"}

	forward, err := New(opts)
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, forward.Set([]byte(k), testValueCID(k)))
	}

	backward, err := New(opts)
	require.NoError(t, err)
	for i := len(keys) - 1; i >= 0; i-- {
		require.NoError(t, backward.Set([]byte(keys[i]), testValueCID(keys[i])))
	}

	ctx := context.Background()
	sinkA := blockstore.NewMemStore()
	sinkB := blockstore.NewMemStore()

	rootA, err := forward.Collapse(ctx, sinkA)
	require.NoError(t, err)
	rootB, err := backward.Collapse(ctx, sinkB)
	require.NoError(t, err)

	require.Equal(t, rootA, rootB, "root CID must not depend on insertion order")
}

func TestSetAfterCollapseIsSealedError(t *testing.T) {
	opts := DefaultOptions()
	tr, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, tr.Set([]byte("key"), testValueCID("v1")))

	ctx := context.Background()
	sink := blockstore.NewMemStore()
	_, err = tr.Collapse(ctx, sink)
	require.NoError(t, err)

	require.Error(t, tr.Set([]byte("other"), testValueCID("v2")))
}

func TestEmptyTreeCollapsesToAFixedShapeBlock(t *testing.T) {
	opts := DefaultOptions()
	tr, err := New(opts)
	require.NoError(t, err)

	ctx := context.Background()
	sink := blockstore.NewMemStore()
	root, err := tr.Collapse(ctx, sink)
	require.NoError(t, err)
	require.True(t, root.Defined())

	block, err := sink.Get(ctx, root)
	require.NoError(t, err)
	require.NotEmpty(t, block)

	decoded, err := DecodeRootBlock(block)
	require.NoError(t, err)
	require.Equal(t, opts.BitWidth, decoded.Width)
	for i := 0; i < decoded.Root.Fanout(); i++ {
		require.False(t, decoded.Root.Occupied(i))
	}
}

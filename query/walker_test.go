package query_test

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	"github.com/rpcpool/go-ipld-hamt/hamt"
	"github.com/rpcpool/go-ipld-hamt/query"
)

func TestWalkerGetMatchesLocalTree(t *testing.T) {
	opts := hamt.DefaultOptions()
	tr, err := hamt.New(opts)
	require.NoError(t, err)

	values := map[string]cid.Cid{}
	for i := 0; i < 300; i++ {
		k := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
		v, err := cid.Prefix{Version: 1, Codec: cid.Raw, MhType: multihash.SHA2_256, MhLength: -1}.Sum(k)
		require.NoError(t, err)
		require.NoError(t, tr.Set(k, v))
		values[string(k)] = v
	}

	ctx := context.Background()
	store := blockstore.NewMemStore()
	root, err := tr.Collapse(ctx, store)
	require.NoError(t, err)

	w := query.New(store)
	for k, wantV := range values {
		got, found, err := w.Get(ctx, root, []byte(k))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, wantV, got)
	}

	_, found, err := w.Get(ctx, root, []byte("definitely not present"))
	require.NoError(t, err)
	require.False(t, found)
}

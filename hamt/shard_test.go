package hamt

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
)

type memRecordSource struct {
	records []Record
	pos     int
}

func (s *memRecordSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func TestBuildShardedMatchesSingleThreaded(t *testing.T) {
	opts := DefaultOptions()

	var records []Record
	for i := 0; i < 500; i++ {
		k := []byte(fmt.Sprintf("key-%04d", i))
		records = append(records, Record{Key: k, Value: cid.NewCidV1(cid.Raw, k)})
	}

	ctx := context.Background()
	singleSink := blockstore.NewMemStore()
	single, err := New(opts)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, single.Set(r.Key, r.Value))
	}
	singleRoot, err := single.Collapse(ctx, singleSink)
	require.NoError(t, err)

	shardSink := blockstore.NewMemStore()
	byShard := make([][]Record, opts.Fanout())
	for _, r := range records {
		idx, err := SlotIndex(Digest(r.Key), 0, opts.BitWidth)
		require.NoError(t, err)
		byShard[idx] = append(byShard[idx], r)
	}

	newSource := func(shard int) (RecordSource, error) {
		return &memRecordSource{records: byShard[shard]}, nil
	}

	shardedRoot, err := BuildSharded(ctx, opts, shardSink, newSource)
	require.NoError(t, err)

	require.Equal(t, singleRoot, shardedRoot, "sharded build must produce the same root as a single-threaded build over the same records")
}

func TestCollapsePartialRejectsMultipleOccupiedSlots(t *testing.T) {
	opts := DefaultOptions()
	tr, err := New(opts)
	require.NoError(t, err)

	// Force two distinct top-level slots to be occupied by picking keys
	// whose digests land in different slots.
	for i := 0; i < 64; i++ {
		k := []byte(fmt.Sprintf("distinct-%d", i))
		require.NoError(t, tr.Set(k, cid.NewCidV1(cid.Raw, k)))
		if tr.root.occupiedCount() >= 2 {
			break
		}
	}
	require.GreaterOrEqual(t, tr.root.occupiedCount(), 2)

	sink := blockstore.NewMemStore()
	_, err = tr.CollapsePartial(context.Background(), sink)
	require.ErrorIs(t, err, ErrShardShape)
}

func TestBuildShardedHandlesSparseShards(t *testing.T) {
	opts := DefaultOptions()

	// Few enough records, relative to Fanout, that some shards get zero
	// records and none gets more than BucketSize, so every shard's
	// top-level slot either stays unoccupied or stays an inline bucket
	// under ordinary Set rules.
	var records []Record
	for i := 0; i < 6; i++ {
		k := []byte(fmt.Sprintf("sparse-%d", i))
		records = append(records, Record{Key: k, Value: cid.NewCidV1(cid.Raw, k)})
	}

	ctx := context.Background()
	singleSink := blockstore.NewMemStore()
	single, err := New(opts)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, single.Set(r.Key, r.Value))
	}
	_, err = single.Collapse(ctx, singleSink)
	require.NoError(t, err)

	shardSink := blockstore.NewMemStore()
	byShard := make([][]Record, opts.Fanout())
	for _, r := range records {
		idx, err := SlotIndex(Digest(r.Key), 0, opts.BitWidth)
		require.NoError(t, err)
		byShard[idx] = append(byShard[idx], r)
	}

	newSource := func(shard int) (RecordSource, error) {
		return &memRecordSource{records: byShard[shard]}, nil
	}

	root, err := BuildSharded(ctx, opts, shardSink, newSource)
	require.NoError(t, err, "BuildSharded must succeed even when shards are empty or never split past BucketSize")
	require.True(t, root.Defined())
}

func TestStitchSubtreesRejectsWrongArity(t *testing.T) {
	opts := DefaultOptions()
	sink := blockstore.NewMemStore()
	_, err := StitchSubtrees(context.Background(), sink, opts, []cid.Cid{cid.NewCidV1(cid.Raw, []byte("one"))})
	require.ErrorIs(t, err, ErrStitchArity)
}

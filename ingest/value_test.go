package ingest_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	"github.com/rpcpool/go-ipld-hamt/ingest"
)

func TestEncodeJSONValueIsDeterministicRegardlessOfKeyOrder(t *testing.T) {
	a, err := ingest.EncodeJSONValue(json.RawMessage(`{"b":1,"a":2,"c":3}`))
	require.NoError(t, err)

	b, err := ingest.EncodeJSONValue(json.RawMessage(`{"c":3,"a":2,"b":1}`))
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestEncodeJSONValueRoundTripsThroughCBOR(t *testing.T) {
	block, err := ingest.EncodeJSONValue(json.RawMessage(`{"name":"alice","age":30,"tags":["x","y"]}`))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, cbor.Unmarshal(block, &decoded))
	require.Equal(t, "alice", decoded["name"])
}

func TestPutValueWritesToSink(t *testing.T) {
	sink := blockstore.NewMemStore()
	c, err := ingest.PutValue(context.Background(), sink, json.RawMessage(`"hello"`))
	require.NoError(t, err)

	block, err := sink.Get(context.Background(), c)
	require.NoError(t, err)
	require.NotEmpty(t, block)
}

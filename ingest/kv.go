package ingest

import (
	"io"

	"github.com/ipfs/go-cid"

	"github.com/rpcpool/go-ipld-hamt/hamt"
)

// KVSource adapts an already-resolved slice of (key, value-CID) pairs
// into a hamt.RecordSource, for callers that have computed value CIDs
// some other way (e.g. a prior ingest pass, or values already stored
// elsewhere as IPLD blocks).
type KVSource struct {
	pairs []KV
	pos   int
}

// KV is one (key, value-CID) pair.
type KV struct {
	Key   []byte
	Value cid.Cid
}

// NewKVSource returns a RecordSource over pairs, in order.
func NewKVSource(pairs []KV) *KVSource {
	return &KVSource{pairs: pairs}
}

func (s *KVSource) Next() (hamt.Record, error) {
	if s.pos >= len(s.pairs) {
		return hamt.Record{}, io.EOF
	}
	p := s.pairs[s.pos]
	s.pos++
	return hamt.Record{Key: p.Key, Value: p.Value}, nil
}

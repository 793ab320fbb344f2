package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	"github.com/rpcpool/go-ipld-hamt/hamt"
)

// TSVSource reads tab-separated records the way load_data_ser_blocks
// does: the key is the 2nd column, the JSON value is the 5th. Each
// record's value is written to sink as its own block before the record
// is handed back as a hamt.Record.
type TSVSource struct {
	scanner *bufio.Scanner
	sink    blockstore.Sink
	ctx     context.Context
}

// NewTSVSource wraps r as a RecordSource. Every Next call writes one
// value block to sink as a side effect.
func NewTSVSource(ctx context.Context, r io.Reader, sink blockstore.Sink) *TSVSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &TSVSource{scanner: sc, sink: sink, ctx: ctx}
}

func (s *TSVSource) Next() (hamt.Record, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return hamt.Record{}, fmt.Errorf("ingest: reading tsv: %w", err)
		}
		return hamt.Record{}, io.EOF
	}

	cols := strings.Split(s.scanner.Text(), "\t")
	if len(cols) < 5 {
		return hamt.Record{}, fmt.Errorf("ingest: tsv line has %d columns, want at least 5", len(cols))
	}
	key := cols[1]
	rawJSON := json.RawMessage(cols[4])

	valueCID, err := PutValue(s.ctx, s.sink, rawJSON)
	if err != nil {
		return hamt.Record{}, err
	}

	return hamt.Record{Key: []byte(key), Value: valueCID}, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	"github.com/rpcpool/go-ipld-hamt/hamt"
	"github.com/rpcpool/go-ipld-hamt/ingest"
)

// readAllRecords drains a TSV file into an in-memory record set,
// writing every value block to store as it goes. Used by both the
// single-threaded and sharded build paths, since the sharded path needs
// every record in hand before it can bucket them by top-level slot.
func readAllRecords(ctx context.Context, path string, store blockstore.Sink) ([]hamt.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	src := ingest.NewTSVSource(ctx, f, store)

	var records []hamt.Record
	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		if len(records)%100_000 == 0 {
			klog.Infof("ingested %s records so far", humanize.Comma(int64(len(records))))
		}
	}
	klog.Infof("ingested %s records", humanize.Comma(int64(len(records))))
	return records, nil
}

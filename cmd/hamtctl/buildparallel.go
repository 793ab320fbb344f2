package main

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	"github.com/rpcpool/go-ipld-hamt/hamt"
)

func newBuildParallelCmd() *cli.Command {
	return &cli.Command{
		Name:  "build-parallel",
		Usage: "build a HAMT from a TSV file using one worker per top-level slot, then stitch the result",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Required: true, Usage: "directory to write blocks into"},
			&cli.StringFlag{Name: "tsv", Required: true, Usage: "input TSV file"},
			&cli.IntFlag{Name: "width", Value: 5, Usage: "bits of hash consumed per level"},
			&cli.IntFlag{Name: "bucket-size", Value: 3, Usage: "max entries per leaf bucket before it splits"},
		},
		Action: func(c *cli.Context) error {
			store, err := blockstore.NewDirStore(c.String("store"))
			if err != nil {
				return err
			}

			opts, err := hamt.NewOptions(c.Int("width"), c.Int("bucket-size"))
			if err != nil {
				return err
			}

			records, err := readAllRecords(c.Context, c.String("tsv"), store)
			if err != nil {
				return err
			}

			shards := make([][]hamt.Record, opts.Fanout())
			for _, rec := range records {
				digest := hamt.Digest(rec.Key)
				slot, err := hamt.SlotIndex(digest, 0, opts.BitWidth)
				if err != nil {
					return err
				}
				shards[slot] = append(shards[slot], rec)
			}

			newSource := func(shard int) (hamt.RecordSource, error) {
				return &sliceSource{records: shards[shard]}, nil
			}

			root, err := hamt.BuildSharded(c.Context, opts, store, newSource)
			if err != nil {
				return err
			}
			fmt.Println(root.String())
			return nil
		},
	}
}

// sliceSource adapts a pre-partitioned slice of records to a
// hamt.RecordSource for one shard worker.
type sliceSource struct {
	records []hamt.Record
	pos     int
}

func (s *sliceSource) Next() (hamt.Record, error) {
	if s.pos >= len(s.records) {
		return hamt.Record{}, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

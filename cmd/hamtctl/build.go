package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	"github.com/rpcpool/go-ipld-hamt/hamt"
)

func newBuildCmd() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "build a single-threaded HAMT from a TSV file and print its root CID",
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

			t, err := hamt.New(opts)
			if err != nil {
				return err
			}
			for _, rec := range records {
				if err := t.Set(rec.Key, rec.Value); err != nil {
					return err
				}
			}

			root, err := t.Collapse(c.Context, store)
			if err != nil {
				return err
			}
			fmt.Println(root.String())
			return nil
		},
	}
}

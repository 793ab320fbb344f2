package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
)

func newIngestCmd() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "read a TSV file, write one value block per record, and report the record count",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Required: true, Usage: "directory to write value blocks into"},
			&cli.StringFlag{Name: "tsv", Required: true, Usage: "input TSV file (key in column 2, JSON value in column 5)"},
		},
		Action: func(c *cli.Context) error {
			store, err := blockstore.NewDirStore(c.String("store"))
			if err != nil {
				return err
			}
			records, err := readAllRecords(c.Context, c.String("tsv"), store)
			if err != nil {
				return err
			}
			fmt.Printf("%d records ingested\n", len(records))
			return nil
		},
	}
}

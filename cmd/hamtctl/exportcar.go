package main

import (
	"os"

	"github.com/ipfs/go-cid"
	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v8/decor"
	"k8s.io/klog/v2"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	carpkg "github.com/rpcpool/go-ipld-hamt/car"
)

func newExportCarCmd() *cli.Command {
	return &cli.Command{
		Name:  "export-car",
		Usage: "export every block reachable from a store as a CAR v1 archive",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Required: true, Usage: "directory a prior build wrote blocks into"},
			&cli.StringFlag{Name: "root", Required: true, Usage: "root CID of the tree to export"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output .car file path"},
		},
		Action: func(c *cli.Context) error {
			store, err := blockstore.NewDirStore(c.String("store"))
			if err != nil {
				return err
			}

			root, err := cid.Parse(c.String("root"))
			if err != nil {
				return err
			}

			out, err := os.Create(c.String("out"))
			if err != nil {
				return err
			}
			defer out.Close()

			if err := carpkg.Export(c.Context, out, store, root); err != nil {
				return err
			}

			stat, err := out.Stat()
			if err == nil {
				klog.Infof("wrote %s (% .2f)", c.String("out"), decor.SizeB1000(stat.Size()))
			}
			return nil
		},
	}
}

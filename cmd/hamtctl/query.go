package main

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ipfs/go-cid"
	"github.com/urfave/cli/v2"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	"github.com/rpcpool/go-ipld-hamt/hamt"
	"github.com/rpcpool/go-ipld-hamt/query"
)

func newQueryCmd() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "resolve a key against a tree, fetching only the blocks on its path",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Usage: "local store directory to read blocks from"},
			&cli.StringFlag{Name: "gateway", Usage: "IPFS HTTP API base URL, used instead of -store"},
			&cli.StringFlag{Name: "root", Required: true, Usage: "root CID of the tree to query"},
			&cli.StringFlag{Name: "key", Required: true, Usage: "key to resolve"},
			&cli.BoolFlag{Name: "cache", Value: true, Usage: "cache fetched blocks in memory for the life of this process"},
			&cli.BoolFlag{Name: "debug", Usage: "dump the decoded root block before resolving the key"},
		},
		Action: func(c *cli.Context) error {
			root, err := cid.Parse(c.String("root"))
			if err != nil {
				return err
			}

			var source blockstore.Source
			switch {
			case c.String("gateway") != "":
				source = query.NewHTTPSource(c.String("gateway"), nil)
			case c.String("store") != "":
				source, err = blockstore.NewDirStore(c.String("store"))
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("one of -store or -gateway is required")
			}

			if c.Bool("cache") {
				cached, err := query.NewCachingSource(c.Context, source, 10*time.Minute)
				if err != nil {
					return err
				}
				source = cached
			}

			if c.Bool("debug") {
				rootBlock, err := source.Get(c.Context, root)
				if err != nil {
					return err
				}
				decoded, err := hamt.DecodeRootBlock(rootBlock)
				if err != nil {
					return err
				}
				spew.Dump(decoded)
			}

			w := query.New(source)
			value, found, err := w.Get(c.Context, root, []byte(c.String("key")))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("key not found")
			}
			fmt.Println(value.String())
			return nil
		},
	}
}

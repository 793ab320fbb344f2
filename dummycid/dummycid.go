// Package dummycid holds the placeholder CID written into a CAR v1
// header's single root slot, since the true root is only known once the
// tree it describes has finished collapsing.
package dummycid

import "github.com/ipfs/go-cid"

// DummyCID is the identity-multihash CID the reference CLI uses
// wherever a header needs a root before the real one exists.
var DummyCID = cid.MustParse("bafkqaaa")

package db

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

func init() {
	meddler.Register("hash", HashMeddler)
}

// HashMeddler handles conversion between common.Hash (or *common.Hash, for
// nullable fields such as log topics) and its hex string column.
var HashMeddler = hexMeddler[common.Hash]{
	decode: common.HexToHash,
	encode: func(h common.Hash) string { return h.Hex() },
}

package db

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

func init() {
	meddler.Register("address", AddressMeddler)
}

// AddressMeddler handles conversion between common.Address (or
// *common.Address) and its hex string column.
var AddressMeddler = hexMeddler[common.Address]{
	decode: common.HexToAddress,
	encode: func(a common.Address) string { return a.Hex() },
}

package realtime

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
)

// localChain is the in-memory unfinalized suffix of the chain, ordered
// ascending by block number from the finalized block to the current head.
type localChain []chain.BlockLight

func (c localChain) head() chain.BlockLight {
	return c[len(c)-1]
}

func (c localChain) containsHash(hash common.Hash) bool {
	for _, b := range c {
		if b.Hash == hash {
			return true
		}
	}
	return false
}

func (c localChain) byHash(hash common.Hash) (chain.BlockLight, bool) {
	for _, b := range c {
		if b.Hash == hash {
			return b, true
		}
	}
	return chain.BlockLight{}, false
}

func (c localChain) byNumber(number uint64) (chain.BlockLight, bool) {
	for _, b := range c {
		if b.Number == number {
			return b, true
		}
	}
	return chain.BlockLight{}, false
}

// truncateTo drops every block with Number > upTo.
func (c localChain) truncateTo(upTo uint64) localChain {
	out := make(localChain, 0, len(c))
	for _, b := range c {
		if b.Number <= upTo {
			out = append(out, b)
		}
	}
	return out
}

// pruneBelow drops every block with Number < from.
func (c localChain) pruneBelow(from uint64) localChain {
	out := make(localChain, 0, len(c))
	for _, b := range c {
		if b.Number >= from {
			out = append(out, b)
		}
	}
	return out
}

// Package rpc defines the JSON-RPC surface the Realtime Sync Service
// consumes: eth_getBlockByNumber, eth_getBlockByHash, and eth_getLogs
// scoped to a single block hash. No other RPC method is needed by the
// realtime sync core.
package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
)

// EthClient is the RPC surface the realtime sync core depends on. This
// abstraction allows for easier testing and alternative implementations.
type EthClient interface {
	// Close closes the RPC client connection.
	Close()

	// GetBlockByNumber fetches the block at number (rpc.LatestBlockNumber
	// for "latest"). withTxns selects whether the full transaction list is
	// populated; when false, only header-level fields are returned.
	GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, withTxns bool) (*chain.BlockFull, error)

	// GetBlockByHash fetches the block with the given hash. withTxns
	// selects whether the full transaction list is populated.
	GetBlockByHash(ctx context.Context, hash common.Hash, withTxns bool) (*chain.BlockFull, error)

	// GetLogs fetches every log emitted within the block with the given
	// hash. Scoping by block hash rather than a block range means RPC
	// providers never reject the call for returning too many results.
	GetLogs(ctx context.Context, blockHash common.Hash) ([]chain.Log, error)
}

// Package rpctest provides a deterministic, in-memory fake of
// pkg/rpc.EthClient for Realtime Sync Service unit tests.
package rpctest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
	"github.com/goran-ethernal/ChainIndexor/pkg/rpc"
)

// FakeClient is a scriptable, in-memory implementation of rpc.EthClient.
// Blocks are registered by number and by hash; logs are registered by
// block hash. GetBlockByNumber(rpc.LatestBlockNumber, ...) returns the
// block with the highest registered number.
type FakeClient struct {
	mu sync.Mutex

	byNumber map[uint64]chain.BlockFull
	byHash   map[common.Hash]chain.BlockFull
	logs     map[common.Hash][]chain.Log
	latest   uint64
	hasAny   bool

	// FailNext, when non-nil, is returned by the next call and then
	// cleared, so tests can inject exactly one transient RPC error.
	FailNext error

	closed bool
}

var _ rpc.EthClient = (*FakeClient)(nil)

// New creates an empty fake client.
func New() *FakeClient {
	return &FakeClient{
		byNumber: make(map[uint64]chain.BlockFull),
		byHash:   make(map[common.Hash]chain.BlockFull),
		logs:     make(map[common.Hash][]chain.Log),
	}
}

// AddBlock registers a block, reachable by both number and hash.
func (f *FakeClient) AddBlock(block chain.BlockFull) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.byNumber[block.Number] = block
	f.byHash[block.Hash] = block
	if !f.hasAny || block.Number > f.latest {
		f.latest = block.Number
		f.hasAny = true
	}
}

// SetLogs registers the logs emitted in the block with the given hash.
func (f *FakeClient) SetLogs(blockHash common.Hash, logs []chain.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[blockHash] = logs
}

// Close implements rpc.EthClient.
func (f *FakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// Closed reports whether Close has been called, for test assertions.
func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// GetBlockByNumber implements rpc.EthClient.
func (f *FakeClient) GetBlockByNumber(ctx context.Context, number gethrpc.BlockNumber, withTxns bool) (*chain.BlockFull, error) {
	if err := f.takeFailure(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n := uint64(number)
	if number == gethrpc.LatestBlockNumber {
		if !f.hasAny {
			return nil, fmt.Errorf("rpctest: no blocks registered")
		}
		n = f.latest
	}

	block, ok := f.byNumber[n]
	if !ok {
		return nil, fmt.Errorf("rpctest: no block at number %d", n)
	}
	return withTxnsCopy(block, withTxns), nil
}

// GetBlockByHash implements rpc.EthClient.
func (f *FakeClient) GetBlockByHash(ctx context.Context, hash common.Hash, withTxns bool) (*chain.BlockFull, error) {
	if err := f.takeFailure(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	block, ok := f.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("rpctest: no block with hash %s", hash.Hex())
	}
	return withTxnsCopy(block, withTxns), nil
}

// GetLogs implements rpc.EthClient.
func (f *FakeClient) GetLogs(ctx context.Context, blockHash common.Hash) ([]chain.Log, error) {
	if err := f.takeFailure(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logs := f.logs[blockHash]
	out := make([]chain.Log, len(logs))
	copy(out, logs)
	return out, nil
}

func (f *FakeClient) takeFailure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext != nil {
		err := f.FailNext
		f.FailNext = nil
		return err
	}
	return nil
}

func withTxnsCopy(block chain.BlockFull, withTxns bool) *chain.BlockFull {
	out := block
	if !withTxns {
		out.Transactions = nil
	}
	return &out
}

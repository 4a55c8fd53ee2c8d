// Package eventstore defines the durable cache the Realtime Sync Service
// writes through: blocks, transactions, matched logs, per-filter cached
// intervals, and contract-call memo entries.
package eventstore

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
)

// CachedRangeWrite is the argument to InsertLogFilterCachedRanges: a single
// contiguous range to merge into the cached-interval set of every named
// filter key. The interval-merge non-overlap invariant (spec §3) is scoped
// per LogFilterKey; ContractAddress is carried alongside each key so reads
// by address (GetCachedIntervals) stay possible without the store knowing
// about filter configuration.
type CachedRangeWrite struct {
	Filters           []CachedRangeFilterKey
	StartBlock        uint64
	EndBlock          uint64
	EndBlockTimestamp uint64
}

// CachedRangeFilterKey names one log filter key and the contract address it
// tracks.
type CachedRangeFilterKey struct {
	LogFilterKey    string
	ContractAddress common.Address
}

// LogQuery selects logs for one contract within a timestamp window,
// optionally restricted to a set of topic0 event signature hashes.
type LogQuery struct {
	ContractAddress    common.Address
	FromBlockTimestamp uint64 // exclusive
	ToBlockTimestamp   uint64 // inclusive
	EventSigHashes     []common.Hash
}

// Store is the durable cache backing the realtime sync core and the
// surrounding handler runtime.
type Store interface {
	// InsertRealtimeBlock inserts a full block row (ignoring primary-key
	// conflicts), upserts the referenced transactions, inserts the given
	// logs (ignoring conflicts by LogID), and backfills BlockTimestamp on
	// any pre-existing log rows sharing the block's hash.
	InsertRealtimeBlock(ctx context.Context, chainID uint64, block chain.BlockFull, transactions []chain.Transaction, logs []chain.Log) error

	// InsertLogFilterCachedRanges merges the given range into the cached
	// interval set of every named log filter key, atomically, per the
	// interval-merge rule. Idempotent when the same range is reapplied.
	InsertLogFilterCachedRanges(ctx context.Context, write CachedRangeWrite) error

	// DeleteRealtimeData deletes all logs, transactions, and blocks with
	// BlockNumber >= fromBlockNumber. Never touches cached-interval rows.
	DeleteRealtimeData(ctx context.Context, chainID uint64, fromBlockNumber uint64) error

	// GetCachedIntervals returns the cached intervals for one contract.
	GetCachedIntervals(ctx context.Context, contractAddress common.Address) ([]chain.CachedInterval, error)

	// GetBlock returns the full block with the given hash, if persisted.
	GetBlock(ctx context.Context, hash common.Hash) (*chain.BlockFull, error)

	// GetTransaction returns the transaction with the given hash, if persisted.
	GetTransaction(ctx context.Context, hash common.Hash) (*chain.Transaction, error)

	// GetLogs returns logs matching the query, ordered by LogSortKey.
	GetLogs(ctx context.Context, query LogQuery) ([]chain.Log, error)

	// UpsertContractCall stores (or overwrites) a memoized contract-call result.
	UpsertContractCall(ctx context.Context, call chain.ContractCall) error

	// GetContractCall returns a memoized contract-call result, if present.
	GetContractCall(ctx context.Context, key string) (*chain.ContractCall, error)

	// Close releases any resources held by the store.
	Close() error
}

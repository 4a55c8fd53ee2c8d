// Package chain defines the data model shared by the Event Store, the
// Bloom Pre-Filter, the Log Filter, and the Realtime Sync Service: blocks,
// transactions, logs, cached intervals, and contract-call memo entries.
package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockLight is the minimal block representation kept in the realtime
// sync service's in-memory local chain. It is immutable once ingested.
type BlockLight struct {
	Hash       common.Hash `meddler:"hash,hash"`
	Number     uint64      `meddler:"number"`
	ParentHash common.Hash `meddler:"parentHash,hash"`
	Timestamp  uint64      `meddler:"timestamp"`
	LogsBloom  types.Bloom `meddler:"logsBloom,bloom"`
}

// BlockFull is the light block plus the header fields and transaction list
// needed by downstream handlers. Persisted to the Event Store verbatim
// when the block contains at least one matched log.
type BlockFull struct {
	BlockLight

	GasLimit         Decimal        `meddler:"gasLimit,decimal"`
	GasUsed          Decimal        `meddler:"gasUsed,decimal"`
	BaseFeePerGas    *Decimal       `meddler:"baseFeePerGas,decimal"`
	Miner            common.Address `meddler:"miner,address"`
	ExtraData        string         `meddler:"extraData"`
	Size             uint64         `meddler:"size"`
	StateRoot        common.Hash    `meddler:"stateRoot,hash"`
	TransactionsRoot common.Hash    `meddler:"transactionsRoot,hash"`
	ReceiptsRoot     common.Hash    `meddler:"receiptsRoot,hash"`
	TotalDifficulty  *Decimal       `meddler:"totalDifficulty,decimal"`

	Transactions []Transaction `meddler:"-"`
}

// Transaction is persisted only when referenced by a matched log.
type Transaction struct {
	Hash                 common.Hash     `meddler:"hash,hash"`
	Nonce                uint64          `meddler:"nonce"`
	From                 common.Address  `meddler:"from,address"`
	To                   *common.Address `meddler:"to,address"`
	Value                Decimal         `meddler:"value,decimal"`
	Input                string          `meddler:"input"`
	Gas                  Decimal         `meddler:"gas,decimal"`
	GasPrice             Decimal         `meddler:"gasPrice,decimal"`
	MaxFeePerGas         *Decimal        `meddler:"maxFeePerGas,decimal"`
	MaxPriorityFeePerGas *Decimal        `meddler:"maxPriorityFeePerGas,decimal"`
	BlockHash            common.Hash     `meddler:"blockHash,hash"`
	BlockNumber          uint64          `meddler:"blockNumber"`
	TransactionIndex     uint64          `meddler:"transactionIndex"`
	ChainID              uint64          `meddler:"chainId"`
}

// Log is one EVM log entry. Its primary key is LogID.
type Log struct {
	LogID            string         `meddler:"logId,pk"`
	LogSortKey       uint64         `meddler:"logSortKey"`
	Address          common.Address `meddler:"address,address"`
	Data             string         `meddler:"data"`
	Topic0           *common.Hash   `meddler:"topic0,hash"`
	Topic1           *common.Hash   `meddler:"topic1,hash"`
	Topic2           *common.Hash   `meddler:"topic2,hash"`
	Topic3           *common.Hash   `meddler:"topic3,hash"`
	BlockHash        common.Hash    `meddler:"blockHash,hash"`
	BlockNumber      uint64         `meddler:"blockNumber"`
	BlockTimestamp   *uint64        `meddler:"blockTimestamp"`
	LogIndex         uint64         `meddler:"logIndex"`
	TransactionHash  common.Hash    `meddler:"transactionHash,hash"`
	TransactionIndex uint64         `meddler:"transactionIndex"`
	Removed          bool           `meddler:"removed"`
}

// Topics returns the log's topic slots as a fixed 4-entry slice, with nil
// entries for unset positions, suitable for Bloom Pre-Filter and Log Filter
// matching.
func (l *Log) Topics() [4]*common.Hash {
	return [4]*common.Hash{l.Topic0, l.Topic1, l.Topic2, l.Topic3}
}

// logSortKeyScale bounds the per-block log count the LogSortKey encoding
// supports; no EVM block has ever approached this many logs.
const logSortKeyScale = 1_000_000

// NewLogID builds the primary key for a log entry from its block hash and
// in-block log index.
func NewLogID(blockHash common.Hash, logIndex uint64) string {
	return fmt.Sprintf("%s-%d", blockHash.Hex(), logIndex)
}

// NewLogSortKey builds a monotonically increasing sort key from a block
// number and in-block log index, so logs order correctly across blocks
// without a secondary sort column.
func NewLogSortKey(blockNumber, logIndex uint64) uint64 {
	return blockNumber*logSortKeyScale + logIndex
}

// CachedInterval represents a contiguous, fully-indexed block range tracked
// by one log filter key. For a given LogFilterKey, stored intervals must be
// pairwise non-overlapping and non-adjacent; see the Event Store's
// interval-merge algorithm.
type CachedInterval struct {
	ID                int64          `meddler:"id,pk"`
	LogFilterKey      string         `meddler:"logFilterKey"`
	ContractAddress   common.Address `meddler:"contractAddress,address"`
	StartBlock        uint64         `meddler:"startBlock"`
	EndBlock          uint64         `meddler:"endBlock"`
	EndBlockTimestamp uint64         `meddler:"endBlockTimestamp"`
}

// ContractCall is an opaque memoization entry for read-only contract calls
// performed by handlers. The realtime sync core never writes these but the
// Event Store must support them for the surrounding handler runtime.
type ContractCall struct {
	Key    string `meddler:"key,pk"`
	Result string `meddler:"result"`
}

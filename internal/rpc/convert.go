package rpc

import (
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
)

// headerToBlockFull converts a go-ethereum header into the domain block
// type, without transactions. TotalDifficulty has no field on the typed
// header (it is an RPC-layer-only value that go-ethereum's domain types
// dropped once post-merge chains stopped reporting it) so it is always
// left nil here; see DESIGN.md.
func headerToBlockFull(h *gethtypes.Header) *chain.BlockFull {
	// Header.Size dereferences Difficulty, which may be nil on a header
	// built without one; size a copy with a zero difficulty instead.
	sizeHeader := *h
	if sizeHeader.Difficulty == nil {
		sizeHeader.Difficulty = new(big.Int)
	}

	block := &chain.BlockFull{
		BlockLight: chain.BlockLight{
			Hash:       h.Hash(),
			Number:     h.Number.Uint64(),
			ParentHash: h.ParentHash,
			Timestamp:  h.Time,
			LogsBloom:  h.Bloom,
		},
		GasLimit:         chain.DecimalFromUint64(h.GasLimit),
		GasUsed:          chain.DecimalFromUint64(h.GasUsed),
		Miner:            h.Coinbase,
		ExtraData:        "0x" + hex.EncodeToString(h.Extra),
		Size:             uint64(sizeHeader.Size()),
		StateRoot:        h.Root,
		TransactionsRoot: h.TxHash,
		ReceiptsRoot:     h.ReceiptHash,
	}
	if h.BaseFee != nil {
		dec := chain.DecimalFromBig(h.BaseFee)
		block.BaseFeePerGas = &dec
	}
	return block
}

// blockToChain converts a full go-ethereum block, including its
// transactions, into the domain block type. chainID is used to derive each
// transaction's sender.
func blockToChain(b *gethtypes.Block, chainID uint64) *chain.BlockFull {
	block := headerToBlockFull(b.Header())
	block.Transactions = make([]chain.Transaction, len(b.Transactions()))
	for i, tx := range b.Transactions() {
		block.Transactions[i] = transactionToChain(tx, b.Hash(), b.NumberU64(), uint64(i), chainID)
	}
	return block
}

func transactionToChain(tx *gethtypes.Transaction, blockHash common.Hash, blockNumber, txIndex, chainID uint64) chain.Transaction {
	signer := gethtypes.LatestSignerForChainID(new(big.Int).SetUint64(chainID))
	from, err := gethtypes.Sender(signer, tx)
	if err != nil {
		// Sender recovery failing means the signature is malformed for the
		// assumed chain ID; leave From zeroed rather than fail the whole
		// block conversion.
		from = common.Address{}
	}

	out := chain.Transaction{
		Hash:             tx.Hash(),
		Nonce:            tx.Nonce(),
		From:             from,
		To:               tx.To(),
		Value:            chain.DecimalFromBig(tx.Value()),
		Input:            "0x" + hex.EncodeToString(tx.Data()),
		Gas:              chain.DecimalFromUint64(tx.Gas()),
		GasPrice:         chain.DecimalFromBig(tx.GasPrice()),
		BlockHash:        blockHash,
		BlockNumber:      blockNumber,
		TransactionIndex: txIndex,
		ChainID:          chainID,
	}

	if tx.Type() == gethtypes.DynamicFeeTxType || tx.Type() == gethtypes.BlobTxType {
		feeCap := chain.DecimalFromBig(tx.GasFeeCap())
		tipCap := chain.DecimalFromBig(tx.GasTipCap())
		out.MaxFeePerGas = &feeCap
		out.MaxPriorityFeePerGas = &tipCap
	}

	return out
}

func logToChain(l *gethtypes.Log) chain.Log {
	out := chain.Log{
		LogID:            chain.NewLogID(l.BlockHash, uint64(l.Index)),
		LogSortKey:       chain.NewLogSortKey(l.BlockNumber, uint64(l.Index)),
		Address:          l.Address,
		Data:             "0x" + hex.EncodeToString(l.Data),
		BlockHash:        l.BlockHash,
		BlockNumber:      l.BlockNumber,
		LogIndex:         uint64(l.Index),
		TransactionHash:  l.TxHash,
		TransactionIndex: uint64(l.TxIndex),
		Removed:          l.Removed,
	}

	topics := l.Topics
	if len(topics) > 0 {
		out.Topic0 = &topics[0]
	}
	if len(topics) > 1 {
		out.Topic1 = &topics[1]
	}
	if len(topics) > 2 {
		out.Topic2 = &topics[2]
	}
	if len(topics) > 3 {
		out.Topic3 = &topics[3]
	}

	return out
}

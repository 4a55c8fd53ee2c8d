package rpc

import (
	"context"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
	"github.com/goran-ethernal/ChainIndexor/pkg/config"
	pkgrpc "github.com/goran-ethernal/ChainIndexor/pkg/rpc"
)

// Compile-time check to ensure Client implements pkgrpc.EthClient interface.
var _ pkgrpc.EthClient = (*Client)(nil)

// Client wraps go-ethereum's typed ethclient with the trimmed surface the
// realtime sync core consumes.
type Client struct {
	eth     *ethclient.Client
	chainID uint64
	retry   *config.RetryConfig
}

// NewClient creates a new RPC client connected to the given endpoint.
// chainID is used to derive transaction senders without a full chain
// config. retry, if non-nil, wraps every call in exponential backoff.
func NewClient(ctx context.Context, endpoint string, chainID uint64, retry *config.RetryConfig) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return &Client{
		eth:     ethclient.NewClient(rpcClient),
		chainID: chainID,
		retry:   retry,
	}, nil
}

// call runs fn with retry and records request count, duration, and error
// metrics under method.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	RPCMethodInc(method)
	start := time.Now()

	err := retryWithBackoff(ctx, c.retry, method, fn)

	RPCMethodDuration(method, time.Since(start))
	if err != nil {
		RPCMethodError(method, "rpc_error")
	}
	return err
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// GetBlockByNumber implements pkgrpc.EthClient.
func (c *Client) GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, withTxns bool) (*chain.BlockFull, error) {
	arg := blockNumberArg(number)

	if !withTxns {
		var header *gethtypes.Header
		err := c.call(ctx, "eth_getBlockByNumber", func() error {
			h, err := c.eth.HeaderByNumber(ctx, arg)
			if err != nil {
				return err
			}
			header = h
			return nil
		})
		if err != nil {
			return nil, err
		}
		return headerToBlockFull(header), nil
	}

	var block *gethtypes.Block
	err := c.call(ctx, "eth_getBlockByNumber", func() error {
		b, err := c.eth.BlockByNumber(ctx, arg)
		if err != nil {
			return err
		}
		block = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blockToChain(block, c.chainID), nil
}

// GetBlockByHash implements pkgrpc.EthClient.
func (c *Client) GetBlockByHash(ctx context.Context, hash common.Hash, withTxns bool) (*chain.BlockFull, error) {
	if !withTxns {
		var header *gethtypes.Header
		err := c.call(ctx, "eth_getBlockByHash", func() error {
			h, err := c.eth.HeaderByHash(ctx, hash)
			if err != nil {
				return err
			}
			header = h
			return nil
		})
		if err != nil {
			return nil, err
		}
		return headerToBlockFull(header), nil
	}

	var block *gethtypes.Block
	err := c.call(ctx, "eth_getBlockByHash", func() error {
		b, err := c.eth.BlockByHash(ctx, hash)
		if err != nil {
			return err
		}
		block = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blockToChain(block, c.chainID), nil
}

// GetLogs implements pkgrpc.EthClient.
func (c *Client) GetLogs(ctx context.Context, blockHash common.Hash) ([]chain.Log, error) {
	var logs []gethtypes.Log
	err := c.call(ctx, "eth_getLogs", func() error {
		l, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{BlockHash: &blockHash})
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]chain.Log, len(logs))
	for i := range logs {
		out[i] = logToChain(&logs[i])
	}
	return out, nil
}

// blockNumberArg converts an rpc.BlockNumber into the *big.Int argument
// ethclient expects, with nil meaning "latest".
func blockNumberArg(number rpc.BlockNumber) *big.Int {
	if number == rpc.LatestBlockNumber || number < 0 {
		return nil
	}
	return big.NewInt(number.Int64())
}

package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ChainClient wraps a JSON-RPC connection and serves both the matcher's
// read needs (block timestamps, raw transactions) and the settlement
// engine's (gas, fees, nonce, raw broadcast).
type ChainClient struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

// NewChainClient dials the chain RPC endpoint.
func NewChainClient(ctx context.Context, rawurl string) (*ChainClient, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return &ChainClient{rpc: c, eth: ethclient.NewClient(c)}, nil
}

// Eth exposes the underlying ethclient for contract calls.
func (c *ChainClient) Eth() *ethclient.Client {
	return c.eth
}

// Close closes the RPC connection.
func (c *ChainClient) Close() {
	c.rpc.Close()
}

// BlockTimestamp returns the Unix timestamp of the given block. The
// block number may be hex (as the explorer reports it) or decimal.
func (c *ChainClient) BlockTimestamp(ctx context.Context, blockNumber string) (int64, error) {
	bn := blockNumber
	if !strings.HasPrefix(bn, "0x") {
		n, ok := new(big.Int).SetString(blockNumber, 10)
		if !ok {
			return 0, fmt.Errorf("invalid block number %q", blockNumber)
		}
		bn = hexutil.EncodeBig(n)
	}

	var head *struct {
		Timestamp hexutil.Uint64 `json:"timestamp"`
	}
	if err := c.rpc.CallContext(ctx, &head, "eth_getBlockByNumber", bn, false); err != nil {
		return 0, fmt.Errorf("get block %s: %w", bn, err)
	}
	if head == nil {
		return 0, fmt.Errorf("block %s not found", bn)
	}
	return int64(head.Timestamp), nil
}

// RawTransaction fetches the raw serialized transaction by hash, for
// batch envelope decoding.
func (c *ChainClient) RawTransaction(ctx context.Context, hash string) (string, error) {
	var raw hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &raw, "eth_getRawTransactionByHash", common.HexToHash(hash)); err != nil {
		return "", fmt.Errorf("get raw transaction %s: %w", hash, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("raw transaction %s not found", hash)
	}
	return hexutil.Encode(raw), nil
}

// EstimateGas estimates gas for a single call.
func (c *ChainClient) EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error) {
	return c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
}

// SuggestFees returns EIP-1559-style fee parameters: maxFeePerGas is
// twice the pending base fee plus the tip, falling back to the legacy
// gas price when the chain reports no base fee.
func (c *ChainClient) SuggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("gas tip: %w", err)
	}

	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("chain head: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gas price: %w", err)
		}
		return gasPrice, tip, nil
	}

	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return maxFee, tip, nil
}

// PendingNonce returns the next nonce for an account.
func (c *ChainClient) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

// SendRawTransaction broadcasts a signed transaction and returns its
// hash. An RPC-level rejection is returned as the error.
func (c *ChainClient) SendRawTransaction(ctx context.Context, signedTx string) (string, error) {
	var txHash common.Hash
	if err := c.rpc.CallContext(ctx, &txHash, "eth_sendRawTransaction", signedTx); err != nil {
		return "", err
	}
	return txHash.Hex(), nil
}

package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const dexQuoteABI = `
[
  {
    "name": "quoteSwapExactAmountOut",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "tokenIn", "type": "address" },
      { "name": "tokenOut", "type": "address" },
      { "name": "amountOut", "type": "uint128" }
    ],
    "outputs": [
      { "name": "amountIn", "type": "uint128" }
    ]
  }
]
`

// ContractCaller is the read-call surface DexClient needs; satisfied by
// ethclient.Client.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// DexClient quotes exact-output swaps against the stablecoin DEX
// precompile. The precompile routes through the quote-token tree
// internally, so a single hop quote covers every listed pair.
type DexClient struct {
	caller ContractCaller
	dex    common.Address
	abi    abi.ABI
}

// NewDexClient creates a quoter bound to the DEX at the given address.
func NewDexClient(caller ContractCaller, dex common.Address) (*DexClient, error) {
	parsed, err := abi.JSON(strings.NewReader(dexQuoteABI))
	if err != nil {
		return nil, fmt.Errorf("parse dex ABI: %w", err)
	}
	return &DexClient{caller: caller, dex: dex, abi: parsed}, nil
}

// QuoteExactOutput answers how much tokenIn is required to produce
// exactly amountOut of tokenOut.
func (d *DexClient) QuoteExactOutput(ctx context.Context, tokenIn, tokenOut common.Address, amountOut *big.Int) (*big.Int, error) {
	data, err := d.abi.Pack("quoteSwapExactAmountOut", tokenIn, tokenOut, amountOut)
	if err != nil {
		return nil, fmt.Errorf("build quote call: %w", err)
	}

	out, err := d.caller.CallContract(ctx, ethereum.CallMsg{To: &d.dex, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("quote call: %w", err)
	}

	results, err := d.abi.Unpack("quoteSwapExactAmountOut", out)
	if err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	amountIn, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected quote result type %T", results[0])
	}
	return amountIn, nil
}

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

const tokenBalanceABI = `
[
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "account", "type": "address" }
    ],
    "outputs": [
      { "name": "", "type": "uint256" }
    ]
  }
]
`

// TokenClient reads token state through eth_call.
type TokenClient struct {
	caller ContractCaller
	abi    abi.ABI
}

// NewTokenClient creates a token reader over the given call surface.
func NewTokenClient(caller ContractCaller) (*TokenClient, error) {
	parsed, err := abi.JSON(strings.NewReader(tokenBalanceABI))
	if err != nil {
		return nil, fmt.Errorf("parse token ABI: %w", err)
	}
	return &TokenClient{caller: caller, abi: parsed}, nil
}

// BalanceOf returns holder's balance of the token, in base units.
func (t *TokenClient) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	data, err := t.abi.Pack("balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("build balance call: %w", err)
	}

	out, err := t.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balance call: %w", err)
	}

	results, err := t.abi.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance result type %T", results[0])
	}
	return balance, nil
}

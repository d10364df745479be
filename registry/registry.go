// Package registry holds the static token metadata and chain constants
// of the Tempo Moderato testnet. Read-only after initialization.
package registry

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tempopay/checkout/types"
)

// Chain configuration
const (
	ChainID        uint64 = 42431
	NetworkName           = "tempo-moderato"
	RPCURL                = "https://rpc.moderato.tempo.xyz"
	ExplorerURL           = "https://explore.tempo.xyz"
	ExplorerAPIURL        = "https://explore.tempo.xyz/api"
	FeeSponsorURL         = "https://sponsor.testnet.tempo.xyz"
)

// All listed stablecoins share 6-decimal fixed point; the matcher path
// assumes this default throughout.
const DefaultDecimals = 6

// Token contract addresses
var (
	AlphaUSD = common.HexToAddress("0x20c0000000000000000000000000000000000001")
	BetaUSD  = common.HexToAddress("0x20c0000000000000000000000000000000000002")
	ThetaUSD = common.HexToAddress("0x20c0000000000000000000000000000000000003")
	PathUSD  = common.HexToAddress("0x20c0000000000000000000000000000000000000")

	// StablecoinDEX is the enshrined swap precompile.
	StablecoinDEX = common.HexToAddress("0xdec0000000000000000000000000000000000000")
)

var tokenList = []types.TokenInfo{
	{Address: strings.ToLower(AlphaUSD.Hex()), Symbol: "aUSD", Name: "AlphaUSD", Decimals: 6},
	{Address: strings.ToLower(BetaUSD.Hex()), Symbol: "bUSD", Name: "BetaUSD", Decimals: 6},
	{Address: strings.ToLower(ThetaUSD.Hex()), Symbol: "tUSD", Name: "ThetaUSD", Decimals: 6},
	{Address: strings.ToLower(PathUSD.Hex()), Symbol: "pUSD", Name: "PathUSD", Decimals: 6},
}

var tokenByAddress = func() map[string]types.TokenInfo {
	m := make(map[string]types.TokenInfo, len(tokenList))
	for _, t := range tokenList {
		m[t.Address] = t
	}
	return m
}()

// List returns the supported tokens in display order.
func List() []types.TokenInfo {
	out := make([]types.TokenInfo, len(tokenList))
	copy(out, tokenList)
	return out
}

// ByAddress looks up token metadata by contract address,
// case-insensitively.
func ByAddress(address string) (types.TokenInfo, bool) {
	t, ok := tokenByAddress[strings.ToLower(address)]
	return t, ok
}

// DecimalsOr returns the decimals of a known token, or fallback for
// unknown addresses.
func DecimalsOr(address string, fallback int) int {
	if t, ok := ByAddress(address); ok {
		return t.Decimals
	}
	return fallback
}

// SymbolOr returns the symbol of a known token, or fallback.
func SymbolOr(address, fallback string) string {
	if t, ok := ByAddress(address); ok {
		return t.Symbol
	}
	return fallback
}

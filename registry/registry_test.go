package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListReturnsAllTokens(t *testing.T) {
	tokens := List()
	require.Len(t, tokens, 4)

	symbols := make([]string, len(tokens))
	for i, tok := range tokens {
		symbols[i] = tok.Symbol
		assert.Equal(t, 6, tok.Decimals)
	}
	assert.Equal(t, []string{"aUSD", "bUSD", "tUSD", "pUSD"}, symbols)
}

func TestListIsACopy(t *testing.T) {
	List()[0].Symbol = "mutated"
	assert.Equal(t, "aUSD", List()[0].Symbol)
}

func TestByAddressCaseInsensitive(t *testing.T) {
	lower := strings.ToLower(AlphaUSD.Hex())

	tok, ok := ByAddress(lower)
	require.True(t, ok)
	assert.Equal(t, "aUSD", tok.Symbol)

	tok, ok = ByAddress(strings.ToUpper(lower[2:]))
	assert.False(t, ok) // missing 0x prefix is not an address form we accept

	tok, ok = ByAddress(AlphaUSD.Hex())
	require.True(t, ok)
	assert.Equal(t, "AlphaUSD", tok.Name)
}

func TestByAddressUnknown(t *testing.T) {
	_, ok := ByAddress("0x9999999999999999999999999999999999999999")
	assert.False(t, ok)
}

func TestDecimalsOr(t *testing.T) {
	assert.Equal(t, 6, DecimalsOr(BetaUSD.Hex(), 18))
	assert.Equal(t, 18, DecimalsOr("0x9999999999999999999999999999999999999999", 18))
	assert.Equal(t, 6, DecimalsOr("", 6))
}

func TestSymbolOr(t *testing.T) {
	assert.Equal(t, "pUSD", SymbolOr(PathUSD.Hex(), "?"))
	assert.Equal(t, "?", SymbolOr("0x9999999999999999999999999999999999999999", "?"))
}

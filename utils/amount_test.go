package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	dec, err := ParseAmount("50.00")
	require.NoError(t, err)
	assert.Equal(t, "50", dec.String())

	_, err = ParseAmount("")
	require.Error(t, err)

	_, err = ParseAmount("abc")
	require.Error(t, err)

	_, err = ParseAmount("-1")
	require.Error(t, err)

	dec, err = ParseAmount("0")
	require.NoError(t, err)
	assert.True(t, dec.IsZero())
}

func TestParseAmountWithDecimals(t *testing.T) {
	cases := []struct {
		amount string
		want   int64
	}{
		{"50.00", 50_000000},
		{"0.000001", 1},
		{"10.5", 10_500000},
		{"1000000", 1_000000_000000},
		{"0", 0},
	}

	for _, tc := range cases {
		got, err := ParseAmountWithDecimals(tc.amount, 6)
		require.NoError(t, err, "amount %q", tc.amount)
		assert.Equal(t, tc.want, got.Int64(), "amount %q", tc.amount)
	}
}

func TestParseAmountWithDecimalsRejectsExcessPrecision(t *testing.T) {
	_, err := ParseAmountWithDecimals("0.0000001", 6)
	require.Error(t, err)

	_, err = ParseAmountWithDecimals("50.1234567", 6)
	require.Error(t, err)
}

func TestFormatAmountFromBigInt(t *testing.T) {
	assert.Equal(t, "50", FormatAmountFromBigInt(big.NewInt(50_000000), 6))
	assert.Equal(t, "7.5", FormatAmountFromBigInt(big.NewInt(7_500000), 6))
	assert.Equal(t, "0.000001", FormatAmountFromBigInt(big.NewInt(1), 6))
	assert.Equal(t, "0", FormatAmountFromBigInt(big.NewInt(0), 6))
}

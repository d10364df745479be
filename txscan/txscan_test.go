package txscan

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempopay/checkout/invoice"
	"github.com/tempopay/checkout/types"
)

var (
	merchant = common.HexToAddress("0x1111111111111111111111111111111111111111")
	payer    = "0x2222222222222222222222222222222222222222"
	tokenA   = "0x20c0000000000000000000000000000000000001"
)

func TestEncodeDecodeTransferWithMemo(t *testing.T) {
	memo := invoice.Memo("INV-001")
	amount := big.NewInt(50_000000)

	data := hexutil.Encode(EncodeTransferWithMemo(merchant, amount, memo))

	decoded, ok := DecodeTransferWithMemo(data)
	require.True(t, ok)
	assert.Equal(t, merchant, decoded.To)
	assert.Equal(t, amount, decoded.Amount)
	assert.Equal(t, memo, decoded.Memo)
}

func TestEncodeDecodeTransfer(t *testing.T) {
	amount := big.NewInt(123_456789)

	data := hexutil.Encode(EncodeTransfer(merchant, amount))

	decoded, ok := DecodeTransfer(data)
	require.True(t, ok)
	assert.Equal(t, merchant, decoded.To)
	assert.Equal(t, amount, decoded.Amount)
}

func TestDecodeSelectorCaseInsensitive(t *testing.T) {
	data := hexutil.Encode(EncodeTransfer(merchant, big.NewInt(1)))
	upper := "0xA9059CBB" + data[10:]

	_, ok := DecodeTransfer(upper)
	assert.True(t, ok)
}

func TestDecodeRejectsMalformedCalldata(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"selector only":  SelectorTransferWithMemo,
		"truncated":      SelectorTransferWithMemo + "00ff",
		"wrong selector": "0xdeadbeef" + "00",
		"bad hex":        SelectorTransferWithMemo + string(make([]byte, 192)),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := DecodeTransferWithMemo(data)
			assert.False(t, ok)
		})
	}
}

func TestDecodeMemo(t *testing.T) {
	mk := func(b []byte) (m [32]byte) {
		copy(m[:], b)
		return
	}

	t.Run("right padded", func(t *testing.T) {
		ref, ok := DecodeMemo(invoice.Memo("INV-001"))
		require.True(t, ok)
		assert.Equal(t, "INV-001", ref)
	})

	t.Run("left padded", func(t *testing.T) {
		var m [32]byte
		copy(m[25:], "INV-001")
		ref, ok := DecodeMemo(m)
		require.True(t, ok)
		assert.Equal(t, "INV-001", ref)
	})

	t.Run("whitespace trimmed", func(t *testing.T) {
		ref, ok := DecodeMemo(mk([]byte("  INV-001  ")))
		require.True(t, ok)
		assert.Equal(t, "INV-001", ref)
	})

	t.Run("all zero", func(t *testing.T) {
		_, ok := DecodeMemo([32]byte{})
		assert.False(t, ok)
	})

	t.Run("whitespace only", func(t *testing.T) {
		_, ok := DecodeMemo(mk([]byte("   ")))
		assert.False(t, ok)
	})

	t.Run("content ends at first interior zero", func(t *testing.T) {
		var m [32]byte
		copy(m[:], "INV")
		m[4] = 'X' // unreachable past the zero at index 3
		ref, ok := DecodeMemo(m)
		require.True(t, ok)
		assert.Equal(t, "INV", ref)
	})
}

func TestMemoRoundTrip(t *testing.T) {
	for _, ref := range []string{"INV-001", "a", "order 42", "ref_with_32_bytes_of_contentXXXX"} {
		got, ok := DecodeMemo(invoice.Memo(ref))
		require.True(t, ok, "reference %q", ref)
		assert.Equal(t, ref, got)
	}
}

func TestNormalizePlainTransferDirections(t *testing.T) {
	data := hexutil.Encode(EncodeTransfer(merchant, big.NewInt(7_500000)))
	tx := &types.TransactionRecord{
		Hash:  "0xaaa",
		From:  payer,
		To:    tokenA,
		Input: data,
		Value: "0x0",
	}

	t.Run("receive", func(t *testing.T) {
		out := Normalize(tx, merchant.Hex())
		require.Len(t, out, 1)
		assert.Equal(t, types.DirectionReceive, out[0].Direction)
		assert.Equal(t, payer, out[0].Counterparty)
		assert.Equal(t, "7.5", out[0].Amount)
		assert.Equal(t, tokenA, out[0].Token)
	})

	t.Run("send", func(t *testing.T) {
		out := Normalize(tx, payer)
		require.Len(t, out, 1)
		assert.Equal(t, types.DirectionSend, out[0].Direction)
		assert.Equal(t, "0x1111111111111111111111111111111111111111", out[0].Counterparty)
	})
}

func TestNormalizeMemoTransfer(t *testing.T) {
	memo := invoice.Memo("INV-001")
	data := hexutil.Encode(EncodeTransferWithMemo(merchant, big.NewInt(50_000000), memo))
	tx := &types.TransactionRecord{
		Hash:  "0xbbb",
		From:  payer,
		To:    tokenA,
		Input: data,
	}

	out := Normalize(tx, merchant.Hex())
	require.Len(t, out, 1)
	assert.Equal(t, "50", out[0].Amount)
	assert.Equal(t, "INV-001", out[0].Reference)
	assert.Equal(t, hexutil.Encode(memo[:]), out[0].Memo)
}

func TestNormalizeBatchSumsPlainTransfers(t *testing.T) {
	a := common.HexToAddress("0x3333333333333333333333333333333333333333")
	b := common.HexToAddress("0x4444444444444444444444444444444444444444")

	tx := &types.TransactionRecord{
		Hash: "0xccc",
		From: payer,
		Type: types.TxTypeBatch,
		Calls: []types.Call{
			{To: tokenA, Data: hexutil.Encode(EncodeTransfer(a, big.NewInt(10_000000)))},
			{To: tokenA, Data: hexutil.Encode(EncodeTransfer(b, big.NewInt(5_000000)))},
		},
	}

	out := Normalize(tx, payer)
	require.Len(t, out, 1)
	assert.Equal(t, "15", out[0].Amount)
	assert.Equal(t, types.DirectionSend, out[0].Direction)
}

func TestNormalizeBatchMixedCalls(t *testing.T) {
	memo := invoice.Memo("INV-002")
	tx := &types.TransactionRecord{
		Hash: "0xddd",
		From: payer,
		Type: types.TxTypeBatch,
		Calls: []types.Call{
			{To: tokenA, Data: "0xdeadbeef"}, // ignored
			{To: tokenA, Data: hexutil.Encode(EncodeTransferWithMemo(merchant, big.NewInt(1_000000), memo))},
			{To: tokenA, Data: hexutil.Encode(EncodeTransfer(merchant, big.NewInt(2_000000)))},
		},
	}

	out := Normalize(tx, merchant.Hex())
	require.Len(t, out, 2)
	assert.Equal(t, "INV-002", out[0].Reference)
	assert.Equal(t, "1", out[0].Amount)
	assert.Equal(t, "2", out[1].Amount)
	assert.Empty(t, out[1].Memo)
}

func TestNormalizeNativeValueFallback(t *testing.T) {
	tx := &types.TransactionRecord{
		Hash:  "0xeee",
		From:  payer,
		To:    "0x5555555555555555555555555555555555555555",
		Input: "0x",
		Value: "0x2710", // 10000
	}

	out := Normalize(tx, payer)
	require.Len(t, out, 1)
	assert.Equal(t, "0.01", out[0].Amount)
	assert.Empty(t, out[0].Token)
}

func TestNormalizeUnrecognized(t *testing.T) {
	tx := &types.TransactionRecord{
		Hash:  "0xfff",
		From:  payer,
		To:    tokenA,
		Input: "0x12345678",
		Value: "0x0",
	}
	assert.Empty(t, Normalize(tx, payer))
	assert.Empty(t, Normalize(nil, payer))
}

package invoice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempopay/checkout/types"
)

func sampleInvoice() *types.Invoice {
	return &types.Invoice{
		Merchant:     "0x1111111111111111111111111111111111111111",
		Amount:       "50.00",
		Token:        "0x20c0000000000000000000000000000000000001",
		Description:  "Web design services",
		Reference:    "INV-001",
		MerchantName: "Acme Design",
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inv := sampleInvoice()

	token, err := Encode(inv)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// URL-safe, no padding.
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")

	decoded, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, inv, decoded)
}

func TestEncodeDeterministic(t *testing.T) {
	a, err := Encode(sampleInvoice())
	require.NoError(t, err)
	b, err := Encode(sampleInvoice())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeNilInvoice(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)

	var cerr *types.CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, types.ErrInvalidInvoice, cerr.Code)
}

func TestEncodeRejectsInvalidAddress(t *testing.T) {
	inv := sampleInvoice()
	inv.Merchant = "not-an-address"

	_, err := Encode(inv)
	require.Error(t, err)

	var cerr *types.CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, types.ErrInvalidInvoice, cerr.Code)
}

func TestEncodeRejectsMissingReference(t *testing.T) {
	inv := sampleInvoice()
	inv.Reference = ""

	_, err := Encode(inv)
	require.Error(t, err)
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"not base64url": "!!!not-base64!!!",
		"not json":      "bm90LWpzb24",
		"json array":    "W10",
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			inv, err := Decode(token)
			require.Error(t, err)
			assert.Nil(t, inv)

			var cerr *types.CheckoutError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, types.ErrInvalidInvoice, cerr.Code)
		})
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	token, err := Encode(sampleInvoice())
	require.NoError(t, err)

	// Sanity: a complete token decodes.
	_, err = Decode(token)
	require.NoError(t, err)

	// {"merchant":"0x11..."} alone is rejected.
	partial := "eyJtZXJjaGFudCI6IjB4MTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMSJ9"
	_, err = Decode(partial)
	require.Error(t, err)
}

func TestDecodeToleratesPadding(t *testing.T) {
	token, err := Encode(sampleInvoice())
	require.NoError(t, err)

	padded := token + strings.Repeat("=", (4-len(token)%4)%4)
	decoded, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, sampleInvoice(), decoded)
}

func TestMemoRightPadsReference(t *testing.T) {
	memo := Memo("INV-001")

	assert.Equal(t, []byte("INV-001"), memo[:7])
	for i := 7; i < 32; i++ {
		assert.Zero(t, memo[i], "byte %d should be zero padding", i)
	}
}

func TestMemoDeterministic(t *testing.T) {
	assert.Equal(t, Memo("INV-001"), Memo("INV-001"))
	assert.NotEqual(t, Memo("INV-001"), Memo("INV-002"))
}

func TestMemoTruncatesLongReference(t *testing.T) {
	long := strings.Repeat("a", 40)
	memo := Memo(long)
	assert.Equal(t, []byte(long[:32]), memo[:])
}

func TestMemoHex(t *testing.T) {
	h := MemoHex("INV-001")
	assert.Len(t, h, 2+64)
	assert.Equal(t, "0x494e562d303031", h[:16])
}

func TestBuildPayURL(t *testing.T) {
	u, err := BuildPayURL(sampleInvoice())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "/pay/"))

	decoded, err := Decode(strings.TrimPrefix(u, "/pay/"))
	require.NoError(t, err)
	assert.Equal(t, sampleInvoice(), decoded)
}

func TestBuildReceiptURL(t *testing.T) {
	u, err := BuildReceiptURL(sampleInvoice())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "/receipt/"))
}

func TestTruncateAddress(t *testing.T) {
	assert.Equal(t, "0x1111...1111", TruncateAddress("0x1111111111111111111111111111111111111111"))
	assert.Equal(t, "0xabc", TruncateAddress("0xabc"))
}

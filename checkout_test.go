package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempopay/checkout/types"
)

func TestInvoiceTokenRoundTrip(t *testing.T) {
	inv := &types.Invoice{
		Merchant:  "0x1111111111111111111111111111111111111111",
		Amount:    "50.00",
		Token:     "0x20c0000000000000000000000000000000000001",
		Reference: "INV-001",
	}

	token, err := EncodeInvoice(inv)
	require.NoError(t, err)

	decoded, err := DecodeInvoice(token)
	require.NoError(t, err)
	assert.Equal(t, inv, decoded)

	payURL, err := BuildPayURL(inv)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(payURL, "/pay/"))

	receiptURL, err := BuildReceiptURL(inv)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(receiptURL, "/receipt/"))
}

func TestReadOnlyInstanceDefaults(t *testing.T) {
	c := &Checkout{}
	assert.Equal(t, types.StatusIdle, c.SettlementResult().Status)
	c.ResetSettlement() // no-op without an engine
}

func TestNilInvoiceRejected(t *testing.T) {
	c := &Checkout{}

	_, err := c.CheckPayment(context.Background(), nil)
	require.Error(t, err)

	var cerr *types.CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, types.ErrInvalidInvoice, cerr.Code)

	_, err = c.WaitForPayment(context.Background(), nil)
	require.Error(t, err)
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, types.ErrInvalidInvoice, cerr.Code)
}

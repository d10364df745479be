// Package invoice implements the invoice codec: encoding a payment
// intent to a URL-safe token, decoding it back, and deriving the
// deterministic on-chain memo from the invoice reference.
//
// The codec is pure data transformation; it never touches the network or
// the chain.
package invoice

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tempopay/checkout/types"
	"github.com/tempopay/checkout/utils"
)

// Encode serializes an invoice to a URL-safe token: compact JSON,
// base64url alphabet, no padding. Reversible by Decode.
func Encode(inv *types.Invoice) (string, error) {
	if inv == nil {
		return "", &types.CheckoutError{
			Code:    types.ErrInvalidInvoice,
			Message: "invoice is nil",
		}
	}

	if err := utils.Validate().Struct(inv); err != nil {
		return "", &types.CheckoutError{
			Code:    types.ErrInvalidInvoice,
			Message: fmt.Sprintf("invalid invoice: %v", err),
		}
	}

	raw, err := json.Marshal(inv)
	if err != nil {
		return "", &types.CheckoutError{
			Code:    types.ErrInvalidInvoice,
			Message: fmt.Sprintf("encode invoice: %v", err),
		}
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode. Malformed tokens, wrong padding, and records
// missing any required field all yield a typed invalid-invoice error;
// Decode never returns a partially populated invoice and never panics.
func Decode(token string) (*types.Invoice, error) {
	invalid := func(reason string) error {
		return &types.CheckoutError{
			Code:    types.ErrInvalidInvoice,
			Message: reason,
		}
	}

	if token == "" {
		return nil, invalid("empty invoice token")
	}

	// Tolerate both padded and unpadded variants of the token.
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, invalid(fmt.Sprintf("invalid invoice token: %v", err))
	}

	var inv types.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, invalid(fmt.Sprintf("invalid invoice payload: %v", err))
	}

	if inv.Merchant == "" || inv.Amount == "" || inv.Token == "" || inv.Reference == "" {
		return nil, invalid("invoice is missing required fields")
	}

	return &inv, nil
}

// Memo derives the deterministic 32-byte on-chain memo from a reference:
// the UTF-8 encoding right-padded with zero bytes. References whose
// encoding exceeds 32 bytes truncate silently, so distinct references
// sharing a 32-byte prefix collide; keep references short.
func Memo(reference string) [32]byte {
	var memo [32]byte
	copy(memo[:], reference)
	return memo
}

// MemoHex is Memo rendered as 0x-prefixed hex, the form carried in
// calldata and compared during verification.
func MemoHex(reference string) string {
	memo := Memo(reference)
	return hexutil.Encode(memo[:])
}

// BuildPayURL returns the payment page path for an invoice.
func BuildPayURL(inv *types.Invoice) (string, error) {
	encoded, err := Encode(inv)
	if err != nil {
		return "", err
	}
	return "/pay/" + encoded, nil
}

// BuildReceiptURL returns the receipt page path for an invoice.
func BuildReceiptURL(inv *types.Invoice) (string, error) {
	encoded, err := Encode(inv)
	if err != nil {
		return "", err
	}
	return "/receipt/" + encoded, nil
}

// TruncateAddress shortens an address for display: 0x1234...5678.
func TruncateAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// Package txscan turns raw transaction records into canonical transfer
// views by sniffing calldata selectors at fixed byte offsets.
//
// Exactly two call shapes are recognized: the plain transfer and the
// transfer-with-memo used as the on-chain proof-of-payment marker.
// Decoders are tried in that priority order and anything else is
// ignored; a record that fails to decode yields no transfers rather
// than an error. All functions are pure.
package txscan

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tempopay/checkout/registry"
	"github.com/tempopay/checkout/types"
	"github.com/tempopay/checkout/utils"
)

// 4-byte call selectors
const (
	// transferWithMemo(address to, uint256 amount, bytes32 memo)
	SelectorTransferWithMemo = "0x95777d59"
	// transfer(address to, uint256 amount)
	SelectorTransfer = "0xa9059cbb"
)

// TransferWithMemo is a decoded transfer-with-memo call.
type TransferWithMemo struct {
	To     common.Address
	Amount *big.Int
	Memo   [32]byte
}

// Transfer is a decoded plain transfer call.
type Transfer struct {
	To     common.Address
	Amount *big.Int
}

// callArgs slices the 32-byte-aligned argument words after the selector.
// This is a binary field-offset decode, not general ABI decoding:
// calldata that is too short or not valid hex yields no match.
func callArgs(calldata, selector string, words int) ([]byte, bool) {
	if len(calldata) < len(selector) || !strings.EqualFold(calldata[:len(selector)], selector) {
		return nil, false
	}
	body := calldata[len(selector):]
	if len(body) < words*64 {
		return nil, false
	}
	args, err := hex.DecodeString(body[:words*64])
	if err != nil {
		return nil, false
	}
	return args, true
}

// DecodeTransferWithMemo decodes a transfer-with-memo call: selector,
// then recipient left-padded to 32 bytes, amount as a 32-byte big-endian
// integer, and the raw 32-byte memo.
func DecodeTransferWithMemo(calldata string) (*TransferWithMemo, bool) {
	args, ok := callArgs(calldata, SelectorTransferWithMemo, 3)
	if !ok {
		return nil, false
	}

	t := &TransferWithMemo{
		To:     common.BytesToAddress(args[12:32]),
		Amount: new(big.Int).SetBytes(args[32:64]),
	}
	copy(t.Memo[:], args[64:96])
	return t, true
}

// DecodeTransfer decodes a plain transfer call.
func DecodeTransfer(calldata string) (*Transfer, bool) {
	args, ok := callArgs(calldata, SelectorTransfer, 2)
	if !ok {
		return nil, false
	}

	return &Transfer{
		To:     common.BytesToAddress(args[12:32]),
		Amount: new(big.Int).SetBytes(args[32:64]),
	}, true
}

// DecodeMemo interprets a 32-byte memo as zero-padded UTF-8 text: leading
// zero bytes are skipped, content ends at the first zero byte after it
// begins, and surrounding whitespace is trimmed. Returns false when no
// content remains. Exact inverse of invoice.Memo for any reference that
// fits in 32 bytes and contains no internal or leading zero byte.
func DecodeMemo(memo [32]byte) (string, bool) {
	start := 0
	for start < len(memo) && memo[start] == 0 {
		start++
	}
	if start == len(memo) {
		return "", false
	}

	end := start
	for end < len(memo) && memo[end] != 0 {
		end++
	}

	ref := strings.TrimSpace(string(memo[start:end]))
	if ref == "" {
		return "", false
	}
	return ref, true
}

// EncodeTransferWithMemo builds transfer-with-memo calldata with the same
// fixed layout the decoder expects.
func EncodeTransferWithMemo(to common.Address, amount *big.Int, memo [32]byte) []byte {
	data := make([]byte, 4+3*32)
	copy(data[:4], hexutil.MustDecode(SelectorTransferWithMemo))
	copy(data[16:36], to.Bytes())
	amount.FillBytes(data[36:68])
	copy(data[68:100], memo[:])
	return data
}

// EncodeTransfer builds plain transfer calldata.
func EncodeTransfer(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 4+2*32)
	copy(data[:4], hexutil.MustDecode(SelectorTransfer))
	copy(data[16:36], to.Bytes())
	amount.FillBytes(data[36:68])
	return data
}

// Normalize derives zero or more canonical transfers from one raw
// transaction record, from the point of view of self. Batched records
// are decoded per sub-call; for display, the record-level plain-transfer
// amount is the sum of all recognized plain transfers in the batch.
func Normalize(tx *types.TransactionRecord, self string) []types.NormalizedTransfer {
	if tx == nil {
		return nil
	}

	if tx.IsBatch() && len(tx.Calls) > 0 {
		return normalizeBatch(tx, self)
	}

	if t, ok := DecodeTransferWithMemo(tx.Input); ok {
		return []types.NormalizedTransfer{memoTransfer(tx, tx.To, t, self)}
	}

	if t, ok := DecodeTransfer(tx.Input); ok {
		return []types.NormalizedTransfer{plainTransfer(tx, tx.To, t.To, t.Amount, self)}
	}

	// Fall back to the native value for unrecognized calldata.
	if v, err := hexutil.DecodeBig(tx.Value); err == nil && v.Sign() > 0 {
		return []types.NormalizedTransfer{plainTransfer(tx, "", common.HexToAddress(tx.To), v, self)}
	}

	return nil
}

func normalizeBatch(tx *types.TransactionRecord, self string) []types.NormalizedTransfer {
	var out []types.NormalizedTransfer

	sum := new(big.Int)
	var sumToken string
	var sumRecipient common.Address

	for _, call := range tx.Calls {
		if t, ok := DecodeTransferWithMemo(call.Data); ok {
			out = append(out, memoTransfer(tx, call.To, t, self))
			continue
		}
		if t, ok := DecodeTransfer(call.Data); ok {
			if sum.Sign() == 0 {
				sumToken = call.To
				sumRecipient = t.To
			}
			sum.Add(sum, t.Amount)
		}
	}

	if sum.Sign() > 0 {
		out = append(out, plainTransfer(tx, sumToken, sumRecipient, sum, self))
	}

	return out
}

func memoTransfer(tx *types.TransactionRecord, token string, t *TransferWithMemo, self string) types.NormalizedTransfer {
	n := plainTransfer(tx, token, t.To, t.Amount, self)
	n.Memo = hexutil.Encode(t.Memo[:])
	if ref, ok := DecodeMemo(t.Memo); ok {
		n.Reference = ref
	}
	return n
}

func plainTransfer(tx *types.TransactionRecord, token string, to common.Address, amount *big.Int, self string) types.NormalizedTransfer {
	direction := types.DirectionReceive
	counterparty := tx.From
	if strings.EqualFold(tx.From, self) {
		direction = types.DirectionSend
		counterparty = strings.ToLower(to.Hex())
	}

	return types.NormalizedTransfer{
		TxHash:       tx.Hash,
		Direction:    direction,
		Counterparty: counterparty,
		Amount:       utils.FormatAmountFromBigInt(amount, registry.DecimalsOr(token, registry.DefaultDecimals)),
		Token:        token,
	}
}

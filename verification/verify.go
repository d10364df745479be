// Package verification reconstructs proof-of-payment from public chain
// data: it scans a bounded window of the merchant's transaction history
// for a transfer whose memo matches the one derived from an invoice
// reference.
package verification

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tempopay/checkout/envelope"
	"github.com/tempopay/checkout/invoice"
	"github.com/tempopay/checkout/logger"
	"github.com/tempopay/checkout/registry"
	"github.com/tempopay/checkout/txscan"
	"github.com/tempopay/checkout/types"
	"github.com/tempopay/checkout/utils"
)

// Default scan windows. The matcher is a linear scan with early exit,
// bounded by the fetch window; payments older than the window are
// invisible to it.
const (
	DefaultScanWindow    = 50
	recentPaymentsWindow = 5
	historyWindow        = 10
)

// HistorySource lists an address's transactions, most recent first. The
// recency ordering is a contract this collaborator must guarantee.
type HistorySource interface {
	ListTransactions(ctx context.Context, address string, limit, offset int) (*types.TransactionPage, error)
}

// BlockReader resolves a block number to its Unix timestamp.
type BlockReader interface {
	BlockTimestamp(ctx context.Context, blockNumber string) (int64, error)
}

// EnvelopeSource fetches the raw serialized transaction for batch
// decoding when the history record does not embed the sub-calls.
type EnvelopeSource interface {
	RawTransaction(ctx context.Context, hash string) (string, error)
}

// Matcher performs payment verification scans. It holds no mutable
// state; every check re-derives its result from chain data and is safe
// to run concurrently with itself.
type Matcher struct {
	history HistorySource
	blocks  BlockReader
	raw     EnvelopeSource
	window  int
	log     logger.Logger
}

// NewMatcher creates a matcher over the given collaborators. raw may be
// nil when batch records always embed their calls. A non-positive
// window falls back to DefaultScanWindow; a nil log disables logging.
func NewMatcher(history HistorySource, blocks BlockReader, raw EnvelopeSource, window int, log logger.Logger) *Matcher {
	if window <= 0 {
		window = DefaultScanWindow
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Matcher{
		history: history,
		blocks:  blocks,
		raw:     raw,
		window:  window,
		log:     log,
	}
}

// CheckPayment determines whether a payment matching the reference has
// landed on-chain for the merchant. token narrows the scan to calls
// targeting that contract; pass "" to scan all. A nil error with
// Paid=false is a definitive negative for the current window; an error
// means the scan could not be completed.
func (m *Matcher) CheckPayment(ctx context.Context, merchant, token, reference string) (*types.PaymentMatch, error) {
	want := invoice.Memo(reference)

	page, err := m.history.ListTransactions(ctx, merchant, m.window, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	for i := range page.Transactions {
		tx := &page.Transactions[i]

		// Only calls targeting the token contract can carry the
		// transfer, except batches, whose sub-calls target it instead.
		if token != "" && !strings.EqualFold(tx.To, token) && !tx.IsBatch() {
			continue
		}

		if t, ok := txscan.DecodeTransferWithMemo(tx.Input); ok && m.matches(t, want, merchant) {
			return m.found(ctx, tx, tx.To, t), nil
		}

		if tx.IsBatch() {
			for _, call := range m.batchCalls(ctx, tx) {
				if t, ok := txscan.DecodeTransferWithMemo(call.Data); ok && m.matches(t, want, merchant) {
					return m.found(ctx, tx, call.To, t), nil
				}
			}
		}
	}

	return &types.PaymentMatch{Paid: false}, nil
}

func (m *Matcher) matches(t *txscan.TransferWithMemo, want [32]byte, merchant string) bool {
	return bytes.Equal(t.Memo[:], want[:]) && strings.EqualFold(t.To.Hex(), merchant)
}

// batchCalls returns a batch record's sub-calls, decoding the raw
// envelope when the history record does not embed them. Decode failures
// degrade to an empty list; a single bad record never fails the scan.
func (m *Matcher) batchCalls(ctx context.Context, tx *types.TransactionRecord) []types.Call {
	if len(tx.Calls) > 0 {
		return tx.Calls
	}
	if m.raw == nil {
		return nil
	}

	rawHex, err := m.raw.RawTransaction(ctx, tx.Hash)
	if err != nil {
		m.log.Warn("fetch raw transaction failed", map[string]any{"tx": tx.Hash, "err": err.Error()})
		return nil
	}

	calls, err := envelope.DecodeCalls(rawHex)
	if err != nil {
		m.log.Warn("batch envelope decode failed", map[string]any{"tx": tx.Hash, "err": err.Error()})
		return nil
	}
	return calls
}

// found assembles the positive match. Timestamp resolution failure does
// not fail the match; it degrades to zero.
func (m *Matcher) found(ctx context.Context, tx *types.TransactionRecord, token string, t *txscan.TransferWithMemo) *types.PaymentMatch {
	var timestamp int64
	if m.blocks != nil {
		ts, err := m.blocks.BlockTimestamp(ctx, tx.BlockNumber)
		if err != nil {
			m.log.Warn("block timestamp lookup failed", map[string]any{"block": tx.BlockNumber, "err": err.Error()})
		} else {
			timestamp = ts
		}
	}

	return &types.PaymentMatch{
		Paid:      true,
		TxHash:    tx.Hash,
		From:      tx.From,
		Amount:    utils.FormatAmountFromBigInt(t.Amount, registry.DecimalsOr(token, registry.DefaultDecimals)),
		Token:     token,
		Timestamp: timestamp,
	}
}

// WaitForPayment re-runs CheckPayment on a constant interval until the
// payment lands or ctx is done. Transient scan failures count as "still
// pending" and are retried, never surfaced.
func (m *Matcher) WaitForPayment(ctx context.Context, merchant, token, reference string, interval time.Duration) (*types.PaymentMatch, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	var match *types.PaymentMatch
	pending := fmt.Errorf("payment pending")

	op := func() error {
		result, err := m.CheckPayment(ctx, merchant, token, reference)
		if err != nil {
			m.log.Debug("payment check failed, still pending", map[string]any{"err": err.Error()})
			return pending
		}
		if !result.Paid {
			return pending
		}
		match = result
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return match, nil
}

// RecentPayments scans a small window of an address's history and
// returns every decoded transfer-with-memo, top-level or inside a
// batch, most recent first.
func (m *Matcher) RecentPayments(ctx context.Context, address string) ([]types.RecentPayment, error) {
	page, err := m.history.ListTransactions(ctx, address, recentPaymentsWindow, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	var payments []types.RecentPayment
	for i := range page.Transactions {
		tx := &page.Transactions[i]

		if t, ok := txscan.DecodeTransferWithMemo(tx.Input); ok {
			if p, ok := m.recentPayment(ctx, tx, tx.To, t); ok {
				payments = append(payments, p)
			}
		}

		if tx.IsBatch() {
			for _, call := range m.batchCalls(ctx, tx) {
				if t, ok := txscan.DecodeTransferWithMemo(call.Data); ok {
					if p, ok := m.recentPayment(ctx, tx, call.To, t); ok {
						payments = append(payments, p)
					}
				}
			}
		}
	}
	return payments, nil
}

func (m *Matcher) recentPayment(ctx context.Context, tx *types.TransactionRecord, token string, t *txscan.TransferWithMemo) (types.RecentPayment, bool) {
	ref, ok := txscan.DecodeMemo(t.Memo)
	if !ok {
		return types.RecentPayment{}, false
	}

	var timestamp int64
	if m.blocks != nil {
		if ts, err := m.blocks.BlockTimestamp(ctx, tx.BlockNumber); err == nil {
			timestamp = ts
		}
	}

	return types.RecentPayment{
		TxHash:    tx.Hash,
		From:      tx.From,
		Merchant:  strings.ToLower(t.To.Hex()),
		Amount:    utils.FormatAmountFromBigInt(t.Amount, registry.DecimalsOr(token, registry.DefaultDecimals)),
		Token:     token,
		Reference: ref,
		Memo:      hexutil.Encode(t.Memo[:]),
		Timestamp: timestamp,
	}, true
}

// History returns the normalized transfer view of an address's recent
// activity with per-record block timestamps; timestamp lookup failures
// degrade to zero.
func (m *Matcher) History(ctx context.Context, address string) ([]types.NormalizedTransfer, error) {
	page, err := m.history.ListTransactions(ctx, address, historyWindow, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	var transfers []types.NormalizedTransfer
	for i := range page.Transactions {
		tx := &page.Transactions[i]

		var timestamp int64
		if m.blocks != nil {
			if ts, err := m.blocks.BlockTimestamp(ctx, tx.BlockNumber); err == nil {
				timestamp = ts
			}
		}

		for _, n := range txscan.Normalize(tx, address) {
			n.Timestamp = timestamp
			transfers = append(transfers, n)
		}
	}
	return transfers, nil
}

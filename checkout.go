// Package checkout is the top-level entry point for the Tempo stablecoin
// checkout SDK. It bundles invoice encoding, on-chain payment detection
// and settlement behind a single facade wired from configuration.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tempopay/checkout/clients"
	"github.com/tempopay/checkout/config"
	"github.com/tempopay/checkout/invoice"
	"github.com/tempopay/checkout/metrics"
	"github.com/tempopay/checkout/registry"
	"github.com/tempopay/checkout/settlement"
	"github.com/tempopay/checkout/types"
	"github.com/tempopay/checkout/utils"
	"github.com/tempopay/checkout/verification"
)

// Checkout wires explorer, chain and directory clients into the payment
// matcher and the settlement engine.
type Checkout struct {
	cfg       *config.Config
	chain     *clients.ChainClient
	explorer  *clients.ExplorerClient
	directory *clients.DirectoryClient
	tokens    *clients.TokenClient

	matcher *verification.Matcher
	engine  *settlement.Engine

	recorder metrics.Recorder
	timeout  time.Duration
}

// New dials the chain RPC and assembles a Checkout. The signer is the
// caller's key custodian; pass nil for a read-only instance that can
// verify payments but not settle.
func New(ctx context.Context, cfg *config.Config, signer settlement.Signer, opts ...Option) (*Checkout, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if cfg.Timeout > 0 {
		o.timeout = cfg.Timeout
	}

	chain, err := clients.NewChainClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	explorer := clients.NewExplorerClient(cfg.ExplorerAPIURL, o.httpClient)

	var directory *clients.DirectoryClient
	if cfg.DirectoryURL != "" {
		directory = clients.NewDirectoryClient(cfg.DirectoryURL, o.httpClient)
	}

	tokens, err := clients.NewTokenClient(chain.Eth())
	if err != nil {
		chain.Close()
		return nil, err
	}

	c := &Checkout{
		cfg:       cfg,
		chain:     chain,
		explorer:  explorer,
		directory: directory,
		tokens:    tokens,
		matcher:   verification.NewMatcher(explorer, chain, chain, cfg.ScanWindow, o.log),
		recorder:  o.recorder,
		timeout:   o.timeout,
	}

	if signer != nil {
		dex, err := clients.NewDexClient(chain.Eth(), registry.StablecoinDEX)
		if err != nil {
			chain.Close()
			return nil, err
		}

		engineCfg := settlement.Config{
			ChainID:     cfg.ChainID,
			MaxSlippage: cfg.MaxSlippage,
			Quoter:      dex,
			Signer:      signer,
			Chain:       chain,
			Broadcaster: chain,
			Caches:      o.caches,
			Logger:      o.log,
		}
		if cfg.FeeSponsorURL != "" {
			engineCfg.Sponsor = clients.NewSponsorClient(cfg.FeeSponsorURL, o.httpClient)
		}
		if directory != nil {
			engineCfg.Resolver = directory
		}
		engine, err := settlement.NewEngine(engineCfg)
		if err != nil {
			chain.Close()
			return nil, err
		}
		c.engine = engine
	}

	return c, nil
}

// Close releases the underlying RPC connection.
func (c *Checkout) Close() {
	if c.chain != nil {
		c.chain.Close()
	}
}

func (c *Checkout) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Checkout) observe(op string, start time.Time) {
	c.recorder.ObserveLatency(op, time.Since(start), map[string]string{
		"network": registry.NetworkName,
	})
}

func (c *Checkout) count(event string) {
	c.recorder.IncCounter(event, map[string]string{
		"network": registry.NetworkName,
	})
}

// CheckPayment scans the merchant's recent transactions for a memo
// transfer matching the invoice reference. A nil-error result with
// Paid=false means no matching payment has landed yet.
func (c *Checkout) CheckPayment(ctx context.Context, inv *types.Invoice) (*types.PaymentMatch, error) {
	if inv == nil {
		return nil, &types.CheckoutError{
			Code:    types.ErrInvalidInvoice,
			Message: "invoice is nil",
		}
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	defer c.observe("check_payment", time.Now())

	match, err := c.matcher.CheckPayment(ctx, inv.Merchant, inv.Token, inv.Reference)
	if err != nil {
		c.count("check_payment_error")
		return nil, err
	}
	if match.Paid {
		c.count("payment_detected")
	}
	return match, nil
}

// WaitForPayment polls CheckPayment at the configured interval until a
// matching payment is observed or ctx is cancelled.
func (c *Checkout) WaitForPayment(ctx context.Context, inv *types.Invoice) (*types.PaymentMatch, error) {
	if inv == nil {
		return nil, &types.CheckoutError{
			Code:    types.ErrInvalidInvoice,
			Message: "invoice is nil",
		}
	}
	defer c.observe("wait_for_payment", time.Now())
	return c.matcher.WaitForPayment(ctx, inv.Merchant, inv.Token, inv.Reference, c.cfg.PollInterval)
}

// RecentPayments returns the latest memo-carrying transfers received by
// address, newest first.
func (c *Checkout) RecentPayments(ctx context.Context, address string) ([]types.RecentPayment, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	return c.matcher.RecentPayments(ctx, address)
}

// History returns the address's recent transfers normalized to a flat
// send/receive view.
func (c *Checkout) History(ctx context.Context, address string) ([]types.NormalizedTransfer, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	return c.matcher.History(ctx, address)
}

// Settle pays the invoice from payerToken, swapping through the
// stablecoin DEX when the payer's token differs from the invoice token.
func (c *Checkout) Settle(ctx context.Context, inv *types.Invoice, payerToken string) (*types.SettlementResult, error) {
	if c.engine == nil {
		return nil, &types.CheckoutError{
			Code:    types.ErrConfigError,
			Message: "settlement requires a signer",
		}
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	defer c.observe("settle", time.Now())

	res, err := c.engine.Settle(ctx, inv, payerToken)
	if err != nil {
		c.count("settle_rejected")
		return nil, err
	}
	if res.Status == types.StatusSuccess {
		c.count("settle_success")
	} else {
		c.count("settle_error")
	}
	return res, nil
}

// SendBatch sends token to several recipients in one atomic batch.
// Recipient identifiers may be addresses, emails or phone numbers.
func (c *Checkout) SendBatch(ctx context.Context, recipients []types.BatchRecipient, token string) (*types.SettlementResult, error) {
	if c.engine == nil {
		return nil, &types.CheckoutError{
			Code:    types.ErrConfigError,
			Message: "settlement requires a signer",
		}
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	defer c.observe("send_batch", time.Now())

	return c.engine.SendBatch(ctx, recipients, token)
}

// SettlementResult reports the current settlement state.
func (c *Checkout) SettlementResult() types.SettlementResult {
	if c.engine == nil {
		return types.SettlementResult{Status: types.StatusIdle}
	}
	return c.engine.Result()
}

// ResetSettlement returns a terminal settlement state to idle so a new
// attempt can start. It has no effect while a settlement is in flight.
func (c *Checkout) ResetSettlement() {
	if c.engine != nil {
		c.engine.Reset()
	}
}

// Balance returns the holder's balance of one token, formatted in human
// units per the token's decimals.
func (c *Checkout) Balance(ctx context.Context, token, holder string) (string, error) {
	if c.tokens == nil {
		return "", &types.CheckoutError{
			Code:    types.ErrNetworkError,
			Message: "no chain connection",
		}
	}
	if !common.IsHexAddress(token) || !common.IsHexAddress(holder) {
		return "", &types.CheckoutError{
			Code:    types.ErrUnsupportedToken,
			Message: "token and holder must be hex addresses",
		}
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	raw, err := c.tokens.BalanceOf(ctx, common.HexToAddress(token), common.HexToAddress(holder))
	if err != nil {
		return "", err
	}
	return utils.FormatAmountFromBigInt(raw, registry.DecimalsOr(token, registry.DefaultDecimals)), nil
}

// Balances returns the holder's balance of every listed stablecoin,
// keyed by lowercase token address. A single failing token read fails
// the whole view.
func (c *Checkout) Balances(ctx context.Context, holder string) (map[string]string, error) {
	out := make(map[string]string, len(registry.List()))
	for _, tok := range registry.List() {
		amount, err := c.Balance(ctx, tok.Address, holder)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", tok.Symbol, err)
		}
		out[tok.Address] = amount
	}
	return out, nil
}

// Resolve maps an email or phone identifier to its chain address via
// the directory service.
func (c *Checkout) Resolve(ctx context.Context, identifier string) (common.Address, error) {
	if c.directory == nil {
		return common.Address{}, &types.CheckoutError{
			Code:    types.ErrResolutionFailed,
			Message: "no directory service configured",
		}
	}
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	return c.directory.Resolve(ctx, identifier)
}

// EncodeInvoice serializes an invoice to its URL-safe token form.
func EncodeInvoice(inv *types.Invoice) (string, error) {
	return invoice.Encode(inv)
}

// DecodeInvoice parses a URL-safe invoice token.
func DecodeInvoice(token string) (*types.Invoice, error) {
	return invoice.Decode(token)
}

// BuildPayURL returns the relative checkout URL for an invoice.
func BuildPayURL(inv *types.Invoice) (string, error) {
	return invoice.BuildPayURL(inv)
}

// BuildReceiptURL returns the relative receipt URL for an invoice.
func BuildReceiptURL(inv *types.Invoice) (string, error) {
	return invoice.BuildReceiptURL(inv)
}

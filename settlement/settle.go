// Package settlement drives fulfillment of an invoice from the payer's
// side: a direct transfer-with-memo when payer and merchant use the same
// token, or an atomic approve → swap-exact-output → transfer-with-memo
// batch when they differ.
package settlement

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/tempopay/checkout/envelope"
	"github.com/tempopay/checkout/invoice"
	"github.com/tempopay/checkout/logger"
	"github.com/tempopay/checkout/registry"
	"github.com/tempopay/checkout/txscan"
	"github.com/tempopay/checkout/types"
	"github.com/tempopay/checkout/utils"
)

// DefaultMaxSlippage is the default tolerance applied to exact-output
// swap quotes (0.5%).
const DefaultMaxSlippage = 0.005

// Gas buffers per transaction shape.
const (
	gasBufferSingle    = 1
	gasBufferBatchSend = 2
	gasBufferSwapPay   = 3
)

const approveABI = `
[
  {
    "name": "approve",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "spender", "type": "address" },
      { "name": "amount", "type": "uint256" }
    ],
    "outputs": [
      { "name": "", "type": "bool" }
    ]
  }
]
`

const swapABI = `
[
  {
    "name": "swapExactAmountOut",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "tokenIn", "type": "address" },
      { "name": "tokenOut", "type": "address" },
      { "name": "amountOut", "type": "uint128" },
      { "name": "maxAmountIn", "type": "uint128" }
    ],
    "outputs": [
      { "name": "amountIn", "type": "uint128" }
    ]
  }
]
`

// Quoter answers exact-output swap quotes: how much tokenIn is required
// to produce exactly amountOut of tokenOut. A quote failure is surfaced
// as a settlement error, not retried.
type Quoter interface {
	QuoteExactOutput(ctx context.Context, tokenIn, tokenOut common.Address, amountOut *big.Int) (*big.Int, error)
}

// Signer is the opaque key custodian: it can switch network context and
// sign a 32-byte digest, returning a 65-byte r‖s‖v signature.
type Signer interface {
	Address() common.Address
	SwitchNetwork(ctx context.Context, chainID uint64) error
	Sign(ctx context.Context, digest []byte) ([]byte, error)
}

// ChainReader supplies the transaction parameters read from the chain.
type ChainReader interface {
	EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error)
	SuggestFees(ctx context.Context) (maxFeePerGas, maxPriorityFeePerGas *big.Int, err error)
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
}

// Broadcaster submits a signed raw transaction. A non-nil error carries
// the RPC-level rejection message.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, signedTx string) (string, error)
}

// Sponsor submits a signed transaction through the fee-sponsor service,
// which countersigns as fee payer and broadcasts it. Used on the direct
// transfer path for gasless payments; nil disables sponsorship and the
// payer covers the fee.
type Sponsor interface {
	SponsorTransaction(ctx context.Context, signedTx string) (string, error)
}

// Resolver maps an email or phone identifier to a stable chain address,
// creating the account on first use.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (common.Address, error)
}

// CacheInvalidator is notified after a successful settlement so
// balance/history views can refresh. Implemented by the embedding
// application, not by this package.
type CacheInvalidator interface {
	Invalidate(keys ...string)
}

type noopCaches struct{}

func (noopCaches) Invalidate(...string) {}

// Config wires an Engine's collaborators.
type Config struct {
	ChainID     uint64
	DEX         common.Address
	MaxSlippage float64

	Quoter      Quoter
	Signer      Signer
	Chain       ChainReader
	Broadcaster Broadcaster
	Sponsor     Sponsor
	Resolver    Resolver
	Caches      CacheInvalidator
	Logger      logger.Logger
}

// Engine executes settlements. It enforces at most one in-flight
// settlement at a time: a second Settle while one is pending is rejected
// rather than interleaved, preventing double submission of the same
// payment intent. After a terminal status the engine must be Reset
// before it accepts another attempt.
type Engine struct {
	chainID     uint64
	dex         common.Address
	maxSlippage float64

	quoter      Quoter
	signer      Signer
	chain       ChainReader
	broadcaster Broadcaster
	sponsor     Sponsor
	resolver    Resolver
	caches      CacheInvalidator
	log         logger.Logger

	approve abi.ABI
	swap    abi.ABI

	mu       sync.Mutex
	inFlight bool
	result   types.SettlementResult
}

// NewEngine creates a settlement engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Signer == nil || cfg.Chain == nil || cfg.Broadcaster == nil {
		return nil, &types.CheckoutError{
			Code:    types.ErrConfigError,
			Message: "settlement engine requires a signer, chain reader and broadcaster",
		}
	}

	approve, err := abi.JSON(strings.NewReader(approveABI))
	if err != nil {
		return nil, fmt.Errorf("parse approve ABI: %w", err)
	}
	swap, err := abi.JSON(strings.NewReader(swapABI))
	if err != nil {
		return nil, fmt.Errorf("parse swap ABI: %w", err)
	}

	if cfg.ChainID == 0 {
		cfg.ChainID = registry.ChainID
	}
	if (cfg.DEX == common.Address{}) {
		cfg.DEX = registry.StablecoinDEX
	}
	if cfg.MaxSlippage <= 0 {
		cfg.MaxSlippage = DefaultMaxSlippage
	}
	if cfg.Caches == nil {
		cfg.Caches = noopCaches{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NoopLogger{}
	}

	return &Engine{
		chainID:     cfg.ChainID,
		dex:         cfg.DEX,
		maxSlippage: cfg.MaxSlippage,
		quoter:      cfg.Quoter,
		signer:      cfg.Signer,
		chain:       cfg.Chain,
		broadcaster: cfg.Broadcaster,
		sponsor:     cfg.Sponsor,
		resolver:    cfg.Resolver,
		caches:      cfg.Caches,
		log:         cfg.Logger,
		approve:     approve,
		swap:        swap,
		result:      types.SettlementResult{Status: types.StatusIdle},
	}, nil
}

// Result returns a snapshot of the current state-machine value.
func (e *Engine) Result() types.SettlementResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Reset returns the engine to idle so a failed attempt can be retried
// from the beginning. It has no effect while a settlement is in flight.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inFlight {
		e.result = types.SettlementResult{Status: types.StatusIdle}
	}
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight {
		return &types.CheckoutError{
			Code:    types.ErrSettlementInFlight,
			Message: "a settlement is already in flight",
		}
	}
	if e.result.Status != types.StatusIdle {
		return &types.CheckoutError{
			Code:    types.ErrResetRequired,
			Message: fmt.Sprintf("engine is %s; call Reset before retrying", e.result.Status),
		}
	}

	e.inFlight = true
	e.result = types.SettlementResult{Status: types.StatusBuilding}
	return nil
}

func (e *Engine) setStatus(s types.SettlementStatus) {
	e.mu.Lock()
	e.result.Status = s
	e.mu.Unlock()
}

func (e *Engine) finish(txHash string, err error) *types.SettlementResult {
	e.mu.Lock()
	if err != nil {
		e.result = types.SettlementResult{Status: types.StatusError, Error: err.Error()}
	} else {
		e.result = types.SettlementResult{Status: types.StatusSuccess, TxHash: txHash}
	}
	e.inFlight = false
	result := e.result
	e.mu.Unlock()

	if err == nil {
		e.caches.Invalidate("balance", "multiTokenBalance", "transactionHistory", "paymentStatus")
	}
	return &result
}

// Settle fulfills an invoice, paying with payerToken. The returned
// result mirrors the engine's terminal state for this attempt; step
// failures land in the error status with a human-readable message and
// are never retried automatically.
func (e *Engine) Settle(ctx context.Context, inv *types.Invoice, payerToken string) (*types.SettlementResult, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}

	txHash, err := e.settle(ctx, inv, payerToken)
	if err != nil {
		e.log.Error("settlement failed", map[string]any{"err": err.Error()})
	} else {
		e.log.Info("settlement broadcast", map[string]any{"txHash": txHash})
	}
	return e.finish(txHash, err), nil
}

func (e *Engine) settle(ctx context.Context, inv *types.Invoice, payerToken string) (string, error) {
	if inv == nil {
		return "", fmt.Errorf("invoice is nil")
	}
	if err := utils.Validate().Struct(inv); err != nil {
		return "", fmt.Errorf("invalid invoice: %v", err)
	}
	if !common.IsHexAddress(payerToken) {
		return "", fmt.Errorf("invalid payer token address %q", payerToken)
	}

	merchant := common.HexToAddress(inv.Merchant)
	merchantToken := common.HexToAddress(inv.Token)
	payer := common.HexToAddress(payerToken)

	decimals := registry.DecimalsOr(inv.Token, registry.DefaultDecimals)
	amount, err := utils.ParseAmountWithDecimals(inv.Amount, decimals)
	if err != nil {
		return "", fmt.Errorf("invoice amount: %w", err)
	}
	if amount.Sign() <= 0 {
		return "", fmt.Errorf("invoice amount must be positive")
	}

	if err := e.signer.SwitchNetwork(ctx, e.chainID); err != nil {
		return "", fmt.Errorf("switch network: %w", err)
	}

	memo := invoice.Memo(inv.Reference)

	if strings.EqualFold(payerToken, inv.Token) {
		// Gasless direct transfer: the fee sponsor countersigns and
		// broadcasts when one is configured.
		call := envelope.Call{
			To:   &merchantToken,
			Data: txscan.EncodeTransferWithMemo(merchant, amount, memo),
		}
		return e.submit(ctx, []envelope.Call{call}, payer, gasBufferSingle, e.sponsor != nil)
	}

	// Cross-token: quote the exact-output swap first.
	e.setStatus(types.StatusQuoting)
	if e.quoter == nil {
		return "", fmt.Errorf("no swap venue configured for cross-token payment")
	}
	quote, err := e.quoter.QuoteExactOutput(ctx, payer, merchantToken, amount)
	if err != nil {
		return "", fmt.Errorf("swap quote: %w", err)
	}
	if quote == nil || quote.Sign() <= 0 {
		return "", fmt.Errorf("no liquidity for %s -> %s", payerToken, inv.Token)
	}
	maxAmountIn := applySlippage(quote, e.maxSlippage)

	e.setStatus(types.StatusBuilding)

	approveData, err := e.approve.Pack("approve", e.dex, maxAmountIn)
	if err != nil {
		return "", fmt.Errorf("build approve call: %w", err)
	}
	swapData, err := e.swap.Pack("swapExactAmountOut", payer, merchantToken, amount, maxAmountIn)
	if err != nil {
		return "", fmt.Errorf("build swap call: %w", err)
	}

	dex := e.dex
	calls := []envelope.Call{
		{To: &payer, Data: approveData},
		{To: &dex, Data: swapData},
		{To: &merchantToken, Data: txscan.EncodeTransferWithMemo(merchant, amount, memo)},
	}

	return e.submit(ctx, calls, payer, gasBufferSwapPay, false)
}

// SendBatch transfers token to several recipients atomically, resolving
// each identifier through the wallet directory.
func (e *Engine) SendBatch(ctx context.Context, recipients []types.BatchRecipient, token string) (*types.SettlementResult, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}

	txHash, err := e.sendBatch(ctx, recipients, token)
	if err != nil {
		e.log.Error("batch send failed", map[string]any{"err": err.Error()})
	}
	return e.finish(txHash, err), nil
}

func (e *Engine) sendBatch(ctx context.Context, recipients []types.BatchRecipient, token string) (string, error) {
	if len(recipients) == 0 {
		return "", fmt.Errorf("no recipients")
	}
	if e.resolver == nil {
		return "", fmt.Errorf("no wallet directory configured")
	}
	if !common.IsHexAddress(token) {
		return "", fmt.Errorf("invalid token address %q", token)
	}

	tokenAddr := common.HexToAddress(token)
	decimals := registry.DecimalsOr(token, registry.DefaultDecimals)

	if err := e.signer.SwitchNetwork(ctx, e.chainID); err != nil {
		return "", fmt.Errorf("switch network: %w", err)
	}

	calls := make([]envelope.Call, 0, len(recipients))
	for _, r := range recipients {
		addr, err := e.resolver.Resolve(ctx, r.Identifier)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", r.Identifier, err)
		}
		amount, err := utils.ParseAmountWithDecimals(r.Amount, decimals)
		if err != nil {
			return "", fmt.Errorf("amount for %q: %w", r.Identifier, err)
		}
		to := tokenAddr
		calls = append(calls, envelope.Call{
			To:   &to,
			Data: txscan.EncodeTransfer(addr, amount),
		})
	}

	return e.submit(ctx, calls, tokenAddr, gasBufferBatchSend, false)
}

// submit assembles, signs and broadcasts the envelope carrying calls,
// with feeToken as the fee-payment currency. When sponsored, the signed
// transaction goes to the fee-sponsor service instead of the chain RPC
// and the sponsor pays the fee.
func (e *Engine) submit(ctx context.Context, calls []envelope.Call, feeToken common.Address, gasBuffer uint64, sponsored bool) (string, error) {
	from := e.signer.Address()

	gas, err := e.chain.EstimateGas(ctx, from, *calls[0].To, calls[0].Data)
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}
	maxFee, maxPriority, err := e.chain.SuggestFees(ctx)
	if err != nil {
		return "", fmt.Errorf("fee data: %w", err)
	}
	nonce, err := e.chain.PendingNonce(ctx, from)
	if err != nil {
		return "", fmt.Errorf("account nonce: %w", err)
	}

	env := &envelope.Envelope{
		ChainID:              e.chainID,
		Nonce:                nonce,
		MaxPriorityFeePerGas: maxPriority,
		MaxFeePerGas:         maxFee,
		Gas:                  gas * gasBuffer,
		FeeToken:             feeToken,
		Calls:                calls,
	}

	e.setStatus(types.StatusSigning)

	rawSig, err := e.signer.Sign(ctx, env.SignPayload())
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	sig, err := envelope.ParseSignature(rawSig)
	if err != nil {
		return "", err
	}
	signedTx, err := env.Serialize(sig)
	if err != nil {
		return "", err
	}

	e.setStatus(types.StatusBroadcasting)

	if sponsored {
		txHash, err := e.sponsor.SponsorTransaction(ctx, signedTx)
		if err != nil {
			return "", fmt.Errorf("sponsor broadcast: %w", err)
		}
		return txHash, nil
	}

	txHash, err := e.broadcaster.SendRawTransaction(ctx, signedTx)
	if err != nil {
		return "", fmt.Errorf("broadcast: %w", err)
	}
	return txHash, nil
}

// applySlippage raises an exact-output quote to the maximum-input
// ceiling: quote × ⌊(1+slippage)×10000⌋ / 10000 in basis points.
func applySlippage(quote *big.Int, slippage float64) *big.Int {
	factor := decimal.NewFromFloat(1 + slippage).
		Mul(decimal.NewFromInt(10000)).
		Floor().
		BigInt()
	out := new(big.Int).Mul(quote, factor)
	return out.Div(out, big.NewInt(10000))
}

// Package types defines the shared data model of the checkout SDK.
package types

// Invoice is an immutable payment intent created by the merchant. It is
// portable as a URL-safe token; the encoded token is the only source of
// truth, there is no server-side persistence.
type Invoice struct {
	// Merchant wallet address (20-byte hex).
	Merchant string `json:"merchant" validate:"required,eth_addr"`

	// Amount in human-readable units (e.g. "50.00"), not base units.
	Amount string `json:"amount" validate:"required"`

	// Token contract address the merchant wants to receive.
	Token string `json:"token" validate:"required,eth_addr"`

	// Free-text description (e.g. "Web design services").
	Description string `json:"description"`

	// Reference is the merchant-chosen unique id (e.g. "INV-001"). It is
	// the source of the on-chain memo; two invoices sharing a reference are
	// indistinguishable on-chain. Should fit in 32 UTF-8 bytes.
	Reference string `json:"reference" validate:"required"`

	// Optional merchant display name.
	MerchantName string `json:"merchantName,omitempty"`
}

// TokenInfo describes a settlement currency.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// TxTypeBatch is the typed-transaction marker for atomic multi-call
// batches.
const TxTypeBatch = "0x76"

// Call is one sub-call of a batched transaction, as reported by the
// explorer or decoded from the raw envelope.
type Call struct {
	To    string `json:"to"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
}

// TransactionRecord is a raw transaction as returned by the transaction
// history collaborator. Calls is populated only for the batched shape.
type TransactionRecord struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	BlockNumber string `json:"blockNumber"`
	Input       string `json:"input"`
	Value       string `json:"value"`
	Type        string `json:"type,omitempty"`
	Calls       []Call `json:"calls,omitempty"`
}

// IsBatch reports whether the record is a batched multi-call transaction.
func (t *TransactionRecord) IsBatch() bool {
	return t.Type == TxTypeBatch
}

// TransactionPage is one recency-ordered page of an address's history.
type TransactionPage struct {
	Transactions []TransactionRecord `json:"transactions"`
	Total        int                 `json:"total"`
	HasMore      bool                `json:"hasMore"`
	Error        string              `json:"error,omitempty"`
}

// Direction of a transfer relative to the address being inspected.
type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
)

// NormalizedTransfer is the canonical view of one recognized token
// transfer, derived from raw calldata. Never persisted; recomputed on
// every fetch.
type NormalizedTransfer struct {
	TxHash       string    `json:"txHash"`
	Direction    Direction `json:"direction"`
	Counterparty string    `json:"counterparty"`
	// Amount in human units, formatted per the 6-decimal convention.
	Amount string `json:"amount"`
	Token  string `json:"token,omitempty"`
	// Memo is the raw bytes32 memo hex, empty when absent.
	Memo string `json:"memo,omitempty"`
	// Reference decoded from the memo, empty when none.
	Reference string `json:"reference,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PaymentMatch is the ephemeral result of a proof-of-payment scan.
type PaymentMatch struct {
	Paid      bool   `json:"paid"`
	TxHash    string `json:"txHash,omitempty"`
	From      string `json:"from,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Token     string `json:"token,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// RecentPayment is one decoded transfer-with-memo observed in an
// address's recent history.
type RecentPayment struct {
	TxHash    string `json:"txHash"`
	From      string `json:"from"`
	Merchant  string `json:"merchant"`
	Amount    string `json:"amount"`
	Token     string `json:"token"`
	Reference string `json:"reference"`
	Memo      string `json:"memo"`
	Timestamp int64  `json:"timestamp"`
}

// SettlementStatus is the observable step of a settlement attempt.
// The machine runs a single forward path; error returns to idle only
// through an explicit reset.
type SettlementStatus string

const (
	StatusIdle         SettlementStatus = "idle"
	StatusQuoting      SettlementStatus = "quoting"
	StatusBuilding     SettlementStatus = "building"
	StatusSigning      SettlementStatus = "signing"
	StatusBroadcasting SettlementStatus = "broadcasting"
	StatusSuccess      SettlementStatus = "success"
	StatusError        SettlementStatus = "error"
)

// SettlementResult is the state-machine value exposed to callers.
type SettlementResult struct {
	Status SettlementStatus `json:"status"`
	TxHash string           `json:"txHash,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// BatchRecipient is one payee of a batched send, addressed by an email
// or phone identifier resolved through the wallet directory.
type BatchRecipient struct {
	Identifier string `json:"identifier" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
}

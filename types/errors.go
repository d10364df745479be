package types

// CheckoutError is a typed error carrying a stable string code.
type CheckoutError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *CheckoutError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrInvalidInvoice     = "INVALID_INVOICE"
	ErrInvalidAmount      = "INVALID_AMOUNT"
	ErrUnsupportedToken   = "UNSUPPORTED_TOKEN"
	ErrQuoteFailed        = "QUOTE_FAILED"
	ErrSettlementFailed   = "SETTLEMENT_FAILED"
	ErrSettlementInFlight = "SETTLEMENT_IN_FLIGHT"
	ErrResetRequired      = "RESET_REQUIRED"
	ErrVerificationFailed = "VERIFICATION_FAILED"
	ErrResolutionFailed   = "RESOLUTION_FAILED"
	ErrNetworkError       = "NETWORK_ERROR"
	ErrConfigError        = "CONFIG_ERROR"
)

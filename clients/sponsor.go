package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tempopay/checkout/types"
)

// SponsorClient submits signed transactions to the fee-sponsor service,
// which countersigns as fee payer and broadcasts them. Direct transfers
// go through it for gasless payments.
type SponsorClient struct {
	baseURL string
	http    *http.Client
}

// NewSponsorClient creates a sponsor client for the given base URL.
func NewSponsorClient(baseURL string, httpClient *http.Client) *SponsorClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &SponsorClient{baseURL: baseURL, http: httpClient}
}

// SponsorTransaction submits a signed raw transaction for sponsored
// broadcast and returns the transaction hash.
func (s *SponsorClient) SponsorTransaction(ctx context.Context, signedTx string) (string, error) {
	body, err := json.Marshal(map[string]string{"transaction": signedTx})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sponsor", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sponsor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &types.CheckoutError{
			Code:    types.ErrSettlementFailed,
			Message: fmt.Sprintf("sponsor returned %s", resp.Status),
		}
	}

	var payload struct {
		TxHash string `json:"txHash"`
		Error  string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode sponsor response: %w", err)
	}
	if payload.Error != "" {
		return "", &types.CheckoutError{
			Code:    types.ErrSettlementFailed,
			Message: payload.Error,
		}
	}
	if !strings.HasPrefix(payload.TxHash, "0x") {
		return "", &types.CheckoutError{
			Code:    types.ErrSettlementFailed,
			Message: fmt.Sprintf("sponsor returned invalid tx hash %q", payload.TxHash),
		}
	}

	return payload.TxHash, nil
}

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tempopay/checkout/types"
)

// DirectoryClient resolves email or phone identifiers to chain
// addresses through the wallet directory service. Resolution is an
// idempotent upsert: an unknown identifier gets an account created on
// first use and returns the same address thereafter.
type DirectoryClient struct {
	baseURL string
	http    *http.Client
}

// NewDirectoryClient creates a directory client for the given base URL.
func NewDirectoryClient(baseURL string, httpClient *http.Client) *DirectoryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &DirectoryClient{baseURL: baseURL, http: httpClient}
}

// Resolve maps an identifier to its stable chain address.
func (d *DirectoryClient) Resolve(ctx context.Context, identifier string) (common.Address, error) {
	body, err := json.Marshal(map[string]string{"identifier": identifier})
	if err != nil {
		return common.Address{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/find", bytes.NewReader(body))
	if err != nil {
		return common.Address{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return common.Address{}, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.Address{}, &types.CheckoutError{
			Code:    types.ErrResolutionFailed,
			Message: fmt.Sprintf("directory returned %s", resp.Status),
		}
	}

	var payload struct {
		Address string `json:"address"`
		Error   string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return common.Address{}, fmt.Errorf("decode directory response: %w", err)
	}
	if payload.Error != "" {
		return common.Address{}, &types.CheckoutError{
			Code:    types.ErrResolutionFailed,
			Message: payload.Error,
		}
	}
	if !common.IsHexAddress(payload.Address) {
		return common.Address{}, &types.CheckoutError{
			Code:    types.ErrResolutionFailed,
			Message: fmt.Sprintf("directory returned invalid address %q", payload.Address),
		}
	}

	return common.HexToAddress(payload.Address), nil
}

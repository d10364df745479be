// Package clients implements the external collaborators the checkout
// core consumes: the explorer history API, the chain JSON-RPC endpoint,
// the stablecoin DEX precompile, and the wallet directory.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tempopay/checkout/types"
)

// ExplorerClient reads an address's transaction history from the block
// explorer API. Pages are recency-ordered, a contract the matcher's
// first-match-wins scan relies on.
type ExplorerClient struct {
	baseURL string
	http    *http.Client
}

// NewExplorerClient creates an explorer client for the given API base
// URL (e.g. "https://explore.tempo.xyz/api"). A nil httpClient uses a
// default with a 15s timeout.
func NewExplorerClient(baseURL string, httpClient *http.Client) *ExplorerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &ExplorerClient{baseURL: baseURL, http: httpClient}
}

// ListTransactions fetches one page of an address's history, most
// recent first.
func (c *ExplorerClient) ListTransactions(ctx context.Context, address string, limit, offset int) (*types.TransactionPage, error) {
	u, err := url.Parse(fmt.Sprintf("%s/address/%s", c.baseURL, address))
	if err != nil {
		return nil, fmt.Errorf("explorer url: %w", err)
	}
	q := u.Query()
	q.Set("include", "all")
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("offset", fmt.Sprintf("%d", offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.CheckoutError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("explorer returned %s", resp.Status),
		}
	}

	var page types.TransactionPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode explorer response: %w", err)
	}
	if page.Error != "" {
		return nil, &types.CheckoutError{
			Code:    types.ErrNetworkError,
			Message: page.Error,
		}
	}
	return &page, nil
}

package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/stoksync/stoksync/internal/settings"
)

const (
	productionBaseURL = "https://api.tgoapis.com"
	stagingBaseURL    = "https://stageapi.tgoapis.com"

	userAgent = "stoksync/1.0"
	pageSize  = 200
)

// Client wraps interactions with the marketplace grocery API.
type Client struct {
	baseURL    string
	supplierID string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption customises the client.
type ClientOption func(*Client)

// WithBaseURL overrides the resolved base URL, used by tests.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) { c.baseURL = base }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient constructs a client from the stored marketplace credentials.
// Test mode switches to the staging environment.
func NewClient(cfg settings.MarketplaceConfig, logger *slog.Logger, opts ...ClientOption) *Client {
	base := productionBaseURL
	if cfg.TestMode {
		base = stagingBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    base,
		supplierID: cfg.SupplierID,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		httpClient: &http.Client{Timeout: 45 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitBatch sends one group of stock/price updates. The marketplace
// answers with an opaque batch request id used for later polling.
func (c *Client) SubmitBatch(ctx context.Context, items []ItemUpdate) (SubmitResult, error) {
	if len(items) == 0 {
		return SubmitResult{}, ErrEmptyBatch
	}
	endpoint := fmt.Sprintf("/integrator/product/grocery/suppliers/%s/products/price-and-inventory", c.supplierID)
	payload := struct {
		Items []ItemUpdate `json:"items"`
	}{Items: items}

	var result SubmitResult
	if err := c.do(ctx, http.MethodPost, endpoint, nil, payload, &result); err != nil {
		return SubmitResult{}, err
	}
	return result, nil
}

// PollBatch queries the state of a previously submitted batch once.
func (c *Client) PollBatch(ctx context.Context, batchID string) (*BatchStatus, error) {
	endpoint := fmt.Sprintf("/integrator/product/grocery/suppliers/%s/batch-requests/%s", c.supplierID, batchID)
	var status BatchStatus
	if err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// TestConnection verifies the credentials against the warehouses endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	endpoint := fmt.Sprintf("/integrator/suppliers/%s/warehouses", c.supplierID)
	var warehouses []json.RawMessage
	return c.do(ctx, http.MethodGet, endpoint, nil, nil, &warehouses)
}

// Categories walks the paged category listing and returns all pages merged.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	all := []Category{}
	for page := 0; ; page++ {
		params := url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(pageSize)}}
		var categories []Category
		if err := c.do(ctx, http.MethodGet, "/integrator/product/grocery/categories", params, nil, &categories); err != nil {
			return nil, err
		}
		all = append(all, categories...)
		if len(categories) < pageSize {
			return all, nil
		}
	}
}

// Brands walks the paged brand listing and returns all pages merged.
func (c *Client) Brands(ctx context.Context) ([]Brand, error) {
	all := []Brand{}
	for page := 0; ; page++ {
		params := url.Values{"page": {strconv.Itoa(page)}, "size": {strconv.Itoa(pageSize)}}
		var result struct {
			Brands []Brand `json:"brands"`
		}
		if err := c.do(ctx, http.MethodGet, "/integrator/product/grocery/brands", params, nil, &result); err != nil {
			return nil, err
		}
		all = append(all, result.Brands...)
		if len(result.Brands) < pageSize {
			return all, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, payload, target any) error {
	full := c.baseURL + endpoint
	if len(params) > 0 {
		full += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marketplace: encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("x-api-secret-key", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("marketplace: request %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("marketplace: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("marketplace api error",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode))
		return fmt.Errorf("marketplace: %s returned status %d", endpoint, resp.StatusCode)
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("marketplace: decode response: %w", err)
	}
	return nil
}

// Package hubspot searches deals through the HubSpot CRM v3 API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matsen/funnelvision/internal/deal"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the HubSpot API base URL.
	BaseURL = "https://api.hubapi.com"

	// DealSearchPath is the deal search endpoint.
	DealSearchPath = "/crm/v3/objects/deals/search"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit stays under the search API's per-account request rate.
	RateLimit = 4.0

	// MaxSearchLimit is the largest page the search endpoint returns.
	MaxSearchLimit = 200
)

// Client is a rate-limited HTTP client for the HubSpot deal search API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithRateLimit overrides the request rate (requests per second).
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a HubSpot client authenticated with a private app token.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: access token is required", ErrAuthError)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		token:      token,
		baseURL:    BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// errorBody is the JSON error body HubSpot returns on failure.
type errorBody struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	Category      string `json:"category"`
	CorrelationID string `json:"correlationId"`
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response) error {
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	}
	if resp.StatusCode == 429 {
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Category:   "api_error",
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		var body errorBody
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			apiErr.Category = body.Category
			apiErr.Message = body.Message
			apiErr.CorrelationID = body.CorrelationID
		}
		return apiErr
	}
	return nil
}

// Search runs a single deal search. It implements deal.Searcher.
func (c *Client) Search(ctx context.Context, f deal.Filter) ([]deal.Deal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(buildSearchRequest(f))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+DealSearchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp); err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: parsing search results: %v", ErrInvalidResponse, err)
	}

	deals := make([]deal.Deal, 0, len(result.Results))
	for _, r := range result.Results {
		deals = append(deals, r.toDeal())
	}
	return deals, nil
}

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultConcurrency caps in-flight requests per client instance.
const DefaultConcurrency = 10

// envelope is the platform's uniform JSON response wrapper. code 0 means
// success; anything else is a business-level failure.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ClientConfig configures a platform API client.
type ClientConfig struct {
	BaseURL     string
	AccessToken string
	Concurrency int
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Client issues authenticated requests against a platform REST API with a
// hard cap on concurrent calls. One instance is shared by all callers
// collecting for the same account.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client

	// permits is a fixed-capacity slot channel: a send acquires a slot, a
	// receive releases it. Waiters select against done so Close never leaves
	// a caller blocked.
	permits chan struct{}
	done    chan struct{}
	once    sync.Once

	logger *zap.Logger
}

// NewClient constructs a client. A nil HTTP client falls back to a 30s
// timeout default; a non-positive concurrency falls back to DefaultConcurrency.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient:  httpClient,
		permits:     make(chan struct{}, concurrency),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Request acquires a concurrency slot, issues the HTTP call, and returns the
// envelope payload. Failures are typed: *TransportError for network errors,
// *HTTPError for non-2xx statuses, *APILogicError for non-zero envelope
// codes, ErrClientClosed after Close.
func (c *Client) Request(ctx context.Context, method, endpoint string, params url.Values) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, ErrClientClosed
	default:
	}

	select {
	case c.permits <- struct{}{}:
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		return nil, &TransportError{Err: ctx.Err()}
	}
	defer func() { <-c.permits }()

	return c.do(ctx, method, endpoint, params)
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		reqURL = reqURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Access-Token", c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Code != 0 {
		return nil, &APILogicError{Code: env.Code, Message: env.Message}
	}
	return env.Data, nil
}

// Close releases the underlying transport and wakes every caller still
// waiting for a slot. Subsequent requests fail with ErrClientClosed.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.httpClient.CloseIdleConnections()
	})
}

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Boundary errors of the storage network gateway
var (
	// ErrNotFound means no content exists at the requested address
	ErrNotFound = errors.New("content not found")
	// ErrTooLarge means the payload exceeds the network's declared size bound
	ErrTooLarge = errors.New("payload exceeds storage size limit")
	// ErrCapacity means the network has no capacity for the write
	ErrCapacity = errors.New("storage network out of capacity")
	// ErrProviderUnavailable means no storage provider could serve the call
	ErrProviderUnavailable = errors.New("storage provider unavailable")
)

// PutResult is the outcome of a successful storage write
type PutResult struct {
	Address     string // content address derived from the stored bytes
	ProviderRef string // opaque reference to the provider that served the write
}

// putResponse is the wire format of the gateway's write response
type putResponse struct {
	Address  string `json:"address"`
	Provider string `json:"provider"`
}

// Client talks to the storage network through its HTTP gateway.
//
// The gateway contract this client relies on: put is idempotent for identical
// bytes and always derives the same address from the same content, so
// re-attempting a write after a failure is safe.
type Client struct {
	endpoint     string
	maxBlobBytes int64
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient creates a new storage gateway client
func NewClient(endpoint string, maxBlobBytes int64, requestTimeout time.Duration, logger *zap.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("storage gateway endpoint cannot be empty")
	}
	if maxBlobBytes <= 0 {
		return nil, fmt.Errorf("max blob size must be positive")
	}

	return &Client{
		endpoint:     endpoint,
		maxBlobBytes: maxBlobBytes,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger.Named("storage"),
	}, nil
}

// MaxBlobBytes returns the declared size bound of the storage network
func (c *Client) MaxBlobBytes() int64 {
	return c.maxBlobBytes
}

// Put writes a payload to the storage network and returns its content address.
// Metadata entries travel as X-Blob-Meta-* headers.
//
// API endpoint: POST {endpoint}/v1/blobs
func (c *Client) Put(ctx context.Context, data []byte, metadata map[string]string) (*PutResult, error) {
	if int64(len(data)) > c.maxBlobBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), c.maxBlobBytes)
	}

	reqURL := fmt.Sprintf("%s/v1/blobs", c.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	for key, value := range metadata {
		req.Header.Set("X-Blob-Meta-"+key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if err := c.checkWriteStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result putResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Address == "" {
		return nil, fmt.Errorf("gateway returned empty content address")
	}

	c.logger.Debug("Blob stored",
		zap.String("address", result.Address),
		zap.String("provider", result.Provider),
		zap.Int("size_bytes", len(data)))

	return &PutResult{Address: result.Address, ProviderRef: result.Provider}, nil
}

// Get retrieves the payload stored at a content address.
//
// API endpoint: GET {endpoint}/v1/blobs/{address}
func (c *Client) Get(ctx context.Context, address string) ([]byte, error) {
	if address == "" {
		return nil, fmt.Errorf("content address cannot be empty")
	}

	reqURL := fmt.Sprintf("%s/v1/blobs/%s", c.endpoint, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrProviderUnavailable, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading blob body: %v", ErrProviderUnavailable, err)
	}

	return data, nil
}

// Health checks that the gateway is reachable.
//
// API endpoint: GET {endpoint}/v1/health
func (c *Client) Health(ctx context.Context) error {
	reqURL := fmt.Sprintf("%s/v1/health", c.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gateway health returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	return nil
}

// checkWriteStatus maps gateway write responses to the boundary errors
func (c *Client) checkWriteStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusRequestEntityTooLarge:
		return ErrTooLarge
	case http.StatusInsufficientStorage:
		return ErrCapacity
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: gateway returned status %d", ErrProviderUnavailable, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}
}

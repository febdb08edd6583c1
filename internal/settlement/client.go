package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cosmossdk.io/math"
)

// QueryError wraps a transient failure while querying the settlement system.
// Callers treat it as retryable; the watcher keeps polling through them.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("settlement status query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// TransferStatus is one observation of a settlement transfer.
//
// Executed means the settlement system processed the transfer; Fulfilled
// means destination-side funds landed with the recipient. Both flags are
// monotonic on the settlement side: once observed true they never go back.
type TransferStatus struct {
	Executed    bool
	Fulfilled   bool
	Recipient   string
	AmountIn    math.Int
	AmountOut   math.Int
	RequestedAt time.Time
}

// statusResponse is the wire format of the settlement status API
type statusResponse struct {
	Executed    bool      `json:"executed"`
	Fulfilled   bool      `json:"fulfilled"`
	Recipient   string    `json:"recipient"`
	AmountIn    string    `json:"amount_in"`
	AmountOut   string    `json:"amount_out"`
	RequestedAt time.Time `json:"requested_at"`
}

// Client queries the settlement system's status API over HTTP
type Client struct {
	apiEndpoint string
	httpClient  *http.Client
}

// NewClient creates a new settlement status client
func NewClient(apiEndpoint string) (*Client, error) {
	if apiEndpoint == "" {
		return nil, fmt.Errorf("settlement API endpoint cannot be empty")
	}

	return &Client{
		apiEndpoint: apiEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Status queries the current status of a transfer request.
//
// Network failures and 5xx responses come back as *QueryError; a 404 or a
// malformed body is also reported through *QueryError since the settlement
// system may simply not have indexed the transfer yet.
//
// API endpoint: GET {apiEndpoint}/v1/transfers/{transferRef}/status
func (c *Client) Status(ctx context.Context, transferRef string) (*TransferStatus, error) {
	if transferRef == "" {
		return nil, fmt.Errorf("transfer reference cannot be empty")
	}

	reqURL := fmt.Sprintf("%s/v1/transfers/%s/status", c.apiEndpoint, url.PathEscape(transferRef))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &QueryError{Err: fmt.Errorf("settlement API returned status %d: %s", resp.StatusCode, string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &QueryError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var result statusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &QueryError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	status := &TransferStatus{
		Executed:    result.Executed,
		Fulfilled:   result.Fulfilled,
		Recipient:   result.Recipient,
		AmountIn:    math.ZeroInt(),
		AmountOut:   math.ZeroInt(),
		RequestedAt: result.RequestedAt,
	}

	if result.AmountIn != "" {
		amountIn, ok := math.NewIntFromString(result.AmountIn)
		if !ok {
			return nil, &QueryError{Err: fmt.Errorf("invalid amount_in in response: %s", result.AmountIn)}
		}
		status.AmountIn = amountIn
	}

	if result.AmountOut != "" {
		amountOut, ok := math.NewIntFromString(result.AmountOut)
		if !ok {
			return nil, &QueryError{Err: fmt.Errorf("invalid amount_out in response: %s", result.AmountOut)}
		}
		status.AmountOut = amountOut
	}

	return status, nil
}

// Close closes the HTTP client (no-op since HTTP client doesn't need closing)
func (c *Client) Close() error {
	return nil
}

// Package celestial wraps the celestial-data web API behind the fixed tool
// catalog exposed by the bridge's tool provider. The service itself is
// opaque: responses are JSON documents that are passed through verbatim.
package celestial

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public developer gateway for the celestial engine.
const DefaultBaseURL = "https://nonlive-developer-gateway.admiralty.co.uk/celestial-engine"

// subscriptionHeader carries the gateway subscription key when configured.
const subscriptionHeader = "Ocp-Apim-Subscription-Key"

// requestTimeout bounds every call to the remote service. Expiry surfaces as
// an invocation failure, not a retried request.
const requestTimeout = 30 * time.Second

// Client issues GET requests against the celestial-data service.
type Client struct {
	baseURL         string
	subscriptionKey string
	httpClient      *http.Client
	logger          zerolog.Logger
}

// NewClient constructs a service client. An empty baseURL falls back to the
// public gateway; an empty subscription key omits the header.
func NewClient(baseURL, subscriptionKey string, logger zerolog.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL:         base,
		subscriptionKey: subscriptionKey,
		httpClient:      &http.Client{Timeout: requestTimeout},
		logger:          logger,
	}
}

// Get fetches an endpoint and returns the response body re-indented as
// pretty-printed JSON. Non-2xx responses and malformed bodies are errors.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (string, error) {
	target := c.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("celestial: build request: %w", err)
	}
	if c.subscriptionKey != "" {
		req.Header.Set(subscriptionHeader, c.subscriptionKey)
	}

	c.logger.Debug().Str("endpoint", endpoint).Msg("requesting celestial data")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("celestial: request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("celestial: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("celestial: %s returned %s: %s", endpoint, resp.Status, strings.TrimSpace(string(body)))
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return "", fmt.Errorf("celestial: %s returned invalid JSON: %w", endpoint, err)
	}
	return buf.String(), nil
}

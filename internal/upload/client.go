package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/claude/veloplan/internal/ingest"
)

// Client sends activity batches to the VeloPlan server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new HTTP client for the VeloPlan server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SendPayload POSTs a batch to the server's import endpoint.
// Retries up to 3 times with exponential backoff on failure.
func (c *Client) SendPayload(payload ingest.Payload) (*ingest.Result, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost,
			c.serverURL+"/api/v1/activities/import", bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			var result ingest.Result
			if err := json.Unmarshal(body, &result); err != nil {
				return nil, fmt.Errorf("decoding import result: %w", err)
			}
			return &result, nil
		}
		lastErr = fmt.Errorf("import failed (status %d): %s", resp.StatusCode, body)

		// Client errors will not get better on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}

	return nil, fmt.Errorf("sending payload: %w", lastErr)
}

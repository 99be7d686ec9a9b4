package sync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/claude/healthbridge/internal/models"
)

// BatchResult mirrors the server's batch response without importing the
// server package (which would pull in chi and the AWS clients).
type BatchResult struct {
	Status    string               `json:"status"`
	Processed int                  `json:"processed"`
	Failed    int                  `json:"failed"`
	Stored    models.StoredRecords `json:"stored_records"`
	Errors    []models.BatchError  `json:"errors,omitempty"`
}

// Client sends payloads to the HealthBridge server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new HTTP client for the HealthBridge server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SendBatch POSTs a batch of health data requests to the server.
// Retries up to 3 times with exponential backoff on failure.
func (c *Client) SendBatch(items []json.RawMessage) (*BatchResult, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshaling batch: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost,
			c.serverURL+"/api/v1/health/health-data/batch",
			bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("creating batch request: %w", err)
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
			var result BatchResult
			if err := json.Unmarshal(body, &result); err != nil {
				return nil, fmt.Errorf("decoding batch response: %w", err)
			}
			return &result, nil
		}
		lastErr = fmt.Errorf("batch failed (status %d): %s", resp.StatusCode, body)
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

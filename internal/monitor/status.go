package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	v1 "github.com/fyrsmithlabs/ragd/pkg/api/v1"
)

// StatusClient polls the ragd status endpoint.
type StatusClient struct {
	baseURL string
	client  *http.Client
}

// NewStatusClient creates a status client for a ragd base URL.
func NewStatusClient(baseURL string) *StatusClient {
	return &StatusClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Status fetches one status snapshot.
func (c *StatusClient) Status(ctx context.Context) (v1.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/status", nil)
	if err != nil {
		return v1.StatusResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return v1.StatusResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return v1.StatusResponse{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var status v1.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return v1.StatusResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return status, nil
}

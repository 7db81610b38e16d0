// internal/extract/service.go
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ServiceConfig holds configuration for the external extraction service.
type ServiceConfig struct {
	// BaseURL is the base URL of the extraction sidecar.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds a single extraction call. PDF and OCR extraction is
	// slow; default 30s.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c ServiceConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrExtraction)
	}
	return nil
}

// Service calls an external PDF/OCR extraction sidecar.
type Service struct {
	config ServiceConfig
	client *http.Client
}

// NewService creates an extraction service client.
func NewService(config ServiceConfig) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Service{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// extractRequest is the request body for the extract endpoint.
type extractRequest struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"` // base64 via encoding/json
}

// extractResponse is the response body from the extract endpoint.
type extractResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Extract sends the payload to the extraction service and returns its text.
func (s *Service) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrExtraction)
	}

	body, err := json.Marshal(extractRequest{
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnsupportedMediaType {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrExtraction, resp.StatusCode, string(respBody))
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrExtraction, out.Error)
	}
	if out.Text == "" {
		return "", fmt.Errorf("%w: service returned no text", ErrExtraction)
	}
	return out.Text, nil
}

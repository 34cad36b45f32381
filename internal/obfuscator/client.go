// Package obfuscator is the HTTP client for the external obfuscation
// engine. The engine is a collaborator: this service only decides
// whether a call is allowed and pays for it; the transform itself
// happens remotely.
package obfuscator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/script-licensing-service/internal/metrics"
)

// Client calls the obfuscation engine with a bounded per-call timeout.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an engine client. The timeout bounds every call,
// including ones running on detached contexts after a caller disconnect.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type obfuscateRequest struct {
	Code  string `json:"code"`
	Level string `json:"level"`
}

type obfuscateResponse struct {
	Code  string `json:"code"`
	Error string `json:"error,omitempty"`
}

// Obfuscate submits code to the engine and returns the transformed code.
func (c *Client) Obfuscate(ctx context.Context, code, level string) (string, error) {
	start := time.Now()
	out, err := c.obfuscate(ctx, code, level)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.EngineCallDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return out, err
}

func (c *Client) obfuscate(ctx context.Context, code, level string) (string, error) {
	body, err := json.Marshal(obfuscateRequest{Code: code, Level: level})
	if err != nil {
		return "", fmt.Errorf("marshal engine request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/obfuscate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("engine returned status %d: %s", resp.StatusCode, snippet)
	}

	var out obfuscateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode engine response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("engine error: %s", out.Error)
	}
	if out.Code == "" {
		return "", fmt.Errorf("engine returned empty output")
	}
	return out.Code, nil
}

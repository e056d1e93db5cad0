// Package cohere implements the providers.Adapter contract for the
// Cohere Chat API. Cohere has no client in original_source/src/providers
// (the original only carries it in the Provider enum and the model-name
// sniffer in router.rs) — this adapter follows the same
// marshal/post/classify shape as every other vendor package here, with
// Cohere's actual request/response field names.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/providers"
)

const defaultBaseURL = "https://api.cohere.com/v1"

// Adapter talks to the Cohere Chat API.
type Adapter struct {
	cfg        providers.Config
	httpClient *http.Client
}

// New returns a Cohere Adapter.
func New(cfg providers.Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = providers.DefaultConfig().Timeout
	}
	return &Adapter{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// Provider returns domain.ProviderCohere.
func (a *Adapter) Provider() domain.Provider { return domain.ProviderCohere }

// DefaultModel returns the compiled-in default model per workload.
func (a *Adapter) DefaultModel(workload domain.Workload) (string, bool) {
	return "command-r", true
}

// Complete performs one chat call.
func (a *Adapter) Complete(ctx context.Context, req domain.Request, model string) (domain.Response, error) {
	start := time.Now()

	wireReq := chatRequest{Model: model, Message: req.Prompt}
	if req.Temperature > 0 {
		wireReq.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		wireReq.MaxTokens = &req.MaxTokens
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderCohere, 0, "failed to marshal request", false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.cfg.BaseURL, "/")+"/chat", bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderCohere, 0, "failed to build request", false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderCohere, 0, "http request failed", true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderCohere, resp.StatusCode, "failed to read response", false, err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return domain.Response{}, providers.NewError(domain.ProviderCohere, resp.StatusCode, string(respBody), retryable, nil)
	}

	var wireResp chatResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderCohere, resp.StatusCode, "failed to parse response", false, err)
	}

	return domain.Response{
		Content:   wireResp.Text,
		Provider:  domain.ProviderCohere,
		Model:     model,
		TokensIn:  wireResp.Meta.BilledUnits.InputTokens,
		TokensOut: wireResp.Meta.BilledUnits.OutputTokens,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

type chatRequest struct {
	Model       string   `json:"model"`
	Message     string   `json:"message"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Text string `json:"text"`
	Meta struct {
		BilledUnits struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

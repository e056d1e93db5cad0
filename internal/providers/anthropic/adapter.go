// Package anthropic implements the providers.Adapter contract for the
// Anthropic Messages API. Grounded on
// felipepmaragno-ai-gateway/internal/provider/anthropic/anthropic.go for
// the HTTP/header shape, and original_source/src/providers (the
// anthropic-shaped vendors use the same x-api-key/anthropic-version
// headers) for wire expectations.
package anthropic

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

const (
	defaultBaseURL    = "https://api.anthropic.com/v1"
	anthropicVersion  = "2023-06-01"
	defaultMaxTokens  = 4096
)

// Adapter talks to the Anthropic Messages API.
type Adapter struct {
	cfg        providers.Config
	httpClient *http.Client
}

// New returns an Anthropic Adapter.
func New(cfg providers.Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = providers.DefaultConfig().Timeout
	}
	return &Adapter{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// Provider returns domain.ProviderAnthropic.
func (a *Adapter) Provider() domain.Provider { return domain.ProviderAnthropic }

// DefaultModel returns the compiled-in default model per workload.
func (a *Adapter) DefaultModel(workload domain.Workload) (string, bool) {
	switch workload {
	case domain.WorkloadCode, domain.WorkloadCreative:
		return "claude-3-5-sonnet-20241022", true
	default:
		return "claude-3-5-haiku-20241022", true
	}
}

// Complete performs one Messages API call.
func (a *Adapter) Complete(ctx context.Context, req domain.Request, model string) (domain.Response, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	wireReq := messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: req.Prompt}},
	}
	if req.Temperature > 0 {
		wireReq.Temperature = &req.Temperature
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderAnthropic, 0, "failed to marshal request", false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.cfg.BaseURL, "/")+"/messages", bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderAnthropic, 0, "failed to build request", false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderAnthropic, 0, "http request failed", true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderAnthropic, resp.StatusCode, "failed to read response", false, err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return domain.Response{}, providers.NewError(domain.ProviderAnthropic, resp.StatusCode, string(respBody), retryable, nil)
	}

	var wireResp messagesResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderAnthropic, resp.StatusCode, "failed to parse response", false, err)
	}

	var content strings.Builder
	for _, block := range wireResp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return domain.Response{
		Content:   content.String(),
		Provider:  domain.ProviderAnthropic,
		Model:     model,
		TokensIn:  wireResp.Usage.InputTokens,
		TokensOut: wireResp.Usage.OutputTokens,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Usage   usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Package compat implements the OpenAI-compatible chat completions wire
// format shared by every vendor that copies OpenAI's API shape: OpenAI
// itself, Groq, DeepSeek, Together, Cerebras, Mistral, OpenRouter and
// GitHub Models. Grounded on
// services/providers/openai/adapter.go, generalized from one hardcoded
// vendor into one adapter parameterized per vendor.
package compat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/providers"
)

// Adapter talks to any vendor exposing an OpenAI-shaped
// /chat/completions endpoint.
type Adapter struct {
	provider      domain.Provider
	cfg           providers.Config
	httpClient    *http.Client
	defaultModels map[domain.Workload]string
	extraHeaders  map[string]string
}

// New returns an Adapter for provider, using cfg for credentials and
// transport tuning and defaultModels as the compiled-in per-workload
// fallback when no catalog entry or forced model applies.
func New(provider domain.Provider, cfg providers.Config, defaultModels map[domain.Workload]string, extraHeaders map[string]string) *Adapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = providers.DefaultConfig().Timeout
	}
	return &Adapter{
		provider:      provider,
		cfg:           cfg,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		defaultModels: defaultModels,
		extraHeaders:  extraHeaders,
	}
}

// Provider returns the vendor this adapter was configured for.
func (a *Adapter) Provider() domain.Provider { return a.provider }

// DefaultModel returns the adapter's compiled-in default for workload.
func (a *Adapter) DefaultModel(workload domain.Workload) (string, bool) {
	m, ok := a.defaultModels[workload]
	return m, ok
}

// Complete performs one chat completion call.
func (a *Adapter) Complete(ctx context.Context, req domain.Request, model string) (domain.Response, error) {
	start := time.Now()

	wireReq := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.MaxTokens > 0 {
		wireReq.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		wireReq.Temperature = &req.Temperature
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return domain.Response{}, providers.NewError(a.provider, 0, "failed to marshal request", false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.cfg.BaseURL, "/")+"/chat/completions", strings.NewReader(string(body)))
	if err != nil {
		return domain.Response{}, providers.NewError(a.provider, 0, "failed to build request", false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	for k, v := range a.extraHeaders {
		httpReq.Header.Set(k, v)
	}

	var httpResp *http.Response
	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Response{}, providers.NewError(a.provider, 0, "context canceled during retry", false, ctx.Err())
			case <-time.After(a.cfg.RetryDelay * time.Duration(attempt)):
			}
		}
		httpResp, lastErr = a.httpClient.Do(httpReq)
		if lastErr == nil && httpResp.StatusCode < 500 {
			break
		}
		if httpResp != nil {
			httpResp.Body.Close()
		}
	}
	if lastErr != nil {
		return domain.Response{}, providers.NewError(a.provider, 0, "http request failed", true, lastErr)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return domain.Response{}, providers.NewError(a.provider, httpResp.StatusCode, "failed to read response", false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return domain.Response{}, a.errorFromResponse(httpResp.StatusCode, respBody)
	}

	var wireResp chatResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return domain.Response{}, providers.NewError(a.provider, httpResp.StatusCode, "failed to parse response", false, err)
	}
	if len(wireResp.Choices) == 0 {
		return domain.Response{}, providers.NewError(a.provider, httpResp.StatusCode, "no choices in response", false, nil)
	}

	return domain.Response{
		Content:   wireResp.Choices[0].Message.Content,
		Provider:  a.provider,
		Model:     model,
		TokensIn:  wireResp.Usage.PromptTokens,
		TokensOut: wireResp.Usage.CompletionTokens,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

func (a *Adapter) errorFromResponse(statusCode int, body []byte) error {
	var wireErr errorResponse
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests
	if err := json.Unmarshal(body, &wireErr); err != nil || wireErr.Error.Message == "" {
		return providers.NewError(a.provider, statusCode, string(body), retryable, fmt.Errorf("status %d", statusCode))
	}
	return providers.NewError(a.provider, statusCode, wireErr.Error.Message, retryable, errors.New(wireErr.Error.Message))
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

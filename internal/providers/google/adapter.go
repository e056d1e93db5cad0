// Package google implements the providers.Adapter contract for the
// Google Gemini generateContent API. Grounded on
// original_source/src/providers/google.rs.
package google

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

	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/providers"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Adapter talks to the Gemini generateContent API. The API key travels
// as a query parameter rather than a header, matching the original.
type Adapter struct {
	cfg        providers.Config
	httpClient *http.Client
}

// New returns a Google Adapter.
func New(cfg providers.Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = providers.DefaultConfig().Timeout
	}
	return &Adapter{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// Provider returns domain.ProviderGoogle.
func (a *Adapter) Provider() domain.Provider { return domain.ProviderGoogle }

// DefaultModel returns the compiled-in default model per workload.
func (a *Adapter) DefaultModel(workload domain.Workload) (string, bool) {
	switch workload {
	case domain.WorkloadCode, domain.WorkloadCreative:
		return "gemini-1.5-pro", true
	default:
		return "gemini-1.5-flash", true
	}
}

// Complete performs one generateContent call.
func (a *Adapter) Complete(ctx context.Context, req domain.Request, model string) (domain.Response, error) {
	start := time.Now()

	wireReq := requestBody{
		Contents: []content{{Parts: []part{{Text: req.Prompt}}}},
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderGoogle, 0, "failed to marshal request", false, err)
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", strings.TrimRight(a.cfg.BaseURL, "/"), model, url.QueryEscape(a.cfg.APIKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderGoogle, 0, "failed to build request", false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderGoogle, 0, "http request failed", true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderGoogle, resp.StatusCode, "failed to read response", false, err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return domain.Response{}, providers.NewError(domain.ProviderGoogle, resp.StatusCode, string(respBody), retryable, nil)
	}

	var wireResp responseBody
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderGoogle, resp.StatusCode, "failed to parse response", false, err)
	}

	var text string
	if len(wireResp.Candidates) > 0 && len(wireResp.Candidates[0].Content.Parts) > 0 {
		text = wireResp.Candidates[0].Content.Parts[0].Text
	}

	return domain.Response{
		Content:   text,
		Provider:  domain.ProviderGoogle,
		Model:     model,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

type requestBody struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type responseBody struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content contentResponse `json:"content"`
}

type contentResponse struct {
	Parts []part `json:"parts"`
}

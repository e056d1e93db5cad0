// Package huggingface implements the providers.Adapter contract for the
// Hugging Face Inference API. Grounded on
// original_source/src/providers/hugging_face.rs, including its
// array-or-object response shape.
package huggingface

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

const defaultBaseURL = "https://api-inference.huggingface.co"

// Adapter talks to the Hugging Face Inference API.
type Adapter struct {
	cfg        providers.Config
	httpClient *http.Client
}

// New returns a Hugging Face Adapter.
func New(cfg providers.Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = providers.DefaultConfig().Timeout
	}
	return &Adapter{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// Provider returns domain.ProviderHuggingFace.
func (a *Adapter) Provider() domain.Provider { return domain.ProviderHuggingFace }

// DefaultModel returns the compiled-in default model per workload.
func (a *Adapter) DefaultModel(workload domain.Workload) (string, bool) {
	return "mistralai/Mistral-7B-Instruct-v0.2", true
}

// Complete performs one text-generation inference call.
func (a *Adapter) Complete(ctx context.Context, req domain.Request, model string) (domain.Response, error) {
	start := time.Now()

	returnFullText := false
	wireReq := inferenceRequest{
		Inputs:     req.Prompt,
		Parameters: &parameters{ReturnFullText: &returnFullText},
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderHuggingFace, 0, "failed to marshal request", false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.cfg.BaseURL, "/")+"/models/"+model, bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderHuggingFace, 0, "failed to build request", false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderHuggingFace, 0, "http request failed", true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderHuggingFace, resp.StatusCode, "failed to read response", false, err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return domain.Response{}, providers.NewError(domain.ProviderHuggingFace, resp.StatusCode, string(respBody), retryable, nil)
	}

	var value interface{}
	if err := json.Unmarshal(respBody, &value); err != nil {
		return domain.Response{}, providers.NewError(domain.ProviderHuggingFace, resp.StatusCode, "failed to parse response", false, err)
	}

	return domain.Response{
		Content:   extractGeneratedText(value),
		Provider:  domain.ProviderHuggingFace,
		Model:     model,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// extractGeneratedText mirrors
// original_source/src/providers/hugging_face.rs::extract_generated_text:
// the API returns either a top-level array of generations or a single
// object, and some models nest alternatives under generated_texts.
func extractGeneratedText(value interface{}) string {
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := obj["generated_text"].(string); ok {
				return text
			}
			if children, ok := obj["generated_texts"].([]interface{}); ok && len(children) > 0 {
				if first, ok := children[0].(map[string]interface{}); ok {
					if text, ok := first["text"].(string); ok {
						return text
					}
				}
			}
		}
		return ""
	case map[string]interface{}:
		if text, ok := v["generated_text"].(string); ok {
			return text
		}
		return ""
	default:
		return ""
	}
}

type inferenceRequest struct {
	Inputs     string      `json:"inputs"`
	Parameters *parameters `json:"parameters,omitempty"`
}

type parameters struct {
	ReturnFullText *bool `json:"return_full_text,omitempty"`
}

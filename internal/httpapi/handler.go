// Package httpapi exposes the router over HTTP. Grounded on
// handlers/inference_handler.go and handlers/service_errors.go for the
// thin-handler/utils.WriteJSON pattern, adapted from the OpenAI-shaped
// chat completion DTOs to spec.md §6's {prompt, model?, hints?} request
// and {provider, model, content, latency_ms} response.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dnovak/llmrelay/internal/domain"
	"github.com/dnovak/llmrelay/internal/router"
	"github.com/dnovak/llmrelay/utils"
)

// Handler serves the gateway's HTTP surface.
type Handler struct {
	router         *router.Router
	logger         *zap.Logger
	metricsEnabled bool
}

// NewHandler returns a Handler backed by r.
func NewHandler(r *router.Router, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{router: r, logger: logger}
}

// WithMetricsEndpoint mounts a Prometheus /metrics handler when enabled,
// returning the same Handler for chaining.
func (h *Handler) WithMetricsEndpoint(enabled bool) *Handler {
	h.metricsEnabled = enabled
	return h
}

// Routes mounts the gateway's HTTP surface onto a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"POST", "GET"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	r.Post("/api/v1/generate", h.handleGenerate)
	r.Get("/healthz", h.handleHealthz)
	if h.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

// generateRequest is the wire shape of POST /api/v1/generate, grounded
// on spec.md §6: `{prompt, model?, hints?, metadata?}`.
type generateRequest struct {
	Prompt      string        `json:"prompt" validate:"required"`
	Model       string        `json:"model,omitempty"`
	Workload    string        `json:"workload,omitempty" validate:"omitempty,oneof=chat code summarization extraction creative classification"`
	MaxTokens   int           `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Temperature float64       `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	DeadlineMS  int64         `json:"deadline_ms,omitempty" validate:"omitempty,gt=0"`
	Hints       *hintsPayload `json:"hints,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type hintsPayload struct {
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
	Quality    string   `json:"quality,omitempty" validate:"omitempty,oneof=standard premium"`
	Complexity string   `json:"complexity,omitempty" validate:"omitempty,oneof=low high"`
	Speed      string   `json:"speed,omitempty" validate:"omitempty,oneof=normal fast"`
	Tags       []string `json:"tags,omitempty"`
}

// generateResponse is the success wire shape: `{provider, model,
// content, latency_ms}`.
type generateResponse struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Content   string `json:"content"`
	LatencyMS int64  `json:"latency_ms"`
}

type attemptPayload struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Success   bool   `json:"success"`
	ErrorKind string `json:"error_kind,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type failureResponse struct {
	ErrorKind string           `json:"error_kind"`
	Message   string           `json:"message"`
	Attempts  []attemptPayload `json:"attempts,omitempty"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		if utils.IsValidationError(err) {
			fields := utils.GetValidationFields(err)
			details := make(map[string]interface{}, len(fields))
			for k, v := range fields {
				details[k] = v
			}
			_ = utils.WriteBadRequest(w, "validation failed", details)
			return
		}
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if body.Prompt == "" {
		_ = utils.WriteBadRequest(w, "prompt is required", nil)
		return
	}

	req := toDomainRequest(body)

	resp, err := h.router.Generate(r.Context(), req)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, generateResponse{
		Provider:  string(resp.Provider),
		Model:     resp.Model,
		Content:   resp.Content,
		LatencyMS: resp.LatencyMS,
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]string{"status": "ok"})
}

func toDomainRequest(body generateRequest) domain.Request {
	workload := domain.WorkloadChat
	if body.Workload != "" {
		if w, ok := domain.WorkloadFromKey(body.Workload); ok {
			workload = w
		}
	}

	req := domain.Request{
		Prompt:      body.Prompt,
		Workload:    workload,
		MaxTokens:   body.MaxTokens,
		Temperature: body.Temperature,
	}
	if body.DeadlineMS > 0 {
		req.Deadline = time.Now().Add(time.Duration(body.DeadlineMS) * time.Millisecond)
	}
	if body.Model != "" {
		req.Hints.Model = body.Model
	}
	if body.Hints != nil {
		if body.Hints.Provider != "" {
			if p, ok := domain.ProviderFromAlias(body.Hints.Provider); ok {
				req.Hints.Provider = p
			}
		}
		if body.Hints.Model != "" {
			req.Hints.Model = body.Hints.Model
		}
		req.Hints.Quality = body.Hints.Quality
		req.Hints.Complexity = body.Hints.Complexity
		req.Hints.Speed = body.Hints.Speed
		req.Hints.Tags = body.Hints.Tags
	}
	return req
}

// writeFailure maps a DomainError to the HTTP status/body contract in
// spec.md §6/§7: 400 invalid input, 502 AllProvidersFailed (with
// attempts), 503 NoAvailableProvider or ProviderNotConfigured, 504
// DeadlineExceeded, 500 otherwise.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	errType := domain.GetErrorType(err)
	attempts := attemptsFromDetails(domain.GetErrorDetails(err))

	status := http.StatusInternalServerError
	switch errType {
	case domain.ErrorTypeInvalidRequest:
		status = http.StatusBadRequest
	case domain.ErrorTypeNoAvailableProvider:
		status = http.StatusServiceUnavailable
	case domain.ErrorTypeAllProvidersFailed:
		status = http.StatusBadGateway
	case domain.ErrorTypeDeadlineExceeded:
		status = http.StatusGatewayTimeout
	case domain.ErrorTypeProviderNotConfigured:
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("unhandled generate error", zap.Error(err))
	}

	if err := utils.WriteJSON(w, status, failureResponse{
		ErrorKind: string(errType),
		Message:   err.Error(),
		Attempts:  attempts,
	}); err != nil {
		h.logger.Error("failed to write failure response", zap.Error(err))
	}
}

func attemptsFromDetails(details map[string]interface{}) []attemptPayload {
	raw, ok := details["attempts"]
	if !ok {
		return nil
	}
	records, ok := raw.([]domain.AttemptRecord)
	if !ok {
		return nil
	}
	out := make([]attemptPayload, 0, len(records))
	for _, a := range records {
		out = append(out, attemptPayload{
			Provider:  string(a.Provider),
			Model:     a.Model,
			Success:   a.Success,
			ErrorKind: string(a.ErrorKind),
			LatencyMS: a.LatencyMS,
		})
	}
	return out
}

// Package providers implements adapters for external LLM providers.
//
// This package provides:
//   - Unified interface for multiple LLM providers
//   - Provider-specific request/response translation
//   - Error handling and retry logic
//
// There is no circuit breaker and no per-provider cost calculation.
//
// Each provider adapter implements the Adapter interface,
// enabling transparent switching and fallback.
package providers

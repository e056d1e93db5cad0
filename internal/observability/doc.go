// Package observability provides structured logging and Prometheus
// metrics for the gateway. Tracing and request-ID propagation named in
// the original doc comment have no client in this module's dependency
// surface and are not implemented; see DESIGN.md.
package observability

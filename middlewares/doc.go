// Package middlewares provides standard net/http middleware for the
// dispatcher's HTTP surface: webhook ingestion and the operator API.
//
// # Request ID
//
// RequestID assigns a unique ID to each request for tracing, checking
// incoming headers before generating one.
//
//	r.Use(middlewares.RequestID())
//
// Pair with RequestIDExtractor() and pkg/logger to include request_id in
// every log line automatically.
//
// # Recover
//
// Recover catches panics from handlers and responds with 500 instead of
// crashing the process.
//
//	r.Use(middlewares.Recover())
//
// # Timeout
//
// Timeout bounds the request context's lifetime so downstream calls that
// honor context cancellation (Redis, the Kubernetes API, upstream clients)
// unwind promptly.
//
//	r.Use(middlewares.Timeout(5 * time.Second))
//
// Recommended order: RequestID, Recover, Timeout.
package middlewares

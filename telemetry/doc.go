// Package telemetry provides the OpenTelemetry-backed implementation of
// core.Telemetry.
//
// Spans cover each remote call and each batch run; metrics count request
// outcomes, retries, and rate-limit waits. Traces are exported over OTLP
// gRPC when an endpoint is configured, or to stdout for local debugging
// when it is not. When telemetry is disabled entirely the library falls
// back to core.NoOpTelemetry and this package is never initialized.
package telemetry

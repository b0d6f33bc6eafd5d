// Package logger provides the production logging implementation for the
// sync library.
//
// It adapts zerolog to the core.Logger interface so every component logs
// structured fields the same way regardless of whether the caller wired a
// real logger or left the no-op default in place.
//
// # Usage
//
//	log := logger.New(cfg.Logging)
//	log.Info("Starting sync", map[string]interface{}{
//	    "operation": "sync_batch_start",
//	    "total":     42,
//	})
//
// # Component Scoping
//
// The returned logger implements core.ComponentAwareLogger. Child loggers
// carry a persistent "component" field:
//
//	pipelineLog := log.WithComponent("pipeline")
//
// # Redaction
//
// Field keys that look like credentials (token, authorization, api_key,
// password, secret) have their values replaced with "[REDACTED]" before the
// event is written. Access tokens must never reach log output.
package logger

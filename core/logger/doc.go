// Package logger provides structured logging utilities built on Go's standard
// slog package: a configurable logger factory, context-aware attribute
// extraction, and pre-built attributes for common job processing scenarios.
//
// # Features
//
//   - Built on Go's standard slog for compatibility and performance
//   - Environment-specific configurations (development, staging, production)
//   - Support for both JSON and text output formats
//   - Context-aware attribute extraction for execution-scoped data
//   - Type-safe attribute creation with nil safety
//
// # Basic Usage
//
// Create loggers using the factory function with configuration options:
//
//	import "github.com/dmitrymomot/jobq/core/logger"
//
//	// Development: text format, debug level
//	log := logger.New(logger.WithDevelopment("worker"))
//
//	// Production: JSON format, info level
//	log := logger.New(
//		logger.WithProduction("worker"),
//		logger.WithOutput(os.Stderr),
//	)
//
//	log.Info("queue starting",
//		logger.Component("queue"),
//		logger.Event("startup"),
//	)
//
// # Attribute Helpers
//
// The helpers return empty attributes for nil or empty input, so call sites
// need no guards:
//
//	log.Error("job failed",
//		logger.Error(err),
//		logger.JobID(job.ID),
//		logger.JobType(job.Type),
//		logger.Attempt(job.Attempts),
//	)
//
//	log.Info("store connected",
//		logger.Component("storage.redis"),
//		logger.Elapsed(start),
//		logger.RetryCount(retries),
//	)
//
// # Context-Aware Logging
//
// Extractors inject attributes from context values on every record logged
// through the Context methods:
//
//	log := logger.New(
//		logger.WithProduction("worker"),
//		logger.WithContextValue("request_id", requestIDKey{}),
//	)
//
//	ctx := context.WithValue(context.Background(), requestIDKey{}, "req-123")
//	log.InfoContext(ctx, "processing")
//	// {"level":"INFO","msg":"processing","request_id":"req-123"}
//
// Custom extraction logic plugs in the same way:
//
//	jobExtractor := func(ctx context.Context) (slog.Attr, bool) {
//		if job, ok := queue.JobFromContext(ctx); ok {
//			return logger.JobID(job.ID), true
//		}
//		return slog.Attr{}, false
//	}
//
//	log := logger.New(logger.WithContextExtractors(jobExtractor))
//
// # Global Logger Setup
//
// Install a logger as the process default so package-level slog calls use it:
//
//	logger.SetAsDefault(logger.New(logger.WithProduction("worker")))
//	slog.Info("uses the configured handler")
package logger

// Package logger builds the application's structured slog logger.
//
// A single [Config] selects the level, the output format (json or text) and
// the destination. With FilePath set, logs are written to a size-rotated file
// through lumberjack; otherwise they go to stdout. When a Sentry DSN is
// configured, warnings and errors are also forwarded to Sentry and errors
// create issues.
//
// # Basic Usage
//
//	log, cleanup, err := logger.New(logger.Config{
//		Level:  "info",
//		Format: "json",
//	}, middlewares.RequestIDExtractor())
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// # Context Extractors
//
// A [ContextExtractor] pulls one attribute out of a context:
//
//	type ContextExtractor func(ctx context.Context) (slog.Attr, bool)
//
// Extractors run on every *Context log call, so request-scoped values such as
// the request ID are attached without passing them around. [WithContext] wraps
// any slog.Handler with the same behavior.
//
// # Graceful Degradation
//
// A log file that cannot be created falls back to stdout with a warning, and a
// Sentry initialization failure leaves local logging in place.
package logger

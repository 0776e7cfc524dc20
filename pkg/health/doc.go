// Package health provides liveness and readiness HTTP handlers.
//
// [LivenessHandler] answers OK while the process serves HTTP.
// [ReadinessHandler] runs a set of named [Checks] concurrently under a shared
// timeout and answers 503 when any of them fails. [Run] executes the same
// checks without HTTP, e.g. before the server starts accepting traffic.
//
// # Quick Start
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "cache": cache.Healthcheck(m),
//	}, health.WithTimeout(3*time.Second), health.WithLogger(log)))
//
// # Response Formats
//
// Plain text by default ("OK" or "Service Unavailable"). Clients that send
// Accept: application/json or ?format=json get the full report:
//
//	{
//	  "status": "unhealthy",
//	  "checks": {
//	    "cache": {"status": "unhealthy", "error": "cache: healthcheck failed\ncache: closed", "duration": "4µs"}
//	  }
//	}
//
// # Error Handling
//
//   - [ErrCheckFailed] - one or more checks failed, see [Response.Err]
//   - [ErrCheckTimeout] - a check was still running when the timeout elapsed
//   - [ErrCheckPanicked] - a check panicked; other checks still report
package health

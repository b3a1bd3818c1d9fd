// Package sentryx wraps the Sentry SDK so callers don't import it
// directly. With an empty DSN every call is a no-op, which keeps
// development and tests quiet.
package sentryx

import (
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

// Init configures the global Sentry client. Safe to call with an empty
// DSN; errors are logged, never fatal.
func Init(dsn, environment string) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		log.Printf("sentry init (non-blocking): %s", err)
	}
}

// Flush drains pending events; call on shutdown.
func Flush() { sentry.Flush(2 * time.Second) }

// CaptureError reports an error with optional tags.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

package cache

import (
	"context"
	"errors"
)

// Healthcheck returns a closure that reports whether m can serve requests.
// Compatible with health check interfaces that expect func(context.Context) error.
func Healthcheck(m *Manager) func(context.Context) error {
	return func(ctx context.Context) error {
		if m == nil {
			return ErrHealthcheckFailed
		}
		if m.isClosed() {
			return errors.Join(ErrHealthcheckFailed, ErrClosed)
		}
		return nil
	}
}

// Shutdown returns a function that closes m. Use it as a server shutdown hook.
func Shutdown(m *Manager) func(ctx context.Context) error {
	return func(context.Context) error {
		return m.Close()
	}
}

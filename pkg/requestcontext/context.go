// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values, services read them. Keeping the package free
// of net/http lets services stay import-light and lets unit tests inject
// values directly:
//
//	ctx = requestcontext.WithCallerBPN(ctx, "BPNL000000000000")
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	callerBPNKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// CallerBPN retrieves the authenticated caller's business partner number.
// Returns "" if the request is unauthenticated.
func CallerBPN(ctx context.Context) string {
	if bpn, ok := ctx.Value(callerBPNKey{}).(string); ok {
		return bpn
	}
	return ""
}

// WithCallerBPN injects the authenticated caller's BPN into the context.
func WithCallerBPN(ctx context.Context, bpn string) context.Context {
	return context.WithValue(ctx, callerBPNKey{}, bpn)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full middleware chain, and for batch work that
// needs one consistent timestamp.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

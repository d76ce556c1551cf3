// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them, and tests
// inject them (notably a fixed clock) without any net/http dependency.
package requestcontext

import (
	"context"
	"time"

	id "givebridge/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	donorIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithDonorID stores the authenticated donor id in context.
func WithDonorID(ctx context.Context, donorID id.DonorID) context.Context {
	return context.WithValue(ctx, donorIDKey{}, donorID)
}

// DonorID returns the authenticated donor id, or the zero DonorID for guest
// requests.
func DonorID(ctx context.Context) id.DonorID {
	donorID, ok := ctx.Value(donorIDKey{}).(id.DonorID)
	if !ok {
		return id.DonorID{}
	}
	return donorID
}

// WithRequestID stores the request correlation id in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request correlation id, or "" when unset.
func RequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(requestIDKey{}).(string)
	if !ok {
		return ""
	}
	return requestID
}

// WithTime pins the request-scoped clock. Tests use this to make billing
// arithmetic deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the request-scoped time when one was injected, falling back to
// the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

package testutil

import (
	"net/http"
	"time"

	id "givebridge/pkg/domain"
	"givebridge/pkg/requestcontext"
)

// WithDonor adds a donor ID to the request context, simulating what the auth
// middleware does for authenticated requests. Invalid IDs are silently
// ignored so the request stays a guest request.
func WithDonor(req *http.Request, donorID string) *http.Request {
	parsed, err := id.ParseDonorID(donorID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithDonorID(req.Context(), parsed))
}

// WithFixedTime pins the request-scoped clock, making billing date arithmetic
// deterministic in handler tests.
func WithFixedTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

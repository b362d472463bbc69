package testutil

import (
	"net/http"

	"miw/pkg/requestcontext"
)

// WithCallerBPN stamps the caller tenant on the request context, simulating
// what the auth middleware does for authenticated requests.
func WithCallerBPN(req *http.Request, bpn string) *http.Request {
	return req.WithContext(requestcontext.WithCallerBPN(req.Context(), bpn))
}

// WithRequestID stamps a request ID on the request context.
func WithRequestID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}

// Package httputil centralizes JSON envelopes for the HTTP layer so handlers
// stay thin and error translation is consistent across features.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "miw/pkg/domain-errors"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors omit the description so store/crypto details never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// preparable lets request DTOs hook normalization and validation into decode.
type preparable interface {
	Normalize()
	Validate() error
}

// DecodeAndPrepare decodes the request body into T, then runs Normalize and
// Validate when T implements them. On failure it writes the error response
// and returns ok=false so the handler can bail with a bare return.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "malformed request body", "request_id", requestID, "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return req, false
	}
	if p, ok := any(&req).(preparable); ok {
		p.Normalize()
		if err := p.Validate(); err != nil {
			WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, dErrors.MessageOf(err)))
			return req, false
		}
	}
	return req, true
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ocrd/internal/manager"
	"ocrd/pkg/types"
)

// StatusClientClosedRequest is returned when a blocking /ocr call was aborted.
const StatusClientClosedRequest = 499

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		reqLogger().Error().Err(err).Msg("encode response")
	}
}

// statusFor maps a service error to an HTTP status and client message.
func statusFor(err error) (int, string) {
	var he HTTPError
	switch {
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests, err.Error()
	case manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable, "Model not loaded"
	case manager.IsInputError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Processing timed out"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "Request cancelled"
	case errors.As(err, &he):
		return he.StatusCode(), he.Error()
	default:
		return http.StatusInternalServerError, "Processing failed: " + err.Error()
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bilancio/internal/core"
	"bilancio/internal/forms"
	"bilancio/internal/gateway"
	"bilancio/internal/gateway/remote"
	"bilancio/internal/log"
	"bilancio/internal/recurrence"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// inputErrors are domain errors caused by what the client sent.
var inputErrors = []error{
	recurrence.ErrInvalidAnchor,
	recurrence.ErrCustomPeriod,
	core.ErrUnknownFrequency,
	core.ErrInvalidAmount,
	core.ErrInvalidCurrency,
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidType,
	core.ErrEmptyDescription,
	core.ErrEmptyCategory,
	core.ErrEmptyAccount,
	core.ErrDateRange,
}

func isInputError(err error) bool {
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps an error to the HTTP status reported to the client.
// Malformed dates are checked first so they stay a 400 even when wrapped
// in a validation error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidReferenceDate),
		errors.Is(err, errMalformedBody),
		errors.Is(err, errMalformedQuery):
		return http.StatusBadRequest
	case forms.IsValidation(err), isInputError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	}
	if apiErr, ok := remote.AsAPIError(err); ok && apiErr.Status >= 400 {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// respondError writes err with the status statusFor picks. Upstream API
// messages pass through verbatim; unexpected errors are logged and hidden.
func respondError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.LogError(ctx, "Request failed", err, op, nil)
		writeError(w, status, "internal server error")
		return
	}

	resp := ErrorResponse{Error: err.Error()}
	var ve *forms.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	if apiErr, ok := remote.AsAPIError(err); ok {
		resp.Error = apiErr.Message
	}
	log.FromContext(ctx).DebugContext(ctx, "Request rejected",
		log.FieldOperation, op,
		log.FieldStatusCode, status,
		log.FieldError, resp.Error)
	writeJSON(w, status, resp)
}

// rateLimited answers a request refused by the rate limiter.
func rateLimited(w http.ResponseWriter, r *http.Request, retryAfter int) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

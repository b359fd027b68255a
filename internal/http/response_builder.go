package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
	"expenseflow/internal/middleware/identity"
	"expenseflow/internal/services"
)

// JSONResponseBuilder assembles a JSON response with a fluent API.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
}

// NewJSONResponse starts a 200 response.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{statusCode: http.StatusOK, headers: map[string]string{}}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write encodes v as the body. A nil v with 204 writes no body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter, v any) {
	for k, val := range b.headers {
		w.Header().Set(k, val)
	}
	if b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Write(w, v)
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

var errTooManyRequests = errors.New("rate limit exceeded, please try again later")

// statusFor maps an error to its HTTP status and client-facing body. Unknown
// errors become a generic 500 so internal detail never leaks.
func statusFor(err error) (int, ErrorBody) {
	var (
		ve *core.ValidationError
		ae *core.AuthorizationError
		nf *core.NotFoundError
		is *core.InvalidStateError
		ri *core.ReferentialIntegrityError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorBody{Message: ve.Message, Errors: ve.Errors}
	case errors.As(err, &ri):
		return http.StatusBadRequest, ErrorBody{Message: ri.Message}
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorBody{Message: "Unauthorized"}
	case errors.As(err, &ae):
		return http.StatusForbidden, ErrorBody{Message: "Forbidden: " + ae.Message}
	case errors.As(err, &is):
		return http.StatusForbidden, ErrorBody{Message: is.Message}
	case errors.As(err, &nf):
		return http.StatusNotFound, ErrorBody{Message: nf.Error()}
	case errors.Is(err, errTooManyRequests):
		return http.StatusTooManyRequests, ErrorBody{Message: err.Error()}
	case errors.Is(err, services.ErrSheetsNotConfigured):
		return http.StatusServiceUnavailable, ErrorBody{Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Message: "Internal server error"}
	}
}

// writeError renders err and logs it. 5xx responses log the full error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		fields := log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "")
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, operationFor(r.Method), fields)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldStatusCode, status,
			log.FieldError, err)
	}
	writeJSON(w, status, body)
}

func operationFor(method string) string {
	switch method {
	case http.MethodPost:
		return log.OpCreate
	case http.MethodPatch, http.MethodPut:
		return log.OpUpdate
	case http.MethodDelete:
		return log.OpDelete
	default:
		return log.OpRead
	}
}

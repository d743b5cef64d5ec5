package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"canteen/internal/auth"
	"canteen/internal/core"
	"canteen/internal/log"
	"canteen/internal/services"
)

// JSONResponseBuilder is a fluent builder for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Payload sets the value encoded as the response body.
func (b *JSONResponseBuilder) Payload(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Message sets a {"message": ...} body.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Payload(map[string]string{"message": msg})
}

// Detail sets a {"detail": ...} body.
func (b *JSONResponseBuilder) Detail(msg string) *JSONResponseBuilder {
	return b.Payload(map[string]string{"detail": msg})
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if b.payload != nil {
		_ = json.NewEncoder(w).Encode(b.payload)
	}
}

// FieldErrors renders a validation failure the way API clients expect it:
// {"field": ["message"]}.
func FieldErrors(field, message string) *JSONResponseBuilder {
	if field == "" {
		field = "non_field_errors"
	}
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Payload(map[string][]string{field: {message}})
}

func BadRequestError(detail string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusBadRequest).Detail(detail)
}

func NotFoundError() *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusNotFound).Detail("Not found.")
}

func UnauthorizedError() *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnauthorized).
		Header("WWW-Authenticate", `Bearer realm="api"`).
		Detail("Authentication credentials were not provided.")
}

func ForbiddenError(detail string) *JSONResponseBuilder {
	if detail == "" {
		detail = "You do not have permission to perform this action."
	}
	return NewJSONResponse().Status(http.StatusForbidden).Detail(detail)
}

func InternalServerError() *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusInternalServerError).Detail("A server error occurred.")
}

// errorScope tells writeError where a dangling reference came from.
type errorScope int

const (
	scopePath errorScope = iota
	scopeBody
)

// writeError maps domain errors to responses. A ReferenceError is a 404
// when it names the resource in the URL and a 400 when it names something
// in the request body.
func writeError(w http.ResponseWriter, r *http.Request, scope errorScope, err error) {
	logger := log.FromContext(r.Context())

	var (
		verr *core.ValidationError
		rerr *core.ReferenceError
		perr *core.PermissionError
	)
	switch {
	case errors.As(err, &verr):
		logger.DebugContext(r.Context(), "Request rejected",
			"field", verr.Field,
			log.FieldErrorType, log.ErrorTypeValidation)
		FieldErrors(verr.Field, verr.Message).Write(w)
	case errors.As(err, &rerr):
		logger.DebugContext(r.Context(), "Referenced object not found",
			"entity", rerr.Entity,
			"id", rerr.ID,
			log.FieldErrorType, log.ErrorTypeNotFound)
		if scope == scopeBody {
			FieldErrors(rerr.Entity+"_id", "Invalid pk - object does not exist.").
				Status(http.StatusBadRequest).
				Write(w)
			return
		}
		NotFoundError().Write(w)
	case errors.As(err, &perr):
		logger.WarnContext(r.Context(), "Permission denied",
			log.FieldOperation, perr.Action,
			log.FieldErrorType, log.ErrorTypePermission)
		ForbiddenError(perr.Detail).Write(w)
	case errors.Is(err, core.ErrInvalidRange):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, services.ErrInvalidCredentials):
		NewJSONResponse().
			Status(http.StatusUnauthorized).
			Payload(map[string]string{"error": "Invalid credentials"}).
			Write(w)
	case errors.Is(err, auth.ErrInvalidToken):
		NewJSONResponse().
			Status(http.StatusUnauthorized).
			Payload(map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"}).
			Write(w)
	default:
		errType := log.ErrorTypeInternal
		if errors.Is(err, context.DeadlineExceeded) {
			errType = log.ErrorTypeTimeout
		}
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, errType,
			log.FieldPath, r.URL.Path)
		InternalServerError().Write(w)
	}
}

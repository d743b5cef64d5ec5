package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"canteen/internal/auth"
	"canteen/internal/core"
	"canteen/internal/services"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "v").
		Message("done").
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if w.Header().Get("X-Custom") != "v" || w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("headers = %v", w.Header())
	}
	if w.Body.String() != "{\"message\":\"done\"}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Payload("ignored").Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		scope      errorScope
		err        error
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{"validation", scopeBody, core.NewValidationError("quantity", "bad"), http.StatusUnprocessableEntity, "quantity", "bad"},
		{"missing resource", scopePath, fmt.Errorf("wrap: %w", core.NewReferenceError("order", 9)), http.StatusNotFound, "detail", "Not found."},
		{"dangling body reference", scopeBody, core.NewReferenceError("food", 9), http.StatusBadRequest, "food_id", "Invalid pk - object does not exist."},
		{"permission with detail", scopePath, core.NewPermissionDenied("view dues", "Only students can view dues."), http.StatusForbidden, "detail", "Only students can view dues."},
		{"permission default", scopePath, core.NewPermissionError("clear order"), http.StatusForbidden, "detail", "You do not have permission to perform this action."},
		{"inverted range", scopePath, core.ErrInvalidRange, http.StatusBadRequest, "detail", core.ErrInvalidRange.Error()},
		{"bad credentials", scopeBody, services.ErrInvalidCredentials, http.StatusUnauthorized, "error", "Invalid credentials"},
		{"bad token", scopeBody, fmt.Errorf("%w: expired", auth.ErrInvalidToken), http.StatusUnauthorized, "code", "token_not_valid"},
		{"unknown", scopePath, errors.New("disk on fire"), http.StatusInternalServerError, "detail", "A server error occurred."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, httptest.NewRequest(http.MethodGet, "/api/x", nil), tt.scope, tt.err)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := body[tt.wantKey]
			if list, ok := got.([]any); ok && len(list) == 1 {
				got = list[0]
			}
			if got != tt.wantValue {
				t.Errorf("%s = %v, want %q", tt.wantKey, got, tt.wantValue)
			}
		})
	}
}

func TestFieldErrors_NonField(t *testing.T) {
	w := httptest.NewRecorder()
	FieldErrors("", "Malformed request body.").Write(w)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", w.Code)
	}
	if want := "{\"non_field_errors\":[\"Malformed request body.\"]}\n"; w.Body.String() != want {
		t.Errorf("body = %q", w.Body.String())
	}
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"canteen/internal/core"
)

func testIssuer() *Issuer {
	return NewIssuer("test-secret", 5*time.Minute, 24*time.Hour)
}

func TestIssueAndVerify(t *testing.T) {
	iss := testIssuer()
	id := core.Identity{UserID: 7, Username: "sam", IsStudent: true}

	pair, err := iss.Issue(id)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := iss.Verify(pair.Access, AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Identity() != id {
		t.Fatalf("identity mismatch: %+v", claims.Identity())
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id")
	}

	if _, err := iss.Verify(pair.Refresh, AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token must not pass as access token, got %v", err)
	}
	if _, err := iss.Verify(pair.Access, RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token must not pass as refresh token, got %v", err)
	}
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	iss := testIssuer().WithClock(func() time.Time { return base })

	pair, err := iss.Issue(core.Identity{UserID: 1})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later := iss.WithClock(func() time.Time { return base.Add(10 * time.Minute) })
	if _, err := later.Verify(pair.Access, AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}

	other := NewIssuer("other-secret", time.Minute, time.Minute).WithClock(func() time.Time { return base })
	if _, err := other.Verify(pair.Access, AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature mismatch to fail, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	iss := testIssuer()
	pair, _ := iss.Issue(core.Identity{UserID: 3, IsManager: true})

	access, err := iss.Refresh(pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := iss.Verify(access, AccessToken)
	if err != nil {
		t.Fatalf("verify refreshed token: %v", err)
	}
	if !claims.IsManager || claims.UserID != 3 {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := iss.Refresh(pair.Access); err == nil {
		t.Fatalf("expected access token to be refused for refresh")
	}
}

type stubUsers map[int64]core.User

func (s stubUsers) GetUser(_ context.Context, id int64) (core.User, error) {
	u, ok := s[id]
	if !ok {
		return core.User{}, core.NewReferenceError("user", id)
	}
	return u, nil
}

func TestMiddleware(t *testing.T) {
	iss := testIssuer()
	users := stubUsers{
		// promoted to manager after the token was issued
		1: {ID: 1, Username: "sam", IsStudent: true, IsManager: true},
	}
	pair, _ := iss.Issue(core.Identity{UserID: 1, Username: "sam", IsStudent: true})
	ghost, _ := iss.Issue(core.Identity{UserID: 2})

	var seen core.Identity
	var authed bool
	h := Middleware(iss, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, authed = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantAuthed bool
	}{
		{"anonymous", "", http.StatusNoContent, false},
		{"valid token", "Bearer " + pair.Access, http.StatusNoContent, true},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, false},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, false},
		{"refresh token", "Bearer " + pair.Refresh, http.StatusUnauthorized, false},
		{"deleted user", "Bearer " + ghost.Access, http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, authed = core.Identity{}, false
			req := httptest.NewRequest(http.MethodGet, "/api/foods", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if authed != tt.wantAuthed {
				t.Fatalf("authed = %v, want %v", authed, tt.wantAuthed)
			}
			if tt.wantAuthed && !seen.IsManager {
				t.Fatalf("expected identity to reflect the stored user, got %+v", seen)
			}
			if rec.Code == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), "detail") {
				t.Fatalf("expected detail body, got %q", rec.Body.String())
			}
		})
	}
}

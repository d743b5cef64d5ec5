package google

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const testClientJSON = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"s3cret",` +
	`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
	`"redirect_uris":["http://localhost"]}}`

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig([]byte(testClientJSON), "http://localhost:8085/callback")
	if err != nil {
		t.Fatalf("OAuthConfig: %v", err)
	}
	if cfg.ClientID != "id.apps.googleusercontent.com" || cfg.RedirectURL != "http://localhost:8085/callback" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	url := cfg.AuthCodeURL("state", oauth2.AccessTypeOffline)
	if !strings.Contains(url, "access_type=offline") || !strings.Contains(url, "spreadsheets") {
		t.Errorf("auth URL = %s", url)
	}

	if _, err := OAuthConfig([]byte("{}"), ""); err == nil {
		t.Error("expected error for empty client JSON")
	}
}

func TestReadOAuthClient(t *testing.T) {
	b, err := ReadOAuthClient(" "+testClientJSON+" ", "ignored.json")
	if err != nil || string(b) != testClientJSON {
		t.Fatalf("inline client = %q, %v", b, err)
	}
	if _, err := ReadOAuthClient("", ""); err == nil || !strings.Contains(err.Error(), "GOOGLE_OAUTH_CLIENT_JSON") {
		t.Errorf("expected missing client error, got %v", err)
	}
	if _, err := ReadOAuthClient("", filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected read error for missing file")
	}
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	want := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := SaveToken(path, want); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got.RefreshToken != "refresh" || !got.Expiry.Equal(want.Expiry) {
		t.Errorf("token = %+v", got)
	}
}

func TestLoadToken_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := SaveToken(path, &oauth2.Token{}); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if _, err := LoadToken(path); err == nil {
		t.Error("expected error for token without credentials")
	}
}

func TestNew_OAuthMissingToken(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "sheet-1",
		OAuthTokenFile:  filepath.Join(t.TempDir(), "missing.json"),
		OAuthClientJSON: testClientJSON,
	})
	if err == nil || !strings.Contains(err.Error(), "read token file") {
		t.Fatalf("expected token read error, got %v", err)
	}
}

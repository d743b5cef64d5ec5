package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"canteen/internal/core"
	"canteen/internal/report"
)

type fakeSheets struct {
	mu      sync.Mutex
	calls   []string
	written [][]any
	fail    bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if f.fail {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"no access"}}`))
		return
	}

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		f.calls = append(f.calls, "clear")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","clearedRange":"Report!A1:Z1000"}`))
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update")
		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.written = body.Values
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-1",
			"updatedRange":  "Report!A1:F12",
			"updatedRows":   len(body.Values),
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"unexpected call"}}`))
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "sheet-1", "")
}

func TestWriteReport(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	rep := report.Report{Range: report.Range{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 3, 31)}}
	ref, err := c.WriteReport(context.Background(), rep)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if ref != "Report!A1:F12" {
		t.Errorf("ref = %q", ref)
	}
	if strings.Join(fake.calls, ",") != "clear,update" {
		t.Errorf("calls = %v, want clear then update", fake.calls)
	}
	if len(fake.written) == 0 || fake.written[0][0] != "Canteen report" {
		t.Errorf("unexpected grid: %v", fake.written)
	}
}

func TestWriteReport_APIError(t *testing.T) {
	c := newTestClient(t, &fakeSheets{fail: true})

	_, err := c.WriteReport(context.Background(), report.Report{})
	if err == nil || !strings.Contains(err.Error(), "clear Report!A:Z") {
		t.Fatalf("expected clear error, got %v", err)
	}
}

func TestWriteReport_NilService(t *testing.T) {
	c := &Client{sheetName: "Report"}
	if _, err := c.WriteReport(context.Background(), report.Report{}); err == nil {
		t.Fatal("expected error without a service")
	}
}

func TestNew_Validation(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), Config{}); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("expected missing spreadsheet error, got %v", err)
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/nonexistent/creds.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

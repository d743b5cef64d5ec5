package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"canteen/internal/core"
)

func newBodyRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
}

func TestRequestBodyParser_JSON(t *testing.T) {
	parser := NewRequestBodyParser(newBodyRequest(`{"food_id": 3, "quantity": "2", "note": null, "flag": true, "name": "  Soup\u0007 "}`))
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct{ key, want string }{
		{"food_id", "3"},
		{"quantity", "2"},
		{"note", ""},
		{"flag", "true"},
		{"name", "Soup"},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := parser.Get(tt.key); got != tt.want {
			t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
	if !parser.Has("note") || parser.Has("missing") {
		t.Error("Has() should report presence, including null values")
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	parser := NewRequestBodyParser(newBodyRequest("username=sam&password=secret+word"))
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parser.Get("password"); got != "secret word" {
		t.Errorf("Get('password') = %q", got)
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	for _, body := range []string{`{"broken":`, `[1,2]`} {
		parser := NewRequestBodyParser(newBodyRequest(body))
		if err := parser.Parse(); err == nil {
			t.Errorf("Parse(%q) should fail", body)
		}
		// parse result is memoised
		if err := parser.Parse(); err == nil {
			t.Errorf("second Parse(%q) should fail too", body)
		}
	}

	parser := NewRequestBodyParser(newBodyRequest(""))
	if err := parser.Parse(); err != nil {
		t.Fatalf("empty body should parse, got %v", err)
	}
	if parser.Has("anything") {
		t.Error("empty body has no fields")
	}
}

func TestRequestBodyParser_TypedFields(t *testing.T) {
	parser := NewRequestBodyParser(newBodyRequest(`{"quantity": "two", "price": "9.50", "bad_price": "abc", "available": "no", "date": "2024-13-01"}`))
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	assertField := func(err error, field string) {
		t.Helper()
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != field {
			t.Errorf("expected validation error on %q, got %v", field, err)
		}
	}

	_, err := parser.Int("quantity")
	assertField(err, "quantity")
	_, err = parser.Int("food_id")
	assertField(err, "food_id")

	price, err := parser.Money("price")
	if err != nil || price.Cents != 950 {
		t.Errorf("Money('price') = %v, %v", price, err)
	}
	_, err = parser.Money("bad_price")
	assertField(err, "bad_price")

	available, err := parser.Bool("available", true)
	if err != nil || available {
		t.Errorf("Bool('available') = %v, %v", available, err)
	}
	def, _ := parser.Bool("missing", true)
	if !def {
		t.Error("Bool should fall back to the default")
	}

	_, err = parser.Date("date")
	assertField(err, "date")
}

func TestQueryHelpers(t *testing.T) {
	q := url.Values{"cleared": {"true"}, "food": {"7"}, "student": {"x"}, "start": {"2024-01-01"}}

	cleared, err := queryBool(q, "cleared")
	if err != nil || cleared == nil || !*cleared {
		t.Errorf("queryBool(cleared) = %v, %v", cleared, err)
	}
	if v, err := queryBool(q, "absent"); v != nil || err != nil {
		t.Errorf("absent bool should be nil, got %v, %v", v, err)
	}
	food, err := queryID(q, "food")
	if err != nil || food == nil || *food != 7 {
		t.Errorf("queryID(food) = %v, %v", food, err)
	}
	if _, err := queryID(q, "student"); err == nil {
		t.Error("non-numeric id should fail")
	}
	start, err := queryDate(q, "start")
	if err != nil || start.String() != "2024-01-01" {
		t.Errorf("queryDate(start) = %v, %v", start, err)
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"12", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/orders/"+tt.raw, nil)
		r.SetPathValue("id", tt.raw)
		got, ok := pathID(r)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("pathID(%q) = %d, %v", tt.raw, got, ok)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "€0.00"},
		{1050, "€10.50"},
		{123456789, "€1,234,567.89"},
		{-5000, "-€50.00"},
	}
	for _, tt := range tests {
		if got := formatMoney(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("formatMoney(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

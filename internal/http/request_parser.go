package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"canteen/internal/core"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser reads a JSON or form-encoded body once and exposes its
// fields as strings, the way both browser forms and API clients send them.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]json.RawMessage
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse decodes the body. An empty body parses as no fields.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		p.jsonData = make(map[string]json.RawMessage)
		p.err = json.Unmarshal(p.body, &p.jsonData)
		return p.err
	}
	if trimmed[0] == '[' {
		p.err = errors.New("expected an object")
		return p.err
	}
	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Has reports whether the field is present at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns the trimmed string form of a field, or "" when absent or null.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		raw, ok := p.jsonData[key]
		if !ok {
			return ""
		}
		return sanitizeInput(rawString(raw))
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// rawString renders a JSON scalar as text: strings unquoted, numbers and
// booleans verbatim, null as "".
func rawString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal(raw, &out); err == nil {
			return out
		}
	}
	return s
}

// Int parses a required integer field.
func (p *RequestBodyParser) Int(key string) (int64, error) {
	v := p.Get(key)
	if v == "" {
		return 0, core.NewValidationError(key, "This field is required.")
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, core.NewValidationError(key, "A valid integer is required.")
	}
	return n, nil
}

// Money parses a required amount field.
func (p *RequestBodyParser) Money(key string) (core.Money, error) {
	v := p.Get(key)
	if v == "" {
		return core.Money{}, core.NewValidationError(key, "This field is required.")
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		return core.Money{}, core.NewValidationError(key, "A valid number is required.")
	}
	return m, nil
}

// Bool parses an optional boolean field, falling back to def when absent.
func (p *RequestBodyParser) Bool(key string, def bool) (bool, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	b, err := parseBool(v)
	if err != nil {
		return false, core.NewValidationError(key, "Must be a valid boolean.")
	}
	return b, nil
}

// Date parses an optional ISO date field.
func (p *RequestBodyParser) Date(key string) (core.Date, error) {
	v := p.Get(key)
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.NewValidationError(key, "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	return d, nil
}

// parseBool accepts the spellings HTML forms and query strings use.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// queryBool returns nil when the parameter is absent.
func queryBool(q url.Values, key string) (*bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	b, err := parseBool(v)
	if err != nil {
		return nil, core.NewValidationError(key, "Must be a valid boolean.")
	}
	return &b, nil
}

// queryID returns nil when the parameter is absent.
func queryID(q url.Values, key string) (*int64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, core.NewValidationError(key, "A valid integer is required.")
	}
	return &n, nil
}

// queryDate returns the zero date when the parameter is absent.
func queryDate(q url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.NewValidationError(key, "Enter a valid date.")
	}
	return d, nil
}

// pathID reads the {id} wildcard. A non-numeric id cannot name anything.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

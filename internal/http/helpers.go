package http

import (
	"net/http"
	"strings"

	"canteen/internal/auth"
	"canteen/internal/core"
	"canteen/internal/log"
)

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatMoney renders an amount for the HTML report, e.g. "€1,234.50".
func formatMoney(m core.Money) string {
	s := m.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "€" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// authenticated wraps a handler that needs a caller. Anonymous requests get
// 401 before the handler runs.
func authenticated(next func(http.ResponseWriter, *http.Request, core.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			UnauthorizedError().Write(w)
			return
		}
		next(w, r, id)
	}
}

// malformedBody answers 400 for a body that could not be decoded.
func malformedBody(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).DebugContext(r.Context(), "Malformed request body",
		log.FieldError, err.Error(),
		log.FieldOperation, log.OpParse)
	BadRequestError("Malformed request body.").Write(w)
}

package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tracker/internal/core"
)

// sanitizeInput removes control characters (other than tab and newlines)
// and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func categoryIDParam(r *http.Request) core.CategoryID {
	return core.CategoryID(chi.URLParam(r, "id"))
}

func transactionIDParam(r *http.Request) core.TransactionID {
	return core.TransactionID(chi.URLParam(r, "id"))
}

package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["id"])
}

// listOf keeps nil slices from rendering as JSON null.
func listOf[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

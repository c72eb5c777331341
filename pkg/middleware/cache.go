package middleware

import (
	"fmt"
	"net/http"
)

// NoStore forbids caching. Cart and recommendation views change on every action.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// SetMaxAge marks the response as cacheable by the renderer for maxAge
// seconds, replacing any no-store set earlier in the chain. It must be called
// before the header is written.
func SetMaxAge(w http.ResponseWriter, maxAge int) {
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAge))
}

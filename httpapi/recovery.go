package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"

	"vertex-claude-proxy/types"
)

// Recovery wraps a handler so a panic inside one request's ServeHTTP does
// not take down the process (spec.md §6: "Runtime panic inside a request
// must not crash the process"). net/http's own per-connection recover
// already prevents a crash; this middleware additionally turns the panic
// into the same OpenAI-shaped error envelope every other failure path uses,
// instead of a bare dropped connection.
//
// Grounded on cecil-the-coder-ai-provider-kit/pkg/backend/middleware/recovery.go.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("PANIC handling %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				envelope := types.NewErrorEnvelope("internal server error", "internal_error", "")
				_ = json.NewEncoder(w).Encode(envelope)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS returns middleware that applies the configured allowed origin policy.
// A lone "*" allows any origin without credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := splitOrigins(origins)
	wildcard := len(allowed) == 1 && allowed[0] == "*"
	return cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Requested-With", actorHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}).Handler
}

func splitOrigins(origins []string) []string {
	var out []string
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

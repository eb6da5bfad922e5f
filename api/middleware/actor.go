package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	actorHeader = "X-Actor-Id"
	maxActorLen = 128
)

// Actor records the caller named by the X-Actor-Id header. Session
// verification happens upstream; this only carries the identity into the
// ledger and logs.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(actorHeader))
			if actor == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(actor) > maxActorLen {
				actor = actor[:maxActorLen]
			}
			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

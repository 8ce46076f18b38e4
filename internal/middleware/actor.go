package middleware

import (
	"net/http"
	"strings"

	"github.com/rpattn/batchctl/internal/auth"
)

// ActorHeader names the request header carrying the acting operator's
// identity.
const ActorHeader = "X-Actor"

// ActorMiddleware copies the actor header onto the request context so
// handlers can attribute mutations to an operator.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
			r = r.WithContext(auth.ContextWithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// Package middleware provides the HTTP middleware stack for the vision
// gateway API: actor identity extraction, request logging, and tracing.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// ActorIDKey is the context key for the authenticated actor id.
const ActorIDKey contextKey = "actor_id"

// ActorExtractor pulls the actor identity from the request. The
// surrounding application authenticates users and forwards the verified
// id in the X-Actor-Id header; an absent id is left empty so handlers can
// reject the request as unauthenticated.
func ActorExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
		ctx := context.WithValue(r.Context(), ActorIDKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor retrieves the actor id from the request context. Empty means
// unauthenticated.
func GetActor(ctx context.Context) string {
	if v, ok := ctx.Value(ActorIDKey).(string); ok {
		return v
	}
	return ""
}

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"offerdesk/offer-service/internal/offer"
)

// CookieName carries the HR session for browser clients.
const CookieName = "offer-session"

type contextKey string

const actorKey contextKey = "actor"

// Middleware attaches the HR actor to the request context when the request
// carries a valid session, either as "Authorization: Bearer" or the session
// cookie. Requests without one pass through unauthenticated; the engine
// rejects them on HR-only operations.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := sessionToken(r); raw != "" {
			if actor, err := g.Verify(raw); err == nil {
				r = r.WithContext(WithActor(r.Context(), actor))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// WithActor returns ctx carrying actor.
func WithActor(ctx context.Context, actor offer.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the actor attached by Middleware, or the zero
// (unauthenticated) Actor.
func ActorFrom(ctx context.Context) offer.Actor {
	actor, _ := ctx.Value(actorKey).(offer.Actor)
	return actor
}

// SetSessionCookie stores a session for browser clients.
func SetSessionCookie(w http.ResponseWriter, s Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.Fields(h)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

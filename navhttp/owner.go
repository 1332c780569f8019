package navhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// OwnerConfig configures the owner cookie.
type OwnerConfig struct {
	// CookieName holds the owner ID.
	// Default: "tablenav_owner".
	CookieName string

	// MaxAge is the cookie lifetime.
	// Default: 30 days.
	MaxAge time.Duration

	// Secure marks the cookie HTTPS-only.
	Secure bool

	// Resolve, when set, derives the owner from the request instead of the
	// cookie, e.g. from an authenticated user or an existing session ID.
	// An empty result falls back to the cookie.
	Resolve func(r *http.Request) string
}

type ownerKey struct{}

// Middleware makes an owner ID available to handlers through OwnerID.
// Anonymous clients get a random ID in a long-lived cookie.
func Middleware(cfg OwnerConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "tablenav_owner"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID := ""
			if cfg.Resolve != nil {
				ownerID = cfg.Resolve(r)
			}
			if ownerID == "" {
				ownerID = ownerFromCookie(w, r, cfg)
			}
			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}

// ownerFromCookie returns the cookie's owner ID, issuing a new one if the
// cookie is missing or malformed.
func ownerFromCookie(w http.ResponseWriter, r *http.Request, cfg OwnerConfig) string {
	if c, err := r.Cookie(cfg.CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// WithOwnerID returns a context carrying ownerID.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerID returns the owner ID set by Middleware, or "".
func OwnerID(r *http.Request) string {
	id, _ := r.Context().Value(ownerKey{}).(string)
	return id
}

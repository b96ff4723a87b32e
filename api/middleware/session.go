package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const SessionHeader = "X-Session-Id"

const maxSessionIDLength = 128

// Session reads the anonymous session id from the X-Session-Id header or the
// session cookie.
func Session(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := sessionFromRequest(r, cfg.CookieName)
			if sid == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithSessionID(r.Context(), sid)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sid)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EnsureSession mints a session for anonymous callers that have none and
// returns it in both the header and the cookie.
func EnsureSession(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !IdentityFromContext(ctx).IsZero() {
				next.ServeHTTP(w, r)
				return
			}

			sid := uuid.NewString()
			w.Header().Set(SessionHeader, sid)
			http.SetCookie(w, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    sid,
				Path:     "/",
				Expires:  time.Now().Add(cfg.TTL),
				MaxAge:   int(cfg.TTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx = WithSessionID(ctx, sid)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sid)
				logg.Debug(ctx, "session minted")
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromRequest(r *http.Request, cookieName string) string {
	if sid := cleanSessionID(r.Header.Get(SessionHeader)); sid != "" {
		return sid
	}
	if cookieName == "" {
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cleanSessionID(cookie.Value)
	}
	return ""
}

func cleanSessionID(raw string) string {
	sid := strings.TrimSpace(raw)
	if len(sid) > maxSessionIDLength {
		return ""
	}
	return sid
}

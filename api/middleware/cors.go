package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, SessionHeader, requestIDHeader}
)

// CORS lets the configured storefront origins call the API. Credentials are
// only allowed for explicit origins since browsers refuse them with "*".
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	wildcard := slices.Contains(cfg.AllowedOrigins, "*")
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsHeaders,
		ExposedHeaders:   []string{SessionHeader, requestIDHeader, "Retry-After"},
		AllowCredentials: !wildcard,
		MaxAge:           600,
	}).Handler
}

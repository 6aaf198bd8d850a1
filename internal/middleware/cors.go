// Package middleware provides reusable HTTP middleware for the Travel Logbook API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// NewCORSHandler builds a CORS middleware for the given origins. Origins are
// matched exactly against the Origin header (scheme + host, no trailing
// slash). The method and header lists cover everything the frontend sends,
// including multipart media uploads.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
	return cors.New(opts).Handler
}

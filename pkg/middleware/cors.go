package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware enforcing cfg through go-chi/cors.
// Passes through untouched when disabled or no origins are configured.
func CORS(cfg *CORSConfig) Middleware {
	if !cfg.Enabled || len(cfg.Origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}

package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/hirelink/hireauth"
)

// CORS builds the cross-origin handler for cfg. With no AllowedOrigins every
// origin is echoed back, which keeps credentials usable where a literal "*"
// would not be.
func CORS(cfg hireauth.CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	opts := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if len(cfg.AllowedOrigins) == 0 {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	}
	return cors.Handler(opts)
}

package middleware

import "net/http"

// CORS applies the open policy the webhook surface requires: providers
// and browser consoles call it from arbitrary origins, and signatures may
// arrive via custom headers.
func CORS() func(http.Handler) http.Handler {
	const (
		allowedHeaders = "authorization, x-client-info, apikey, content-type, x-hub-signature-256, x-signature-256"
		allowedMethods = "GET, POST, OPTIONS"
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			next.ServeHTTP(w, r)
		})
	}
}

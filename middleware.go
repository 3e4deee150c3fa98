package main

import (
	"net/http"
	"strings"
)

// withSecurityHeaders adds browser hardening headers to every response. Frame
// policy defaults to embeddable because the dashboard normally runs inside a
// platform iframe; operators restrict it via frame_origins.
func withSecurityHeaders(next http.Handler) http.Handler {
	policy := strings.TrimSpace(serverConfig.Server.FrameOrigins)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		switch {
		case strings.EqualFold(policy, "deny"):
			h.Set("X-Frame-Options", "DENY")
		case policy == "" || policy == "*":
			h.Set("Content-Security-Policy", "frame-ancestors *")
		default:
			var ancestors []string
			for _, o := range strings.Split(policy, ",") {
				if o = strings.TrimSpace(o); o != "" {
					ancestors = append(ancestors, o)
				}
			}
			h.Set("Content-Security-Policy", "frame-ancestors "+strings.Join(ancestors, " "))
		}
		next.ServeHTTP(w, r)
	})
}

// withCORS handles cross-origin requests. With an explicit origin list the
// server echoes matching origins and allows credentials; without one it
// serves wildcard CORS and bearer tokens stay out of cookies anyway.
func withCORS(next http.Handler) http.Handler {
	allowed := serverConfig.Server.CORSOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		h := w.Header()
		if len(allowed) == 0 {
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "*")
		} else if origin != "" && originAllowed(allowed, origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Sensoriqua-DSN")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

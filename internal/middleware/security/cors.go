package security

import (
	"net/http"
	"net/url"
	"strings"
)

// CORSConfig selects which browser origins may call the API.
type CORSConfig struct {
	AllowedOrigins []string
	// AllowAll accepts any origin. Used outside production.
	AllowAll bool
}

// CORS answers preflight requests and reflects allowed origins.
type CORS struct {
	allowed  map[string]bool
	allowAll bool
}

const (
	corsMethods = "GET, POST, PATCH, DELETE, OPTIONS"
	corsHeaders = "Authorization, Content-Type, X-Request-ID"
)

// NewCORS creates the CORS middleware.
func NewCORS(config CORSConfig) *CORS {
	allowed := make(map[string]bool, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[o] = true
		}
	}
	return &CORS{allowed: allowed, allowAll: config.AllowAll}
}

// Allowed reports whether origin may call the API. Vercel preview
// deployments are always accepted.
func (c *CORS) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if c.allowAll || c.allowed[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "https" && strings.HasSuffix(u.Hostname(), ".vercel.app")
}

// Middleware returns the HTTP middleware function
func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		h := w.Header()
		h.Add("Vary", "Origin")

		if c.Allowed(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if c.Allowed(origin) {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

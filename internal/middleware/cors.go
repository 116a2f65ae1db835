package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins is a list of origins allowed to make cross-origin requests.
	// Use specific origins in production; never use "*" with credentials.
	AllowedOrigins []string

	// AllowedMethods specifies the allowed HTTP methods.
	// Default: GET, POST, PUT, PATCH, DELETE, OPTIONS
	AllowedMethods []string

	// AllowedHeaders specifies the allowed request headers.
	// Default: Content-Type, Authorization, X-Request-ID
	AllowedHeaders []string

	// ExposedHeaders specifies which headers the browser can access.
	// Default: X-Request-ID, X-RateLimit-*, Retry-After
	ExposedHeaders []string

	// AllowCredentials indicates whether credentials (cookies, auth) are allowed.
	// Be careful: if true, AllowedOrigins cannot contain "*".
	AllowCredentials bool

	// MaxAge is the value for Access-Control-Max-Age header (in seconds).
	// Default: 86400 (24 hours)
	MaxAge int
}

// DefaultCORSConfig returns production-safe CORS defaults.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-Request-ID",
			"Accept",
			"Accept-Language",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		AllowCredentials: false,
		MaxAge:           86400, // 24 hours
	}
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing,
// including preflight OPTIONS requests. See newOriginPolicy for the
// accepted AllowedOrigins patterns.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	preflight := http.Header{}
	preflight.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
	preflight.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
	if cfg.MaxAge > 0 {
		preflight.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
	}
	exposed := strings.Join(cfg.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")

			if !policy.allows(origin) {
				// Browsers drop the response without the allow header.
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				for k, v := range preflight {
					h[k] = v
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originPolicy matches request origins against configured patterns.
type originPolicy struct {
	exact      map[string]struct{}
	subdomains []string // ".example.com"
	schemes    []string // "vscode-webview://"
}

// newOriginPolicy compiles patterns. Entries are matched case-insensitively:
//
//	https://app.example.com  exact origin
//	*.example.com            any subdomain over any scheme
//	vscode-webview://*       any origin with that scheme
func newOriginPolicy(patterns []string) *originPolicy {
	p := &originPolicy{exact: make(map[string]struct{}, len(patterns))}
	for _, raw := range patterns {
		pattern := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case pattern == "":
		case strings.HasPrefix(pattern, "*."):
			p.subdomains = append(p.subdomains, pattern[1:])
		case strings.HasSuffix(pattern, "://*"):
			p.schemes = append(p.schemes, strings.TrimSuffix(pattern, "*"))
		default:
			p.exact[strings.TrimSuffix(pattern, "/")] = struct{}{}
		}
	}
	return p
}

func (p *originPolicy) allows(origin string) bool {
	origin = strings.ToLower(origin)
	if _, ok := p.exact[origin]; ok {
		return true
	}

	for _, scheme := range p.schemes {
		if strings.HasPrefix(origin, scheme) && len(origin) > len(scheme) {
			return true
		}
	}

	// ".example.com" matches "https://sub.example.com" but not
	// "https://notexample.com" or "https://example.com".
	for _, suffix := range p.subdomains {
		rest, ok := strings.CutSuffix(origin, suffix)
		if !ok {
			continue
		}
		if i := strings.Index(rest, "://"); i >= 0 && len(rest) > i+3 {
			return true
		}
	}
	return false
}

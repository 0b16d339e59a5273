package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public", "203.0.113.9:5555", "", "", "203.0.113.9"},
		{"untrusted peer ignores XFF", "203.0.113.9:5555", "198.51.100.1", "", "203.0.113.9"},
		{"trusted proxy uses first XFF", "10.0.0.2:80", "198.51.100.1, 10.0.0.3", "", "198.51.100.1"},
		{"trusted proxy falls back to X-Real-IP", "127.0.0.1:80", "garbage", "198.51.100.7", "198.51.100.7"},
		{"no port", "192.0.2.1", "", "", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsSuspicious(t *testing.T) {
	d := NewDetector()
	tests := []struct {
		name   string
		method string
		target string
		ua     string
		want   bool
	}{
		{"normal", http.MethodGet, "/dashboard/summary?month=1&year=2026", "Mozilla/5.0", false},
		{"dotenv lookup", http.MethodGet, "/.env", "", true},
		{"traversal in query", http.MethodGet, "/transactions?file=../../etc/passwd", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.ua)
			if got := d.IsSuspicious(r); got != tt.want {
				t.Errorf("IsSuspicious() = %v, want %v", got, tt.want)
			}
		})
	}
	if d.GetMetrics().SuspiciousRequests != 4 {
		t.Fatalf("SuspiciousRequests = %d", d.GetMetrics().SuspiciousRequests)
	}
}

func TestHeaders(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff")
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	prod := NewCORS(CORSConfig{AllowedOrigins: []string{"https://mycontrol.example.com/"}}).Middleware(next)
	dev := NewCORS(CORSConfig{AllowAll: true}).Middleware(next)

	tests := []struct {
		name      string
		handler   http.Handler
		method    string
		origin    string
		preflight bool
		wantCode  int
		wantAllow string
	}{
		{"listed origin", prod, http.MethodGet, "https://mycontrol.example.com", false, http.StatusOK, "https://mycontrol.example.com"},
		{"vercel preview", prod, http.MethodGet, "https://mycontrol-git-main.vercel.app", false, http.StatusOK, "https://mycontrol-git-main.vercel.app"},
		{"plain http vercel", prod, http.MethodGet, "http://x.vercel.app", false, http.StatusOK, ""},
		{"unknown origin", prod, http.MethodGet, "https://evil.example", false, http.StatusOK, ""},
		{"preflight", prod, http.MethodOptions, "https://mycontrol.example.com", true, http.StatusNoContent, "https://mycontrol.example.com"},
		{"dev allows all", dev, http.MethodGet, "http://localhost:5173", false, http.StatusOK, "http://localhost:5173"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/transactions", nil)
			r.Header.Set("Origin", tt.origin)
			if tt.preflight {
				r.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			tt.handler.ServeHTTP(rr, r)
			if rr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tt.wantCode)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("allow origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.preflight && rr.Header().Get("Access-Control-Allow-Methods") == "" {
				t.Error("preflight missing allowed methods")
			}
		})
	}
}

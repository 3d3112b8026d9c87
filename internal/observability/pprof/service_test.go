package pprof

import (
	"net/http"
	"net/http/httptest"
	"testing"

	logx "archsite/pkg/logx"
)

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
}

func TestGuard(t *testing.T) {
	t.Parallel()
	h := New(Config{Enabled: true, Token: "s3cret", MutexProfileFraction: -1, BlockProfileRate: -1}, logx.Nop())
	g := h.Guard(denyAll)

	tests := []struct {
		name   string
		target string
		bearer string
		want   int
	}{
		{"query token", "/debug/pprof/cmdline?token=s3cret", "", http.StatusOK},
		{"bearer token", "/debug/pprof/cmdline", "s3cret", http.StatusOK},
		{"wrong query token", "/debug/pprof/cmdline?token=nope", "", http.StatusUnauthorized},
		{"foreign bearer falls back", "/debug/pprof/cmdline", "session", http.StatusForbidden},
		{"no credentials falls back", "/debug/pprof/", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			rec := httptest.NewRecorder()
			g.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestDisabledIsNotFound(t *testing.T) {
	t.Parallel()
	h := New(Config{Token: "x", MutexProfileFraction: -1, BlockProfileRate: -1}, logx.Nop())
	rec := httptest.NewRecorder()
	h.Guard(denyAll).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/?token=x", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestNormalizePrefix(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"":             "/debug/pprof/",
		"admin/pprof":  "/admin/pprof/",
		"/x/":          "/x/",
		" /debug/pp ": "/debug/pp/",
	} {
		if got := NormalizePrefix(in); got != want {
			t.Fatalf("NormalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

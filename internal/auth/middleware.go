package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "archsite/pkg/logx"
)

// CookieName carries the admin session token.
const CookieName = "archsite_session"

type ctxKey struct{}

// Actor returns the signed-in admin stored by RequireAdmin, or "".
func Actor(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// WithActor returns ctx carrying username.
func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKey{}, username)
}

// TokenFromRequest reads the session cookie, then a Bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return ""
}

func (s *Service) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.config().CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config().CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireAdmin lets signed-in requests through. API requests without a
// session get 401; page requests are redirected to the login form.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Authenticate(r.Context(), TokenFromRequest(r))
		if err == nil {
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), user)))
			return
		}
		if !errors.Is(err, ErrUnauthenticated) {
			s.log.Error("session lookup failed", logx.Err(err))
		}
		if isAPI(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		dest := "/admin/login"
		if r.Method == http.MethodGet {
			dest += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, dest, http.StatusSeeOther)
	})
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.HasPrefix(r.URL.Path, "/debug/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

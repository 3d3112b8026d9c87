package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"archsite/internal/storage"
	logx "archsite/pkg/logx"
)

func newAuth(t *testing.T, cfg Config) (*Service, *storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: ":memory:"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	if cfg.Username == "" {
		hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.Username, cfg.PasswordHash = "admin", string(hash)
	}
	return New(cfg, st, logx.Nop()), st
}

func TestLoginAndAuthenticate(t *testing.T) {
	s, st := newAuth(t, Config{})
	ctx := context.Background()

	_, _, err := s.Login(ctx, "admin", "wrong", "10.0.0.1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Login(ctx, "root", "s3cret", "10.0.0.1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	token, exp, err := s.Login(ctx, "admin", "s3cret", "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, token, 43)
	require.WithinDuration(t, time.Now().Add(defaultTTL), exp, time.Minute)

	// Only the hash is stored.
	_, err = st.GetSession(ctx, token)
	require.Error(t, err)

	user, err := s.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "admin", user)

	require.NoError(t, s.Logout(ctx, token))
	_, err = s.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSessionExpiry(t *testing.T) {
	s, _ := newAuth(t, Config{})
	s.Apply(Config{Username: s.cfg.Username, PasswordHash: s.cfg.PasswordHash, SessionTTL: time.Minute})
	ctx := context.Background()
	token, _, err := s.Login(ctx, "admin", "s3cret", "10.0.0.2")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrUnauthenticated)

	n, err := s.PruneSessions(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "expired session already removed by Authenticate")
}

func TestLoginRateLimitedPerIP(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	s, _ := newAuth(t, Config{Username: "admin", PasswordHash: string(hash), LoginRatePerMin: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := s.Login(ctx, "admin", "nope", "192.0.2.1")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, _, err = s.Login(ctx, "admin", "pw", "192.0.2.1")
	require.ErrorIs(t, err, ErrRateLimited)

	_, _, err = s.Login(ctx, "admin", "pw", "192.0.2.2")
	require.NoError(t, err)
}

func TestRequireAdmin(t *testing.T) {
	s, _ := newAuth(t, Config{})
	token, _, err := s.Login(context.Background(), "admin", "s3cret", "10.0.0.3")
	require.NoError(t, err)

	h := s.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello " + Actor(r.Context())))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/projects", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "unauthorized")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/projects?page=2", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/admin/login?next=%2Fadmin%2Fprojects%3Fpage%3D2", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello admin", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSetCookie(t *testing.T) {
	s, _ := newAuth(t, Config{})
	s.Apply(Config{Username: "admin", PasswordHash: s.cfg.PasswordHash, CookieSecure: true})
	rec := httptest.NewRecorder()
	s.SetCookie(rec, "tok", time.Now().Add(time.Hour))
	c := rec.Header().Get("Set-Cookie")
	require.True(t, strings.HasPrefix(c, CookieName+"=tok"))
	require.Contains(t, c, "HttpOnly")
	require.Contains(t, c, "Secure")
	require.Contains(t, c, "SameSite=Lax")
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("letmein")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("letmein")))
}

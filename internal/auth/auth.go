// Package auth implements the single-admin login: bcrypt credentials from
// config, opaque session tokens stored hashed in the database, and a
// per-IP login rate limit.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"archsite/internal/content"
	"archsite/internal/storage"
	logx "archsite/pkg/logx"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrUnauthenticated    = errors.New("not signed in")
)

const (
	tokenBytes      = 32
	limiterIdle     = 15 * time.Minute
	defaultTTL      = 12 * time.Hour
	defaultLoginRPM = 10
)

type Config struct {
	Username        string
	PasswordHash    string
	SessionTTL      time.Duration
	LoginRatePerMin int
	CookieSecure    bool
}

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultTTL
	}
	if c.LoginRatePerMin <= 0 {
		c.LoginRatePerMin = defaultLoginRPM
	}
	return c
}

// Store persists sessions. *storage.Store implements it.
type Store interface {
	CreateSession(ctx context.Context, s storage.Session) error
	GetSession(ctx context.Context, tokenHash string) (storage.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	PruneSessions(ctx context.Context, now time.Time) (int64, error)
}

type ipLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

type Service struct {
	mu       sync.Mutex
	cfg      Config
	store    Store
	log      logx.Logger
	now      func() time.Time
	limiters map[string]*ipLimiter
}

func New(cfg Config, store Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		store:    store,
		log:      log.With(logx.String("comp", "auth")),
		now:      time.Now,
		limiters: map[string]*ipLimiter{},
	}
}

// Apply swaps credentials and limits. Existing sessions stay valid.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.LoginRatePerMin != s.cfg.LoginRatePerMin {
		s.limiters = map[string]*ipLimiter{}
	}
	s.cfg = cfg
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// HashPassword returns a bcrypt hash suitable for admin.password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// HashToken is the stored form of a session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Service) allow(ip string) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, l := range s.limiters {
		if now.Sub(l.seen) > limiterIdle {
			delete(s.limiters, k)
		}
	}
	l := s.limiters[ip]
	if l == nil {
		perMin := s.cfg.LoginRatePerMin
		l = &ipLimiter{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin)}
		s.limiters[ip] = l
	}
	l.seen = now
	return l.lim.AllowN(now, 1)
}

// Login checks credentials and opens a session. The returned token is only
// ever sent to the client.
func (s *Service) Login(ctx context.Context, username, password, ip string) (string, time.Time, error) {
	if !s.allow(ip) {
		s.log.Warn("login rate limited", logx.String("ip", ip))
		return "", time.Time{}, ErrRateLimited
	}
	cfg := s.config()
	if cfg.Username == "" || cfg.PasswordHash == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		s.log.Info("login failed", logx.String("ip", ip))
		return "", time.Time{}, ErrInvalidCredentials
	}

	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	now := s.now()
	sess := storage.Session{
		TokenHash: HashToken(token),
		Username:  cfg.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(cfg.SessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("admin signed in", logx.String("user", cfg.Username), logx.String("ip", ip))
	return token, sess.ExpiresAt, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, HashToken(token))
}

// Authenticate returns the username behind a live session token.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	h := HashToken(token)
	sess, err := s.store.GetSession(ctx, h)
	if errors.Is(err, content.ErrNotFound) {
		return "", ErrUnauthenticated
	}
	if err != nil {
		return "", err
	}
	if !s.now().Before(sess.ExpiresAt) {
		_ = s.store.DeleteSession(ctx, h)
		return "", ErrUnauthenticated
	}
	return sess.Username, nil
}

// PruneSessions deletes expired sessions.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	return s.store.PruneSessions(ctx, s.now())
}

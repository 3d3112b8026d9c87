package pprof

import (
	"crypto/subtle"
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"strings"
	"sync"

	logx "archsite/pkg/logx"
)

// Config controls the profiling endpoints mounted on the site router.
//
// Security: requests must carry Token (Bearer header or ?token=) or pass the
// fallback handler given to Handler.Guard (an admin session in practice).
type Config struct {
	Enabled bool
	Prefix  string
	Token   string

	MutexProfileFraction int
	BlockProfileRate     int
}

// Handler serves net/http/pprof under a fixed prefix. Enabled and Token are
// hot-swappable; the prefix is fixed at construction.
type Handler struct {
	mu     sync.RWMutex
	cfg    Config
	prefix string
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Handler{prefix: NormalizePrefix(cfg.Prefix), log: log}
	h.Apply(cfg)
	return h
}

// Prefix is the canonical mount point, always with a trailing slash.
func (h *Handler) Prefix() string { return h.prefix }

// Apply swaps the live config and the runtime profiling rates.
func (h *Handler) Apply(cfg Config) {
	applyRuntimeRates(cfg)
	h.mu.Lock()
	was := h.cfg.Enabled
	h.cfg = cfg
	h.mu.Unlock()
	if cfg.Enabled != was {
		h.log.Info("pprof toggled", logx.Bool("enabled", cfg.Enabled), logx.String("prefix", h.prefix), logx.Bool("token_set", cfg.Token != ""))
	}
}

func (h *Handler) config() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func applyRuntimeRates(cfg Config) {
	// 0 keeps Go default; negative values are ignored.
	if cfg.MutexProfileFraction >= 0 {
		runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
	}
	if cfg.BlockProfileRate >= 0 {
		runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	}
}

// Guard serves the profiles when the request carries the token and hands
// everything else to fallback. A disabled handler answers 404.
func (h *Handler) Guard(fallback func(http.Handler) http.Handler) http.Handler {
	guarded := fallback(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := h.config()
		if !cfg.Enabled {
			http.NotFound(w, r)
			return
		}
		switch tokenMatch(cfg.Token, r) {
		case matchOK:
			h.ServeHTTP(w, r)
		case matchBad:
			unauthorized(w)
		default:
			guarded.ServeHTTP(w, r)
		}
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.config().Enabled {
		http.NotFound(w, r)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, h.prefix)
	switch name {
	case "cmdline":
		hpprof.Cmdline(w, r)
	case "profile":
		hpprof.Profile(w, r)
	case "symbol":
		hpprof.Symbol(w, r)
	case "trace":
		hpprof.Trace(w, r)
	default:
		// pprof.Index assumes requests are rooted at /debug/pprof/.
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/debug/pprof/" + name
		hpprof.Index(w, r2)
	}
}

type match int

const (
	matchNone match = iota
	matchOK
	matchBad
)

// tokenMatch accepts ?token=<token> or "Authorization: Bearer <token>". A
// wrong query token is rejected; a foreign bearer value may still be an admin
// session, so it falls through to the fallback.
func tokenMatch(token string, r *http.Request) match {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return matchNone
	}
	if got := r.URL.Query().Get("token"); got != "" {
		if equal(got, tok) {
			return matchOK
		}
		return matchBad
	}
	if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
		if equal(strings.TrimSpace(strings.TrimPrefix(ah, "Bearer ")), tok) {
			return matchOK
		}
	}
	return matchNone
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// NormalizePrefix returns prefix with leading and trailing slashes, defaulting
// to /debug/pprof/.
func NormalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = "/debug/pprof/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

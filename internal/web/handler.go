package web

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"archsite/internal/auth"
	"archsite/internal/content"
	"archsite/internal/notifier"
	"archsite/internal/observability/pprof"
	"archsite/internal/task/engine"
	"archsite/internal/task/scheduler"
	"archsite/internal/upload"
	logx "archsite/pkg/logx"
)

const defaultMaxBodyBytes = 1 << 20

// Config holds the hot-swappable site settings.
type Config struct {
	SiteName          content.Localized
	BaseURL           string
	ContactEmail      string
	DefaultLocale     content.Locale
	ContactRatePerMin int
	MaxBodyBytes      int64
	// TrustProxy honors X-Forwarded-For / X-Real-IP. Fixed at construction.
	TrustProxy bool
}

func (c Config) withDefaults() Config {
	if c.SiteName.En == "" {
		c.SiteName.En = "Studio"
	}
	if _, ok := content.ParseLocale(string(c.DefaultLocale)); !ok {
		c.DefaultLocale = content.English
	}
	if c.ContactRatePerMin <= 0 {
		c.ContactRatePerMin = 5
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return c
}

// TaskSource exposes the task engine state. *engine.Service implements it.
type TaskSource interface {
	Snapshot() engine.Snapshot
}

// ScheduleSource exposes the maintenance schedules. *scheduler.Service implements it.
type ScheduleSource interface {
	Snapshot() scheduler.Snapshot
	Trigger(name string) error
}

// AlertSource exposes recently delivered admin alerts. *notifier.Service implements it.
type AlertSource interface {
	History() []notifier.HistoryItem
}

// Deps are the services behind the router. Tasks, Schedules, Alerts, Pprof
// and Health are optional.
type Deps struct {
	Content   *content.Manager
	Auth      *auth.Service
	Uploads   *upload.Service
	Tasks     TaskSource
	Schedules ScheduleSource
	Alerts    AlertSource
	Pprof     *pprof.Handler
	Health    func(context.Context) error
}

// Handler is the site's http.Handler.
type Handler struct {
	mu  sync.RWMutex
	cfg Config

	deps    Deps
	log     logx.Logger
	rd      *renderer
	contact *ipLimiter
	router  chi.Router
}

func New(cfg Config, deps Deps, log logx.Logger) (*Handler, error) {
	if deps.Content == nil || deps.Auth == nil || deps.Uploads == nil {
		return nil, errors.New("web: content, auth and uploads are required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rd, err := newRenderer()
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	h := &Handler{
		cfg:     cfg,
		deps:    deps,
		log:     log.With(logx.String("comp", "web")),
		rd:      rd,
		contact: newIPLimiter(cfg.ContactRatePerMin),
	}
	h.router = h.routes(cfg.TrustProxy)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Apply swaps site settings and the contact rate limit.
func (h *Handler) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	h.mu.Lock()
	cfg.TrustProxy = h.cfg.TrustProxy
	h.cfg = cfg
	h.mu.Unlock()
	h.contact.setRate(cfg.ContactRatePerMin)
}

func (h *Handler) config() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func (h *Handler) routes(trustProxy bool) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(logx.HTTPMiddleware(h.log))
	r.Use(h.recoverer)
	r.NotFound(h.notFound)

	r.Get("/healthz", h.healthz)
	r.Get("/", h.rootRedirect)
	r.Get("/robots.txt", h.robots)
	r.Get("/sitemap.xml", h.sitemap)

	static, _ := fs.Sub(assets, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", cacheFor(time.Hour, http.FileServer(http.FS(hiddenFS{static})))))
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", cacheFor(24*time.Hour, http.FileServer(http.FS(hiddenFS{os.DirFS(h.deps.Uploads.Layout().Dir)})))))

	r.Route("/{lang}", func(r chi.Router) {
		r.Use(h.withLocale)
		r.Get("/", h.home)
		r.Get("/about", h.about)
		r.Get("/projects", h.projects)
		r.Get("/projects/{slug}", h.project)
		r.Get("/blog", h.blog)
		r.Get("/blog/{slug}", h.post)
		r.Get("/awards", h.awards)
		r.Get("/team", h.team)
		r.Get("/services", h.services)
		r.Get("/contact", h.contactForm)
		r.With(h.limitBody).Post("/contact", h.contactSubmit)
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.limitBody)
			h.publicAPI(r)
			r.Route("/auth", h.sessionAPI)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.deps.Auth.RequireAdmin, h.limitBody)
			h.adminAPI(r)
		})
		r.Route("/upload", func(r chi.Router) {
			r.Use(h.deps.Auth.RequireAdmin)
			r.Post("/", h.uploadSingle)
			r.Post("/chunk", h.uploadChunk)
			r.Get("/chunk/{id}", h.chunkStatus)
			r.Delete("/chunk/{id}", h.chunkAbort)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.limitBody)
		r.Get("/login", h.loginForm)
		r.Post("/login", h.loginSubmit)
		r.Group(func(r chi.Router) {
			r.Use(h.deps.Auth.RequireAdmin)
			h.adminPages(r)
		})
	})

	if pp := h.deps.Pprof; pp != nil {
		r.Handle(pp.Prefix()+"*", pp.Guard(h.deps.Auth.RequireAdmin))
	}
	return r
}

func (h *Handler) withLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "lang")
		l, ok := content.ParseLocale(raw)
		if !ok || string(l) != raw {
			h.notFound(w, r)
			return
		}
		if c, err := r.Cookie(langCookie); err != nil || c.Value != raw {
			http.SetCookie(w, &http.Cookie{
				Name:     langCookie,
				Value:    raw,
				Path:     "/",
				MaxAge:   365 * 24 * 3600,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), localeKey{}, l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type localeKey struct{}

func localeFrom(r *http.Request) (content.Locale, bool) {
	l, ok := r.Context().Value(localeKey{}).(content.Locale)
	return l, ok
}

func (h *Handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, h.config().MaxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.log.Error("http handler panic", logx.Any("panic", rec), logx.String("path", r.URL.Path),
				logx.String("req_id", middleware.GetReqID(r.Context())), logx.String("stack", string(debug.Stack())))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Health(ctx); err != nil {
			h.log.Warn("health check failed", logx.Err(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) rootRedirect(w http.ResponseWriter, r *http.Request) {
	l := preferredLocale(r, h.config().DefaultLocale)
	http.Redirect(w, r, "/"+string(l)+"/", http.StatusFound)
}

// siteBase is the absolute origin used in the sitemap. Without a configured
// base URL it is derived from the request host.
func (h *Handler) siteBase(r *http.Request) string {
	cfg := h.config()
	if base := strings.TrimSuffix(cfg.BaseURL, "/"); base != "" {
		return base
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if cfg.TrustProxy {
		if p := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); p == "http" || p == "https" {
			scheme = p
		}
	}
	return scheme + "://" + r.Host
}

func (h *Handler) robots(w http.ResponseWriter, r *http.Request) {
	base := h.siteBase(r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("User-agent: *\nDisallow: /admin/\nDisallow: /api/\nSitemap: " + base + "/sitemap.xml\n"))
}

func cacheFor(d time.Duration, next http.Handler) http.Handler {
	v := "public, max-age=" + strconv.Itoa(int(d.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", v)
		next.ServeHTTP(w, r)
	})
}

// hiddenFS hides directories and dot-prefixed entries (chunk sessions,
// partial transcodes) from the file server.
type hiddenFS struct{ fsys fs.FS }

func (h hiddenFS) Open(name string) (fs.File, error) {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." {
			return nil, fs.ErrNotExist
		}
	}
	f, err := h.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() || strings.HasSuffix(name, ".part") {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

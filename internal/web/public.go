package web

import (
	"encoding/xml"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"archsite/internal/content"
	logx "archsite/pkg/logx"
)

func (h *Handler) view(r *http.Request, data any) view {
	cfg := h.config()
	l, ok := localeFrom(r)
	if !ok {
		l = preferredLocale(r, cfg.DefaultLocale)
	}
	p := r.URL.Path
	if rest, ok := strings.CutPrefix(p, "/"+string(l)); ok {
		p = rest
	}
	if p == "" {
		p = "/"
	}
	return view{
		Site:   siteInfo{Name: cfg.SiteName, BaseURL: cfg.BaseURL, ContactEmail: cfg.ContactEmail},
		Locale: l,
		Path:   p,
		Data:   data,
	}
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	if err := h.rd.render(w, status, "site/"+name, v); err != nil {
		h.log.Error("render failed", logx.String("page", name), logx.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// pageError renders the localized error page for err.
func (h *Handler) pageError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.log.Error("page failed", logx.String("path", r.URL.Path), logx.Err(err))
	}
	key := "error.500"
	if status == http.StatusNotFound {
		key = "error.404"
	}
	v := h.view(r, status)
	v.Title = v.T(key)
	h.page(w, r, status, "error", v)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}
	h.pageError(w, r, content.ErrNotFound)
}

type homeData struct {
	Page     *content.Page
	Featured []content.Project
	Posts    []content.Post
	Services []content.Service
	Awards   []content.Award
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	c := h.deps.Content
	var d homeData
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		d.Page, err = c.GetPage(ctx, content.PageHome)
		return err
	})
	g.Go(func() (err error) {
		d.Featured, err = c.ListProjects(ctx, content.ListOptions{PublishedOnly: true, FeaturedOnly: true, Limit: 6})
		return err
	})
	g.Go(func() (err error) {
		d.Posts, err = c.ListPosts(ctx, content.ListOptions{PublishedOnly: true, Limit: 3})
		return err
	})
	g.Go(func() (err error) {
		d.Services, err = c.ListServices(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.Awards, err = c.ListAwards(ctx)
		if len(d.Awards) > 6 {
			d.Awards = d.Awards[:6]
		}
		return err
	})
	if err := g.Wait(); err != nil {
		h.pageError(w, r, err)
		return
	}
	v := h.view(r, d)
	v.Title = d.Page.Title.Get(v.Locale)
	h.page(w, r, http.StatusOK, "home", v)
}

type aboutData struct {
	Page *content.Page
	Team []content.TeamMember
}

func (h *Handler) about(w http.ResponseWriter, r *http.Request) {
	var d aboutData
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		d.Page, err = h.deps.Content.GetPage(ctx, content.PageAbout)
		return err
	})
	g.Go(func() (err error) {
		d.Team, err = h.deps.Content.ListTeam(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.pageError(w, r, err)
		return
	}
	v := h.view(r, d)
	v.Title = firstNonEmpty(d.Page.Title.Get(v.Locale), v.T("nav.about"))
	h.page(w, r, http.StatusOK, "about", v)
}

type projectsData struct {
	Projects   []content.Project
	Categories []string
	Category   string
}

func (h *Handler) projects(w http.ResponseWriter, r *http.Request) {
	all, err := h.deps.Content.ListProjects(r.Context(), content.ListOptions{PublishedOnly: true})
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	d := projectsData{Category: strings.TrimSpace(r.URL.Query().Get("category"))}
	seen := map[string]bool{}
	for _, p := range all {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			d.Categories = append(d.Categories, p.Category)
		}
		if d.Category == "" || p.Category == d.Category {
			d.Projects = append(d.Projects, p)
		}
	}
	sort.Strings(d.Categories)
	v := h.view(r, d)
	v.Title = v.T("nav.projects")
	h.page(w, r, http.StatusOK, "projects", v)
}

func (h *Handler) project(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Content.ProjectBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err == nil && !p.Published {
		err = content.ErrNotFound
	}
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	v := h.view(r, p)
	v.Title = p.Title.Get(v.Locale)
	h.page(w, r, http.StatusOK, "project", v)
}

func (h *Handler) blog(w http.ResponseWriter, r *http.Request) {
	posts, err := h.deps.Content.ListPosts(r.Context(), content.ListOptions{PublishedOnly: true})
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	v := h.view(r, posts)
	v.Title = v.T("nav.blog")
	h.page(w, r, http.StatusOK, "blog", v)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Content.PostBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err == nil && !p.Published {
		err = content.ErrNotFound
	}
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	v := h.view(r, p)
	v.Title = p.Title.Get(v.Locale)
	h.page(w, r, http.StatusOK, "post", v)
}

func (h *Handler) awards(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Content.ListAwards(r.Context())
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	v := h.view(r, list)
	v.Title = v.T("nav.awards")
	h.page(w, r, http.StatusOK, "awards", v)
}

func (h *Handler) team(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Content.ListTeam(r.Context())
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	v := h.view(r, list)
	v.Title = v.T("nav.team")
	h.page(w, r, http.StatusOK, "team", v)
}

func (h *Handler) services(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Content.ListServices(r.Context())
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	v := h.view(r, list)
	v.Title = v.T("nav.services")
	h.page(w, r, http.StatusOK, "services", v)
}

type contactData struct {
	Page    *content.Page
	Form    contactRequest
	Fields  map[string]string
	Sent    bool
	Problem string // message key
}

func (h *Handler) contactForm(w http.ResponseWriter, r *http.Request) {
	h.renderContact(w, r, http.StatusOK, contactData{Sent: r.URL.Query().Get("sent") == "1"})
}

func (h *Handler) contactSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.pageError(w, r, errBadRequest)
		return
	}
	l, _ := localeFrom(r)
	req := contactRequest{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Phone:   r.PostForm.Get("phone"),
		Message: r.PostForm.Get("message"),
		Website: r.PostForm.Get("website"),
		Locale:  string(l),
	}
	err := h.submitContact(r, req)
	if err == nil {
		http.Redirect(w, r, "/"+string(l)+"/contact?sent=1", http.StatusSeeOther)
		return
	}
	d := contactData{Form: req}
	var ve *content.ValidationError
	switch {
	case errors.As(err, &ve):
		d.Fields, d.Problem = ve.Fields, "form.invalid"
	case errors.Is(err, errRateLimited):
		d.Problem = "form.limited"
	default:
		h.pageError(w, r, err)
		return
	}
	h.renderContact(w, r, statusFor(err), d)
}

func (h *Handler) renderContact(w http.ResponseWriter, r *http.Request, status int, d contactData) {
	pg, err := h.deps.Content.GetPage(r.Context(), content.PageContact)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	d.Page = pg
	v := h.view(r, d)
	v.Title = firstNonEmpty(pg.Title.Get(v.Locale), v.T("nav.contact"))
	h.page(w, r, status, "contact", v)
}

type urlset struct {
	XMLName xml.Name     `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 urlset"`
	XHTML   string       `xml:"xmlns:xhtml,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string      `xml:"loc"`
	LastMod    string      `xml:"lastmod,omitempty"`
	Alternates []xhtmlLink `xml:"xhtml:link"`
}

type xhtmlLink struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

func (h *Handler) sitemap(w http.ResponseWriter, r *http.Request) {
	c := h.deps.Content
	var (
		projects []content.Project
		posts    []content.Post
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		projects, err = c.ListProjects(ctx, content.ListOptions{PublishedOnly: true})
		return err
	})
	g.Go(func() (err error) {
		posts, err = c.ListPosts(ctx, content.ListOptions{PublishedOnly: true})
		return err
	})
	if err := g.Wait(); err != nil {
		h.log.Error("sitemap failed", logx.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	base := h.siteBase(r)
	set := urlset{XHTML: "http://www.w3.org/1999/xhtml"}
	add := func(path, lastMod string) {
		alts := make([]xhtmlLink, 0, len(content.Locales))
		for _, l := range content.Locales {
			alts = append(alts, xhtmlLink{Rel: "alternate", Hreflang: string(l), Href: base + "/" + string(l) + path})
		}
		for _, alt := range alts {
			set.URLs = append(set.URLs, sitemapURL{Loc: alt.Href, LastMod: lastMod, Alternates: alts})
		}
	}
	for _, p := range []string{"/", "/about", "/projects", "/blog", "/awards", "/team", "/services", "/contact"} {
		add(p, "")
	}
	for _, p := range projects {
		add("/projects/"+p.Slug, p.UpdatedAt.Format("2006-01-02"))
	}
	for _, p := range posts {
		add("/blog/"+p.Slug, p.UpdatedAt.Format("2006-01-02"))
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		h.log.Warn("sitemap write failed", logx.Err(err))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"archsite/internal/auth"
	"archsite/internal/content"
)

// adminRow is one line of a generic admin list.
type adminRow struct {
	ID     int64
	Title  string
	Detail string
	Status string
	Thumb  string
}

// resource adapts one id-keyed content type to the admin HTML forms and the
// admin JSON API.
type resource[T any] struct {
	name  string // URL segment
	title string
	form  string // admin template

	list   func(context.Context) ([]T, error)
	get    func(context.Context, int64) (*T, error)
	save   func(context.Context, string, *T) error
	del    func(context.Context, string, int64) error
	id     func(*T) int64
	setID  func(*T, int64)
	row    func(*T) adminRow
	decode func(url.Values, *T)
}

type adminMount interface {
	mountAPI(r chi.Router, h *Handler)
	mountHTML(r chi.Router, h *Handler)
}

func (h *Handler) resources() []adminMount {
	c := h.deps.Content
	return []adminMount{
		&resource[content.Project]{
			name: "projects", title: "Projects", form: "project_form",
			list: func(ctx context.Context) ([]content.Project, error) {
				return c.ListProjects(ctx, content.ListOptions{})
			},
			get: c.GetProject, save: c.SaveProject, del: c.DeleteProject,
			id:    func(p *content.Project) int64 { return p.ID },
			setID: func(p *content.Project, id int64) { p.ID = id },
			row: func(p *content.Project) adminRow {
				detail := p.Category
				if p.Year > 0 {
					detail = strings.TrimSpace(detail + " " + strconv.Itoa(p.Year))
				}
				if p.Featured {
					detail += " ★"
				}
				return adminRow{ID: p.ID, Title: p.Title.En, Detail: detail, Status: publishedLabel(p.Published), Thumb: p.CoverURL}
			},
			decode: decodeProject,
		},
		&resource[content.Post]{
			name: "posts", title: "Journal", form: "post_form",
			list: func(ctx context.Context) ([]content.Post, error) {
				return c.ListPosts(ctx, content.ListOptions{})
			},
			get: c.GetPost, save: c.SavePost, del: c.DeletePost,
			id:    func(p *content.Post) int64 { return p.ID },
			setID: func(p *content.Post, id int64) { p.ID = id },
			row: func(p *content.Post) adminRow {
				return adminRow{ID: p.ID, Title: p.Title.En, Detail: formatDate(p.PublishedAt), Status: publishedLabel(p.Published), Thumb: p.CoverURL}
			},
			decode: decodePost,
		},
		&resource[content.Award]{
			name: "awards", title: "Awards", form: "award_form",
			list: c.ListAwards, get: c.GetAward, save: c.SaveAward, del: c.DeleteAward,
			id:    func(a *content.Award) int64 { return a.ID },
			setID: func(a *content.Award, id int64) { a.ID = id },
			row: func(a *content.Award) adminRow {
				return adminRow{ID: a.ID, Title: a.Title.En, Detail: strings.TrimSpace(a.Issuer.En + " " + yearText(a.Year)), Thumb: a.ImageURL}
			},
			decode: decodeAward,
		},
		&resource[content.TeamMember]{
			name: "team", title: "Team", form: "team_form",
			list: c.ListTeam, get: c.GetTeamMember, save: c.SaveTeamMember, del: c.DeleteTeamMember,
			id:    func(m *content.TeamMember) int64 { return m.ID },
			setID: func(m *content.TeamMember, id int64) { m.ID = id },
			row: func(m *content.TeamMember) adminRow {
				return adminRow{ID: m.ID, Title: m.Name.En, Detail: m.Role.En, Thumb: m.PhotoURL}
			},
			decode: decodeTeamMember,
		},
		&resource[content.Service]{
			name: "services", title: "Services", form: "service_form",
			list: c.ListServices, get: c.GetService, save: c.SaveService, del: c.DeleteService,
			id:    func(s *content.Service) int64 { return s.ID },
			setID: func(s *content.Service, id int64) { s.ID = id },
			row: func(s *content.Service) adminRow {
				return adminRow{ID: s.ID, Title: s.Title.En, Detail: s.Slug}
			},
			decode: decodeService,
		},
	}
}

func (rs *resource[T]) mountAPI(r chi.Router, h *Handler) {
	r.Route("/"+rs.name, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			list, err := rs.list(req.Context())
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			if list == nil {
				list = []T{}
			}
			writeJSON(w, http.StatusOK, list)
		})
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var v T
			if err := decodeJSON(req, &v); err != nil {
				h.writeError(w, req, err)
				return
			}
			rs.setID(&v, 0)
			if err := rs.save(req.Context(), auth.Actor(req.Context()), &v); err != nil {
				h.writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusCreated, &v)
		})
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, err := idParam(req)
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			v, err := rs.get(req.Context(), id)
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
		})
		r.Put("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, err := idParam(req)
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			var v T
			if err := decodeJSON(req, &v); err != nil {
				h.writeError(w, req, err)
				return
			}
			rs.setID(&v, id)
			if err := rs.save(req.Context(), auth.Actor(req.Context()), &v); err != nil {
				h.writeError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, &v)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, err := idParam(req)
			if err == nil {
				err = rs.del(req.Context(), auth.Actor(req.Context()), id)
			}
			if err != nil {
				h.writeError(w, req, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
}

type formData struct {
	Resource string
	Label    string
	New      bool
	Item     any
}

func (rs *resource[T]) mountHTML(r chi.Router, h *Handler) {
	base := "/admin/" + rs.name
	showForm := func(w http.ResponseWriter, req *http.Request, status int, item *T, isNew bool, err error) {
		av := adminView{Title: rs.title, Nav: rs.name, Data: formData{Resource: rs.name, Label: rs.title, New: isNew, Item: item}}
		var ve *content.ValidationError
		if errors.As(err, &ve) {
			av.Error, av.Fields = "Please fix the highlighted fields.", ve.Fields
		} else if err != nil {
			av.Error = err.Error()
		}
		h.admin(w, req, status, rs.form, av)
	}
	submit := func(w http.ResponseWriter, req *http.Request, item *T, isNew bool) {
		if err := req.ParseForm(); err != nil {
			h.adminError(w, req, errBadRequest)
			return
		}
		rs.decode(req.PostForm, item)
		err := rs.save(req.Context(), auth.Actor(req.Context()), item)
		if err == nil {
			http.Redirect(w, req, base+"?notice=saved", http.StatusSeeOther)
			return
		}
		if st := statusFor(err); st == http.StatusBadRequest || st == http.StatusConflict {
			showForm(w, req, st, item, isNew, err)
			return
		}
		h.adminError(w, req, err)
	}
	load := func(w http.ResponseWriter, req *http.Request) (*T, bool) {
		id, err := idParam(req)
		if err != nil {
			h.adminError(w, req, err)
			return nil, false
		}
		item, err := rs.get(req.Context(), id)
		if err != nil {
			h.adminError(w, req, err)
			return nil, false
		}
		return item, true
	}

	r.Route("/"+rs.name, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			list, err := rs.list(req.Context())
			if err != nil {
				h.adminError(w, req, err)
				return
			}
			rows := make([]adminRow, len(list))
			for i := range list {
				rows[i] = rs.row(&list[i])
			}
			h.admin(w, req, http.StatusOK, "list", adminView{
				Title:  rs.title,
				Nav:    rs.name,
				Notice: noticeText(req.URL.Query().Get("notice")),
				Data:   listData{Resource: rs.name, Label: rs.title, Rows: rows},
			})
		})
		r.Get("/new", func(w http.ResponseWriter, req *http.Request) {
			showForm(w, req, http.StatusOK, new(T), true, nil)
		})
		r.Post("/new", func(w http.ResponseWriter, req *http.Request) {
			submit(w, req, new(T), true)
		})
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			if item, ok := load(w, req); ok {
				showForm(w, req, http.StatusOK, item, false, nil)
			}
		})
		r.Post("/{id}", func(w http.ResponseWriter, req *http.Request) {
			if item, ok := load(w, req); ok {
				submit(w, req, item, false)
			}
		})
		r.Post("/{id}/delete", func(w http.ResponseWriter, req *http.Request) {
			id, err := idParam(req)
			if err == nil {
				err = rs.del(req.Context(), auth.Actor(req.Context()), id)
			}
			if err != nil && !errors.Is(err, content.ErrNotFound) {
				h.adminError(w, req, err)
				return
			}
			http.Redirect(w, req, base+"?notice=deleted", http.StatusSeeOther)
		})
	})
}

type listData struct {
	Resource string
	Label    string
	Rows     []adminRow
}

func noticeText(code string) string {
	switch code {
	case "saved":
		return "Saved."
	case "deleted":
		return "Deleted."
	case "uploaded":
		return "Upload stored."
	case "queued":
		return "Job queued."
	}
	return ""
}

func publishedLabel(published bool) string {
	if published {
		return "published"
	}
	return "draft"
}

func yearText(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}

// ---- form decoding ----

func formLocalized(f url.Values, name string) content.Localized {
	return content.Localized{En: f.Get(name + "_en"), Ar: f.Get(name + "_ar")}
}

func formInt(f url.Values, name string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(f.Get(name)))
	return n
}

func formBool(f url.Values, name string) bool {
	switch strings.ToLower(f.Get(name)) {
	case "on", "1", "true", "yes":
		return true
	}
	return false
}

func formLines(f url.Values, name string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(f.Get(name), "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func decodeProject(f url.Values, p *content.Project) {
	p.Slug = strings.TrimSpace(f.Get("slug"))
	p.Title = formLocalized(f, "title")
	p.Summary = formLocalized(f, "summary")
	p.Body = formLocalized(f, "body")
	p.Location = formLocalized(f, "location")
	p.Category = strings.TrimSpace(f.Get("category"))
	p.Year = formInt(f, "year")
	p.CoverURL = strings.TrimSpace(f.Get("cover_url"))
	p.VideoURL = strings.TrimSpace(f.Get("video_url"))
	p.Gallery = formLines(f, "gallery")
	p.Featured = formBool(f, "featured")
	p.Published = formBool(f, "published")
	p.SortOrder = formInt(f, "sort_order")
}

func decodePost(f url.Values, p *content.Post) {
	p.Slug = strings.TrimSpace(f.Get("slug"))
	p.Title = formLocalized(f, "title")
	p.Excerpt = formLocalized(f, "excerpt")
	p.Body = formLocalized(f, "body")
	p.CoverURL = strings.TrimSpace(f.Get("cover_url"))
	p.Published = formBool(f, "published")
}

func decodeAward(f url.Values, a *content.Award) {
	a.Title = formLocalized(f, "title")
	a.Issuer = formLocalized(f, "issuer")
	a.Year = formInt(f, "year")
	a.ProjectSlug = strings.TrimSpace(f.Get("project_slug"))
	a.ImageURL = strings.TrimSpace(f.Get("image_url"))
	a.SortOrder = formInt(f, "sort_order")
}

func decodeTeamMember(f url.Values, m *content.TeamMember) {
	m.Name = formLocalized(f, "name")
	m.Role = formLocalized(f, "role")
	m.Bio = formLocalized(f, "bio")
	m.PhotoURL = strings.TrimSpace(f.Get("photo_url"))
	m.SortOrder = formInt(f, "sort_order")
}

func decodeService(f url.Values, s *content.Service) {
	s.Slug = strings.TrimSpace(f.Get("slug"))
	s.Title = formLocalized(f, "title")
	s.Summary = formLocalized(f, "summary")
	s.Icon = strings.TrimSpace(f.Get("icon"))
	s.SortOrder = formInt(f, "sort_order")
}

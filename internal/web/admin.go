package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"archsite/internal/auth"
	"archsite/internal/content"
	"archsite/internal/notifier"
	"archsite/internal/task/engine"
	"archsite/internal/task/scheduler"
	logx "archsite/pkg/logx"
)

const inboxPageSize = 50

func (h *Handler) adminPages(r chi.Router) {
	r.Get("/", h.dashboard)
	r.Post("/logout", h.logout)
	for _, rs := range h.resources() {
		rs.mountHTML(r, h)
	}
	r.Get("/pages", h.adminPageList)
	r.Get("/pages/{key}", h.adminPageForm)
	r.Post("/pages/{key}", h.adminPageSave)
	r.Get("/inbox", h.inbox)
	r.Post("/inbox/{id}/read", h.inboxMark)
	r.Post("/inbox/{id}/delete", h.inboxDelete)
	r.Get("/media", h.mediaLibrary)
	r.Post("/media/upload", h.mediaUploadForm)
	r.Post("/media/{id}/delete", h.mediaDelete)
	r.Get("/activity", h.activity)
	r.Post("/activity/run/{name}", h.activityRun)
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request, status int, name string, av adminView) {
	av.User = auth.Actor(r.Context())
	if err := h.rd.render(w, status, "admin/"+name, av); err != nil {
		h.log.Error("render failed", logx.String("page", name), logx.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) adminError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		h.log.Error("admin request failed", logx.String("path", r.URL.Path), logx.Err(err))
		msg = http.StatusText(status)
	}
	h.admin(w, r, status, "error", adminView{Title: http.StatusText(status), Error: msg})
}

// ---- session ----

type loginData struct {
	Next     string
	Username string
}

func (h *Handler) loginForm(w http.ResponseWriter, r *http.Request) {
	h.admin(w, r, http.StatusOK, "login", adminView{Title: "Sign in", Data: loginData{Next: safeNext(r.URL.Query().Get("next"))}})
}

func (h *Handler) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.adminError(w, r, errBadRequest)
		return
	}
	user := strings.TrimSpace(r.PostForm.Get("username"))
	next := safeNext(r.PostForm.Get("next"))
	token, exp, err := h.deps.Auth.Login(r.Context(), user, r.PostForm.Get("password"), clientIP(r))
	if err != nil {
		av := adminView{Title: "Sign in", Data: loginData{Next: next, Username: user}}
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			av.Error = "Invalid username or password."
		case errors.Is(err, auth.ErrRateLimited):
			av.Error = "Too many attempts. Try again in a minute."
		default:
			h.adminError(w, r, err)
			return
		}
		h.admin(w, r, statusFor(err), "login", av)
		return
	}
	h.deps.Auth.SetCookie(w, token, exp)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Auth.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		h.log.Warn("logout failed", logx.Err(err))
	}
	h.deps.Auth.ClearCookie(w)
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// safeNext keeps post-login redirects inside the admin area.
func safeNext(next string) string {
	if strings.HasPrefix(next, "/admin") && !strings.HasPrefix(next, "//") && !strings.Contains(next, "\\") && !strings.HasPrefix(next, "/admin/login") {
		return next
	}
	return "/admin/"
}

// ---- dashboard ----

type dashboardData struct {
	Projects   int
	Posts      int
	Unread     int
	Processing int
	Failed     int
	Recent     []content.ContactMessage
	Audit      []content.AuditEntry
	Tasks      *engine.Snapshot
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	c := h.deps.Content
	var d dashboardData
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		list, err := c.ListProjects(ctx, content.ListOptions{})
		d.Projects = len(list)
		return err
	})
	g.Go(func() error {
		list, err := c.ListPosts(ctx, content.ListOptions{})
		d.Posts = len(list)
		return err
	})
	g.Go(func() (err error) {
		d.Unread, err = c.UnreadContact(ctx)
		return err
	})
	g.Go(func() (err error) {
		d.Recent, err = c.ListContact(ctx, 5, 0)
		return err
	})
	g.Go(func() error {
		list, err := c.ListMedia(ctx, 500, 0)
		for _, m := range list {
			switch m.Status {
			case content.MediaProcessing:
				d.Processing++
			case content.MediaFailed:
				d.Failed++
			}
		}
		return err
	})
	g.Go(func() (err error) {
		d.Audit, err = c.ListAudit(ctx, 10)
		return err
	})
	if err := g.Wait(); err != nil {
		h.adminError(w, r, err)
		return
	}
	if h.deps.Tasks != nil {
		snap := h.deps.Tasks.Snapshot()
		d.Tasks = &snap
	}
	h.admin(w, r, http.StatusOK, "dashboard", adminView{Title: "Dashboard", Nav: "dashboard", Data: d})
}

// ---- pages ----

func (h *Handler) adminPageList(w http.ResponseWriter, r *http.Request) {
	pages, err := h.deps.Content.ListPages(r.Context())
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	h.admin(w, r, http.StatusOK, "pages", adminView{Title: "Pages", Nav: "pages", Notice: noticeText(r.URL.Query().Get("notice")), Data: pages})
}

func (h *Handler) adminPageForm(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Content.GetPage(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	h.admin(w, r, http.StatusOK, "page_form", adminView{Title: "Edit page", Nav: "pages", Data: p})
}

func (h *Handler) adminPageSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.adminError(w, r, errBadRequest)
		return
	}
	p := &content.Page{
		Key:     chi.URLParam(r, "key"),
		Title:   formLocalized(r.PostForm, "title"),
		Body:    formLocalized(r.PostForm, "body"),
		HeroURL: strings.TrimSpace(r.PostForm.Get("hero_url")),
	}
	err := h.deps.Content.SavePage(r.Context(), auth.Actor(r.Context()), p)
	var ve *content.ValidationError
	switch {
	case err == nil:
		http.Redirect(w, r, "/admin/pages?notice=saved", http.StatusSeeOther)
	case errors.As(err, &ve):
		h.admin(w, r, http.StatusBadRequest, "page_form", adminView{Title: "Edit page", Nav: "pages", Error: "Please fix the highlighted fields.", Fields: ve.Fields, Data: p})
	default:
		h.adminError(w, r, err)
	}
}

// ---- inbox ----

type inboxData struct {
	Messages []content.ContactMessage
	Page     int
	Prev     int
	Next     int
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	pg, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pg = max(pg, 1)
	msgs, err := h.deps.Content.ListContact(r.Context(), inboxPageSize+1, (pg-1)*inboxPageSize)
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	d := inboxData{Page: pg, Prev: pg - 1}
	if len(msgs) > inboxPageSize {
		msgs, d.Next = msgs[:inboxPageSize], pg+1
	}
	d.Messages = msgs
	h.admin(w, r, http.StatusOK, "inbox", adminView{Title: "Inbox", Nav: "inbox", Notice: noticeText(r.URL.Query().Get("notice")), Data: d})
}

func (h *Handler) inboxMark(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err == nil {
		err = r.ParseForm()
	}
	if err == nil {
		err = h.deps.Content.MarkContactRead(r.Context(), auth.Actor(r.Context()), id, r.PostForm.Get("read") != "0")
	}
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/inbox", http.StatusSeeOther)
}

func (h *Handler) inboxDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err == nil {
		err = h.deps.Content.DeleteContact(r.Context(), auth.Actor(r.Context()), id)
	}
	if err != nil && !errors.Is(err, content.ErrNotFound) {
		h.adminError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/inbox?notice=deleted", http.StatusSeeOther)
}

// ---- media ----

type mediaData struct {
	Items    []content.Media
	MaxChunk int64
}

func (h *Handler) mediaLibrary(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 200, 1000)
	items, err := h.deps.Content.ListMedia(r.Context(), limit, offset)
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	h.admin(w, r, http.StatusOK, "media", adminView{
		Title:  "Media",
		Nav:    "media",
		Notice: noticeText(r.URL.Query().Get("notice")),
		Data:   mediaData{Items: items, MaxChunk: h.deps.Uploads.MaxChunkBytes()},
	})
}

// mediaUploadForm is the no-script fallback for the media library.
func (h *Handler) mediaUploadForm(w http.ResponseWriter, r *http.Request) {
	if _, err := h.saveMultipart(r); err != nil {
		h.adminError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/media?notice=uploaded", http.StatusSeeOther)
}

func (h *Handler) mediaDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err == nil {
		err = h.deleteMedia(r, id)
	}
	if err != nil && !errors.Is(err, content.ErrNotFound) {
		h.adminError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/media?notice=deleted", http.StatusSeeOther)
}

// deleteMedia drops the record, then its files. File removal is best effort.
func (h *Handler) deleteMedia(r *http.Request, id int64) error {
	md, err := h.deps.Content.DeleteMedia(r.Context(), auth.Actor(r.Context()), id)
	if err != nil {
		return err
	}
	for _, u := range []string{md.URL, md.PosterURL} {
		if u == "" {
			continue
		}
		if err := h.deps.Uploads.Remove(u); err != nil {
			h.log.Warn("media file not removed", logx.String("url", u), logx.Err(err))
		}
	}
	return nil
}

// ---- activity ----

type activityData struct {
	Tasks     *engine.Snapshot
	Schedules *scheduler.Snapshot
	Alerts    []notifier.HistoryItem
	Audit     []content.AuditEntry
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	audit, err := h.deps.Content.ListAudit(r.Context(), 100)
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	d := activityData{Audit: audit}
	if h.deps.Tasks != nil {
		s := h.deps.Tasks.Snapshot()
		d.Tasks = &s
	}
	if h.deps.Schedules != nil {
		s := h.deps.Schedules.Snapshot()
		d.Schedules = &s
	}
	if h.deps.Alerts != nil {
		d.Alerts = h.deps.Alerts.History()
	}
	h.admin(w, r, http.StatusOK, "activity", adminView{Title: "Activity", Nav: "activity", Notice: noticeText(r.URL.Query().Get("notice")), Data: d})
}

func (h *Handler) activityRun(w http.ResponseWriter, r *http.Request) {
	if err := h.triggerSchedule(r); err != nil {
		h.adminError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/activity?notice=queued", http.StatusSeeOther)
}

func (h *Handler) triggerSchedule(r *http.Request) error {
	if h.deps.Schedules == nil {
		return content.ErrNotFound
	}
	name := chi.URLParam(r, "name")
	err := h.deps.Schedules.Trigger(name)
	if errors.Is(err, scheduler.ErrUnknownSchedule) {
		return content.ErrNotFound
	}
	if err == nil {
		h.log.Info("maintenance triggered", logx.String("job", name), logx.String("actor", auth.Actor(r.Context())))
	}
	return err
}

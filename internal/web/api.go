package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"archsite/internal/auth"
	"archsite/internal/content"
	"archsite/internal/task/engine"
	"archsite/internal/upload"
	logx "archsite/pkg/logx"
)

var (
	errBadRequest  = errors.New("bad request")
	errRateLimited = errors.New("too many requests")
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func statusFor(err error) int {
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, content.ErrNotFound), errors.Is(err, upload.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, content.ErrInvalid), errors.Is(err, upload.ErrBadChunk), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, content.ErrConflict), errors.Is(err, upload.ErrSessionMismatch), errors.Is(err, engine.ErrOverlapSkip):
		return http.StatusConflict
	case errors.Is(err, upload.ErrTooLarge), errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrRateLimited), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrQueueFull), errors.Is(err, engine.ErrStopped), errors.Is(err, engine.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps err to a status. Server errors are logged and their text
// withheld from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve *content.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	if status >= 500 {
		h.log.Error("request failed", logx.String("path", r.URL.Path), logx.String("req_id", middleware.GetReqID(r.Context())), logx.Err(err))
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadRequest)
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", errBadRequest)
	}
	return id, nil
}

// pagination reads limit/offset query parameters with a default and cap.
func pagination(r *http.Request, def, maxN int) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = def
	}
	return min(limit, maxN), max(offset, 0)
}

func (h *Handler) publicAPI(r chi.Router) {
	r.Get("/projects", h.apiProjects)
	r.Get("/projects/{slug}", h.apiProject)
	r.Get("/posts", h.apiPosts)
	r.Get("/posts/{slug}", h.apiPost)
	r.Get("/awards", h.apiList(func(r *http.Request) (any, error) { return h.deps.Content.ListAwards(r.Context()) }))
	r.Get("/team", h.apiList(func(r *http.Request) (any, error) { return h.deps.Content.ListTeam(r.Context()) }))
	r.Get("/services", h.apiList(func(r *http.Request) (any, error) { return h.deps.Content.ListServices(r.Context()) }))
	r.Get("/pages/{key}", h.apiPage)
	r.Post("/contact", h.apiContact)
}

func (h *Handler) apiList(load func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := load(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (h *Handler) apiProjects(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 100, 500)
	q := r.URL.Query()
	list, err := h.deps.Content.ListProjects(r.Context(), content.ListOptions{
		PublishedOnly: true,
		FeaturedOnly:  q.Get("featured") == "1" || q.Get("featured") == "true",
		Category:      strings.TrimSpace(q.Get("category")),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) apiProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Content.ProjectBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err == nil && !p.Published {
		err = content.ErrNotFound
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) apiPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 500)
	list, err := h.deps.Content.ListPosts(r.Context(), content.ListOptions{PublishedOnly: true, Limit: limit, Offset: offset})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) apiPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Content.PostBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err == nil && !p.Published {
		err = content.ErrNotFound
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) apiPage(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Content.GetPage(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// contactRequest is the public contact form. Website is a honeypot.
type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Locale  string `json:"locale"`
	Website string `json:"website"`
}

func (h *Handler) apiContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.submitContact(r, req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// submitContact applies the honeypot and the per-IP limit before storing.
// Honeypot hits look successful to the sender.
func (h *Handler) submitContact(r *http.Request, req contactRequest) error {
	ip := clientIP(r)
	if strings.TrimSpace(req.Website) != "" {
		h.log.Info("contact honeypot tripped", logx.String("ip", ip))
		return nil
	}
	if !h.contact.allow(ip) {
		return errRateLimited
	}
	return h.deps.Content.SubmitContact(r.Context(), &content.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
		Locale:  content.Locale(req.Locale),
		IP:      ip,
	})
}

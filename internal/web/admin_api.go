package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"archsite/internal/auth"
	"archsite/internal/content"
	logx "archsite/pkg/logx"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// sessionAPI issues bearer tokens for API clients.
func (h *Handler) sessionAPI(r chi.Router) {
	r.Post("/login", func(w http.ResponseWriter, req *http.Request) {
		var body loginRequest
		if err := decodeJSON(req, &body); err != nil {
			h.writeError(w, req, err)
			return
		}
		token, exp, err := h.deps.Auth.Login(req.Context(), body.Username, body.Password, clientIP(req))
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp})
	})
	r.Post("/logout", func(w http.ResponseWriter, req *http.Request) {
		if err := h.deps.Auth.Logout(req.Context(), auth.TokenFromRequest(req)); err != nil {
			h.writeError(w, req, err)
			return
		}
		h.deps.Auth.ClearCookie(w)
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) adminAPI(r chi.Router) {
	r.Get("/me", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"username": auth.Actor(req.Context())})
	})
	for _, rs := range h.resources() {
		rs.mountAPI(r, h)
	}

	r.Get("/pages", h.apiList(func(req *http.Request) (any, error) { return h.deps.Content.ListPages(req.Context()) }))
	r.Get("/pages/{key}", h.apiPage)
	r.Put("/pages/{key}", h.apiPutPage)

	r.Get("/contact", h.apiInbox)
	r.Patch("/contact/{id}", h.apiInboxMark)
	r.Delete("/contact/{id}", h.apiInboxDelete)

	r.Get("/media", func(w http.ResponseWriter, req *http.Request) {
		limit, offset := pagination(req, 100, 1000)
		items, err := h.deps.Content.ListMedia(req.Context(), limit, offset)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(items))
	})
	r.Get("/media/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := idParam(req)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		md, err := h.deps.Content.GetMedia(req.Context(), id)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, md)
	})
	r.Delete("/media/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := idParam(req)
		if err == nil {
			err = h.deleteMedia(req, id)
		}
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/tasks", func(w http.ResponseWriter, req *http.Request) {
		if h.deps.Tasks == nil {
			h.writeError(w, req, content.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, h.deps.Tasks.Snapshot())
	})
	r.Get("/schedules", func(w http.ResponseWriter, req *http.Request) {
		if h.deps.Schedules == nil {
			h.writeError(w, req, content.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, h.deps.Schedules.Snapshot())
	})
	r.Post("/schedules/{name}/run", func(w http.ResponseWriter, req *http.Request) {
		if err := h.triggerSchedule(req); err != nil {
			h.writeError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/alerts", func(w http.ResponseWriter, req *http.Request) {
		if h.deps.Alerts == nil {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		writeJSON(w, http.StatusOK, nonNil(h.deps.Alerts.History()))
	})
	r.Get("/audit", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := pagination(req, 100, 1000)
		entries, err := h.deps.Content.ListAudit(req.Context(), limit)
		if err != nil {
			h.writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(entries))
	})
}

func (h *Handler) apiPutPage(w http.ResponseWriter, r *http.Request) {
	var p content.Page
	if err := decodeJSON(r, &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	p.Key = chi.URLParam(r, "key")
	if err := h.deps.Content.SavePage(r.Context(), auth.Actor(r.Context()), &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

type inboxResponse struct {
	Messages []content.ContactMessage `json:"messages"`
	Unread   int                      `json:"unread"`
}

func (h *Handler) apiInbox(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, inboxPageSize, 500)
	msgs, err := h.deps.Content.ListContact(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unread, err := h.deps.Content.UnreadContact(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inboxResponse{Messages: nonNil(msgs), Unread: unread})
}

func (h *Handler) apiInboxMark(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body struct {
		Read *bool `json:"read"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	read := body.Read == nil || *body.Read
	if err := h.deps.Content.MarkContactRead(r.Context(), auth.Actor(r.Context()), id, read); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.Debug("contact marked", logx.Int64("id", id), logx.Bool("read", read))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) apiInboxDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err == nil {
		err = h.deps.Content.DeleteContact(r.Context(), auth.Actor(r.Context()), id)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

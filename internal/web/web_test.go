package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"archsite/internal/auth"
	"archsite/internal/content"
	"archsite/internal/eventbus"
	"archsite/internal/storage"
	"archsite/internal/task/engine"
	"archsite/internal/upload"
	logx "archsite/pkg/logx"
)

type site struct {
	h       *Handler
	content *content.Manager
	token   string
}

func newSite(t *testing.T) *site {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: ":memory:"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	bus := eventbus.New()
	cm := content.NewManager(st, bus, nil, logx.Nop())
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	as := auth.New(auth.Config{Username: "admin", PasswordHash: string(hash)}, st, logx.Nop())
	up, err := upload.New(upload.Config{Dir: t.TempDir()}, cm, nil, bus, logx.Nop())
	require.NoError(t, err)

	h, err := New(Config{
		SiteName: content.Localized{En: "Atelier", Ar: "أتيليه"},
		BaseURL:  "https://example.test",
	}, Deps{Content: cm, Auth: as, Uploads: up}, logx.Nop())
	require.NoError(t, err)

	token, _, err := as.Login(context.Background(), "admin", "s3cret", "127.0.0.1")
	require.NoError(t, err)
	return &site{h: h, content: cm, token: token}
}

func (s *site) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func (s *site) get(target string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (s *site) admin(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func TestRootRedirectsToPreferredLocale(t *testing.T) {
	s := newSite(t)
	tests := []struct {
		name   string
		lang   string
		cookie string
		want   string
	}{
		{name: "default", want: "/en/"},
		{name: "arabic header", lang: "ar-EG,ar;q=0.9,en;q=0.5", want: "/ar/"},
		{name: "english header", lang: "en-GB", want: "/en/"},
		{name: "cookie wins", lang: "en-US", cookie: "ar", want: "/ar/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.lang != "" {
				req.Header.Set("Accept-Language", tt.lang)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: langCookie, Value: tt.cookie})
			}
			rec := s.do(req)
			require.Equal(t, http.StatusFound, rec.Code)
			require.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestLocalePagesSetDirection(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()
	require.NoError(t, s.content.SaveProject(ctx, "admin", &content.Project{
		Slug:      "desert-house",
		Title:     content.Localized{En: "Desert House", Ar: "بيت الصحراء"},
		Published: true,
		Featured:  true,
	}))

	rec := s.get("/ar/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `dir="rtl"`)
	require.Contains(t, body, `lang="ar"`)
	require.Contains(t, body, "بيت الصحراء")
	require.Contains(t, body, `href="/en/"`, "language switch points at the other locale")
	require.Contains(t, rec.Header().Get("Set-Cookie"), langCookie+"=ar")

	rec = s.get("/en/projects/desert-house")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `dir="ltr"`)
	require.Contains(t, rec.Body.String(), "Desert House")
	require.Contains(t, rec.Body.String(), `hreflang="ar" href="https://example.test/ar/projects/desert-house"`)

	for _, p := range []string{"/en/about", "/ar/projects", "/en/blog", "/ar/awards", "/en/team", "/ar/services", "/en/contact"} {
		require.Equal(t, http.StatusOK, s.get(p).Code, p)
	}
}

func TestUnknownLocaleAndMissingPages(t *testing.T) {
	s := newSite(t)
	for _, p := range []string{"/fr/", "/EN/", "/en/projects/nope", "/ar/blog/nope"} {
		rec := s.get(p)
		require.Equal(t, http.StatusNotFound, rec.Code, p)
		require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	}
	rec := s.get("/ar/projects/nope")
	require.Contains(t, rec.Body.String(), "الصفحة غير موجودة")
}

func TestDraftsAreHidden(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()
	require.NoError(t, s.content.SaveProject(ctx, "admin", &content.Project{Slug: "live", Title: content.Localized{En: "Live"}, Published: true}))
	require.NoError(t, s.content.SaveProject(ctx, "admin", &content.Project{Slug: "draft", Title: content.Localized{En: "Draft"}}))

	rec := s.get("/api/projects")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []content.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "live", list[0].Slug)

	rec = s.get("/api/projects/draft")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
	require.Equal(t, http.StatusNotFound, s.get("/en/projects/draft").Code)

	sm := s.get("/sitemap.xml")
	require.Equal(t, http.StatusOK, sm.Code)
	require.Contains(t, sm.Body.String(), "https://example.test/ar/projects/live")
	require.NotContains(t, sm.Body.String(), "/projects/draft")
}

func TestSitemapAlternates(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()
	require.NoError(t, s.content.SaveProject(ctx, "admin", &content.Project{Slug: "live", Title: content.Localized{En: "Live"}, Published: true}))

	body := s.get("/sitemap.xml").Body.String()
	require.Contains(t, body, `xmlns:xhtml="http://www.w3.org/1999/xhtml"`)
	require.Contains(t, body, "<loc>https://example.test/en/projects/live</loc>")
	require.Contains(t, body, `<xhtml:link rel="alternate" hreflang="en" href="https://example.test/en/projects/live">`)
	require.Contains(t, body, `<xhtml:link rel="alternate" hreflang="ar" href="https://example.test/ar/projects/live">`)
	// each locale entry lists both alternates
	require.Equal(t, 2*strings.Count(body, "<loc>"), strings.Count(body, "<xhtml:link "))

	t.Run("request host without base url", func(t *testing.T) {
		s.h.Apply(Config{SiteName: content.Localized{En: "Atelier", Ar: "أتيليه"}})

		req := httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil)
		req.Host = "studio.test"
		body := s.do(req).Body.String()
		require.Contains(t, body, "<loc>http://studio.test/ar/projects/live</loc>")
		require.NotContains(t, body, "<loc>/")

		req = httptest.NewRequest(http.MethodGet, "/robots.txt", nil)
		req.Host = "studio.test"
		require.Contains(t, s.do(req).Body.String(), "Sitemap: http://studio.test/sitemap.xml")
	})
}

func contactForm(vals map[string]string) *http.Request {
	f := url.Values{}
	for k, v := range vals {
		f.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/ar/contact", strings.NewReader(f.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestContactForm(t *testing.T) {
	s := newSite(t)
	ctx := context.Background()

	rec := s.do(contactForm(map[string]string{"name": "Layla", "email": "layla@example.com", "message": "مرحبا"}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/ar/contact?sent=1", rec.Header().Get("Location"))

	msgs, err := s.content.ListContact(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, content.Arabic, msgs[0].Locale)
	require.False(t, msgs[0].Read)

	t.Run("honeypot", func(t *testing.T) {
		rec := s.do(contactForm(map[string]string{"name": "Bot", "email": "bot@example.com", "message": "buy", "website": "http://spam"}))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		msgs, err := s.content.ListContact(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
	})

	t.Run("invalid", func(t *testing.T) {
		rec := s.do(contactForm(map[string]string{"name": "", "email": "nope", "message": ""}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "field-error")
		require.Contains(t, rec.Body.String(), `value="nope"`)
	})

	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/contact",
			strings.NewReader(`{"name":"Sam","email":"sam@example.com","message":"Hello","locale":"en"}`))
		rec := s.do(req)
		require.Equal(t, http.StatusAccepted, rec.Code)

		req = httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"name":"Sam","unknown":1}`))
		require.Equal(t, http.StatusBadRequest, s.do(req).Code)
	})
}

func TestContactRateLimit(t *testing.T) {
	s := newSite(t)
	s.h.Apply(Config{ContactRatePerMin: 1})
	body := map[string]string{"name": "A", "email": "a@example.com", "message": "hi"}
	require.Equal(t, http.StatusSeeOther, s.do(contactForm(body)).Code)
	rec := s.do(contactForm(body))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "يرجى المحاولة لاحقاً")
}

func TestAdminAPIRequiresSession(t *testing.T) {
	s := newSite(t)
	for _, p := range []string{"/api/admin/projects", "/api/admin/contact", "/api/admin/media", "/api/admin/me"} {
		rec := s.get(p)
		require.Equal(t, http.StatusUnauthorized, rec.Code, p)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	require.Equal(t, http.StatusUnauthorized, s.do(req).Code)

	rec := s.admin(http.MethodGet, "/api/admin/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"username":"admin"}`, rec.Body.String())
}

func TestAdminAPICRUD(t *testing.T) {
	s := newSite(t)

	rec := s.admin(http.MethodPost, "/api/admin/projects", map[string]any{
		"title":     map[string]string{"en": "Harbour Pavilion", "ar": "جناح الميناء"},
		"category":  "cultural",
		"year":      2021,
		"published": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created content.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	require.Equal(t, "harbour-pavilion", created.Slug)

	path := fmt.Sprintf("/api/admin/projects/%d", created.ID)
	rec = s.admin(http.MethodPut, path, map[string]any{
		"slug":  "harbour-pavilion",
		"title": map[string]string{"en": "Harbour Pavilion II"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.admin(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got content.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "Harbour Pavilion II", got.Title.En)
	require.False(t, got.Published)

	rec = s.admin(http.MethodPost, "/api/admin/projects", map[string]any{"title": map[string]string{"ar": "فقط"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var eb errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
	require.Contains(t, eb.Fields, "title.en")

	rec = s.admin(http.MethodPost, "/api/admin/projects", map[string]any{"slug": "harbour-pavilion", "title": map[string]string{"en": "Dup"}})
	require.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusNoContent, s.admin(http.MethodDelete, path, nil).Code)
	require.Equal(t, http.StatusNotFound, s.admin(http.MethodGet, path, nil).Code)

	rec = s.admin(http.MethodGet, "/api/admin/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var audit []content.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	var actions []string
	for _, a := range audit {
		if a.OK {
			actions = append(actions, a.Action)
		}
	}
	require.Subset(t, actions, []string{"project.create", "project.update", "project.delete"})
}

func TestAdminPagesUseCookieSession(t *testing.T) {
	s := newSite(t)

	rec := s.get("/admin/projects")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/admin/login?next=%2Fadmin%2Fprojects", rec.Header().Get("Location"))

	f := url.Values{"username": {"admin"}, "password": {"wrong"}, "next": {"/admin/projects"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(f.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = s.do(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid username or password.")

	f.Set("password", "s3cret")
	req = httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(f.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = s.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/admin/projects", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	session := cookies[0]
	require.Equal(t, auth.CookieName, session.Name)

	withSession := func(req *http.Request) *httptest.ResponseRecorder {
		req.AddCookie(session)
		return s.do(req)
	}

	pf := url.Values{"title_en": {"Courtyard School"}, "title_ar": {"مدرسة الفناء"}, "published": {"on"}}
	req = httptest.NewRequest(http.MethodPost, "/admin/projects/new", strings.NewReader(pf.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = withSession(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/admin/projects?notice=saved", rec.Header().Get("Location"))

	rec = withSession(httptest.NewRequest(http.MethodGet, "/admin/projects?notice=saved", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Courtyard School")
	require.Contains(t, rec.Body.String(), "Saved.")

	for _, p := range []string{"/admin/", "/admin/projects/new", "/admin/posts", "/admin/pages", "/admin/pages/home", "/admin/inbox", "/admin/media", "/admin/activity"} {
		rec := withSession(httptest.NewRequest(http.MethodGet, p, nil))
		require.Equal(t, http.StatusOK, rec.Code, p)
	}

	bad := url.Values{"title_en": {""}}
	req = httptest.NewRequest(http.MethodPost, "/admin/services/new", strings.NewReader(bad.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = withSession(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "field-error")

	rec = withSession(httptest.NewRequest(http.MethodPost, "/admin/logout", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = withSession(httptest.NewRequest(http.MethodGet, "/admin/", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code, "session revoked on logout")
}

func pngBytes(n int) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x42}, n)...)
}

func TestSingleUpload(t *testing.T) {
	s := newSite(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "façade photo.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes(1024))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var md content.Media
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &md))
	require.Equal(t, content.MediaImage, md.Kind)
	require.Equal(t, content.MediaReady, md.Status)
	require.True(t, strings.HasPrefix(md.URL, "/uploads/"), md.URL)

	rec = s.get(md.URL)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, pngBytes(1024), rec.Body.Bytes())
	require.Contains(t, rec.Header().Get("Cache-Control"), "max-age")

	t.Run("rejects non-media", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, _ := mw.CreateFormFile("file", "notes.png")
		_, _ = fw.Write([]byte("just some text pretending to be an image"))
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+s.token)
		require.Equal(t, http.StatusUnsupportedMediaType, s.do(req).Code)
	})

	t.Run("requires session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("x"))
		require.Equal(t, http.StatusUnauthorized, s.do(req).Code)
	})
}

func TestChunkedUpload(t *testing.T) {
	s := newSite(t)
	data := pngBytes(3000)
	first, second := data[:1500], data[1500:]

	// Chunk 0 as multipart with the fields ahead of the file part.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{"uploadId": "plan-upload-01", "chunkIndex": "0", "totalChunks": "2", "fileName": "plan.png"} {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("chunk", "blob")
	require.NoError(t, err)
	_, err = fw.Write(first)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload/chunk", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var st upload.ChunkStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.False(t, st.Complete)
	require.Equal(t, []int{0}, st.Received)

	rec = s.admin(http.MethodGet, "/api/upload/chunk/plan-upload-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A different file name for the same id is a conflict.
	req = httptest.NewRequest(http.MethodPost, "/api/upload/chunk?uploadId=plan-upload-01&chunkIndex=1&totalChunks=2&fileName=other.png", bytes.NewReader(second))
	req.Header.Set("Authorization", "Bearer "+s.token)
	require.Equal(t, http.StatusConflict, s.do(req).Code)

	// Chunk 1 as a raw body with query parameters.
	req = httptest.NewRequest(http.MethodPost, "/api/upload/chunk?uploadId=plan-upload-01&chunkIndex=1&totalChunks=2&fileName=plan.png", bytes.NewReader(second))
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec = s.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st = upload.ChunkStatus{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.True(t, st.Complete)
	require.NotNil(t, st.Media)
	require.Equal(t, int64(len(data)), st.Media.Size)

	rec = s.get(st.Media.URL)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, data, rec.Body.Bytes())

	t.Run("bad chunk", func(t *testing.T) {
		for _, q := range []string{
			"chunkIndex=x&totalChunks=2&fileName=a.png",
			"chunkIndex=2&totalChunks=2&fileName=a.png",
			"chunkIndex=0&totalChunks=1",
			"uploadId=../../etc&chunkIndex=0&totalChunks=1&fileName=a.png",
		} {
			req := httptest.NewRequest(http.MethodPost, "/api/upload/chunk?"+q, bytes.NewReader(first))
			req.Header.Set("Authorization", "Bearer "+s.token)
			require.Equal(t, http.StatusBadRequest, s.do(req).Code, q)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, s.admin(http.MethodGet, "/api/upload/chunk/missing-session", nil).Code)
	})
}

func TestHealthAndRobots(t *testing.T) {
	s := newSite(t)
	rec := s.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = s.get("/robots.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Sitemap: https://example.test/sitemap.xml")

	rec = s.get("/static/site.css")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{content.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", content.ErrNotFound), http.StatusNotFound},
		{upload.ErrNoSession, http.StatusNotFound},
		{&content.ValidationError{Fields: map[string]string{"slug": "bad"}}, http.StatusBadRequest},
		{upload.ErrBadChunk, http.StatusBadRequest},
		{errBadRequest, http.StatusBadRequest},
		{content.ErrConflict, http.StatusConflict},
		{upload.ErrSessionMismatch, http.StatusConflict},
		{upload.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{upload.ErrUnsupportedType, http.StatusUnsupportedMediaType},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrRateLimited, http.StatusTooManyRequests},
		{errRateLimited, http.StatusTooManyRequests},
		{engine.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHiddenFS(t *testing.T) {
	fsys := hiddenFS{fstest.MapFS{
		"2024/01/a.png":         {Data: []byte("a")},
		".chunks/abc/0.part":    {Data: []byte("p")},
		"2024/01/.b.mp4.tmp":    {Data: []byte("t")},
		"2024/01/c.h264.mp4":    {Data: []byte("c")},
		"2024/01/stale.part":    {Data: []byte("s")},
		"2024/01/poster.jpg":    {Data: []byte("j")},
		"2024/01/nested/x.webp": {Data: []byte("x")},
	}}
	var visible []string
	for _, name := range []string{
		"2024/01/a.png", ".chunks/abc/0.part", "2024/01/.b.mp4.tmp", "2024/01/c.h264.mp4",
		"2024/01/stale.part", "2024/01/poster.jpg", "2024", "2024/01/nested", ".",
	} {
		f, err := fsys.Open(name)
		if err != nil {
			require.ErrorIs(t, err, fs.ErrNotExist, name)
			continue
		}
		_ = f.Close()
		visible = append(visible, name)
	}
	want := []string{"2024/01/a.png", "2024/01/c.h264.mp4", "2024/01/poster.jpg"}
	if diff := cmp.Diff(want, visible); diff != "" {
		t.Errorf("visible files (-want +got):\n%s", diff)
	}
}

func TestParagraphsAndDirection(t *testing.T) {
	require.Equal(t, []string{"one", "two\nlines"}, paragraphs("one\r\n\r\n\n two\nlines \n\n"))
	require.Nil(t, paragraphs("  "))

	v := view{Locale: content.Arabic, Path: "/projects/x", Site: siteInfo{BaseURL: "https://example.test/"}}
	require.Equal(t, "rtl", v.Dir())
	require.Equal(t, "/en/projects/x", v.SwitchURL())
	require.Equal(t, "https://example.test/ar/projects/x", v.Canonical())
	require.True(t, v.Active("/projects"))
	require.False(t, v.Active("/blog"))
}

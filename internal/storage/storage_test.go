package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"archsite/internal/content"
	logx "archsite/pkg/logx"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{Path: ":memory:"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestProjectRoundTrip(t *testing.T) {
	st := openMem(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()

	p := &content.Project{
		Slug:      "desert-villa",
		Title:     content.Localized{En: "Desert Villa", Ar: "فيلا الصحراء"},
		Category:  "residential",
		Year:      2022,
		Gallery:   []string{"/uploads/2024/01/a.jpg", "/uploads/2024/01/b.jpg"},
		Published: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.CreateProject(ctx, p))
	require.NotZero(t, p.ID)

	got, err := st.GetProjectBySlug(ctx, "desert-villa")
	require.NoError(t, err)
	require.Equal(t, p.Title, got.Title)
	require.Equal(t, p.Gallery, got.Gallery)
	require.True(t, got.Published)
	require.Equal(t, now, got.CreatedAt)

	dup := *p
	dup.ID = 0
	err = st.CreateProject(ctx, &dup)
	require.ErrorIs(t, err, content.ErrConflict)

	_, err = st.GetProject(ctx, 999)
	require.ErrorIs(t, err, content.ErrNotFound)
	require.ErrorIs(t, st.UpdateProject(ctx, &content.Project{ID: 999, Slug: "x", Title: content.Localized{En: "x"}}), content.ErrNotFound)
	require.ErrorIs(t, st.DeleteProject(ctx, 999), content.ErrNotFound)
}

func TestListProjectsFilters(t *testing.T) {
	st := openMem(t)
	ctx := context.Background()
	now := time.Now()
	for i, p := range []content.Project{
		{Slug: "a", Title: content.Localized{En: "A"}, Published: true, Featured: true, Category: "interior", SortOrder: 2},
		{Slug: "b", Title: content.Localized{En: "B"}, Published: true, Category: "residential", SortOrder: 1},
		{Slug: "c", Title: content.Localized{En: "C"}, Category: "interior"},
	} {
		p.CreatedAt, p.UpdatedAt = now, now
		require.NoError(t, st.CreateProject(ctx, &p), "project %d", i)
	}

	all, err := st.ListProjects(ctx, content.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	pub, err := st.ListProjects(ctx, content.ListOptions{PublishedOnly: true})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, slugs(pub))

	feat, err := st.ListProjects(ctx, content.ListOptions{PublishedOnly: true, FeaturedOnly: true})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, slugs(feat))

	interior, err := st.ListProjects(ctx, content.ListOptions{Category: "interior", Limit: 1})
	require.NoError(t, err)
	require.Len(t, interior, 1)
}

func slugs(ps []content.Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Slug
	}
	return out
}

func TestPostPublishedAt(t *testing.T) {
	st := openMem(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()

	draft := &content.Post{Slug: "draft", Title: content.Localized{En: "Draft"}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, st.CreatePost(ctx, draft))
	got, err := st.GetPost(ctx, draft.ID)
	require.NoError(t, err)
	require.Nil(t, got.PublishedAt)

	got.Published = true
	got.PublishedAt = &now
	require.NoError(t, st.UpdatePost(ctx, got))
	again, err := st.GetPostBySlug(ctx, "draft")
	require.NoError(t, err)
	require.NotNil(t, again.PublishedAt)
	require.Equal(t, now, *again.PublishedAt)
}

func TestPagesUpsert(t *testing.T) {
	st := openMem(t)
	ctx := context.Background()

	_, err := st.GetPage(ctx, content.PageAbout)
	require.ErrorIs(t, err, content.ErrNotFound)

	p := &content.Page{Key: content.PageAbout, Title: content.Localized{En: "About", Ar: "من نحن"}, UpdatedAt: time.Now()}
	require.NoError(t, st.PutPage(ctx, p))
	p.Body.En = "We design."
	require.NoError(t, st.PutPage(ctx, p))

	got, err := st.GetPage(ctx, content.PageAbout)
	require.NoError(t, err)
	require.Equal(t, "We design.", got.Body.En)
	require.Equal(t, "من نحن", got.Title.Ar)
}

func TestContactInbox(t *testing.T) {
	st := openMem(t)
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 3; i++ {
		m := &content.ContactMessage{Name: "N", Email: "n@example.com", Message: "hi", Locale: content.Arabic, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, st.CreateContact(ctx, m))
	}
	msgs, err := st.ListContact(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Greater(t, msgs[0].ID, msgs[1].ID)
	require.Equal(t, content.Arabic, msgs[0].Locale)

	require.NoError(t, st.SetContactRead(ctx, msgs[0].ID, true))
	n, err := st.CountUnreadContact(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, st.DeleteContact(ctx, msgs[0].ID))
	require.ErrorIs(t, st.DeleteContact(ctx, msgs[0].ID), content.ErrNotFound)
}

func TestReplaceMediaURL(t *testing.T) {
	st := openMem(t)
	ctx := context.Background()
	now := time.Now()
	const oldURL, newURL = "/uploads/2024/05/clip.mov", "/uploads/2024/05/clip.mp4"

	p := &content.Project{
		Slug: "tower", Title: content.Localized{En: "Tower"},
		VideoURL: oldURL, Gallery: []string{"/uploads/x.jpg", oldURL},
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.CreateProject(ctx, p))
	post := &content.Post{
		Slug: "launch", Title: content.Localized{En: "Launch"},
		Body:      content.Localized{En: "Watch " + oldURL + " now"},
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.CreatePost(ctx, post))
	require.NoError(t, st.PutPage(ctx, &content.Page{Key: content.PageHome, HeroURL: oldURL, UpdatedAt: now}))

	n, err := st.ReplaceMediaURL(ctx, oldURL, newURL)
	require.NoError(t, err)
	// video_url, gallery, post body, page hero
	require.EqualValues(t, 4, n)

	gotP, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, newURL, gotP.VideoURL)
	require.Equal(t, []string{"/uploads/x.jpg", newURL}, gotP.Gallery)

	gotPost, err := st.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, "Watch "+newURL+" now", gotPost.Body.En)

	page, err := st.GetPage(ctx, content.PageHome)
	require.NoError(t, err)
	require.Equal(t, newURL, page.HeroURL)
}

func TestMediaCRUD(t *testing.T) {
	st := openMem(t)
	ctx := context.Background()
	now := time.Now()
	m := &content.Media{Kind: content.MediaVideo, URL: "/uploads/a.mov", Size: 42, MimeType: "video/quicktime", Status: content.MediaProcessing, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, st.CreateMedia(ctx, m))

	m.Status, m.URL, m.PosterURL = content.MediaReady, "/uploads/a.mp4", "/uploads/a.jpg"
	require.NoError(t, st.UpdateMedia(ctx, m))
	got, err := st.GetMedia(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, content.MediaReady, got.Status)
	require.Equal(t, "/uploads/a.jpg", got.PosterURL)

	list, err := st.ListMedia(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, st.DeleteMedia(ctx, m.ID))
}

func TestSessionsAndAudit(t *testing.T) {
	st := openMem(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.CreateSession(ctx, Session{TokenHash: "live", Username: "admin", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, st.CreateSession(ctx, Session{TokenHash: "dead", Username: "admin", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}))
	n, err := st.PruneSessions(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	sess, err := st.GetSession(ctx, "live")
	require.NoError(t, err)
	require.Equal(t, "admin", sess.Username)
	_, err = st.GetSession(ctx, "dead")
	require.ErrorIs(t, err, content.ErrNotFound)

	require.NoError(t, st.AppendAudit(ctx, content.AuditEntry{Actor: "admin", Action: "project.create", Target: "project:1", OK: true}))
	require.NoError(t, st.AppendAudit(ctx, content.AuditEntry{Actor: "admin", Action: "project.delete", Target: "project:9", Error: "not found"}))
	entries, err := st.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "project.delete", entries[0].Action)
	require.False(t, entries[0].OK)
	require.Equal(t, "not found", entries[0].Error)
}

func TestOptimizeOnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "site.db")
	st, err := Open(Config{Path: path, BusyTimeout: time.Second}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Ping(context.Background()))
	require.NoError(t, st.Optimize(context.Background()))
}

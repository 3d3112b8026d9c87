package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"archsite/internal/eventbus"
	"archsite/internal/notifier"
	logx "archsite/pkg/logx"
)

// SystemActor is recorded in the audit log for background mutations.
const SystemActor = "system"

// Alerter delivers admin alerts. *notifier.Service implements it.
type Alerter interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

// Manager is the content service layer: it normalizes and validates input,
// derives slugs, records audit entries and publishes change events around
// the Repository.
type Manager struct {
	repo   Repository
	bus    eventbus.Bus
	alerts Alerter
	log    logx.Logger
	now    func() time.Time
}

func NewManager(repo Repository, bus eventbus.Bus, alerts Alerter, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		repo:   repo,
		bus:    bus,
		alerts: alerts,
		log:    log.With(logx.String("comp", "content")),
		now:    time.Now,
	}
}

// ---- projects ----

func (m *Manager) ListProjects(ctx context.Context, opt ListOptions) ([]Project, error) {
	return m.repo.ListProjects(ctx, opt)
}

func (m *Manager) GetProject(ctx context.Context, id int64) (*Project, error) {
	return m.repo.GetProject(ctx, id)
}

func (m *Manager) ProjectBySlug(ctx context.Context, slug string) (*Project, error) {
	return m.repo.GetProjectBySlug(ctx, slug)
}

// SaveProject creates p when p.ID is zero and updates it otherwise.
func (m *Manager) SaveProject(ctx context.Context, actor string, p *Project) error {
	p.Title, p.Summary, p.Body, p.Location = p.Title.trim(), p.Summary.trim(), p.Body.trim(), p.Location.trim()
	p.Category = strings.TrimSpace(p.Category)
	p.CoverURL, p.VideoURL = strings.TrimSpace(p.CoverURL), strings.TrimSpace(p.VideoURL)
	p.Gallery = compactURLs(p.Gallery)
	p.Slug = m.slugFor("project", p.Slug, p.Title.En)
	if err := validateProject(p); err != nil {
		return err
	}

	now := m.now()
	action := "create"
	var err error
	if p.ID == 0 {
		p.CreatedAt, p.UpdatedAt = now, now
		err = m.repo.CreateProject(ctx, p)
	} else {
		action = "update"
		var old *Project
		if old, err = m.repo.GetProject(ctx, p.ID); err == nil {
			p.CreatedAt, p.UpdatedAt = old.CreatedAt, now
			err = m.repo.UpdateProject(ctx, p)
		}
	}
	return m.finish(ctx, actor, "project", action, p.ID, "", err)
}

func (m *Manager) DeleteProject(ctx context.Context, actor string, id int64) error {
	return m.finish(ctx, actor, "project", "delete", id, "", m.repo.DeleteProject(ctx, id))
}

// ---- posts ----

func (m *Manager) ListPosts(ctx context.Context, opt ListOptions) ([]Post, error) {
	return m.repo.ListPosts(ctx, opt)
}

func (m *Manager) GetPost(ctx context.Context, id int64) (*Post, error) {
	return m.repo.GetPost(ctx, id)
}

func (m *Manager) PostBySlug(ctx context.Context, slug string) (*Post, error) {
	return m.repo.GetPostBySlug(ctx, slug)
}

// SavePost stamps PublishedAt the first time a post is published and keeps
// it across later edits.
func (m *Manager) SavePost(ctx context.Context, actor string, p *Post) error {
	p.Title, p.Excerpt, p.Body = p.Title.trim(), p.Excerpt.trim(), p.Body.trim()
	p.CoverURL = strings.TrimSpace(p.CoverURL)
	p.Slug = m.slugFor("post", p.Slug, p.Title.En)
	if err := validatePost(p); err != nil {
		return err
	}

	now := m.now()
	action := "create"
	var err error
	if p.ID == 0 {
		p.CreatedAt, p.UpdatedAt = now, now
		p.PublishedAt = nil
		if p.Published {
			p.PublishedAt = &now
		}
		err = m.repo.CreatePost(ctx, p)
	} else {
		action = "update"
		var old *Post
		if old, err = m.repo.GetPost(ctx, p.ID); err == nil {
			p.CreatedAt, p.UpdatedAt = old.CreatedAt, now
			p.PublishedAt = old.PublishedAt
			if p.Published && p.PublishedAt == nil {
				p.PublishedAt = &now
			}
			err = m.repo.UpdatePost(ctx, p)
		}
	}
	return m.finish(ctx, actor, "post", action, p.ID, "", err)
}

func (m *Manager) DeletePost(ctx context.Context, actor string, id int64) error {
	return m.finish(ctx, actor, "post", "delete", id, "", m.repo.DeletePost(ctx, id))
}

// ---- awards ----

func (m *Manager) ListAwards(ctx context.Context) ([]Award, error) { return m.repo.ListAwards(ctx) }

func (m *Manager) GetAward(ctx context.Context, id int64) (*Award, error) {
	return m.repo.GetAward(ctx, id)
}

func (m *Manager) SaveAward(ctx context.Context, actor string, a *Award) error {
	a.Title, a.Issuer = a.Title.trim(), a.Issuer.trim()
	a.ProjectSlug = strings.ToLower(strings.TrimSpace(a.ProjectSlug))
	a.ImageURL = strings.TrimSpace(a.ImageURL)
	if err := validateAward(a); err != nil {
		return err
	}
	action, err := "create", error(nil)
	if a.ID == 0 {
		err = m.repo.CreateAward(ctx, a)
	} else {
		action = "update"
		err = m.repo.UpdateAward(ctx, a)
	}
	return m.finish(ctx, actor, "award", action, a.ID, "", err)
}

func (m *Manager) DeleteAward(ctx context.Context, actor string, id int64) error {
	return m.finish(ctx, actor, "award", "delete", id, "", m.repo.DeleteAward(ctx, id))
}

// ---- team ----

func (m *Manager) ListTeam(ctx context.Context) ([]TeamMember, error) { return m.repo.ListTeam(ctx) }

func (m *Manager) GetTeamMember(ctx context.Context, id int64) (*TeamMember, error) {
	return m.repo.GetTeamMember(ctx, id)
}

func (m *Manager) SaveTeamMember(ctx context.Context, actor string, t *TeamMember) error {
	t.Name, t.Role, t.Bio = t.Name.trim(), t.Role.trim(), t.Bio.trim()
	t.PhotoURL = strings.TrimSpace(t.PhotoURL)
	if err := validateTeamMember(t); err != nil {
		return err
	}
	action, err := "create", error(nil)
	if t.ID == 0 {
		err = m.repo.CreateTeamMember(ctx, t)
	} else {
		action = "update"
		err = m.repo.UpdateTeamMember(ctx, t)
	}
	return m.finish(ctx, actor, "team", action, t.ID, "", err)
}

func (m *Manager) DeleteTeamMember(ctx context.Context, actor string, id int64) error {
	return m.finish(ctx, actor, "team", "delete", id, "", m.repo.DeleteTeamMember(ctx, id))
}

// ---- services ----

func (m *Manager) ListServices(ctx context.Context) ([]Service, error) {
	return m.repo.ListServices(ctx)
}

func (m *Manager) GetService(ctx context.Context, id int64) (*Service, error) {
	return m.repo.GetService(ctx, id)
}

func (m *Manager) SaveService(ctx context.Context, actor string, s *Service) error {
	s.Title, s.Summary = s.Title.trim(), s.Summary.trim()
	s.Icon = strings.TrimSpace(s.Icon)
	s.Slug = m.slugFor("service", s.Slug, s.Title.En)
	if err := validateService(s); err != nil {
		return err
	}
	action, err := "create", error(nil)
	if s.ID == 0 {
		err = m.repo.CreateService(ctx, s)
	} else {
		action = "update"
		err = m.repo.UpdateService(ctx, s)
	}
	return m.finish(ctx, actor, "service", action, s.ID, "", err)
}

func (m *Manager) DeleteService(ctx context.Context, actor string, id int64) error {
	return m.finish(ctx, actor, "service", "delete", id, "", m.repo.DeleteService(ctx, id))
}

// ---- pages ----

// GetPage returns the stored copy for key, or an empty page when nothing has
// been saved yet. Unknown keys are ErrNotFound.
func (m *Manager) GetPage(ctx context.Context, key string) (*Page, error) {
	if !validPageKey(key) {
		return nil, ErrNotFound
	}
	p, err := m.repo.GetPage(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return &Page{Key: key}, nil
	}
	return p, err
}

// ListPages returns every editable page in PageKeys order.
func (m *Manager) ListPages(ctx context.Context) ([]Page, error) {
	out := make([]Page, 0, len(PageKeys))
	for _, k := range PageKeys {
		p, err := m.GetPage(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *Manager) SavePage(ctx context.Context, actor string, p *Page) error {
	p.Key = strings.TrimSpace(p.Key)
	p.Title, p.Body = p.Title.trim(), p.Body.trim()
	p.HeroURL = strings.TrimSpace(p.HeroURL)
	if err := validatePage(p); err != nil {
		return err
	}
	p.UpdatedAt = m.now()
	return m.finish(ctx, actor, "page", "update", 0, p.Key, m.repo.PutPage(ctx, p))
}

// ---- contact ----

// SubmitContact stores a public contact message and alerts admins. The alert
// is queued, never awaited.
func (m *Manager) SubmitContact(ctx context.Context, msg *ContactMessage) error {
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Phone = strings.TrimSpace(msg.Phone)
	msg.Message = strings.TrimSpace(msg.Message)
	loc, ok := ParseLocale(string(msg.Locale))
	if !ok {
		loc = English
	}
	msg.Locale = loc
	if err := validateContact(msg); err != nil {
		return err
	}
	msg.CreatedAt = m.now()
	msg.Read = false
	if err := m.repo.CreateContact(ctx, msg); err != nil {
		return fmt.Errorf("store contact message: %w", err)
	}
	m.publish(eventbus.ContactReceived, *msg)
	m.log.Info("contact message received", logx.Int64("id", msg.ID), logx.String("locale", string(msg.Locale)))

	if m.alerts != nil {
		err := m.alerts.Notify(ctx, notifier.Notification{
			Kind:     "contact",
			Priority: notifier.PriorityInfo,
			Text:     contactAlertText(msg),
		})
		if err != nil && !errors.Is(err, notifier.ErrDisabled) {
			m.log.Warn("contact alert not queued", logx.Err(err))
		}
	}
	return nil
}

func contactAlertText(msg *ContactMessage) string {
	body := msg.Message
	if utf8.RuneCountInString(body) > 500 {
		body = string([]rune(body)[:500]) + "…"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "New contact message from %s <%s>", msg.Name, msg.Email)
	if msg.Phone != "" {
		fmt.Fprintf(&b, ", %s", msg.Phone)
	}
	b.WriteString("\n\n")
	b.WriteString(body)
	return b.String()
}

func (m *Manager) ListContact(ctx context.Context, limit, offset int) ([]ContactMessage, error) {
	return m.repo.ListContact(ctx, limit, offset)
}

func (m *Manager) UnreadContact(ctx context.Context) (int, error) {
	return m.repo.CountUnreadContact(ctx)
}

func (m *Manager) MarkContactRead(ctx context.Context, actor string, id int64, read bool) error {
	return m.finish(ctx, actor, "contact", "update", id, "", m.repo.SetContactRead(ctx, id, read))
}

func (m *Manager) DeleteContact(ctx context.Context, actor string, id int64) error {
	return m.finish(ctx, actor, "contact", "delete", id, "", m.repo.DeleteContact(ctx, id))
}

// ---- media ----

// RegisterMedia records an uploaded file. An empty status means ready.
func (m *Manager) RegisterMedia(ctx context.Context, actor string, md *Media) error {
	if err := validateMedia(md); err != nil {
		return err
	}
	if md.Status == "" {
		md.Status = MediaReady
	}
	now := m.now()
	md.CreatedAt, md.UpdatedAt = now, now
	if err := m.repo.CreateMedia(ctx, md); err != nil {
		m.audit(ctx, actor, "media.create", "media", err)
		return fmt.Errorf("register media: %w", err)
	}
	m.audit(ctx, actor, "media.create", target("media", md.ID, ""), nil)
	m.publish(eventbus.MediaUpdated, *md)
	return nil
}

// UpdateMedia persists a status, URL or poster change made by a background
// job.
func (m *Manager) UpdateMedia(ctx context.Context, md *Media) error {
	if err := validateMedia(md); err != nil {
		return err
	}
	md.UpdatedAt = m.now()
	err := m.repo.UpdateMedia(ctx, md)
	m.audit(ctx, SystemActor, "media.update", target("media", md.ID, ""), err)
	if err != nil {
		return err
	}
	m.publish(eventbus.MediaUpdated, *md)
	return nil
}

func (m *Manager) GetMedia(ctx context.Context, id int64) (*Media, error) {
	return m.repo.GetMedia(ctx, id)
}

func (m *Manager) ListMedia(ctx context.Context, limit, offset int) ([]Media, error) {
	return m.repo.ListMedia(ctx, limit, offset)
}

// DeleteMedia removes the record and returns it so the caller can remove the
// files it points to.
func (m *Manager) DeleteMedia(ctx context.Context, actor string, id int64) (*Media, error) {
	md, err := m.repo.GetMedia(ctx, id)
	if err == nil {
		err = m.repo.DeleteMedia(ctx, id)
	}
	m.audit(ctx, actor, "media.delete", target("media", id, ""), err)
	if err != nil {
		return nil, err
	}
	m.publish(eventbus.MediaUpdated, *md)
	return md, nil
}

// ReplaceMediaURL rewrites every content reference from oldURL to newURL.
func (m *Manager) ReplaceMediaURL(ctx context.Context, oldURL, newURL string) (int64, error) {
	if oldURL == "" || oldURL == newURL {
		return 0, nil
	}
	if !validURL(newURL) {
		return 0, &ValidationError{Fields: map[string]string{"url": "invalid replacement URL"}}
	}
	n, err := m.repo.ReplaceMediaURL(ctx, oldURL, newURL)
	m.audit(ctx, SystemActor, "media.replace_url", oldURL, err)
	if err != nil {
		return 0, fmt.Errorf("replace media url: %w", err)
	}
	if n > 0 {
		m.publish(eventbus.ContentChanged, ChangeEvent{Kind: "media_ref", Key: newURL, Action: "update"})
	}
	return n, nil
}

func validateMedia(md *Media) error {
	v := validator{}
	if md.Kind != MediaImage && md.Kind != MediaVideo {
		v.add("kind", "must be image or video")
	}
	v.required("url", md.URL)
	v.url("url", md.URL)
	v.url("poster_url", md.PosterURL)
	switch md.Status {
	case "", MediaReady, MediaProcessing, MediaFailed:
	default:
		v.add("status", "unknown status")
	}
	return v.err()
}

// ---- audit ----

func (m *Manager) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	return m.repo.ListAudit(ctx, limit)
}

// ---- helpers ----

// slugFor canonicalizes an explicit slug or derives one from title. Titles
// with no ASCII letters get a random suffix.
func (m *Manager) slugFor(kind, slug, title string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug != "" {
		return slug
	}
	if s := Slugify(title); s != "" {
		return s
	}
	return kind + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

func compactURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// finish audits a mutation and, on success, publishes content.changed.
func (m *Manager) finish(ctx context.Context, actor, kind, action string, id int64, key string, err error) error {
	m.audit(ctx, actor, kind+"."+action, target(kind, id, key), err)
	if err != nil {
		return err
	}
	m.publish(eventbus.ContentChanged, ChangeEvent{Kind: kind, ID: id, Key: key, Action: action})
	return nil
}

func (m *Manager) audit(ctx context.Context, actor, action, tgt string, err error) {
	e := AuditEntry{At: m.now(), Actor: actor, Action: action, Target: tgt, OK: err == nil}
	if err != nil {
		e.Error = err.Error()
	}
	// Audit writes must not be lost to a cancelled request.
	if aerr := m.repo.AppendAudit(context.WithoutCancel(ctx), e); aerr != nil {
		m.log.Warn("audit append failed", logx.String("action", action), logx.Err(aerr))
	}
}

func (m *Manager) publish(typ string, data any) {
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: typ, Time: m.now(), Data: data})
	}
}

func target(kind string, id int64, key string) string {
	if key != "" {
		return kind + ":" + key
	}
	if id == 0 {
		return kind
	}
	return fmt.Sprintf("%s:%d", kind, id)
}

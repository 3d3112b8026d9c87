package content

import "context"

// Repository is the persistence port implemented by internal/storage.
// Get/Update/Delete of a missing row return ErrNotFound; unique slug
// violations return ErrConflict.
type Repository interface {
	ListProjects(ctx context.Context, opt ListOptions) ([]Project, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*Project, error)
	CreateProject(ctx context.Context, p *Project) error
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id int64) error

	ListPosts(ctx context.Context, opt ListOptions) ([]Post, error)
	GetPost(ctx context.Context, id int64) (*Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*Post, error)
	CreatePost(ctx context.Context, p *Post) error
	UpdatePost(ctx context.Context, p *Post) error
	DeletePost(ctx context.Context, id int64) error

	ListAwards(ctx context.Context) ([]Award, error)
	GetAward(ctx context.Context, id int64) (*Award, error)
	CreateAward(ctx context.Context, a *Award) error
	UpdateAward(ctx context.Context, a *Award) error
	DeleteAward(ctx context.Context, id int64) error

	ListTeam(ctx context.Context) ([]TeamMember, error)
	GetTeamMember(ctx context.Context, id int64) (*TeamMember, error)
	CreateTeamMember(ctx context.Context, m *TeamMember) error
	UpdateTeamMember(ctx context.Context, m *TeamMember) error
	DeleteTeamMember(ctx context.Context, id int64) error

	ListServices(ctx context.Context) ([]Service, error)
	GetService(ctx context.Context, id int64) (*Service, error)
	CreateService(ctx context.Context, s *Service) error
	UpdateService(ctx context.Context, s *Service) error
	DeleteService(ctx context.Context, id int64) error

	GetPage(ctx context.Context, key string) (*Page, error)
	PutPage(ctx context.Context, p *Page) error

	CreateContact(ctx context.Context, m *ContactMessage) error
	ListContact(ctx context.Context, limit, offset int) ([]ContactMessage, error)
	CountUnreadContact(ctx context.Context) (int, error)
	SetContactRead(ctx context.Context, id int64, read bool) error
	DeleteContact(ctx context.Context, id int64) error

	CreateMedia(ctx context.Context, m *Media) error
	GetMedia(ctx context.Context, id int64) (*Media, error)
	UpdateMedia(ctx context.Context, m *Media) error
	ListMedia(ctx context.Context, limit, offset int) ([]Media, error)
	DeleteMedia(ctx context.Context, id int64) error

	// ReplaceMediaURL rewrites every content reference to oldURL and
	// returns the number of rows touched.
	ReplaceMediaURL(ctx context.Context, oldURL, newURL string) (int64, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

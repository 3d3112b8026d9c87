package storage

import (
	"context"
	"strings"

	"archsite/internal/content"
)

const projectCols = `id, slug, title_en, title_ar, summary_en, summary_ar, body_en, body_ar,
	category, location_en, location_ar, year, cover_url, video_url, gallery,
	featured, published, sort_order, created_at, updated_at`

func scanProject(row scanner) (*content.Project, error) {
	var (
		p                content.Project
		gallery          string
		created, updated int64
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Title.En, &p.Title.Ar, &p.Summary.En, &p.Summary.Ar,
		&p.Body.En, &p.Body.Ar, &p.Category, &p.Location.En, &p.Location.Ar, &p.Year,
		&p.CoverURL, &p.VideoURL, &gallery, &p.Featured, &p.Published, &p.SortOrder,
		&created, &updated)
	if err != nil {
		return nil, mapErr(err)
	}
	p.Gallery = decodeGallery(gallery)
	p.CreatedAt, p.UpdatedAt = fromMS(created), fromMS(updated)
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context, opt content.ListOptions) ([]content.Project, error) {
	var (
		where []string
		args  []any
	)
	if opt.PublishedOnly {
		where = append(where, "published = 1")
	}
	if opt.FeaturedOnly {
		where = append(where, "featured = 1")
	}
	if opt.Category != "" {
		where = append(where, "category = ?")
		args = append(args, opt.Category)
	}
	q := "SELECT " + projectCols + " FROM projects"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY sort_order, year DESC, id DESC" + limitClause(opt.Limit, opt.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []content.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id int64) (*content.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, "SELECT "+projectCols+" FROM projects WHERE id = ?", id))
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*content.Project, error) {
	return scanProject(s.db.QueryRowContext(ctx, "SELECT "+projectCols+" FROM projects WHERE slug = ?", slug))
}

func (s *Store) CreateProject(ctx context.Context, p *content.Project) error {
	gallery, err := encodeGallery(p.Gallery)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO projects(slug, title_en, title_ar, summary_en, summary_ar,
		body_en, body_ar, category, location_en, location_ar, year, cover_url, video_url, gallery,
		featured, published, sort_order, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.Slug, p.Title.En, p.Title.Ar, p.Summary.En, p.Summary.Ar, p.Body.En, p.Body.Ar,
		p.Category, p.Location.En, p.Location.Ar, p.Year, p.CoverURL, p.VideoURL, gallery,
		p.Featured, p.Published, p.SortOrder, ms(p.CreatedAt), ms(p.UpdatedAt))
	if err != nil {
		return mapErr(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdateProject(ctx context.Context, p *content.Project) error {
	gallery, err := encodeGallery(p.Gallery)
	if err != nil {
		return err
	}
	return mustAffect(s.db.ExecContext(ctx, `UPDATE projects SET slug=?, title_en=?, title_ar=?,
		summary_en=?, summary_ar=?, body_en=?, body_ar=?, category=?, location_en=?, location_ar=?,
		year=?, cover_url=?, video_url=?, gallery=?, featured=?, published=?, sort_order=?, updated_at=?
		WHERE id=?`,
		p.Slug, p.Title.En, p.Title.Ar, p.Summary.En, p.Summary.Ar, p.Body.En, p.Body.Ar,
		p.Category, p.Location.En, p.Location.Ar, p.Year, p.CoverURL, p.VideoURL, gallery,
		p.Featured, p.Published, p.SortOrder, ms(p.UpdatedAt), p.ID))
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id))
}

package storage

import (
	"context"
	"database/sql"

	"archsite/internal/content"
)

const postCols = `id, slug, title_en, title_ar, excerpt_en, excerpt_ar, body_en, body_ar,
	cover_url, published, published_at, created_at, updated_at`

func scanPost(row scanner) (*content.Post, error) {
	var (
		p                content.Post
		publishedAt      sql.NullInt64
		created, updated int64
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Title.En, &p.Title.Ar, &p.Excerpt.En, &p.Excerpt.Ar,
		&p.Body.En, &p.Body.Ar, &p.CoverURL, &p.Published, &publishedAt, &created, &updated)
	if err != nil {
		return nil, mapErr(err)
	}
	if publishedAt.Valid {
		t := fromMS(publishedAt.Int64)
		p.PublishedAt = &t
	}
	p.CreatedAt, p.UpdatedAt = fromMS(created), fromMS(updated)
	return &p, nil
}

func publishedAtArg(p *content.Post) any {
	if p.PublishedAt == nil {
		return nil
	}
	return ms(*p.PublishedAt)
}

// ListPosts orders newest first; drafts (no published_at) sort by creation.
func (s *Store) ListPosts(ctx context.Context, opt content.ListOptions) ([]content.Post, error) {
	q := "SELECT " + postCols + " FROM posts"
	if opt.PublishedOnly {
		q += " WHERE published = 1"
	}
	q += " ORDER BY COALESCE(published_at, created_at) DESC, id DESC" + limitClause(opt.Limit, opt.Offset)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []content.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) GetPost(ctx context.Context, id int64) (*content.Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, "SELECT "+postCols+" FROM posts WHERE id = ?", id))
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (*content.Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, "SELECT "+postCols+" FROM posts WHERE slug = ?", slug))
}

func (s *Store) CreatePost(ctx context.Context, p *content.Post) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO posts(slug, title_en, title_ar, excerpt_en, excerpt_ar,
		body_en, body_ar, cover_url, published, published_at, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.Slug, p.Title.En, p.Title.Ar, p.Excerpt.En, p.Excerpt.Ar, p.Body.En, p.Body.Ar,
		p.CoverURL, p.Published, publishedAtArg(p), ms(p.CreatedAt), ms(p.UpdatedAt))
	if err != nil {
		return mapErr(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UpdatePost(ctx context.Context, p *content.Post) error {
	return mustAffect(s.db.ExecContext(ctx, `UPDATE posts SET slug=?, title_en=?, title_ar=?,
		excerpt_en=?, excerpt_ar=?, body_en=?, body_ar=?, cover_url=?, published=?, published_at=?,
		updated_at=? WHERE id=?`,
		p.Slug, p.Title.En, p.Title.Ar, p.Excerpt.En, p.Excerpt.Ar, p.Body.En, p.Body.Ar,
		p.CoverURL, p.Published, publishedAtArg(p), ms(p.UpdatedAt), p.ID))
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id))
}

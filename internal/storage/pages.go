package storage

import (
	"context"

	"archsite/internal/content"
)

func (s *Store) GetPage(ctx context.Context, key string) (*content.Page, error) {
	var (
		p       content.Page
		updated int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT key, title_en, title_ar, body_en, body_ar, hero_url, updated_at
		FROM pages WHERE key = ?`, key).
		Scan(&p.Key, &p.Title.En, &p.Title.Ar, &p.Body.En, &p.Body.Ar, &p.HeroURL, &updated)
	if err != nil {
		return nil, mapErr(err)
	}
	p.UpdatedAt = fromMS(updated)
	return &p, nil
}

// PutPage upserts the page row.
func (s *Store) PutPage(ctx context.Context, p *content.Page) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO pages(key, title_en, title_ar, body_en, body_ar, hero_url, updated_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET title_en=excluded.title_en, title_ar=excluded.title_ar,
			body_en=excluded.body_en, body_ar=excluded.body_ar, hero_url=excluded.hero_url,
			updated_at=excluded.updated_at`,
		p.Key, p.Title.En, p.Title.Ar, p.Body.En, p.Body.Ar, p.HeroURL, ms(p.UpdatedAt))
	return mapErr(err)
}

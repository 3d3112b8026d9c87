package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"archsite/internal/content"
)

const mediaCols = `id, kind, url, original_name, size, mime_type, status, poster_url, error, created_at, updated_at`

func scanMedia(row scanner) (*content.Media, error) {
	var (
		m                content.Media
		kind, status     string
		created, updated int64
	)
	err := row.Scan(&m.ID, &kind, &m.URL, &m.OriginalName, &m.Size, &m.MimeType, &status,
		&m.PosterURL, &m.Error, &created, &updated)
	if err != nil {
		return nil, mapErr(err)
	}
	m.Kind, m.Status = content.MediaKind(kind), content.MediaStatus(status)
	m.CreatedAt, m.UpdatedAt = fromMS(created), fromMS(updated)
	return &m, nil
}

func (s *Store) CreateMedia(ctx context.Context, m *content.Media) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO media(kind, url, original_name, size, mime_type, status,
		poster_url, error, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		string(m.Kind), m.URL, m.OriginalName, m.Size, m.MimeType, string(m.Status), m.PosterURL, m.Error,
		ms(m.CreatedAt), ms(m.UpdatedAt))
	if err != nil {
		return mapErr(err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetMedia(ctx context.Context, id int64) (*content.Media, error) {
	return scanMedia(s.db.QueryRowContext(ctx, "SELECT "+mediaCols+" FROM media WHERE id = ?", id))
}

func (s *Store) UpdateMedia(ctx context.Context, m *content.Media) error {
	return mustAffect(s.db.ExecContext(ctx, `UPDATE media SET kind=?, url=?, original_name=?, size=?,
		mime_type=?, status=?, poster_url=?, error=?, updated_at=? WHERE id=?`,
		string(m.Kind), m.URL, m.OriginalName, m.Size, m.MimeType, string(m.Status), m.PosterURL, m.Error,
		ms(m.UpdatedAt), m.ID))
}

func (s *Store) ListMedia(ctx context.Context, limit, offset int) ([]content.Media, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+mediaCols+" FROM media ORDER BY created_at DESC, id DESC"+
		limitClause(limit, offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []content.Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMedia(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, "DELETE FROM media WHERE id = ?", id))
}

// urlColumns are the single-URL columns that may point at an upload.
var urlColumns = []struct{ table, col string }{
	{"projects", "cover_url"},
	{"projects", "video_url"},
	{"posts", "cover_url"},
	{"awards", "image_url"},
	{"team_members", "photo_url"},
	{"pages", "hero_url"},
}

// textColumns may embed upload URLs in free text.
var textColumns = []struct{ table, col string }{
	{"projects", "body_en"},
	{"projects", "body_ar"},
	{"posts", "body_en"},
	{"posts", "body_ar"},
	{"pages", "body_en"},
	{"pages", "body_ar"},
}

// ReplaceMediaURL rewrites references to oldURL in one transaction.
func (s *Store) ReplaceMediaURL(ctx context.Context, oldURL, newURL string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	exec := func(q string, args ...any) error {
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		total += n
		return err
	}

	for _, c := range urlColumns {
		q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", c.table, c.col, c.col)
		if err := exec(q, newURL, oldURL); err != nil {
			return 0, fmt.Errorf("%s.%s: %w", c.table, c.col, err)
		}
	}
	for _, c := range textColumns {
		q := fmt.Sprintf("UPDATE %s SET %s = replace(%s, ?, ?) WHERE instr(%s, ?) > 0", c.table, c.col, c.col, c.col)
		if err := exec(q, oldURL, newURL, oldURL); err != nil {
			return 0, fmt.Errorf("%s.%s: %w", c.table, c.col, err)
		}
	}

	// Galleries are JSON arrays; match whole quoted elements.
	oldQ, _ := json.Marshal(oldURL)
	newQ, _ := json.Marshal(newURL)
	if err := exec("UPDATE projects SET gallery = replace(gallery, ?, ?) WHERE instr(gallery, ?) > 0",
		string(oldQ), string(newQ), string(oldQ)); err != nil {
		return 0, fmt.Errorf("projects.gallery: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

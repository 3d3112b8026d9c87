package storage

import (
	"context"

	"archsite/internal/content"
)

func (s *Store) CreateContact(ctx context.Context, m *content.ContactMessage) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO contact_messages(name, email, phone, message, locale, ip, created_at, read)
		VALUES(?,?,?,?,?,?,?,?)`,
		m.Name, m.Email, m.Phone, m.Message, string(m.Locale), m.IP, ms(m.CreatedAt), m.Read)
	if err != nil {
		return mapErr(err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

// ListContact returns the inbox newest first.
func (s *Store) ListContact(ctx context.Context, limit, offset int) ([]content.ContactMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, phone, message, locale, ip, created_at, read
		FROM contact_messages ORDER BY created_at DESC, id DESC`+limitClause(limit, offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []content.ContactMessage{}
	for rows.Next() {
		var (
			m       content.ContactMessage
			locale  string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Message, &locale, &m.IP, &created, &m.Read); err != nil {
			return nil, err
		}
		m.Locale, m.CreatedAt = content.Locale(locale), fromMS(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CountUnreadContact(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contact_messages WHERE read = 0").Scan(&n)
	return n, err
}

func (s *Store) SetContactRead(ctx context.Context, id int64, read bool) error {
	return mustAffect(s.db.ExecContext(ctx, "UPDATE contact_messages SET read = ? WHERE id = ?", read, id))
}

func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	return mustAffect(s.db.ExecContext(ctx, "DELETE FROM contact_messages WHERE id = ?", id))
}

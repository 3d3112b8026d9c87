package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"archsite/internal/content"
)

func (s *Store) AppendAudit(ctx context.Context, e content.AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor, action, target, ok, err) VALUES(?,?,?,?,?,?)`,
		ms(e.At), e.Actor, e.Action, e.Target, e.OK, nullStr(e.Error),
	)
	return err
}

// ListAudit returns the newest entries first. limit <= 0 means 100.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]content.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, actor, action, target, ok, err FROM audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []content.AuditEntry{}
	for rows.Next() {
		var (
			e   content.AuditEntry
			at  int64
			msg sql.NullString
		)
		if err := rows.Scan(&at, &e.Actor, &e.Action, &e.Target, &e.OK, &msg); err != nil {
			return nil, err
		}
		e.At, e.Error = fromMS(at), msg.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneAudit deletes entries older than before.
func (s *Store) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit WHERE at < ?`, ms(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

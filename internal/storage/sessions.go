package storage

import (
	"context"
	"time"
)

func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(token_hash, username, created_at, expires_at) VALUES(?,?,?,?)`,
		sess.TokenHash, sess.Username, ms(sess.CreatedAt), ms(sess.ExpiresAt))
	return mapErr(err)
}

// GetSession returns content.ErrNotFound for unknown hashes. Expiry is the
// caller's concern.
func (s *Store) GetSession(ctx context.Context, tokenHash string) (Session, error) {
	var (
		sess             Session
		created, expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token_hash, username, created_at, expires_at FROM sessions WHERE token_hash = ?`, tokenHash).
		Scan(&sess.TokenHash, &sess.Username, &created, &expires)
	if err != nil {
		return Session{}, mapErr(err)
	}
	sess.CreatedAt, sess.ExpiresAt = fromMS(created), fromMS(expires)
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash)
	return err
}

// PruneSessions deletes sessions that expired before now.
func (s *Store) PruneSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, ms(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

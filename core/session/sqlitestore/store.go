package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dmitrymomot/sessionhub/core/session"
)

const columns = `id, principal_id, token, browser_family, os_family, form_factor,
	origin_address, created_at, last_activity_at, expires_at`

// Store is a session.Store on SQLite for single-instance deployments.
// Timestamps are stored as Unix nanoseconds.
type Store struct {
	db *sql.DB
}

// New returns a Store over db. Open and Migrate must have been called.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ session.Store = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, sess session.Session, p session.InsertParams) ([]session.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE principal_id = ? AND (expires_at < ? OR last_activity_at < ?)`,
		sess.PrincipalID, unix(p.Now), unix(p.IdleCutoff),
	); err != nil {
		return nil, mapError(err)
	}

	live, err := collect(tx.QueryContext(ctx,
		`SELECT `+columns+` FROM sessions WHERE principal_id = ? ORDER BY created_at, id`,
		sess.PrincipalID,
	))
	if err != nil {
		return nil, mapError(err)
	}

	var evicted []session.Session
	if over := len(live) - p.MaxSessions + 1; over > 0 {
		evicted = live[:over]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", over), ",")
		args := make([]any, 0, over)
		for _, e := range evicted {
			args = append(args, e.ID.String())
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return nil, mapError(err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID.String(), sess.PrincipalID, sess.Token,
		sess.Device.BrowserFamily, sess.Device.OSFamily, sess.Device.FormFactor,
		sess.OriginAddress, unix(sess.CreatedAt), unix(sess.LastActivityAt), unix(sess.ExpiresAt),
	); err != nil {
		return nil, mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err)
	}
	return evicted, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return s.one(ctx, `SELECT `+columns+` FROM sessions WHERE id = ?`, id.String())
}

func (s *Store) GetByToken(ctx context.Context, token string) (session.Session, error) {
	return s.one(ctx, `SELECT `+columns+` FROM sessions WHERE token = ?`, token)
}

func (s *Store) ListByPrincipal(ctx context.Context, principalID string) ([]session.Session, error) {
	out, err := collect(s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM sessions WHERE principal_id = ? ORDER BY created_at, id`,
		principalID,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (s *Store) Touch(ctx context.Context, token string, now, idleCutoff time.Time) (session.Session, error) {
	return s.one(ctx,
		`UPDATE sessions SET last_activity_at = MAX(last_activity_at, ?1)
		WHERE token = ?2 AND expires_at >= ?1 AND last_activity_at >= ?3
		RETURNING `+columns,
		unix(now), token, unix(idleCutoff),
	)
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return s.one(ctx, `DELETE FROM sessions WHERE id = ? RETURNING `+columns, id.String())
}

func (s *Store) DeleteByPrincipal(ctx context.Context, principalID, keepToken string) ([]session.Session, error) {
	return s.many(ctx,
		`DELETE FROM sessions WHERE principal_id = ?1 AND (?2 = '' OR token <> ?2) RETURNING `+columns,
		principalID, keepToken,
	)
}

func (s *Store) DeleteExpired(ctx context.Context, now, idleCutoff time.Time) ([]session.Session, error) {
	return s.many(ctx,
		`DELETE FROM sessions WHERE expires_at < ? OR last_activity_at < ? RETURNING `+columns,
		unix(now), unix(idleCutoff),
	)
}

// Healthcheck pings the database.
func (s *Store) Healthcheck(ctx context.Context) error {
	return Healthcheck(s.db)(ctx)
}

func (s *Store) one(ctx context.Context, query string, args ...any) (session.Session, error) {
	out, err := collect(s.db.QueryContext(ctx, query, args...))
	if err != nil {
		return session.Session{}, mapError(err)
	}
	if len(out) == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return out[0], nil
}

func (s *Store) many(ctx context.Context, query string, args ...any) ([]session.Session, error) {
	out, err := collect(s.db.QueryContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	session.SortByCreatedAt(out)
	return out, nil
}

func collect(rows *sql.Rows, err error) ([]session.Session, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		var (
			s                          session.Session
			id                         string
			created, active, expiresAt int64
		)
		if err := rows.Scan(
			&id, &s.PrincipalID, &s.Token,
			&s.Device.BrowserFamily, &s.Device.OSFamily, &s.Device.FormFactor,
			&s.OriginAddress, &created, &active, &expiresAt,
		); err != nil {
			return nil, err
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		s.CreatedAt = fromUnix(created)
		s.LastActivityAt = fromUnix(active)
		s.ExpiresAt = fromUnix(expiresAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return session.ErrNotFound
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		switch {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return errors.Join(session.ErrDuplicateToken, err)
		case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"):
			return errors.Join(session.ErrDuplicateToken, err)
		}
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_FULL:
			return errors.Join(session.ErrStoreUnavailable, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return errors.Join(session.ErrStoreUnavailable, err)
	}
	return err
}

func unix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/sessionhub/core/session"
	"github.com/dmitrymomot/sessionhub/integration/database/pg"
)

const columns = `id, principal_id, token, browser_family, os_family, form_factor,
	origin_address, created_at, last_activity_at, expires_at`

// insertAttempts bounds retries of the insert transaction on deadlock.
const insertAttempts = 5

// Store is a session.Store on PostgreSQL. Insert takes a transaction-scoped
// advisory lock on the principal, so concurrent inserts for one principal run
// one at a time across every instance sharing the database.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store over pool. The schema must be migrated first.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ session.Store = (*Store)(nil)

func (s *Store) Insert(ctx context.Context, sess session.Session, p session.InsertParams) ([]session.Session, error) {
	var evicted []session.Session

	err := pg.RetrySerializable(ctx, insertAttempts, func(ctx context.Context) error {
		evicted = nil
		return pg.InTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, sess.PrincipalID); err != nil {
				return err
			}

			if _, err := tx.Exec(ctx,
				`DELETE FROM sessions WHERE principal_id = $1 AND (expires_at < $2 OR last_activity_at < $3)`,
				sess.PrincipalID, ts(p.Now), ts(p.IdleCutoff),
			); err != nil {
				return err
			}

			rows, err := tx.Query(ctx,
				`SELECT id FROM sessions WHERE principal_id = $1 ORDER BY created_at, id`,
				sess.PrincipalID,
			)
			if err != nil {
				return err
			}
			live, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
			if err != nil {
				return err
			}

			if over := len(live) - p.MaxSessions + 1; over > 0 {
				oldest := make([]string, 0, over)
				for _, id := range live[:over] {
					oldest = append(oldest, id.String())
				}
				rows, err := tx.Query(ctx,
					`DELETE FROM sessions WHERE id = ANY($1::uuid[]) RETURNING `+columns,
					oldest,
				)
				if err != nil {
					return err
				}
				if evicted, err = pgx.CollectRows(rows, scanSession); err != nil {
					return err
				}
				session.SortByCreatedAt(evicted)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO sessions (`+columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				sess.ID, sess.PrincipalID, sess.Token,
				sess.Device.BrowserFamily, sess.Device.OSFamily, sess.Device.FormFactor,
				sess.OriginAddress, ts(sess.CreatedAt), ts(sess.LastActivityAt), ts(sess.ExpiresAt),
			)
			return err
		})
	})
	if err != nil {
		return nil, mapError(err)
	}
	return evicted, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return s.one(ctx, `SELECT `+columns+` FROM sessions WHERE id = $1`, id)
}

func (s *Store) GetByToken(ctx context.Context, token string) (session.Session, error) {
	return s.one(ctx, `SELECT `+columns+` FROM sessions WHERE token = $1`, token)
}

func (s *Store) ListByPrincipal(ctx context.Context, principalID string) ([]session.Session, error) {
	return s.many(ctx,
		`SELECT `+columns+` FROM sessions WHERE principal_id = $1 ORDER BY created_at, id`,
		principalID,
	)
}

func (s *Store) Touch(ctx context.Context, token string, now, idleCutoff time.Time) (session.Session, error) {
	return s.one(ctx,
		`UPDATE sessions SET last_activity_at = GREATEST(last_activity_at, $2)
		WHERE token = $1 AND expires_at >= $2 AND last_activity_at >= $3
		RETURNING `+columns,
		token, ts(now), ts(idleCutoff),
	)
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) (session.Session, error) {
	return s.one(ctx, `DELETE FROM sessions WHERE id = $1 RETURNING `+columns, id)
}

func (s *Store) DeleteByPrincipal(ctx context.Context, principalID, keepToken string) ([]session.Session, error) {
	return s.many(ctx,
		`DELETE FROM sessions WHERE principal_id = $1 AND ($2 = '' OR token <> $2) RETURNING `+columns,
		principalID, keepToken,
	)
}

func (s *Store) DeleteExpired(ctx context.Context, now, idleCutoff time.Time) ([]session.Session, error) {
	return s.many(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR last_activity_at < $2 RETURNING `+columns,
		ts(now), ts(idleCutoff),
	)
}

// Healthcheck pings the pool.
func (s *Store) Healthcheck(ctx context.Context) error {
	return pg.Healthcheck(s.pool)(ctx)
}

func (s *Store) one(ctx context.Context, query string, args ...any) (session.Session, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return session.Session{}, mapError(err)
	}
	sess, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if err != nil {
		return session.Session{}, mapError(err)
	}
	return sess, nil
}

func (s *Store) many(ctx context.Context, query string, args ...any) ([]session.Session, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	out, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, mapError(err)
	}
	session.SortByCreatedAt(out)
	return out, nil
}

func scanSession(row pgx.CollectableRow) (session.Session, error) {
	var s session.Session
	err := row.Scan(
		&s.ID, &s.PrincipalID, &s.Token,
		&s.Device.BrowserFamily, &s.Device.OSFamily, &s.Device.FormFactor,
		&s.OriginAddress, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt,
	)
	s.CreatedAt = s.CreatedAt.UTC()
	s.LastActivityAt = s.LastActivityAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, err
}

func mapError(err error) error {
	switch {
	case pg.IsNotFoundError(err):
		return session.ErrNotFound
	case pg.IsDuplicateKeyError(err):
		return errors.Join(session.ErrDuplicateToken, err)
	case pg.IsUnavailableError(err):
		return errors.Join(session.ErrStoreUnavailable, err)
	}
	return err
}

// ts drops precision PostgreSQL does not keep.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

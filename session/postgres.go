package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxConn is the part of *pgxpool.Pool the Postgres store needs.
type PgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore keeps records in the sessions table created by
// internal/migrate. Rotation locks the row with SELECT ... FOR UPDATE and
// applies the same transition rules as the other backends inside one
// transaction.
type PostgresStore struct {
	db   PgxConn
	opts Options
}

func NewPostgresStore(db PgxConn, opts Options) *PostgresStore {
	return &PostgresStore{db: db, opts: opts.withDefaults()}
}

const selectColumns = `session_id, subject_id, client_label, current_token_hash, previous_token_hash,
	rotation_counter, issued_at, last_refreshed_at, expires_at, revoked, revoked_at, revoke_reason`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r         Record
		current   []byte
		previous  []byte
		counter   int64
		revokedAt *time.Time
		reason    string
	)
	err := row.Scan(&r.SessionID, &r.SubjectID, &r.ClientLabel, &current, &previous,
		&counter, &r.IssuedAt, &r.LastRefreshedAt, &r.ExpiresAt, &r.Revoked, &revokedAt, &reason)
	if err != nil {
		return nil, err
	}
	if len(current) != len(r.CurrentTokenHash) {
		return nil, fmt.Errorf("%w: current hash has %d bytes", ErrCorrupt, len(current))
	}
	copy(r.CurrentTokenHash[:], current)
	copy(r.PreviousTokenHash[:], previous)
	r.RotationCounter = uint64(counter)
	if revokedAt != nil {
		r.RevokedAt = revokedAt.UTC()
	}
	r.RevokeReason = RevokeReason(reason)
	r.IssuedAt = r.IssuedAt.UTC()
	r.LastRefreshedAt = r.LastRefreshedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	return &r, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *PostgresStore) Create(ctx context.Context, subjectID, clientLabel string, now time.Time) (*Record, string, error) {
	const op = "session.postgres.Create"

	rec, token, err := newRecord(subjectID, clientLabel, now, s.opts.Lifetime)
	if err != nil {
		return nil, "", err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO sessions (session_id, subject_id, client_label, current_token_hash,
			rotation_counter, issued_at, last_refreshed_at, expires_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5, $6)`,
		rec.SessionID, rec.SubjectID, rec.ClientLabel, rec.CurrentTokenHash[:], rec.IssuedAt, rec.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return rec, token, nil
}

func (s *PostgresStore) Rotate(ctx context.Context, sessionID, token string, now time.Time) (*Record, string, error) {
	const op = "session.postgres.Rotate"

	sid, hash, err := presented(sessionID, token)
	if err != nil {
		return nil, "", err
	}
	nextToken, nextHash, err := internal.NewRefreshToken(sid)
	if err != nil {
		return nil, "", err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := scanRecord(tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM sessions WHERE session_id = $1 FOR UPDATE`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	rotateErr := rec.rotate(hash, nextHash, now, s.opts.ReuseGrace)
	if rotateErr != nil && !persistsOnFailure(rotateErr) {
		return rec, "", rotateErr
	}

	_, err = tx.Exec(ctx, `
		UPDATE sessions SET current_token_hash = $2, previous_token_hash = $3, rotation_counter = $4,
			last_refreshed_at = $5, revoked = $6, revoked_at = $7, revoke_reason = $8
		WHERE session_id = $1`,
		rec.SessionID, rec.CurrentTokenHash[:], rec.PreviousTokenHash[:], int64(rec.RotationCounter),
		rec.LastRefreshedAt, rec.Revoked, nullableTime(rec.RevokedAt), string(rec.RevokeReason))
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}

	if rotateErr != nil {
		return rec, "", rotateErr
	}
	return rec, nextToken, nil
}

// persistsOnFailure lists rotation failures whose revocation must be
// committed.
func persistsOnFailure(err error) bool {
	return errors.Is(err, ErrReplayDetected) || errors.Is(err, ErrExpired)
}

func (s *PostgresStore) Revoke(ctx context.Context, sessionID string, reason RevokeReason, now time.Time) error {
	const op = "session.postgres.Revoke"

	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET revoked = TRUE, revoked_at = $2, revoke_reason = $3
		WHERE session_id = $1 AND NOT revoked`,
		sessionID, now, string(reason))
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) RevokeAllForSubject(ctx context.Context, subjectID string, reason RevokeReason, now time.Time) (int, error) {
	const op = "session.postgres.RevokeAllForSubject"

	tag, err := s.db.Exec(ctx, `
		UPDATE sessions SET revoked = TRUE, revoked_at = $2, revoke_reason = $3
		WHERE subject_id = $1 AND NOT revoked`,
		subjectID, now, string(reason))
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	const op = "session.postgres.Get"

	rec, err := scanRecord(s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM sessions WHERE session_id = $1`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if errors.Is(err, ErrCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return rec, nil
}

func (s *PostgresStore) ListForSubject(ctx context.Context, subjectID string, now time.Time) ([]*Record, error) {
	const op = "session.postgres.ListForSubject"

	rows, err := s.db.Query(ctx, `SELECT `+selectColumns+` FROM sessions
		WHERE subject_id = $1 AND NOT revoked AND expires_at >= $2
		ORDER BY issued_at`, subjectID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return out, nil
}

// PurgeExpired deletes records past their absolute lifetime. It is the entry
// point for an external sweeper.
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	const op = "session.postgres.PurgeExpired"

	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)

package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxConn is the part of *pgxpool.Pool the directory needs.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres reads and writes the users table.
type Postgres struct {
	db  PgxConn
	now func() time.Time
}

// NewPostgres wraps db. now may be nil.
func NewPostgres(db PgxConn, now func() time.Time) *Postgres {
	if now == nil {
		now = time.Now
	}
	return &Postgres{db: db, now: now}
}

const userColumns = `id, email, password_hash, display_name, created_at, updated_at`

func (p *Postgres) FindByEmail(ctx context.Context, email string) (Record, error) {
	const op = "directory.postgres.FindByEmail"

	row := p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	rec, err := scanUser(row)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (p *Postgres) FindByID(ctx context.Context, subjectID string) (Record, error) {
	const op = "directory.postgres.FindByID"

	id, err := uuid.Parse(subjectID)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	row := p.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	rec, err := scanUser(row)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (p *Postgres) Create(ctx context.Context, email, passwordHash string) (Record, error) {
	const op = "directory.postgres.Create"

	now := p.now().UTC()
	rec := Record{
		SubjectID:    uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.SubjectID, rec.Email, rec.PasswordHash, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return Record{}, fmt.Errorf("%s: %w", op, ErrDuplicate)
		}
		return Record{}, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func (p *Postgres) UpdatePasswordHash(ctx context.Context, subjectID, passwordHash string) error {
	const op = "directory.postgres.UpdatePasswordHash"

	id, err := uuid.Parse(subjectID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	tag, err := p.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, p.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (Record, error) {
	var (
		rec Record
		id  uuid.UUID
	)
	err := row.Scan(&id, &rec.Email, &rec.PasswordHash, &rec.DisplayName, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.SubjectID = id.String()
	return rec, nil
}

var _ Directory = (*Postgres)(nil)

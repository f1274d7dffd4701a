// Package postgres persists quakes and local user accounts in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/couchcryptid/quake-sync/internal/auth"
	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/reconcile"
)

const (
	quakesTable = "terremoti"
	usersTable  = "users"

	uniqueViolation = "23505"
)

const schema = `
CREATE TABLE IF NOT EXISTS terremoti (
	id          UUID PRIMARY KEY,
	usgs_id     TEXT NOT NULL UNIQUE,
	magnitudo   DOUBLE PRECISION,
	luogo       TEXT NOT NULL DEFAULT '',
	latitudine  DOUBLE PRECISION NOT NULL,
	longitudine DOUBLE PRECISION NOT NULL,
	profondita  DOUBLE PRECISION,
	occurred_at TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements reconcile.Collection and auth.UserStore.
type Store struct {
	db *pgxpool.Pool
}

// Connect opens a pool and verifies the server answers.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnLifetime = 30 * time.Minute

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// New wraps an open pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (string, bool, error) {
	query, args, err := findQuery(externalID)
	if err != nil {
		return "", false, err
	}
	var id string
	err = s.db.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find %s: %w", externalID, err)
	}
	return id, true, nil
}

func (s *Store) Create(ctx context.Context, doc domain.QuakeDocument) error {
	query, args, err := insertQuery(uuid.NewString(), doc)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("create %s: %w", doc.USGSID, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, recordID string, doc domain.QuakeDocument) error {
	query, args, err := updateQuery(recordID, doc)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", doc.USGSID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", doc.USGSID, reconcile.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) error {
	query, args, err := psql.Insert(usersTable).
		Columns("id", "email", "password_hash", "created_at").
		Values(u.ID, u.Email, u.PasswordHash, u.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, bool, error) {
	query, args, err := psql.Select("id", "email", "password_hash", "created_at").
		From(usersTable).
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return auth.User{}, false, fmt.Errorf("build select user: %w", err)
	}
	var u auth.User
	err = s.db.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.User{}, false, nil
	}
	if err != nil {
		return auth.User{}, false, fmt.Errorf("select user: %w", err)
	}
	return u, true, nil
}

func findQuery(externalID string) (string, []any, error) {
	query, args, err := psql.Select("id").
		From(quakesTable).
		Where(sq.Eq{"usgs_id": externalID}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build find query: %w", err)
	}
	return query, args, nil
}

func insertQuery(id string, doc domain.QuakeDocument) (string, []any, error) {
	occurredAt, err := parseDocTime(doc.DateTime)
	if err != nil {
		return "", nil, err
	}
	query, args, err := psql.Insert(quakesTable).
		Columns("id", "usgs_id", "magnitudo", "luogo", "latitudine", "longitudine", "profondita", "occurred_at").
		Values(id, doc.USGSID, doc.Magnitude, doc.Place, doc.Lat, doc.Lon, doc.DepthKm, occurredAt).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build insert query: %w", err)
	}
	return query, args, nil
}

func updateQuery(recordID string, doc domain.QuakeDocument) (string, []any, error) {
	occurredAt, err := parseDocTime(doc.DateTime)
	if err != nil {
		return "", nil, err
	}
	query, args, err := psql.Update(quakesTable).
		Set("usgs_id", doc.USGSID).
		Set("magnitudo", doc.Magnitude).
		Set("luogo", doc.Place).
		Set("latitudine", doc.Lat).
		Set("longitudine", doc.Lon).
		Set("profondita", doc.DepthKm).
		Set("occurred_at", occurredAt).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": recordID}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update query: %w", err)
	}
	return query, args, nil
}

func parseDocTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse DateTime %q: %w", s, err)
	}
	return t, nil
}

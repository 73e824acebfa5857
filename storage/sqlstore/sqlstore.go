// Package sqlstore implements the authd store on database/sql for SQLite,
// PostgreSQL and MySQL. Queries are written with ? placeholders and rebound
// per dialect; the schema is managed by embedded goose migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/dbx"
	"github.com/cameronmore/authd/sessions"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database. The schema must already be migrated.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// Open connects to dsn, applies pending migrations and returns the store.
func Open(ctx context.Context, d Dialect, dsn string) (*Store, error) {
	db, err := OpenDB(ctx, d, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db, d); err != nil {
		db.Close()
		return nil, err
	}
	return New(db, d), nil
}

// OpenDB opens and pings a connection pool for the dialect.
func OpenDB(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", d, err)
	}
	if d == SQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", d, err)
	}
	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveUser(ctx context.Context, u accounts.User) error {
	return dbx.InTx(ctx, s.db, func(tx dbx.Querier) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			s.dialect.rebind(`SELECT 1 FROM users WHERE username = ? OR id = ?`),
			u.Username, u.UserId).Scan(&exists)
		if err == nil {
			return accounts.ErrDuplicateUsername
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("db error: %w", err)
		}

		query := `
		INSERT INTO users (id, username, hashed_password, name, bio, website, profile_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, s.dialect.rebind(query),
			u.UserId, u.Username, u.HashedPassword, u.Name, u.Bio, u.Website, u.ProfileImage, u.CreatedAt.Unix())
		if err != nil {
			if isUniqueViolation(err) {
				return accounts.ErrDuplicateUsername
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

const userColumns = `id, username, hashed_password, name, bio, website, profile_image, created_at`

func (s *Store) LoadUserById(ctx context.Context, id string) (accounts.User, error) {
	return s.loadUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) LoadUserByUsername(ctx context.Context, username string) (accounts.User, error) {
	return s.loadUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (s *Store) loadUser(ctx context.Context, query string, arg string) (accounts.User, error) {
	var u accounts.User
	var createdAt int64
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), arg).Scan(
		&u.UserId, &u.Username, &u.HashedPassword, &u.Name, &u.Bio, &u.Website, &u.ProfileImage, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.User{}, accounts.ErrUserNotFound
	}
	if err != nil {
		return accounts.User{}, fmt.Errorf("db error: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return u, nil
}

func (s *Store) SaveSession(ctx context.Context, sess sessions.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES (?, ?, ?)
		`
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query), string(sess.Id), sess.UserId, sess.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) LoadSessionById(ctx context.Context, id sessions.SessionId) (sessions.Session, error) {
	sess := sessions.Session{Id: id}
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT user_id, expires_at FROM sessions WHERE id = ?`),
		string(id)).Scan(&sess.UserId, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("db error: %w", err)
	}
	sess.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return sess, nil
}

func (s *Store) DeleteSessionById(ctx context.Context, id sessions.SessionId) error {
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM sessions WHERE id = ?`), string(id))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return sessions.ErrSessionNotFound
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteExpired(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
}

func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	query := `INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT (jti) DO NOTHING`
	if s.dialect == MySQL {
		query = `INSERT IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(query), jti, expiresAt.Unix()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT 1 FROM revoked_tokens WHERE jti = ?`), jti).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (s *Store) DeleteExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteExpired(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, now)
}

func (s *Store) deleteExpired(ctx context.Context, query string, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(query), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

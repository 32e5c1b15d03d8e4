package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/domain"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS console_sessions (
	sid        TEXT PRIMARY KEY,
	user_json  JSONB,
	jar_json   JSONB,
	expires_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps sessions in a console_sessions table.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// OpenPostgres connects to databaseURL and makes sure the sessions table
// exists. Session rows are small and short lived, so the pool stays narrow.
func OpenPostgres(ctx context.Context, databaseURL string, ttl time.Duration) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	s := &PostgresStore{pool: pool, ttl: ttl}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Health(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create console_sessions: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) loadColumn(ctx context.Context, sid, column string) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT `+column+`
		FROM console_sessions
		WHERE sid=$1 AND expires_at > now()
	`, sid).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	if raw == nil {
		return nil, session.ErrNotFound
	}
	return raw, nil
}

func (s *PostgresStore) Load(ctx context.Context, sid string) (*domain.User, error) {
	raw, err := s.loadColumn(ctx, sid, "user_json")
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, session.ErrNotFound
	}
	return &u, nil
}

func (s *PostgresStore) Save(ctx context.Context, sid string, user domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO console_sessions (sid, user_json, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (sid) DO UPDATE SET user_json=EXCLUDED.user_json, expires_at=EXCLUDED.expires_at, updated_at=now()
	`, sid, raw, time.Now().Add(s.ttl))
	return err
}

func (s *PostgresStore) Clear(ctx context.Context, sid string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM console_sessions WHERE sid=$1`, sid)
	return err
}

func (s *PostgresStore) LoadCookies(ctx context.Context, sid string) ([]*http.Cookie, error) {
	raw, err := s.loadColumn(ctx, sid, "jar_json")
	if err != nil {
		return nil, err
	}
	return decodeCookies(raw)
}

func (s *PostgresStore) SaveCookies(ctx context.Context, sid string, cookies []*http.Cookie) error {
	raw, err := encodeCookies(cookies)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO console_sessions (sid, jar_json, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (sid) DO UPDATE SET jar_json=EXCLUDED.jar_json, expires_at=EXCLUDED.expires_at, updated_at=now()
	`, sid, raw, time.Now().Add(s.ttl))
	return err
}

// PurgeExpired removes sessions past their expiry.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM console_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

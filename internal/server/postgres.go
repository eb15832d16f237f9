// Package server is the admin analytics backend: it receives
// fire-and-forget location pings from the tracking loop and exposes a
// token-guarded admin API over a Postgres store.
package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// VisitorLocation is one received location ping.
type VisitorLocation struct {
	ID        string    `json:"id"`
	VisitorID string    `json:"visitorId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Zone      string    `json:"zone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// VisitorStats summarizes pings over a window.
type VisitorStats struct {
	TotalLocations int            `json:"totalLocations"`
	UniqueVisitors int            `json:"uniqueVisitors"`
	ZoneStats      map[string]int `json:"zoneStats"`
}

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore persists visitor locations and admin sessions.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS visitor_locations (
	id         TEXT PRIMARY KEY,
	visitor_id TEXT NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	zone       TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS admin_sessions (
	token      TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_visitor_locations_created_at ON visitor_locations(created_at);
CREATE INDEX IF NOT EXISTS idx_visitor_locations_visitor_id ON visitor_locations(visitor_id);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_expires_at ON admin_sessions(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// SaveLocation inserts one ping and returns its assigned id.
func (s *PostgresStore) SaveLocation(ctx context.Context, visitorID string, lat, lng float64, zone string) (string, error) {
	id := uuid.New().String()
	var zoneArg any
	if zone != "" {
		zoneArg = zone
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO visitor_locations (id, visitor_id, latitude, longitude, zone) VALUES ($1, $2, $3, $4, $5)`,
		id, visitorID, lat, lng, zoneArg,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert location")
	}
	return id, nil
}

// RecentLocations returns pings newer than since, newest first.
func (s *PostgresStore) RecentLocations(ctx context.Context, since time.Time, limit int) ([]VisitorLocation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, visitor_id, latitude, longitude, COALESCE(zone, ''), created_at
		 FROM visitor_locations WHERE created_at > $1
		 ORDER BY created_at DESC LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list locations")
	}
	defer rows.Close()

	var locations []VisitorLocation
	for rows.Next() {
		var l VisitorLocation
		if err := rows.Scan(&l.ID, &l.VisitorID, &l.Latitude, &l.Longitude, &l.Zone, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		locations = append(locations, l)
	}
	return locations, eris.Wrap(rows.Err(), "postgres: list locations iterate")
}

// Stats aggregates pings newer than since. Pings without a zone count
// under "unknown".
func (s *PostgresStore) Stats(ctx context.Context, since time.Time) (*VisitorStats, error) {
	stats := &VisitorStats{ZoneStats: map[string]int{}}

	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT visitor_id) FROM visitor_locations WHERE created_at > $1`,
		since,
	)
	if err := row.Scan(&stats.TotalLocations, &stats.UniqueVisitors); err != nil {
		return nil, eris.Wrap(err, "postgres: stats totals")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(NULLIF(zone, ''), 'unknown'), COUNT(*)
		 FROM visitor_locations WHERE created_at > $1 GROUP BY 1`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats zones")
	}
	defer rows.Close()

	for rows.Next() {
		var zone string
		var count int
		if err := rows.Scan(&zone, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone stat")
		}
		stats.ZoneStats[zone] = count
	}
	return stats, eris.Wrap(rows.Err(), "postgres: stats zones iterate")
}

// CreateAdminSession persists a bearer token valid until expiresAt.
func (s *PostgresStore) CreateAdminSession(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO admin_sessions (token, expires_at) VALUES ($1, $2)`,
		token, expiresAt,
	)
	return eris.Wrap(err, "postgres: insert admin session")
}

// ValidToken reports whether the token exists and has not expired.
// Store failures count as invalid.
func (s *PostgresStore) ValidToken(ctx context.Context, token string, now time.Time) bool {
	if token == "" {
		return false
	}
	var expiresAt time.Time
	row := s.pool.QueryRow(ctx,
		`SELECT expires_at FROM admin_sessions WHERE token = $1`,
		token,
	)
	if err := row.Scan(&expiresAt); err != nil {
		return false
	}
	return expiresAt.After(now)
}

// Package postgres implements storage.ContentStore on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/storage"
)

// Storage implements storage.ContentStore on a pgx pool
type Storage struct {
	pool *pgxpool.Pool
}

var (
	_ storage.ContentStore = (*Storage)(nil)
	_ storage.Pinger       = (*Storage)(nil)
)

// Config describes the connection. DSN, when set, is used as-is and the
// host fields are ignored.
type Config struct {
	DSN string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// Pool sizing; zero values keep pgx defaults
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a local connection to the intake database
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "intake",
		User:            "intake",
		SSLMode:         "prefer",
		MaxConns:        10,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Validate checks that the config names a database
func (c *Config) Validate() error {
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" || c.Database == "" {
		return fmt.Errorf("postgres host and database are required when no dsn is given")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("postgres port out of range (got %d)", c.Port)
	}
	if c.MinConns > c.MaxConns && c.MaxConns > 0 {
		return fmt.Errorf("min_conns (%d) exceeds max_conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// ConnString returns a postgres:// URL with credentials escaped
func (c *Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// New opens the pool, checks connectivity and migrates the schema
func New(ctx context.Context, cfg *Config) (*Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pc, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	s := &Storage{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Ping checks that the database answers
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres unreachable: %w", err)
	}
	return nil
}

// migrate applies pending migrations in one transaction. The advisory lock
// serializes processes starting against the same database.
func (s *Storage) migrate(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return fmt.Errorf("failed to lock schema: %w", err)
		}
		if _, err := tx.Exec(ctx, schemaVersionTable); err != nil {
			return fmt.Errorf("failed to create schema_version: %w", err)
		}
		var current int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		for v := current + 1; v <= len(migrations); v++ {
			if _, err := tx.Exec(ctx, migrations[v-1]); err != nil {
				return fmt.Errorf("migration %d failed: %w", v, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, v); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", v, err)
			}
			logging.Infof("[STORAGE] applied postgres migration %d", v)
		}
		return nil
	})
}

// Close closes the pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

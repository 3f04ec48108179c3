package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const applicationName = "cascadesign"

// PoolConfig configures the pool shared by the organization, document and process stores.
type PoolConfig struct {
	// ConnString is a postgres:// URL or key/value DSN.
	ConnString string

	MaxConns        int32         // default 20
	MinConns        int32         // default 2
	MaxConnLifetime time.Duration // default 1h
	MaxConnIdleTime time.Duration // default 30m
	ConnectTimeout  time.Duration // default 10s

	// StatementTimeout bounds every statement run on the pool's sessions.
	// Zero keeps the server default.
	StatementTimeout time.Duration

	// AutoMigrate applies pending migrations once the pool is connected.
	AutoMigrate bool
}

func (c *PoolConfig) validate() error {
	if c.ConnString == "" {
		return errors.New("connection string is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min conns (%d) exceeds max conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

func (c *PoolConfig) applyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 20
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// NewPool connects a pgx pool, pings it and runs migrations when AutoMigrate is set.
func NewPool(ctx context.Context, cfg *PoolConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, errors.New("pool config is required")
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	params := poolConfig.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("database", poolConfig.ConnConfig.Database).
		Str("host", poolConfig.ConnConfig.Host).
		Int32("max_conns", cfg.MaxConns).
		Msg("Connected to PostgreSQL")

	if cfg.AutoMigrate {
		if err := RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return pool, nil
}

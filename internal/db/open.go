// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/toeirei/dbdispatch/internal/config"
	"github.com/toeirei/dbdispatch/internal/model"
	"github.com/toeirei/dbdispatch/internal/offload"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	// SQL drivers registered with database/sql.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	// sqlOpenFunc allows tests to override database opening behavior.
	sqlOpenFunc = sql.Open
	// pgxConnectFunc allows tests to substitute a mock pool for pgxpool.
	pgxConnectFunc = connectPgxPool
)

// Open builds a session for cfg. sqlite and mysql are served by the blocking
// adapter on pool (nil means the process-wide pool). postgres uses the native
// pgx adapter unless cfg.Mode asks for blocking.
func Open(ctx context.Context, cfg config.Database, pool *offload.Pool) (Session, error) {
	switch cfg.Type {
	case "sqlite", "mysql":
		if cfg.Mode == string(model.ModeNative) {
			return nil, fmt.Errorf("%s has no native driver; use mode %q", cfg.Type, model.ModeBlocking)
		}
		if _, err := model.ParseMode(cfg.Mode); err != nil {
			return nil, err
		}
		return openBlocking(ctx, cfg, pool)
	case "postgres":
		mode, err := model.ParseMode(cfg.Mode)
		if err != nil {
			return nil, err
		}
		if mode == model.ModeBlocking {
			return openBlocking(ctx, cfg, pool)
		}
		conn, err := pgxConnectFunc(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		dbLogf("opened postgres (native)")
		return NewNative(NewPgxBackend(conn)), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func openBlocking(ctx context.Context, cfg config.Database, pool *offload.Pool) (Session, error) {
	bdb, err := createBunDB(cfg)
	if err != nil {
		return nil, err
	}
	sess := NewBlocking(pool, NewSQLBackend(bdb, cfg.Type))
	// The first round trip happens on a worker like every other blocking call.
	_, err = offload.Submit(ctx, sess.resolvePool(), func() (struct{}, error) {
		return struct{}{}, bdb.Ping()
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, wrap("open", cfg.Type, err))
	}
	dbLogf("opened %s (blocking)", cfg.Type)
	return sess, nil
}

// createBunDB opens a *sql.DB for cfg, applies the connection pool settings
// and wraps it in bun with the matching dialect.
func createBunDB(cfg config.Database) (*bun.DB, error) {
	driverName := cfg.Type
	// The pgx stdlib registers driver name "pgx"; map "postgres" to that driver.
	if cfg.Type == "postgres" {
		driverName = "pgx"
	}
	sqlDB, err := sqlOpenFunc(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen, maxIdle := cfg.MaxOpenConns, cfg.MaxIdleConns
	// Every connection to ":memory:" gets its own empty database; keep one.
	if cfg.Type == "sqlite" && cfg.DSN == ":memory:" {
		maxOpen, maxIdle = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	switch cfg.Type {
	case "sqlite":
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New()), nil
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New()), nil
	default:
		_ = sqlDB.Close()
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func connectPgxPool(ctx context.Context, cfg config.Database) (PgxConn, error) {
	pc, err := pgxPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// pgxPoolConfig parses the DSN and applies the pool limits. MaxConns is an
// int32 in pgxpool; larger limits are clamped.
func pgxPoolConfig(cfg config.Database) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(min(cfg.MaxOpenConns, math.MaxInt32))
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	return pc, nil
}

// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toeirei/dbdispatch/internal/config"
	"github.com/toeirei/dbdispatch/internal/model"
)

func TestPgxPoolConfig_Limits(t *testing.T) {
	const dsn = "postgres://app@localhost:5432/app"
	pc, err := pgxPoolConfig(config.Database{DSN: dsn, MaxOpenConns: 12, ConnMaxLifetime: time.Minute, ConnMaxIdleTime: time.Second})
	require.NoError(t, err)
	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, time.Second, pc.MaxConnIdleTime)

	if strconv.IntSize == 32 {
		return
	}
	huge := math.MaxInt32
	huge++
	pc, err = pgxPoolConfig(config.Database{DSN: dsn, MaxOpenConns: huge})
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), pc.MaxConns)
}

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "open.db")
	s, err := Open(ctx, config.Database{Type: "sqlite", DSN: dsn, MaxOpenConns: 2, MaxIdleConns: 2}, newTestPool(t, 2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	info := s.Info()
	assert.Equal(t, "sqlite", info.Backend)
	assert.Equal(t, "modernc.org/sqlite", info.Driver)
	assert.Equal(t, model.ModeBlocking, info.Mode)
	assert.NotEmpty(t, info.Session)

	_, err = s.Post(ctx, model.Params{Statement: "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)"})
	require.NoError(t, err)
	res, err := s.Post(ctx, model.Params{Statement: "INSERT INTO kv (k, v) VALUES (?, ?)", Args: []any{"a", "1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
}

func TestOpen_MemoryPinnedToOneConnection(t *testing.T) {
	bdb, err := createBunDB(config.Database{Type: "sqlite", DSN: ":memory:", MaxOpenConns: 10, MaxIdleConns: 10})
	require.NoError(t, err)
	defer func() { _ = bdb.Close() }()
	assert.Equal(t, 1, bdb.Stats().MaxOpenConnections)
}

func TestOpen_SessionsAreDistinct(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 1)
	dsn := filepath.Join(t.TempDir(), "two.db")
	a, err := Open(ctx, config.Database{Type: "sqlite", DSN: dsn}, pool)
	require.NoError(t, err)
	defer func() { _ = a.Close(ctx) }()
	b, err := Open(ctx, config.Database{Type: "sqlite", DSN: dsn}, pool)
	require.NoError(t, err)
	defer func() { _ = b.Close(ctx) }()

	assert.NotEqual(t, a.Info().Session, b.Info().Session)
	require.NoError(t, a.Begin(ctx, false))
	assert.False(t, b.Info().InTx, "transaction state must not leak across sessions")
	require.NoError(t, a.Rollback(ctx))
}

func TestOpen_RejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t, 1)
	cases := map[string]config.Database{
		"unknown type":        {Type: "oracle"},
		"sqlite native":       {Type: "sqlite", DSN: ":memory:", Mode: "native"},
		"mysql native":        {Type: "mysql", DSN: "u@/db", Mode: "native"},
		"unknown mode":        {Type: "postgres", DSN: "postgres://x", Mode: "async"},
		"sqlite unknown mode": {Type: "sqlite", DSN: ":memory:", Mode: "async"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Open(ctx, cfg, pool)
			require.Error(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestOpen_SQLOpenFailure(t *testing.T) {
	prev := sqlOpenFunc
	defer func() { sqlOpenFunc = prev }()
	var gotDriver string
	sqlOpenFunc = func(driverName, dsn string) (*sql.DB, error) {
		gotDriver = driverName
		return nil, errors.New("simulated open failure")
	}

	_, err := Open(context.Background(), config.Database{Type: "postgres", DSN: "postgres://x", Mode: "blocking"}, newTestPool(t, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulated open failure")
	assert.Equal(t, "pgx", gotDriver)
}

func TestOpen_PostgresNativeUsesPgx(t *testing.T) {
	prev := pgxConnectFunc
	defer func() { pgxConnectFunc = prev }()
	mock := newMockPool(t)
	var gotDSN string
	pgxConnectFunc = func(_ context.Context, cfg config.Database) (PgxConn, error) {
		gotDSN = cfg.DSN
		return mock, nil
	}

	s, err := Open(context.Background(), config.Database{Type: "postgres", DSN: "postgres://u@h/db"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@h/db", gotDSN)
	_, ok := s.(*NativeDb)
	require.True(t, ok, "expected *NativeDb, got %T", s)
	assert.Equal(t, model.ModeNative, s.Info().Mode)
	assert.Equal(t, "pgx/pgxpool", s.Info().Driver)
}

func TestOpen_PostgresConnectFailure(t *testing.T) {
	prev := pgxConnectFunc
	defer func() { pgxConnectFunc = prev }()
	boom := errors.New("no route to host")
	pgxConnectFunc = func(context.Context, config.Database) (PgxConn, error) { return nil, boom }

	_, err := Open(context.Background(), config.Database{Type: "postgres", DSN: "postgres://x"}, nil)
	require.ErrorIs(t, err, boom)
}

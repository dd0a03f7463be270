// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/toeirei/dbdispatch/internal/model"
)

// PgxConn is the part of *pgxpool.Pool a PgxBackend uses. pgxmock pools
// satisfy it as well.
type PgxConn interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

type pgxSession struct {
	id string

	// lock is held while a statement runs. A channel instead of a mutex so
	// waiting for it honours the caller's context.
	lock   chan struct{}
	tx     pgx.Tx
	closed bool

	inTx     atomic.Bool
	readOnly atomic.Bool
}

func (s *pgxSession) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *pgxSession) release() { <-s.lock }

func (s *pgxSession) clearTx() {
	s.tx = nil
	s.inTx.Store(false)
	s.readOnly.Store(false)
}

// PgxBackend is a native backend over pgx. Every call takes the caller's
// context and runs on the caller's goroutine.
type PgxBackend struct {
	conn PgxConn
	sess *pgxSession
}

// PgxBackend implements NativeBackend
var _ NativeBackend = PgxBackend{}

func NewPgxBackend(conn PgxConn) PgxBackend {
	return PgxBackend{
		conn: conn,
		sess: &pgxSession{id: uuid.NewString(), lock: make(chan struct{}, 1)},
	}
}

func (b PgxBackend) Begin(ctx context.Context, opt bool) error {
	s := b.sess
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	if s.closed {
		return ErrClosed
	}
	if s.tx != nil {
		return ErrTxActive
	}
	txOpts := pgx.TxOptions{}
	if opt {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := b.conn.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}
	s.tx = tx
	s.readOnly.Store(opt)
	s.inTx.Store(true)
	dbLogf("postgres session %s: begin (read-only=%t)", s.id, opt)
	return nil
}

func (b PgxBackend) Post(ctx context.Context, params model.Params) (model.PostResult, error) {
	s := b.sess
	if err := s.acquire(ctx); err != nil {
		return model.PostResult{}, err
	}
	defer s.release()
	if s.closed {
		return model.PostResult{}, ErrClosed
	}
	var (
		tag pgconn.CommandTag
		err error
	)
	if s.tx != nil {
		tag, err = s.tx.Exec(ctx, params.Statement, params.Args...)
	} else {
		tag, err = b.conn.Exec(ctx, params.Statement, params.Args...)
	}
	if err != nil {
		return model.PostResult{}, err
	}
	return model.PostResult{RowsAffected: tag.RowsAffected()}, nil
}

func (b PgxBackend) Commit(ctx context.Context) error {
	return b.finish(ctx, "commit", func(tx pgx.Tx) error { return tx.Commit(ctx) })
}

func (b PgxBackend) Rollback(ctx context.Context) error {
	return b.finish(ctx, "rollback", func(tx pgx.Tx) error { return tx.Rollback(ctx) })
}

// finish ends the open transaction. pgx closes the transaction even when
// Commit fails, so the session forgets it either way.
func (b PgxBackend) finish(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	s := b.sess
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	if s.closed {
		return ErrClosed
	}
	if s.tx == nil {
		return ErrNoTx
	}
	tx := s.tx
	s.clearTx()
	dbLogf("postgres session %s: %s", s.id, op)
	return fn(tx)
}

// Close rolls back an open transaction and closes the connection pool.
// Cancellation of ctx is ignored: a session is always released.
func (b PgxBackend) Close(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	s := b.sess
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.tx != nil {
		err = s.tx.Rollback(ctx)
		s.clearTx()
	}
	b.conn.Close()
	return err
}

func (b PgxBackend) Info() model.Info {
	return model.Info{
		Backend:  "postgres",
		Driver:   "pgx/pgxpool",
		Mode:     model.ModeNative,
		Session:  b.sess.id,
		InTx:     b.sess.inTx.Load(),
		ReadOnly: b.sess.readOnly.Load(),
	}
}

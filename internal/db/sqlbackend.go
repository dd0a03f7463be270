// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/toeirei/dbdispatch/internal/model"
	"github.com/uptrace/bun"
)

// sqlSession is the per-session state shared by every clone of an SQLBackend.
type sqlSession struct {
	id string

	mu     sync.Mutex // serializes statements on the session
	tx     *bun.Tx
	closed bool

	inTx     atomic.Bool
	readOnly atomic.Bool
}

// SQLBackend is a blocking backend over a database/sql driver wrapped by bun.
// It is a small value: copies share the *bun.DB (safe for concurrent use) and
// the session state (guarded by its own mutex).
type SQLBackend struct {
	bun     *bun.DB
	dialect string
	sess    *sqlSession
}

// SQLBackend implements BlockingBackend
var _ BlockingBackend = SQLBackend{}

// NewSQLBackend starts a new session on bdb. dialect is one of sqlite, mysql
// or postgres and only affects Info.
func NewSQLBackend(bdb *bun.DB, dialect string) SQLBackend {
	return SQLBackend{
		bun:     bdb,
		dialect: dialect,
		sess:    &sqlSession{id: uuid.NewString()},
	}
}

// BunDB exposes the underlying bun handle.
func (b SQLBackend) BunDB() *bun.DB { return b.bun }

// Clone copies the handle for use on another goroutine. The copy shares the
// *bun.DB and the session (its transaction and mutex) with b.
func (b SQLBackend) Clone() BlockingBackend { return b }

// sqliteReadOnly reports whether read-only transactions need query_only:
// modernc.org/sqlite ignores sql.TxOptions.ReadOnly.
func (b SQLBackend) sqliteReadOnly(readOnly bool) bool {
	return readOnly && b.dialect == "sqlite"
}

func (b SQLBackend) Begin(opt bool) error {
	s := b.sess
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.tx != nil {
		return ErrTxActive
	}
	ctx := context.Background()
	tx, err := b.bun.BeginTx(ctx, &sql.TxOptions{ReadOnly: opt})
	if err != nil {
		return err
	}
	if b.sqliteReadOnly(opt) {
		// query_only is per connection; finish turns it off again.
		if _, err := ExecRaw(ctx, &tx, "PRAGMA query_only = ON"); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	s.tx = &tx
	s.readOnly.Store(opt)
	s.inTx.Store(true)
	dbLogf("%s session %s: begin (read-only=%t)", b.dialect, s.id, opt)
	return nil
}

func (b SQLBackend) Post(params model.Params) (model.PostResult, error) {
	s := b.sess
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.PostResult{}, ErrClosed
	}
	ctx := context.Background()
	var exec execRawProvider = b.bun
	if s.tx != nil {
		exec = s.tx
	}
	res, err := ExecRaw(ctx, exec, params.Statement, params.Args...)
	if err != nil {
		return model.PostResult{}, err
	}
	return postResultFrom(res)
}

func (b SQLBackend) Commit() error {
	return b.finish("commit", func(tx *bun.Tx) error { return tx.Commit() })
}

func (b SQLBackend) Rollback() error {
	return b.finish("rollback", func(tx *bun.Tx) error { return tx.Rollback() })
}

// finish ends the open transaction. The transaction is forgotten even if the
// driver reports an error: database/sql considers it done either way.
func (b SQLBackend) finish(op string, fn func(*bun.Tx) error) error {
	s := b.sess
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.tx == nil {
		return ErrNoTx
	}
	tx := s.tx
	readOnly := s.readOnly.Load()
	s.tx = nil
	s.inTx.Store(false)
	s.readOnly.Store(false)
	dbLogf("%s session %s: %s", b.dialect, s.id, op)

	var resetErr error
	if b.sqliteReadOnly(readOnly) {
		if _, err := ExecRaw(context.Background(), tx, "PRAGMA query_only = OFF"); err != nil {
			resetErr = fmt.Errorf("reset query_only: %w", err)
		}
	}
	return errors.Join(fn(tx), resetErr)
}

// Close rolls back an open transaction and closes the database. Closing twice
// is a no-op.
func (b SQLBackend) Close() error {
	s := b.sess
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
		s.inTx.Store(false)
		s.readOnly.Store(false)
	}
	return b.bun.Close()
}

func (b SQLBackend) Info() model.Info {
	return model.Info{
		Backend:  b.dialect,
		Driver:   sqlDriverLabel(b.dialect),
		Mode:     model.ModeBlocking,
		Session:  b.sess.id,
		InTx:     b.sess.inTx.Load(),
		ReadOnly: b.sess.readOnly.Load(),
	}
}

func sqlDriverLabel(dialect string) string {
	switch dialect {
	case "sqlite":
		return "modernc.org/sqlite"
	case "mysql":
		return "go-sql-driver/mysql"
	case "postgres":
		return "pgx/stdlib"
	default:
		return dialect
	}
}

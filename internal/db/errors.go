// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/toeirei/dbdispatch/internal/offload"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind classifies an Error.
type Kind int

const (
	// KindBackend is a failure reported by the backend itself.
	KindBackend Kind = iota + 1
	// KindChannel is a failure of the offload mechanism.
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindBackend:
		return "backend"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

var (
	// ErrBackend matches any Error of KindBackend.
	ErrBackend = errors.New("backend error")
	// ErrChannel matches any Error of KindChannel.
	ErrChannel = errors.New("channel error")
	// ErrDuplicate matches backend errors caused by a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrTxActive is returned by Begin while a transaction is open.
	ErrTxActive = errors.New("transaction already active")
	// ErrNoTx is returned by Commit and Rollback without an open transaction.
	ErrNoTx = errors.New("no active transaction")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
)

// Error is the single error type returned by Db operations. Err is the
// original failure, untouched.
type Error struct {
	Kind    Kind
	Op      string
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("db %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is classify an Error by kind and recognise constraint
// violations without rewriting the payload.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrBackend:
		return e.Kind == KindBackend
	case ErrChannel:
		return e.Kind == KindChannel
	case ErrDuplicate:
		return e.Kind == KindBackend && isDuplicate(e.Err)
	}
	return false
}

// wrap turns an outcome error into an *Error. nil stays nil.
func wrap(op, backend string, err error) error {
	if err == nil {
		return nil
	}
	kind := KindBackend
	if offload.IsChannelError(err) {
		kind = KindChannel
	}
	return &Error{Kind: kind, Op: op, Backend: backend, Err: err}
}

// isDuplicate inspects driver errors for unique-constraint violations. Only
// typed driver errors count, plus SQLite's own message for errors that lost
// their type on the way up.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

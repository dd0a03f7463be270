// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the Db capability and its backend adapters.
// It hides whether a backend's driver blocks (and must be offloaded to the
// worker pool) or already honours a context, so the rest of the application
// talks to every database the same way.
package db // import "github.com/toeirei/dbdispatch/internal/db"

import (
	"context"

	"github.com/toeirei/dbdispatch/internal/model"
)

// Db is the capability every backend adapter implements.
type Db interface {
	// Begin starts a transaction on the session. opt requests a read-only
	// transaction.
	Begin(ctx context.Context, opt bool) error
	// Post executes a write, inside the open transaction if there is one.
	Post(ctx context.Context, params model.Params) (model.PostResult, error)
	// Info describes the session. It never blocks and has no side effects.
	Info() model.Info
}

// Tx finishes the transaction opened by Db.Begin.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Session is what Open hands out: the capability plus transaction control and
// release of the underlying resources.
type Session interface {
	Db
	Tx
	Close(ctx context.Context) error
}

// BlockingBackend is a backend whose operations block the calling goroutine.
// Implementations must be cheap to Clone, and a clone must be usable from any
// goroutine independently of the original.
type BlockingBackend interface {
	Clone() BlockingBackend
	Begin(opt bool) error
	Post(params model.Params) (model.PostResult, error)
	Commit() error
	Rollback() error
	Close() error
	Info() model.Info
}

// NativeBackend is a backend whose driver takes a context and can be called
// directly from the caller's goroutine.
type NativeBackend interface {
	Begin(ctx context.Context, opt bool) error
	Post(ctx context.Context, params model.Params) (model.PostResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
	Info() model.Info
}

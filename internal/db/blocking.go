// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"errors"

	"github.com/toeirei/dbdispatch/internal/model"
	"github.com/toeirei/dbdispatch/internal/offload"
)

// BlockingDb adapts a BlockingBackend to the Db capability by running every
// blocking call on the offload pool.
type BlockingDb struct {
	pool    *offload.Pool
	backend BlockingBackend
}

// *BlockingDb implements Session
var _ Session = (*BlockingDb)(nil)

// NewBlocking wraps backend. A nil pool means the process-wide pool, resolved
// on every call so the adapter can be built before offload.Init.
func NewBlocking(pool *offload.Pool, backend BlockingBackend) *BlockingDb {
	return &BlockingDb{pool: pool, backend: backend}
}

func (d *BlockingDb) resolvePool() *offload.Pool {
	if d.pool != nil {
		return d.pool
	}
	return offload.Default()
}

// Begin starts a transaction on a worker.
func (d *BlockingDb) Begin(ctx context.Context, opt bool) error {
	h := d.backend.Clone()
	_, err := offload.Submit(ctx, d.resolvePool(), func() (struct{}, error) {
		return struct{}{}, h.Begin(opt)
	})
	return d.wrap("begin", err)
}

// Post executes params on a worker. params is copied before it crosses over.
func (d *BlockingDb) Post(ctx context.Context, params model.Params) (model.PostResult, error) {
	h := d.backend.Clone()
	p := params.Clone()
	res, err := offload.Submit(ctx, d.resolvePool(), func() (model.PostResult, error) {
		return h.Post(p)
	})
	return res, d.wrap("post", err)
}

// Commit commits the open transaction on a worker.
func (d *BlockingDb) Commit(ctx context.Context) error {
	h := d.backend.Clone()
	_, err := offload.Submit(ctx, d.resolvePool(), func() (struct{}, error) {
		return struct{}{}, h.Commit()
	})
	return d.wrap("commit", err)
}

// Rollback aborts the open transaction on a worker.
func (d *BlockingDb) Rollback(ctx context.Context) error {
	h := d.backend.Clone()
	_, err := offload.Submit(ctx, d.resolvePool(), func() (struct{}, error) {
		return struct{}{}, h.Rollback()
	})
	return d.wrap("rollback", err)
}

// Close releases the backend on a worker. Cancellation of ctx is ignored so
// the release always runs; if the pool cannot admit it (closed, saturated or
// not initialized) the backend is closed on the caller's goroutine instead.
func (d *BlockingDb) Close(ctx context.Context) error {
	h := d.backend.Clone()
	release := func() (struct{}, error) { return struct{}{}, h.Close() }
	_, err := offload.Submit(context.WithoutCancel(ctx), d.resolvePool(), release)
	if notAdmitted(err) {
		dbLogf("%s close: pool unavailable (%v), closing inline", d.backend.Info().Backend, err)
		_, err = release()
	}
	return d.wrap("close", err)
}

func notAdmitted(err error) bool {
	return errors.Is(err, offload.ErrPoolClosed) ||
		errors.Is(err, offload.ErrNotInitialized) ||
		errors.Is(err, offload.ErrSaturated)
}

// Info is answered directly; it never touches the pool.
func (d *BlockingDb) Info() model.Info {
	return d.backend.Info()
}

func (d *BlockingDb) wrap(op string, err error) error {
	if err != nil {
		dbLogf("%s %s failed: %v", d.backend.Info().Backend, op, err)
	}
	return wrap(op, d.backend.Info().Backend, err)
}

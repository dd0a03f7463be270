// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"

	"github.com/toeirei/dbdispatch/internal/model"
)

// NativeDb adapts a NativeBackend to the Db capability. Calls run on the
// caller's goroutine; the offload pool is never involved.
type NativeDb struct {
	backend NativeBackend
}

// *NativeDb implements Session
var _ Session = (*NativeDb)(nil)

func NewNative(backend NativeBackend) *NativeDb {
	return &NativeDb{backend: backend}
}

func (d *NativeDb) Begin(ctx context.Context, opt bool) error {
	return d.wrap("begin", d.backend.Begin(ctx, opt))
}

func (d *NativeDb) Post(ctx context.Context, params model.Params) (model.PostResult, error) {
	res, err := d.backend.Post(ctx, params)
	return res, d.wrap("post", err)
}

func (d *NativeDb) Commit(ctx context.Context) error {
	return d.wrap("commit", d.backend.Commit(ctx))
}

func (d *NativeDb) Rollback(ctx context.Context) error {
	return d.wrap("rollback", d.backend.Rollback(ctx))
}

func (d *NativeDb) Close(ctx context.Context) error {
	return d.wrap("close", d.backend.Close(ctx))
}

func (d *NativeDb) Info() model.Info {
	return d.backend.Info()
}

func (d *NativeDb) wrap(op string, err error) error {
	if err != nil {
		dbLogf("%s %s failed: %v", d.backend.Info().Backend, op, err)
	}
	return wrap(op, d.backend.Info().Backend, err)
}

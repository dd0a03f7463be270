// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"errors"
	"sync"

	"github.com/toeirei/dbdispatch/internal/model"
)

var errFake = errors.New("fake backend failure")

// memState is an in-memory table shared by the blocking and native faces of
// the fake backend. Statements equal to failOn fail with errFake.
type memState struct {
	mu       sync.Mutex
	rows     []model.Params
	pending  []model.Params
	inTx     bool
	readOnly bool
	closed   bool
	failOn   string
	nextID   int64
}

func (s *memState) begin(opt bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.inTx {
		return ErrTxActive
	}
	s.inTx, s.readOnly = true, opt
	return nil
}

func (s *memState) post(p model.Params) (model.PostResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.PostResult{}, ErrClosed
	}
	if p.Statement == s.failOn {
		return model.PostResult{}, errFake
	}
	s.nextID++
	if s.inTx {
		s.pending = append(s.pending, p)
	} else {
		s.rows = append(s.rows, p)
	}
	return model.PostResult{RowsAffected: 1, LastInsertID: s.nextID, HasLastInsertID: true}, nil
}

func (s *memState) finish(commit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.inTx {
		return ErrNoTx
	}
	if commit {
		s.rows = append(s.rows, s.pending...)
	}
	s.pending = nil
	s.inTx, s.readOnly = false, false
	return nil
}

func (s *memState) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
	s.inTx = false
	return nil
}

func (s *memState) info(mode model.Mode) model.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Info{Backend: "mem", Driver: "fake", Mode: mode, Session: "mem-1", InTx: s.inTx, ReadOnly: s.readOnly}
}

func (s *memState) committed() []model.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Params(nil), s.rows...)
}

type memBlocking struct{ st *memState }

func (b memBlocking) Clone() BlockingBackend { return b }
func (b memBlocking) Begin(opt bool) error { return b.st.begin(opt) }
func (b memBlocking) Post(p model.Params) (model.PostResult, error) { return b.st.post(p) }
func (b memBlocking) Commit() error { return b.st.finish(true) }
func (b memBlocking) Rollback() error { return b.st.finish(false) }
func (b memBlocking) Close() error { return b.st.close() }
func (b memBlocking) Info() model.Info { return b.st.info(model.ModeBlocking) }

type memNative struct{ st *memState }

func (b memNative) Begin(_ context.Context, opt bool) error { return b.st.begin(opt) }
func (b memNative) Post(_ context.Context, p model.Params) (model.PostResult, error) {
	return b.st.post(p)
}
func (b memNative) Commit(context.Context) error { return b.st.finish(true) }
func (b memNative) Rollback(context.Context) error { return b.st.finish(false) }
func (b memNative) Close(context.Context) error { return b.st.close() }
func (b memNative) Info() model.Info { return b.st.info(model.ModeNative) }
